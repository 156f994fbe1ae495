// Package event names the wire events fanned out to clients and the
// publisher seam the bus implements. Handlers and workers depend on this
// package, never on the socket hub directly.
package event

import "github.com/fortrealm/server/internal/geo"

// Global events, delivered to every connected client.
const (
	PlayerConnected    = "player:connected"
	PlayerDisconnected = "player:disconnected"
	PlayerHealth       = "player:health"
	MoveStarted        = "move:started"
	WalkerStep         = "walker:step"
	WalkerCompleted    = "walker:completed"
	TerritoriesUpdate  = "territories:update"
	TerritoriesCapture = "territories:capture"
	SuperbossesHealth  = "superbosses:health"
	TimeUpdate         = "time:update"
	SpellExpired       = "spell:expired"
	CollectableSpawned = "collectable:spawned"
	CollectCollecting  = "collectable:collecting"
	CollectCollected   = "collectable:collected"
	CollectFailed      = "collectable:failed"
	RegionsList        = "regions:list"
	PathsList          = "paths:list"
	WallsList          = "walls:list"
	WatersList         = "waters:list"
	ShoutboxMessage    = "shoutbox:message"
)

// Per-user events.
const (
	InventoryRefresh = "inventory:refresh"
	LogMessage       = "log:message"
	Backpressure     = "backpressure"
)

// Publisher is the fan-out seam. Global delivers to every socket, User to
// every socket of one user. Both are fire-and-forget; slow consumers shed
// their own load.
type Publisher interface {
	Global(event string, data any)
	User(userID int64, event string, data any)
}

type Connected struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Realm    string `json:"realm"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type Disconnected struct {
	UserID int64 `json:"userId"`
}

type Moved struct {
	UserID   int64       `json:"userId"`
	Username string      `json:"username"`
	WalkerID string      `json:"walkerId"`
	Path     []geo.Point `json:"path"`
}

type Step struct {
	WalkerID string `json:"walkerId"`
	UserID   int64  `json:"userId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Index    int    `json:"index"`
}

type Completed struct {
	WalkerID    string `json:"walkerId"`
	UserID      int64  `json:"userId"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Interrupted bool   `json:"interrupted"`
}

type Health struct {
	UserID    int64 `json:"userId"`
	Health    int64 `json:"health"`
	MaxHealth int64 `json:"maxHealth"`
	Mana      int64 `json:"mana"`
	MaxMana   int64 `json:"maxMana"`
}

type Expired struct {
	UserID   int64  `json:"userId"`
	SpellKey string `json:"spellKey"`
}

type Clock struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type Capture struct {
	TerritoryID   int64  `json:"territoryId"`
	Name          string `json:"name"`
	PreviousRealm string `json:"previousRealm"`
	NewRealm      string `json:"newRealm"`
	CapturedAt    int64  `json:"capturedAt"`
}

type Collecting struct {
	SpawnID int64 `json:"spawnId"`
	UserID  int64 `json:"userId"`
}

type Collected struct {
	SpawnID int64 `json:"spawnId"`
	UserID  int64 `json:"userId"`
	ItemID  int64 `json:"itemId"`
}

type CollectFail struct {
	SpawnID int64  `json:"spawnId"`
	UserID  int64  `json:"userId"`
	Reason  string `json:"reason"`
}

type Spawned struct {
	SpawnID int64 `json:"spawnId"`
	ItemID  int64 `json:"itemId"`
	X       int   `json:"x"`
	Y       int   `json:"y"`
}

type Log struct {
	Message   string `json:"message"`
	LogType   string `json:"logType"`
	CreatedAt int64  `json:"createdAt"`
}

// InventoryState is the full bag and equipment snapshot pushed on every
// inventory mutation. Clients resolve itemId against the catalog.
type InventoryState struct {
	Inventory []InventoryEntry `json:"inventory"`
	Equipment []EquipmentEntry `json:"equipment"`
}

type InventoryEntry struct {
	ID       int64 `json:"id"`
	ItemID   int64 `json:"itemId"`
	Quantity int   `json:"quantity"`
}

type EquipmentEntry struct {
	Slot        string `json:"slot"`
	InventoryID int64  `json:"inventoryId"`
	ItemID      int64  `json:"itemId"`
}
