package cache

import (
	"time"

	"github.com/fortrealm/server/internal/geo"
	"github.com/fortrealm/server/internal/persist"
)

// Player is the hot snapshot of one player, the shape clients see.
type Player struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	Realm     string `json:"realm"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Health    int64  `json:"health"`
	MaxHealth int64  `json:"maxHealth"`
	Mana      int64  `json:"mana"`
	MaxMana   int64  `json:"maxMana"`
	Level     int    `json:"level"`
	XP        int64  `json:"xp"`
	GM        bool   `json:"gm,omitempty"`
}

func PlayerFromRow(r *persist.PlayerRow) *Player {
	return &Player{
		UserID:    r.UserID,
		Username:  r.Username,
		Realm:     r.Realm,
		X:         r.X,
		Y:         r.Y,
		Health:    r.Health,
		MaxHealth: r.MaxHealth,
		Mana:      r.Mana,
		MaxMana:   r.MaxMana,
		Level:     r.Level,
		XP:        r.XP,
		GM:        r.GMLevel > 0,
	}
}

// Walker is an in-flight walk. Positions holds the full waypoint list;
// CurrentIndex advances in cache only and is durable just at creation
// and completion.
type Walker struct {
	ID           string      `json:"id"`
	UserID       int64       `json:"userId"`
	Positions    []geo.Point `json:"positions"`
	CurrentIndex int         `json:"currentIndex"`
	UpdatedAt    int64       `json:"updatedAt"`
}

// Position returns the waypoint at the current index.
func (w *Walker) Position() geo.Point {
	if len(w.Positions) == 0 {
		return geo.Point{}
	}
	i := w.CurrentIndex
	if i < 0 {
		i = 0
	}
	if i >= len(w.Positions) {
		i = len(w.Positions) - 1
	}
	return w.Positions[i]
}

// Done reports whether the walker has reached its last waypoint.
func (w *Walker) Done() bool {
	return w.CurrentIndex >= len(w.Positions)-1
}

func WalkerFromRow(r *persist.WalkerRow) *Walker {
	return &Walker{
		ID:           r.ID,
		UserID:       r.UserID,
		Positions:    r.Positions,
		CurrentIndex: r.CurrentIndex,
		UpdatedAt:    time.Now().Unix(),
	}
}

type Territory struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	OwnerRealm     string `json:"ownerRealm"`
	Health         int64  `json:"health"`
	MaxHealth      int64  `json:"maxHealth"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
	Contested      bool   `json:"contested"`
	ContestedSince int64  `json:"contestedSince,omitempty"`
}

func TerritoryFromRow(r *persist.TerritoryRow) *Territory {
	t := &Territory{
		ID:         r.ID,
		Name:       r.Name,
		Type:       r.Type,
		OwnerRealm: r.OwnerRealm,
		Health:     r.Health,
		MaxHealth:  r.MaxHealth,
		X:          r.X,
		Y:          r.Y,
		Contested:  r.Contested,
	}
	if r.ContestedSince != nil {
		t.ContestedSince = r.ContestedSince.Unix()
	}
	return t
}

type Superboss struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Health    int64  `json:"health"`
	MaxHealth int64  `json:"maxHealth"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

func SuperbossFromRow(r *persist.SuperbossRow) *Superboss {
	return &Superboss{
		ID:        r.ID,
		Name:      r.Name,
		Health:    r.Health,
		MaxHealth: r.MaxHealth,
		X:         r.X,
		Y:         r.Y,
	}
}

// Clock is the cached ingame time reading.
type Clock struct {
	Hour        int   `json:"hour"`
	Minute      int   `json:"minute"`
	TickSeconds int   `json:"tickSeconds"`
	StartedAt   int64 `json:"startedAt"`
}

type Shout struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"createdAt"`
}

func ShoutFromRow(r *persist.ShoutRow) *Shout {
	return &Shout{
		ID:        r.ID,
		UserID:    r.UserID,
		Username:  r.Username,
		Message:   r.Message,
		CreatedAt: r.CreatedAt.Unix(),
	}
}
