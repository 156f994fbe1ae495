package persist

// Repos bundles every repository over one pool so the assembly can hand
// a single value to the layers above.
type Repos struct {
	Accounts     *AccountRepo
	Players      *PlayerRepo
	Items        *ItemRepo
	Inventory    *InventoryRepo
	Territories  *TerritoryRepo
	Superbosses  *SuperbossRepo
	Walkers      *WalkerRepo
	Spells       *SpellRepo
	Collectables *CollectableRepo
	Features     *FeatureRepo
	Time         *TimeRepo
	Shoutbox     *ShoutboxRepo
	Logs         *LogRepo
	Settings     *SettingsRepo
}

func NewRepos(db *DB) *Repos {
	return &Repos{
		Accounts:     NewAccountRepo(db),
		Players:      NewPlayerRepo(db),
		Items:        NewItemRepo(db),
		Inventory:    NewInventoryRepo(db),
		Territories:  NewTerritoryRepo(db),
		Superbosses:  NewSuperbossRepo(db),
		Walkers:      NewWalkerRepo(db),
		Spells:       NewSpellRepo(db),
		Collectables: NewCollectableRepo(db),
		Features:     NewFeatureRepo(db),
		Time:         NewTimeRepo(db),
		Shoutbox:     NewShoutboxRepo(db),
		Logs:         NewLogRepo(db),
		Settings:     NewSettingsRepo(db),
	}
}
