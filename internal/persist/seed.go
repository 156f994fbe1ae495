package persist

import (
	"context"
	"fmt"

	"github.com/fortrealm/server/internal/data"
)

// SeedReport counts what Seed wrote.
type SeedReport struct {
	Items        int
	Territories  int
	Superbosses  int
	Collectables int
}

// Seed upserts the item catalog and, when the matching tables are empty,
// inserts the world rows from the static definition. Item templates
// refresh on every run so YAML edits land without wiping data; world
// rows carry live state and are only created once.
func Seed(ctx context.Context, repos *Repos, items *data.ItemTable, world *data.WorldTable) (*SeedReport, error) {
	rep := &SeedReport{}

	if err := repos.Items.UpsertTemplates(ctx, items.All()); err != nil {
		return nil, fmt.Errorf("upsert item templates: %w", err)
	}
	rep.Items = items.Count()

	n, err := repos.Territories.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count territories: %w", err)
	}
	if n == 0 {
		for _, s := range world.Territories {
			owner := data.NormalizeRealm(s.Owner)
			if owner == "" {
				return nil, fmt.Errorf("territory %d: unknown owner %q", s.ID, s.Owner)
			}
			row := &TerritoryRow{
				ID: s.ID, Name: s.Name, Type: s.Type, OwnerRealm: owner,
				Health: s.MaxHealth, MaxHealth: s.MaxHealth, X: s.X, Y: s.Y,
			}
			if err := repos.Territories.Insert(ctx, row); err != nil {
				return nil, fmt.Errorf("seed territory %d: %w", s.ID, err)
			}
			rep.Territories++
		}
	}

	n, err = repos.Superbosses.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count superbosses: %w", err)
	}
	if n == 0 {
		for _, s := range world.Superbosses {
			row := &SuperbossRow{
				ID: s.ID, Name: s.Name,
				Health: s.MaxHealth, MaxHealth: s.MaxHealth, X: s.X, Y: s.Y,
			}
			if err := repos.Superbosses.Insert(ctx, row); err != nil {
				return nil, fmt.Errorf("seed superboss %d: %w", s.ID, err)
			}
			rep.Superbosses++
		}
	}

	n, err = repos.Collectables.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count collectables: %w", err)
	}
	if n == 0 {
		for _, s := range world.Collectables {
			item := items.GetByTemplate(s.TemplateKey)
			if item == nil {
				return nil, fmt.Errorf("collectable %d: unknown template %q", s.ID, s.TemplateKey)
			}
			row := &CollectableRow{
				ID: s.ID, ItemID: item.ItemID, X: s.X, Y: s.Y,
				State: CollectableAvailable,
			}
			if err := repos.Collectables.Insert(ctx, row); err != nil {
				return nil, fmt.Errorf("seed collectable %d: %w", s.ID, err)
			}
			rep.Collectables++
		}
	}

	return rep, nil
}
