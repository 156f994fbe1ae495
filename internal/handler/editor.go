package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/world"
	"github.com/fortrealm/server/internal/ws"
)

// requireGM gates editor and grant surfaces. The session flag is checked
// first; a cache lookup covers promotions that happened after binding.
func requireGM(ctx context.Context, deps *Deps, c *ws.Client) error {
	if c.IsGM() {
		return nil
	}
	if gm, err := deps.Cache.IsGM(ctx, c.UserID()); err == nil && gm {
		return nil
	}
	return errs.ErrForbidden
}

var featureEvents = map[string]string{
	world.KindRegion: event.RegionsList,
	world.KindPath:   event.PathsList,
	world.KindWall:   event.WallsList,
	world.KindWater:  event.WatersList,
}

// rebuildWorld reloads every feature, swaps the walkability grid and
// rebroadcasts the edited kind so all map views redraw.
func rebuildWorld(ctx context.Context, deps *Deps, kind string) error {
	features, err := deps.Repos.Features.All(ctx)
	if err != nil {
		return fmt.Errorf("reload features: %w", err)
	}
	deps.World.Rebuild(features)

	list := make([]world.Feature, 0, 16)
	for _, f := range features {
		if f.Kind == kind {
			list = append(list, f)
		}
	}
	deps.Publisher.Global(featureEvents[kind], map[string]any{"features": list})
	return nil
}

func validFeature(f *world.Feature) error {
	if _, ok := featureEvents[f.Kind]; !ok {
		return fmt.Errorf("%w: unknown feature kind %q", errs.ErrBadRequest, f.Kind)
	}
	// Paths are polylines; a single road segment is legitimate. The
	// polygon kinds need an enclosed area.
	minPoints := 3
	if f.Kind == world.KindPath {
		minPoints = 2
	}
	if len(f.Points) < minPoints {
		return fmt.Errorf("%w: a %s needs at least %d points", errs.ErrBadRequest, f.Kind, minPoints)
	}
	if f.Kind == world.KindRegion {
		if data.NormalizeRealm(f.Realm) == "" {
			return fmt.Errorf("%w: region needs a realm", errs.ErrBadRequest)
		}
		f.Realm = data.NormalizeRealm(f.Realm)
	} else {
		f.Realm = ""
	}
	return nil
}

// handleEditorSave creates or updates a map feature and rebuilds the
// grid. Saves invalidate the whole path cache; edits are rare.
func handleEditorSave(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		if err := requireGM(ctx, deps, c); err != nil {
			return nil, err
		}
		var f world.Feature
		if err := decode(raw, &f); err != nil {
			return nil, err
		}
		if err := validFeature(&f); err != nil {
			return nil, err
		}
		if err := deps.Repos.Features.Save(ctx, &f); err != nil {
			return nil, fmt.Errorf("save feature: %w", err)
		}
		if err := rebuildWorld(ctx, deps, f.Kind); err != nil {
			return nil, err
		}
		deps.Log.Info("map feature saved",
			zap.Int64("feature", f.ID),
			zap.String("kind", f.Kind),
			zap.Int64("by", c.UserID()),
		)
		return &f, nil
	}
}

func handleEditorDelete(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		if err := requireGM(ctx, deps, c); err != nil {
			return nil, err
		}
		var p struct {
			ID int64 `json:"id"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		f, err := deps.Repos.Features.Delete(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if err := rebuildWorld(ctx, deps, f.Kind); err != nil {
			return nil, err
		}
		deps.Log.Info("map feature deleted",
			zap.Int64("feature", p.ID),
			zap.String("kind", f.Kind),
			zap.Int64("by", c.UserID()),
		)
		return map[string]any{"id": p.ID}, nil
	}
}

// handleFeatureList serves one kind's polygons to a joining client.
func handleFeatureList(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		var p struct {
			Kind string `json:"kind"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		if _, ok := featureEvents[p.Kind]; !ok {
			return nil, fmt.Errorf("%w: unknown feature kind %q", errs.ErrBadRequest, p.Kind)
		}
		list, err := deps.Repos.Features.ByKind(ctx, p.Kind)
		if err != nil {
			return nil, err
		}
		return map[string]any{"features": list}, nil
	}
}
