package handler

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/ws"
)

// maxSettingsBytes bounds the opaque client settings blob.
const maxSettingsBytes = 16 << 10

func handleSettingsGet(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		blob, err := deps.Cache.Settings(ctx, c.UserID())
		if err != nil {
			return nil, err
		}
		return jsoniter.RawMessage(blob), nil
	}
}

// handleSettingsSet stores the payload verbatim. The server never
// interprets it beyond checking it is a JSON document of sane size.
func handleSettingsSet(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: missing payload", errs.ErrBadRequest)
		}
		if len(raw) > maxSettingsBytes {
			return nil, fmt.Errorf("%w: settings exceed %d bytes", errs.ErrBadRequest, maxSettingsBytes)
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: settings must be JSON", errs.ErrBadRequest)
		}
		if err := deps.Cache.PutSettings(ctx, c.UserID(), raw); err != nil {
			return nil, err
		}
		return nil, nil
	}
}
