// Package handler implements the websocket command surface: one function
// per client command, registered by name with the session states allowed
// to call it. Handlers run on their own goroutines with a deadline and
// answer through the frame's ack id.
package handler

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/auth"
	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
	"github.com/fortrealm/server/internal/world"
	"github.com/fortrealm/server/internal/ws"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Deps holds shared dependencies injected into all command handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	Cache     *cache.Cache
	Repos     *persist.Repos
	World     *world.Service
	Auth      *auth.Service
	Items     *data.ItemTable
	Publisher event.Publisher
	Hub       *ws.Hub

	locks userLocks
}

// decode unmarshals a command payload, mapping malformed input to a
// BadRequest the client sees in its ack.
func decode(raw []byte, into any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", errs.ErrBadRequest)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrBadRequest, err)
	}
	return nil
}
