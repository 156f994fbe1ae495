package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/ws"
)

// Func is the callback signature for command handlers. The returned value
// becomes the ack payload; a nil result acks with an empty body.
type Func func(ctx context.Context, c *ws.Client, raw []byte) (any, error)

type entry struct {
	fn            Func
	allowedStates map[ws.SessionState]bool
}

// Registry maps command names to handlers with state-based access
// control. It implements ws.Dispatcher.
type Registry struct {
	handlers map[string]*entry
	timeout  time.Duration
	log      *zap.Logger
}

func NewRegistry(timeout time.Duration, log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*entry),
		timeout:  timeout,
		log:      log,
	}
}

// Register maps a command name to a handler, restricted to the given
// session states.
func (reg *Registry) Register(name string, states []ws.SessionState, fn Func) {
	allowed := make(map[ws.SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[name] = &entry{fn: fn, allowedStates: allowed}
}

// Dispatch validates the command and session state, then runs the handler
// on its own goroutine so the socket's read pump never stalls.
func (reg *Registry) Dispatch(c *ws.Client, f *ws.Frame) {
	e, ok := reg.handlers[f.Event]
	if !ok {
		reg.log.Debug("unknown command", zap.String("command", f.Event))
		c.AckError(f.Ack, fmt.Errorf("%w: unknown command %q", errs.ErrBadRequest, f.Event))
		return
	}
	if !e.allowedStates[c.State()] {
		reg.log.Warn("command not allowed in state",
			zap.String("command", f.Event),
			zap.Int64("user", c.UserID()),
			zap.Int32("state", int32(c.State())),
		)
		c.AckError(f.Ack, fmt.Errorf("%w: %s not allowed yet", errs.ErrForbidden, f.Event))
		return
	}
	go reg.run(e, c, f)
}

// run executes one handler with panic recovery so a single bad command
// cannot take the server down.
func (reg *Registry) run(e *entry, c *ws.Client, f *ws.Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("command", f.Event),
				zap.Int64("user", c.UserID()),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			c.AckError(f.Ack, errors.New("internal error"))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), reg.timeout)
	defer cancel()

	started := time.Now()
	res, err := e.fn(ctx, c, f.Data)
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			reg.log.Error("command failed",
				zap.String("command", f.Event),
				zap.Int64("user", c.UserID()),
				zap.Duration("took", time.Since(started)),
				zap.Error(err),
			)
		} else {
			reg.log.Debug("command rejected",
				zap.String("command", f.Event),
				zap.Int64("user", c.UserID()),
				zap.Error(err),
			)
		}
		c.AckError(f.Ack, err)
		return
	}
	c.Ack(f.Ack, res)
}
