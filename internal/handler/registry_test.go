package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/ws"
)

// wireFrame mirrors the socket envelope for test reads and writes.
type wireFrame struct {
	Event string              `json:"event"`
	Data  jsoniter.RawMessage `json:"data,omitempty"`
	Ack   int64               `json:"ack,omitempty"`
}

func registryServer(t *testing.T, reg *Registry) *websocket.Conn {
	t.Helper()
	cfg := config.ServerConfig{
		SendQueueSize:  16,
		WriteTimeout:   time.Second,
		PingInterval:   time.Second,
		PongTimeout:    time.Second,
		HandlerTimeout: 2 * time.Second,
		CommandsPerSec: 200,
		CommandBurst:   200,
	}
	hub := ws.NewHub(cfg, 50*time.Millisecond, zap.NewNop())
	hub.SetDispatcher(reg)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, name string, data any, ack int64) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(wireFrame{Event: name, Data: mustRaw(t, data), Ack: ack}))
}

func mustRaw(t *testing.T, v any) jsoniter.RawMessage {
	t.Helper()
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func readAck(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f wireFrame
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Event == "ack" {
			return f
		}
	}
}

func wireError(t *testing.T, f wireFrame) errs.Wire {
	t.Helper()
	var w errs.Wire
	require.NoError(t, json.Unmarshal(f.Data, &w))
	return w
}

// testRegistry wires a bind command plus whatever the test registers.
func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(2*time.Second, zap.NewNop())
	reg.Register("bind", []ws.SessionState{ws.StateHandshake},
		func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
			c.Bind(9, "tester", "A", false)
			return map[string]bool{"ok": true}, nil
		})
	return reg
}

func TestRegistryRejectsUnknownCommand(t *testing.T) {
	conn := registryServer(t, testRegistry(t))

	sendCommand(t, conn, "no:such:command", nil, 1)
	ack := readAck(t, conn)
	assert.EqualValues(t, 1, ack.Ack)
	assert.Equal(t, errs.KindBadRequest, wireError(t, ack).Error)
}

func TestRegistryGatesByState(t *testing.T) {
	reg := testRegistry(t)
	reg.Register("needs:join", []ws.SessionState{ws.StateJoined},
		func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
			return map[string]string{"hello": c.Username()}, nil
		})
	conn := registryServer(t, reg)

	// Before binding the command is refused.
	sendCommand(t, conn, "needs:join", nil, 1)
	ack := readAck(t, conn)
	assert.Equal(t, errs.KindForbidden, wireError(t, ack).Error)

	sendCommand(t, conn, "bind", nil, 2)
	readAck(t, conn)

	sendCommand(t, conn, "needs:join", nil, 3)
	ack = readAck(t, conn)
	assert.EqualValues(t, 3, ack.Ack)
	assert.Contains(t, string(ack.Data), "tester")
}

func TestRegistryRecoversFromPanic(t *testing.T) {
	reg := testRegistry(t)
	reg.Register("boom", []ws.SessionState{ws.StateHandshake},
		func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
			panic("kaboom")
		})
	conn := registryServer(t, reg)

	sendCommand(t, conn, "boom", nil, 5)
	ack := readAck(t, conn)
	assert.EqualValues(t, 5, ack.Ack)
	assert.Equal(t, errs.KindInternal, wireError(t, ack).Error)

	// The socket survives the panic.
	sendCommand(t, conn, "bind", nil, 6)
	assert.EqualValues(t, 6, readAck(t, conn).Ack)
}

func TestRegistryMapsDomainErrors(t *testing.T) {
	reg := testRegistry(t)
	reg.Register("walk", []ws.SessionState{ws.StateHandshake},
		func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
			return nil, errs.ErrUnreachable
		})
	reg.Register("fail", []ws.SessionState{ws.StateHandshake},
		func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
			return nil, errors.New("pgx: connection refused")
		})
	conn := registryServer(t, reg)

	sendCommand(t, conn, "walk", nil, 1)
	assert.Equal(t, errs.KindUnreachable, wireError(t, readAck(t, conn)).Error)

	// Internal details never reach the wire.
	sendCommand(t, conn, "fail", nil, 2)
	w := wireError(t, readAck(t, conn))
	assert.Equal(t, errs.KindInternal, w.Error)
	assert.NotContains(t, w.Message, "pgx")
}
