package ws

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/event"
)

// SessionState tracks where a socket is in its lifecycle. Commands other
// than auth are rejected until the session is bound to a user.
type SessionState int32

const (
	StateHandshake SessionState = iota
	StateJoined
)

// maxFrameSize caps inbound frames. Editor polygon saves are the largest
// legitimate payload and stay well under this.
const maxFrameSize = 64 << 10

// laggingFrame is sent once per overflow burst when a slow socket forces
// the queue to shed old frames.
var laggingFrame, _ = encodeFrame(event.Backpressure, nil, 0)

// Client is one upgraded websocket session. The hub owns registration;
// readPump and writePump own the connection. Everything else talks to the
// client through enqueue, which never blocks.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	log  *zap.Logger

	limiter *rate.Limiter
	state   atomic.Int32

	identityMu sync.RWMutex
	userID     int64
	username   string
	realm      string
	gm         bool

	sendMu  sync.Mutex
	send    chan []byte
	lagging bool
	closed  bool

	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		id:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		limiter: rate.NewLimiter(h.limit, h.burst),
		send:    make(chan []byte, h.queueSize),
	}
	c.log = h.log.With(zap.String("session", c.id), zap.String("remote", conn.RemoteAddr().String()))
	return c
}

// Bind attaches a user identity to the session and moves it to Ready.
func (c *Client) Bind(userID int64, username, realm string, gm bool) {
	c.identityMu.Lock()
	c.userID = userID
	c.username = username
	c.realm = realm
	c.gm = gm
	c.identityMu.Unlock()
	c.state.Store(int32(StateJoined))
	c.log = c.log.With(zap.Int64("user", userID), zap.String("name", username))
}

// SetRealm updates the cached realm after a realm selection on a live session.
func (c *Client) SetRealm(realm string) {
	c.identityMu.Lock()
	c.realm = realm
	c.identityMu.Unlock()
}

func (c *Client) State() SessionState { return SessionState(c.state.Load()) }

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() int64 {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.userID
}

func (c *Client) Username() string {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.username
}

func (c *Client) Realm() string {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.realm
}

func (c *Client) IsGM() bool {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.gm
}

// Send pushes a server event to this session only.
func (c *Client) Send(name string, data any) {
	frame, err := encodeFrame(name, data, 0)
	if err != nil {
		c.log.Error("encode frame", zap.String("event", name), zap.Error(err))
		return
	}
	c.enqueue(frame)
}

// Ack answers a command frame. A zero id means the client did not ask for
// a reply.
func (c *Client) Ack(id int64, data any) {
	if id == 0 {
		return
	}
	frame, err := encodeFrame(ackEvent, data, id)
	if err != nil {
		c.log.Error("encode ack", zap.Error(err))
		return
	}
	c.enqueue(frame)
}

// AckError answers a command frame with a wire error body.
func (c *Client) AckError(id int64, err error) {
	c.Ack(id, errs.ToWire(err))
}

// enqueue adds a frame to the send queue, shedding the oldest frames when
// the socket cannot keep up. The first shed of a burst swaps a lagging
// notice into the freed slot so the client learns its view has gaps; the
// flag resets once the queue drains.
func (c *Client) enqueue(frame []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	// Only writePump drains, so under sendMu a free slot stays free.
	if len(c.send) < cap(c.send) {
		c.send <- frame
		return
	}
	if !c.lagging {
		c.lagging = true
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- laggingFrame:
		default:
		}
	}
	for {
		select {
		case c.send <- frame:
			return
		default:
			select {
			case <-c.send:
			default:
			}
		}
	}
}

func (c *Client) clearLagging() {
	c.sendMu.Lock()
	c.lagging = false
	c.sendMu.Unlock()
}

// Close is safe to call from any goroutine and any number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
		_ = c.conn.Close()
	})
}

// readWait is how long we tolerate silence before declaring the peer gone.
// Two missed pings plus the pong grace.
func (c *Client) readWait() time.Duration {
	if c.State() == StateHandshake {
		return c.hub.handshakeWait
	}
	return 2*c.hub.pingInterval + c.hub.pongTimeout
}

func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.Close()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readWait()))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readWait()))
		c.hub.heartbeat(c)
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readWait()))

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.log.Debug("unparseable frame", zap.Error(err))
			continue
		}
		if f.Event == "" {
			continue
		}
		if !c.limiter.Allow() {
			c.AckError(f.Ack, fmt.Errorf("%w: too many commands", errs.ErrBadRequest))
			continue
		}
		c.hub.dispatch(c, &f)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			if len(c.send) == 0 {
				c.clearLagging()
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
