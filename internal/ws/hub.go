package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fortrealm/server/internal/config"
)

// Dispatcher routes a decoded command frame. Implementations must not
// block the caller; the read pump is single-threaded per socket.
type Dispatcher interface {
	Dispatch(c *Client, f *Frame)
}

// Hub tracks live sessions and fans events out to them. A user may hold
// several sockets (tabs); presence transitions are edge-triggered with a
// short debounce so a page refresh does not broadcast a leave/join pair.
type Hub struct {
	log *zap.Logger

	pingInterval  time.Duration
	pongTimeout   time.Duration
	writeTimeout  time.Duration
	handshakeWait time.Duration
	queueSize     int
	limit         rate.Limit
	burst         int
	debounce      time.Duration

	upgrader   websocket.Upgrader
	dispatcher Dispatcher

	// OnConnect fires when a user's first socket binds, OnDisconnect after
	// the last socket has been gone for the debounce window, OnHeartbeat on
	// every pong from a bound socket. All may be nil and must be set before
	// the first upgrade.
	OnConnect    func(userID int64)
	OnDisconnect func(userID int64)
	OnHeartbeat  func(userID int64)

	mu         sync.RWMutex
	clients    map[*Client]struct{}
	byUser     map[int64]map[*Client]struct{}
	pendingOff map[int64]*time.Timer
	draining   bool
}

func NewHub(server config.ServerConfig, debounce time.Duration, log *zap.Logger) *Hub {
	h := &Hub{
		log:           log,
		pingInterval:  server.PingInterval,
		pongTimeout:   server.PongTimeout,
		writeTimeout:  server.WriteTimeout,
		handshakeWait: server.HandlerTimeout,
		queueSize:     server.SendQueueSize,
		limit:         rate.Limit(server.CommandsPerSec),
		burst:         server.CommandBurst,
		debounce:      debounce,
		clients:       make(map[*Client]struct{}),
		byUser:        make(map[int64]map[*Client]struct{}),
		pendingOff:    make(map[int64]*time.Timer),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(server.AllowedOrigins),
	}
	return h
}

// originChecker allows listed origins, or same-host when the list is empty.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla's default: same-origin only
	}
	set := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if wildcard {
			return true
		}
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

func (h *Hub) SetDispatcher(d Dispatcher) { h.dispatcher = d }

func (h *Hub) dispatch(c *Client, f *Frame) {
	if h.dispatcher == nil {
		h.log.Error("frame before dispatcher wired", zap.String("event", f.Event))
		return
	}
	h.dispatcher.Dispatch(c, f)
}

// ServeWS upgrades the request and starts the session pumps. The session
// stays in Handshake until an auth command binds it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	draining := h.draining
	h.mu.RUnlock()
	if draining {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	c := newClient(h, conn)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go c.writePump()
	go c.readPump()
}

// Join registers a bound session under its user. Called by the auth
// handler after Bind.
func (h *Hub) Join(c *Client) {
	uid := c.UserID()
	h.mu.Lock()
	set := h.byUser[uid]
	if set == nil {
		set = make(map[*Client]struct{})
		h.byUser[uid] = set
	}
	set[c] = struct{}{}
	first := len(set) == 1
	rejoined := false
	if t, ok := h.pendingOff[uid]; ok {
		t.Stop()
		delete(h.pendingOff, uid)
		rejoined = true
	}
	h.mu.Unlock()

	if first && !rejoined && h.OnConnect != nil {
		h.OnConnect(uid)
	}
}

// drop removes a session from the registry. If it was the user's last
// socket the disconnect callback is armed behind the debounce timer.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)

	uid := c.UserID()
	last := false
	if set, ok := h.byUser[uid]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byUser, uid)
				last = true
			}
		}
	}
	if last {
		if t, ok := h.pendingOff[uid]; ok {
			t.Stop()
		}
		h.pendingOff[uid] = time.AfterFunc(h.debounce, func() { h.confirmOffline(uid) })
	}
	h.mu.Unlock()
}

func (h *Hub) confirmOffline(uid int64) {
	h.mu.Lock()
	delete(h.pendingOff, uid)
	_, online := h.byUser[uid]
	h.mu.Unlock()
	if !online && h.OnDisconnect != nil {
		h.OnDisconnect(uid)
	}
}

func (h *Hub) heartbeat(c *Client) {
	if c.State() != StateJoined {
		return
	}
	if h.OnHeartbeat != nil {
		h.OnHeartbeat(c.UserID())
	}
}

// Global broadcasts an event to every bound session.
func (h *Hub) Global(name string, data any) {
	frame, err := encodeFrame(name, data, 0)
	if err != nil {
		h.log.Error("encode broadcast", zap.String("event", name), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.State() == StateJoined {
			c.enqueue(frame)
		}
	}
}

// User sends an event to every session the user has open.
func (h *Hub) User(userID int64, name string, data any) {
	frame, err := encodeFrame(name, data, 0)
	if err != nil {
		h.log.Error("encode user event", zap.String("event", name), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		c.enqueue(frame)
	}
}

// Counts reports live sockets and distinct bound users.
func (h *Hub) Counts() (sockets, users int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.byUser)
}

// OnlineUserIDs lists users with at least one bound socket.
func (h *Hub) OnlineUserIDs() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]int64, 0, len(h.byUser))
	for uid := range h.byUser {
		ids = append(ids, uid)
	}
	return ids
}

// Shutdown refuses new upgrades, stops pending presence timers and closes
// every session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.draining = true
	for uid, t := range h.pendingOff {
		t.Stop()
		delete(h.pendingOff, uid)
	}
	open := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		open = append(open, c)
	}
	h.mu.Unlock()

	for _, c := range open {
		c.Close()
	}
}
