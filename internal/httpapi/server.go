// Package httpapi is the small REST surface next to the websocket: login,
// realm enrolment, a health probe and the settings pass-through. Game
// traffic never goes through here.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/auth"
	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/persist"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes bounds every request body this API accepts.
const maxBodyBytes = 16 << 10

type authService interface {
	Login(ctx context.Context, username, password string) (*auth.LoginResult, error)
	ParseToken(token string) (*auth.Claims, error)
	SelectRealm(ctx context.Context, userID int64, username, realm string) (*persist.PlayerRow, error)
}

type settingsStore interface {
	Settings(ctx context.Context, userID int64) ([]byte, error)
	PutSettings(ctx context.Context, userID int64, raw []byte) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the mux and the listener lifecycle. The websocket upgrade
// is mounted here too so everything shares one port.
type Server struct {
	cfg      config.ServerConfig
	auth     authService
	settings settingsStore
	db       pinger
	kv       pinger
	mux      *http.ServeMux
	log      *zap.Logger
}

func NewServer(cfg config.ServerConfig, svc authService, settings settingsStore,
	db, kv pinger, serveWS http.HandlerFunc, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		auth:     svc,
		settings: settings,
		db:       db,
		kv:       kv,
		mux:      http.NewServeMux(),
		log:      log.Named("http"),
	}
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /realm", s.handleRealm)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /settings", s.handleSettingsGet)
	s.mux.HandleFunc("PUT /settings", s.handleSettingsPut)
	s.mux.HandleFunc("GET /ws", serveWS)
	return s
}

// Handler exposes the mux for tests and for wrapping.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves until ctx is cancelled, then drains open requests within the
// configured shutdown grace. Sockets held by the hub are closed by the
// hub's own shutdown, not here.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	failed := make(chan error, 1)
	go func() { failed <- srv.ListenAndServe() }()
	s.log.Info("listening", zap.String("addr", s.cfg.BindAddress))

	select {
	case err := <-failed:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := s.decodeBody(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		s.fail(w, fmt.Errorf("%w: username and password required", errs.ErrBadRequest))
		return
	}
	res, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *Server) handleRealm(w http.ResponseWriter, r *http.Request) {
	claims, err := s.bearer(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	var req struct {
		Realm string `json:"realm"`
	}
	if err := s.decodeBody(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	row, err := s.auth.SelectRealm(r.Context(), claims.UserID, claims.Username, req.Realm)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Realm    string   `json:"realm"`
		Position position `json:"position"`
	}{Realm: row.Realm, Position: position{X: row.X, Y: row.Y}})
}

type healthResponse struct {
	Status      string `json:"status"`
	Uptime      int64  `json:"uptime"`
	Connections struct {
		DB    bool `json:"db"`
		Cache bool `json:"cache"`
	} `json:"connections"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	res := healthResponse{Status: "ok", Uptime: time.Now().Unix() - s.cfg.StartTime}
	res.Connections.DB = s.db.Ping(ctx) == nil
	res.Connections.Cache = s.kv.Ping(ctx) == nil

	code := http.StatusOK
	if !res.Connections.DB || !res.Connections.Cache {
		res.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, res)
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	claims, err := s.bearer(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	blob, err := s.settings.Settings(r.Context(), claims.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(blob)
}

// handleSettingsPut stores the body verbatim, the same contract as the
// settings:set command: any JSON document within the size bound.
func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	claims, err := s.bearer(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(raw) == 0 || !json.Valid(raw) {
		s.fail(w, fmt.Errorf("%w: settings must be JSON", errs.ErrBadRequest))
		return
	}
	if err := s.settings.PutSettings(r.Context(), claims.UserID, raw); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bearer(r *http.Request) (*auth.Claims, error) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return nil, fmt.Errorf("%w: missing bearer token", errs.ErrAuthInvalid)
	}
	return s.auth.ParseToken(strings.TrimSpace(h[len(prefix):]))
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	raw, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty body", errs.ErrBadRequest)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed JSON", errs.ErrBadRequest)
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", errs.ErrBadRequest, tooBig.Limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return raw, nil
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := errs.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, code, errs.ToWire(err))
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}
