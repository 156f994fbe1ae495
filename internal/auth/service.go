package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/persist"
)

// Starting sheet for a freshly enrolled player.
const (
	startLevel     = 1
	startMaxHealth = 100
	startMaxMana   = 50
)

// LoginResult is what the login endpoint hands back. Realm is empty and
// NeedsRealmSelection true until the player has enrolled.
type LoginResult struct {
	Token               string `json:"token"`
	UserID              int64  `json:"userId"`
	Username            string `json:"username"`
	Realm               string `json:"realm,omitempty"`
	NeedsRealmSelection bool   `json:"needsRealmSelection"`
}

// Service glues verification, tokens and player enrolment together.
type Service struct {
	verifier Verifier
	tokens   *TokenManager
	players  *persist.PlayerRepo
	world    *data.WorldTable
	log      *zap.Logger
}

func NewService(verifier Verifier, tokens *TokenManager, players *persist.PlayerRepo, world *data.WorldTable, log *zap.Logger) *Service {
	return &Service{verifier: verifier, tokens: tokens, players: players, world: world, log: log}
}

// Login verifies credentials and issues a session token. The player row
// may not exist yet; realm selection is a separate step.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	userID, canonical, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(userID, canonical)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	res := &LoginResult{Token: token, UserID: userID, Username: canonical}
	player, err := s.players.Get(ctx, userID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		res.NeedsRealmSelection = true
	case err != nil:
		return nil, fmt.Errorf("load player: %w", err)
	default:
		res.Realm = player.Realm
	}
	s.log.Info("login", zap.Int64("user", userID), zap.String("username", canonical),
		zap.Bool("new", res.NeedsRealmSelection))
	return res, nil
}

// ParseToken validates a session token from the realm endpoint or the
// websocket auth command.
func (s *Service) ParseToken(token string) (*Claims, error) {
	return s.tokens.Parse(token)
}

// SelectRealm enrols the player, spawning them at their realm's start.
// Picking the realm the player already has is a no-op; switching is
// refused, realms are permanent.
func (s *Service) SelectRealm(ctx context.Context, userID int64, username, realm string) (*persist.PlayerRow, error) {
	realm = data.NormalizeRealm(realm)
	if realm == "" {
		return nil, fmt.Errorf("%w: unknown realm", errs.ErrBadRequest)
	}

	existing, err := s.players.Get(ctx, userID)
	switch {
	case err == nil:
		if existing.Realm == realm {
			return existing, nil
		}
		return nil, errs.ErrAlreadyInRealm
	case !errors.Is(err, errs.ErrNotFound):
		return nil, fmt.Errorf("load player: %w", err)
	}

	spawn, ok := s.world.SpawnFor(realm)
	if !ok {
		return nil, fmt.Errorf("%w: realm %s has no spawn", errs.ErrBadRequest, realm)
	}
	row := &persist.PlayerRow{
		UserID:     userID,
		Username:   username,
		Realm:      realm,
		X:          spawn.X,
		Y:          spawn.Y,
		Health:     startMaxHealth,
		MaxHealth:  startMaxHealth,
		Mana:       startMaxMana,
		MaxMana:    startMaxMana,
		Level:      startLevel,
		LastActive: time.Now().Unix(),
	}
	if err := s.players.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	s.log.Info("realm selected", zap.Int64("user", userID), zap.String("realm", realm),
		zap.Int("x", spawn.X), zap.Int("y", spawn.Y))
	return row, nil
}
