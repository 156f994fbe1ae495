package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/persist"
)

// LocalVerifier authenticates against the accounts table. Dev and
// self-hosted deployments run this instead of the forum bridge; with
// autoCreate on, the first login claims the name.
type LocalVerifier struct {
	accounts   *persist.AccountRepo
	autoCreate bool
	log        *zap.Logger
}

func NewLocalVerifier(accounts *persist.AccountRepo, autoCreate bool, log *zap.Logger) *LocalVerifier {
	return &LocalVerifier{accounts: accounts, autoCreate: autoCreate, log: log}
}

func (v *LocalVerifier) Verify(ctx context.Context, username, password string) (int64, string, error) {
	if username == "" || password == "" {
		return 0, "", errs.ErrAuthInvalid
	}
	acct, err := v.accounts.Load(ctx, username)
	if err != nil {
		return 0, "", fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		if !v.autoCreate {
			return 0, "", errs.ErrAuthInvalid
		}
		created, err := v.accounts.Create(ctx, username, password)
		if err != nil {
			return 0, "", fmt.Errorf("create account: %w", err)
		}
		v.log.Info("account auto-created", zap.String("username", username), zap.Int64("user", created.ID))
		return created.ID, created.Username, nil
	}
	if !v.accounts.ValidatePassword(acct.PasswordHash, password) {
		return 0, "", errs.ErrAuthInvalid
	}
	return acct.ID, acct.Username, nil
}
