package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/errs"
)

// Verifier checks credentials against whichever identity source the
// deployment uses.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (userID int64, canonical string, err error)
}

// ForumClient verifies against the community forum's member API. The
// forum owns user ids and canonical name casing; this server never
// stores forum passwords.
type ForumClient struct {
	url string
	hc  *http.Client
	log *zap.Logger
}

func NewForumClient(url string, timeout time.Duration, log *zap.Logger) *ForumClient {
	return &ForumClient{url: url, hc: &http.Client{Timeout: timeout}, log: log}
}

type forumVerifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type forumVerifyResponse struct {
	Valid    bool   `json:"valid"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// Verify posts the credentials to the forum. A definitive "no" is
// AuthInvalid; a forum outage surfaces as a plain error so the login
// endpoint answers 500 rather than blaming the user.
func (c *ForumClient) Verify(ctx context.Context, username, password string) (int64, string, error) {
	body, err := json.Marshal(forumVerifyRequest{Username: username, Password: password})
	if err != nil {
		return 0, "", fmt.Errorf("encode verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("forum verify: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, "", errs.ErrAuthInvalid
	default:
		return 0, "", fmt.Errorf("forum verify: unexpected status %d", resp.StatusCode)
	}

	var out forumVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, "", fmt.Errorf("decode forum response: %w", err)
	}
	if !out.Valid || out.UserID == 0 {
		return 0, "", errs.ErrAuthInvalid
	}
	name := out.Username
	if name == "" {
		name = username
	}
	return out.UserID, name, nil
}
