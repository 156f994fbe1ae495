// Package warfeed polls the external war-status endpoint that reports
// fort ownership. The feed is advisory input to the territory worker; a
// dead feed never blocks a tick.
package warfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/errs"
)

// Fort is one parsed feed entry: the territory it names and the realm
// that currently holds it.
type Fort struct {
	TerritoryID int64
	Owner       string
}

type Client struct {
	url string
	hc  *http.Client
	log *zap.Logger
}

func NewClient(url string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		url: url,
		hc:  &http.Client{Timeout: timeout},
		log: log,
	}
}

type feedPayload struct {
	Forts []feedFort `json:"forts"`
}

type feedFort struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// Fetch polls the feed once. Transport and decode failures come back
// wrapped in errs.ErrExternalFeedFailed so callers can count them
// without inspecting causes.
func (c *Client) Fetch(ctx context.Context) ([]Fort, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", errs.ErrExternalFeedFailed, err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrExternalFeedFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errs.ErrExternalFeedFailed, resp.StatusCode)
	}

	var payload feedPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", errs.ErrExternalFeedFailed, err)
	}
	return c.parse(payload.Forts), nil
}

// territoryIDPattern matches the trailing "(id)" in feed fort names,
// e.g. "Keep (17)".
var territoryIDPattern = regexp.MustCompile(`\((\d+)\)\s*$`)

func (c *Client) parse(entries []feedFort) []Fort {
	forts := make([]Fort, 0, len(entries))
	for _, entry := range entries {
		if entry.Owner == "" {
			continue
		}
		m := territoryIDPattern.FindStringSubmatch(entry.Name)
		if m == nil {
			c.log.Debug("feed fort without territory id", zap.String("name", entry.Name))
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		realm := data.NormalizeRealm(entry.Owner)
		if realm == "" {
			c.log.Debug("feed fort with unknown owner",
				zap.String("name", entry.Name), zap.String("owner", entry.Owner))
			continue
		}
		forts = append(forts, Fort{TerritoryID: id, Owner: realm})
	}
	return forts
}
