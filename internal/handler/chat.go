package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
	"github.com/fortrealm/server/internal/ws"
)

// normalizeShout folds the message to NFC and strips control characters.
// The shoutbox is single-line; newlines count as control here.
func normalizeShout(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// capRunes truncates to at most n runes without splitting a character.
func capRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// handleShout posts to the global shoutbox. GM slash commands ride the
// same channel and are consumed here instead of being broadcast.
func handleShout(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		var p struct {
			Message string `json:"message"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		msg := normalizeShout(p.Message)
		if msg == "" {
			return nil, fmt.Errorf("%w: empty message", errs.ErrBadRequest)
		}
		msg = capRunes(msg, deps.Config.Game.ShoutMaxLen)

		if strings.HasPrefix(msg, "/") {
			return runSlashCommand(ctx, deps, c, msg)
		}

		uid := c.UserID()
		row, err := deps.Repos.Shoutbox.Insert(ctx, uid, c.Username(), msg)
		if err != nil {
			return nil, fmt.Errorf("store shout: %w", err)
		}
		shout := cache.ShoutFromRow(row)
		deps.Cache.PushShout(ctx, shout)
		deps.Publisher.Global(event.ShoutboxMessage, shout)
		return shout, nil
	}
}

// runSlashCommand dispatches "/item <templateKey> <target> [qty]", the
// only slash command. Anything else, and any slash from a non-GM, is
// rejected without reaching the shoutbox.
func runSlashCommand(ctx context.Context, deps *Deps, c *ws.Client, msg string) (any, error) {
	if err := requireGM(ctx, deps, c); err != nil {
		return nil, err
	}
	fields := strings.Fields(msg)
	if fields[0] != "/item" {
		return nil, fmt.Errorf("%w: unknown command %s", errs.ErrBadRequest, fields[0])
	}
	if len(fields) < 3 || len(fields) > 4 {
		return nil, fmt.Errorf("%w: usage /item <templateKey> <target> [qty]", errs.ErrBadRequest)
	}
	qty := 1
	if len(fields) == 4 {
		n, err := strconv.Atoi(fields[3])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: bad quantity %q", errs.ErrBadRequest, fields[3])
		}
		qty = n
	}

	info, err := deps.Cache.ItemByTemplate(ctx, fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: no item template %q", errs.ErrNotFound, fields[1])
	}
	target, err := deps.Repos.Players.GetByUsername(ctx, fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: no player %q", errs.ErrNotFound, fields[2])
	}

	// Equipment never stacks so every copy can sit in its own slot.
	stack := !info.Equippable()
	if _, err := deps.Repos.Inventory.AddItem(ctx, target.UserID, info.ItemID, qty, stack); err != nil {
		return nil, fmt.Errorf("grant item: %w", err)
	}
	pushInventory(ctx, deps, target.UserID)
	appendLog(ctx, deps, target.UserID, persist.LogSuccess,
		fmt.Sprintf("Received %dx %s", qty, info.Name))
	appendLog(ctx, deps, c.UserID(), persist.LogInfo,
		fmt.Sprintf("Granted %dx %s to %s", qty, info.Name, target.Username))

	return map[string]any{
		"granted":  info.TemplateKey,
		"to":       target.Username,
		"quantity": qty,
	}, nil
}

func handleRecentShouts(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		shouts, err := deps.Cache.RecentShouts(ctx, shoutHistory)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"shouts": shouts,
			"lastId": deps.Cache.LastShoutID(ctx),
		}, nil
	}
}

const shoutHistory = 50
