// Package errs defines the domain error kinds shared by handlers, workers,
// and the HTTP layer, plus the mapping from an error to its wire form.
package errs

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Sentinel errors for every non-internal failure a caller can act on.
var (
	ErrAuthInvalid           = errors.New("invalid credentials or token")
	ErrAlreadyInRealm        = errors.New("realm already selected")
	ErrUnreachable           = errors.New("destination unreachable")
	ErrOnCooldown            = errors.New("spell on cooldown")
	ErrAlreadyBeingCollected = errors.New("collectable already being collected")
	ErrCacheDown             = errors.New("cache unavailable")
	ErrPersistenceTransient  = errors.New("transient persistence failure")
	ErrExternalFeedFailed    = errors.New("war-status feed failed")
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrBadRequest            = errors.New("bad request")
)

// Kind is the stable wire code for an error class.
type Kind string

const (
	KindAuthInvalid           Kind = "authInvalid"
	KindAlreadyInRealm        Kind = "alreadyInRealm"
	KindUnreachable           Kind = "unreachable"
	KindOnCooldown            Kind = "onCooldown"
	KindAlreadyBeingCollected Kind = "alreadyBeingCollected"
	KindNotFound              Kind = "notFound"
	KindForbidden             Kind = "forbidden"
	KindBadRequest            Kind = "badRequest"
	KindInternal              Kind = "internal"
)

// KindOf classifies err into a wire kind. Anything unrecognized, including
// cache and persistence failures that escaped their retry/fall-through
// policies, is internal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrAuthInvalid):
		return KindAuthInvalid
	case errors.Is(err, ErrAlreadyInRealm):
		return KindAlreadyInRealm
	case errors.Is(err, ErrUnreachable):
		return KindUnreachable
	case errors.Is(err, ErrOnCooldown):
		return KindOnCooldown
	case errors.Is(err, ErrAlreadyBeingCollected):
		return KindAlreadyBeingCollected
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	default:
		return KindInternal
	}
}

// Wire is the JSON body acks and HTTP error responses carry.
type Wire struct {
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// ToWire flattens err into its ack payload. Internal errors are not echoed
// verbatim to clients.
func ToWire(err error) Wire {
	k := KindOf(err)
	if k == KindInternal {
		return Wire{Error: k, Message: "internal error"}
	}
	return Wire{Error: k, Message: err.Error()}
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthInvalid:
		return http.StatusUnauthorized
	case KindAlreadyInRealm:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest, KindUnreachable, KindOnCooldown, KindAlreadyBeingCollected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Transient reports whether err is worth one retry: a context deadline or
// network timeout from a database call, or an explicitly transient
// persistence error. Context cancellation is not transient because the
// caller is gone.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrPersistenceTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
