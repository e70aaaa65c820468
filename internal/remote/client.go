// Package remote is the typed accessor over the application server's read
// endpoints. It distinguishes exactly the outcomes the gate resolver cares
// about: found, confirmed-missing, and everything else.
package remote

import (
	"context"
	"errors"

	"github.com/wifeyapp/appgate/internal/models"
)

var (
	// ErrNotFound means the server authoritatively confirmed the requested
	// identity does not exist. This is the only error that may trigger
	// destructive cache invalidation.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable covers transport errors, timeouts, non-404 non-2xx
	// statuses, and malformed response bodies. Callers must fail open on it
	// and never treat it like ErrNotFound.
	ErrUnavailable = errors.New("server unavailable")
)

// ProfileResult carries a profile fetch outcome. A nil Profile with a nil
// error is meaningful: the server answered and the user has no profile yet.
type ProfileResult struct {
	Profile *models.ProfileRecord
}

// Client reads authoritative account state.
//
// Contract:
//   - FetchUser returns ErrNotFound on 404 and ErrUnavailable on any other
//     failure; it never reports a non-2xx status as success.
//   - FetchProfile returns ErrUnavailable on any failure; profile absence is
//     reported via ProfileResult, not an error.
//   - EnsureUser idempotently resolves the legacy user row for the bearer
//     credential.
//
// All methods must honor context cancellation/timeouts.
type Client interface {
	FetchUser(ctx context.Context, id int64) (*models.UserRecord, error)
	FetchProfile(ctx context.Context, id int64) (*ProfileResult, error)
	EnsureUser(ctx context.Context, bearer string) (*models.UserRecord, error)
}
