// Package purchases models the binding between the app's purchase identity
// and the resolved user id. The actual purchase SDK lives in the shell; the
// gate daemon only decides when the binding must be (re)established.
package purchases

import (
	"context"
	"sync"
)

// Binder establishes the purchase-identity binding for a user id.
type Binder interface {
	Configure(ctx context.Context, userID int64) error
}

// NopBinder is the default Binder for embedders without a purchase stack.
type NopBinder struct{}

func (NopBinder) Configure(ctx context.Context, userID int64) error { return nil }

// RebindableBinder wraps a Binder and collapses duplicate configurations:
// configuring the same id twice is a no-op, but a changed id always goes
// through. The binding may have been established on cold start against a
// stale id, so "once" has to mean once per id, not once per process.
type RebindableBinder struct {
	mu     sync.Mutex
	inner  Binder
	bound  bool
	lastID int64
}

func NewRebindableBinder(inner Binder) *RebindableBinder {
	return &RebindableBinder{inner: inner}
}

func (b *RebindableBinder) Configure(ctx context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bound && b.lastID == userID {
		return nil
	}
	if err := b.inner.Configure(ctx, userID); err != nil {
		return err
	}
	b.bound = true
	b.lastID = userID
	return nil
}
