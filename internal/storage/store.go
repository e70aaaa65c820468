// Package storage provides the on-device key-value store backing the local
// cache. The SQLite implementation is the durable store used by the daemon;
// the in-memory implementation serves tests and embedders.
package storage

import "context"

// Store is an asynchronous key-value store.
//
// Contract:
//   - Get returns (nil, nil) for a missing key; callers must not rely on an
//     error to detect absence.
//   - Set overwrites unconditionally.
//   - Delete of a missing key is a no-op.
//
// All methods must honor context cancellation/timeouts.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
