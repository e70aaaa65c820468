// Package cache is the local cache adapter: typed access to the two storage
// keys the gate resolver owns, the cached user record and the onboarding-seen
// flag. It carries no routing logic of its own.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wifeyapp/appgate/internal/models"
	"github.com/wifeyapp/appgate/internal/storage"
)

const (
	keyUser           = "user"
	keyOnboardingSeen = "onboarding_seen"

	// onboardingSeenValue is the exact acknowledgment literal; anything else
	// stored under the key means "not seen".
	onboardingSeenValue = "true"
)

// Cache adapts a storage.Store to the record types the resolver works with.
type Cache struct {
	store storage.Store
}

func New(store storage.Store) *Cache {
	return &Cache{store: store}
}

// User returns the cached user record, or (nil, nil) when the key is absent
// or the stored JSON is unparsable. A corrupt cache entry is equivalent to
// having no cached user; it must never block resolution.
func (c *Cache) User(ctx context.Context) (*models.UserRecord, error) {
	raw, err := c.store.Get(ctx, keyUser)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached user: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var user models.UserRecord
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil
	}
	return &user, nil
}

// SaveUser overwrites the cached user record wholesale.
func (c *Cache) SaveUser(ctx context.Context, user models.UserRecord) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}
	if err := c.store.Set(ctx, keyUser, raw); err != nil {
		return fmt.Errorf("failed to save user record: %w", err)
	}
	return nil
}

// OnboardingSeen reports whether the intro has been explicitly acknowledged.
// Read errors are swallowed: an unreadable flag means "not seen".
func (c *Cache) OnboardingSeen(ctx context.Context) bool {
	raw, err := c.store.Get(ctx, keyOnboardingSeen)
	if err != nil {
		return false
	}
	return string(raw) == onboardingSeenValue
}

// MarkOnboardingSeen records the acknowledgment.
func (c *Cache) MarkOnboardingSeen(ctx context.Context) error {
	return c.store.Set(ctx, keyOnboardingSeen, []byte(onboardingSeenValue))
}

// ClearIdentity removes the cached user and the onboarding-seen flag. Called
// when an authoritative check reports the user no longer exists server-side,
// and on sign-out.
func (c *Cache) ClearIdentity(ctx context.Context) error {
	if err := c.store.Delete(ctx, keyUser); err != nil {
		return fmt.Errorf("failed to clear cached user: %w", err)
	}
	if err := c.store.Delete(ctx, keyOnboardingSeen); err != nil {
		return fmt.Errorf("failed to clear onboarding flag: %w", err)
	}
	return nil
}
