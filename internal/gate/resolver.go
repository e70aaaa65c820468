package gate

import (
	"context"
	"errors"
	"time"

	"github.com/wifeyapp/appgate/internal/cache"
	"github.com/wifeyapp/appgate/internal/logging"
	"github.com/wifeyapp/appgate/internal/models"
	"github.com/wifeyapp/appgate/internal/remote"
)

// Resolver computes the initial target screen at cold start by reconciling
// the local cache with authoritative remote state.
type Resolver struct {
	cache  *cache.Cache
	client remote.Client
	flags  *Flags
	log    logging.Logger
	now    func() time.Time
}

func NewResolver(c *cache.Cache, client remote.Client, flags *Flags, log logging.Logger, now func() time.Time) *Resolver {
	if flags == nil {
		flags = NewFlags()
	}
	if log == nil {
		log = logging.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{cache: c, client: client, flags: flags, log: log, now: now}
}

var onboarding = models.Target{Screen: models.ScreenOnboarding}

// ResolveInitialTarget walks the redirect rules in strict precedence order,
// short-circuiting on the first applicable one. It performs at most one user
// fetch, at most one profile fetch, and at most one cache write. Every failure
// mode resolves to a screen; onboarding is the universal fallback.
func (r *Resolver) ResolveInitialTarget(ctx context.Context) models.Target {
	user, err := r.cache.User(ctx)
	if err != nil {
		r.log.Error(ctx, "initial resolution: cache read failed", "error", err)
		return onboarding
	}
	// No local identity always means the welcome flow, regardless of any
	// other state. Same when the intro was never explicitly acknowledged.
	if user == nil {
		return onboarding
	}
	if !r.cache.OnboardingSeen(ctx) {
		return onboarding
	}

	fetched, err := r.client.FetchUser(ctx, user.ID)
	if errors.Is(err, remote.ErrNotFound) {
		// Deleted in admin: the cache is stale and must go. The flags must
		// record the deletion too; once the cache is empty no later check can
		// observe it.
		if cerr := r.cache.ClearIdentity(ctx); cerr != nil {
			r.log.Error(ctx, "initial resolution: cache invalidation failed", "error", cerr)
		}
		r.flags.MarkDeleted()
		return onboarding
	}
	if err != nil {
		r.log.Warn(ctx, "initial resolution: user fetch failed, using cached state", "error", err)
		return r.targetFromLocal(*user)
	}

	// Re-read before merging; a concurrent check may have rewritten the
	// cache while the fetch was in flight.
	if current, cerr := r.cache.User(ctx); cerr == nil && current != nil {
		user = current
	}
	merged := MergeUser(user, *fetched)
	if err := r.cache.SaveUser(ctx, merged); err != nil {
		r.log.Error(ctx, "initial resolution: cache write failed", "error", err)
	}

	switch {
	case merged.Status == models.StatusLifetimeIneligible:
		return models.Target{Screen: models.ScreenScreeningOutcome, Reason: models.ReasonLifetimeIneligible}

	case IsActiveCooldown(merged.Status, merged.CooldownUntil, r.now()):
		return models.Target{Screen: models.ScreenScreeningCooldown}

	case merged.Status == models.StatusApproved:
		res, perr := r.client.FetchProfile(ctx, merged.ID)
		if perr != nil {
			// Fail open: a profile hiccup must not keep an approved user out.
			r.log.Warn(ctx, "initial resolution: profile fetch failed", "error", perr)
			return models.Target{Screen: models.ScreenHome}
		}
		if !PostQuizOnboardingComplete(res.Profile) {
			return models.Target{Screen: models.ScreenOnboardingProfile}
		}
		return models.Target{Screen: models.ScreenHome}

	default:
		return models.Target{Screen: models.ScreenScreeningGate}
	}
}

// targetFromLocal applies the same precedence to the cached record alone when
// the server is unreachable, so the app is never stuck unroutable offline.
// Approved users go straight home; the profile check would only fail too.
func (r *Resolver) targetFromLocal(user models.UserRecord) models.Target {
	switch {
	case user.Status == models.StatusLifetimeIneligible:
		return models.Target{Screen: models.ScreenScreeningOutcome, Reason: models.ReasonLifetimeIneligible}
	case IsActiveCooldown(user.Status, user.CooldownUntil, r.now()):
		return models.Target{Screen: models.ScreenScreeningCooldown}
	case user.Status == models.StatusApproved:
		return models.Target{Screen: models.ScreenHome}
	default:
		return models.Target{Screen: models.ScreenScreeningGate}
	}
}
