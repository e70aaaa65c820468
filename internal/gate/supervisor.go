package gate

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wifeyapp/appgate/internal/cache"
	"github.com/wifeyapp/appgate/internal/logging"
	"github.com/wifeyapp/appgate/internal/models"
	"github.com/wifeyapp/appgate/internal/purchases"
	"github.com/wifeyapp/appgate/internal/remote"
	"github.com/wifeyapp/appgate/internal/session"
)

// safePathPrefixes are the screens the verification lock must never fight:
// they exist to resolve the lock (or precede authentication entirely).
var safePathPrefixes = []string{
	"/auth/",
	"/onboarding",
	"/screening/gate",
	"/screening/reviewing",
	"/screening/cooldown",
	"/screening/outcome",
}

// Deps carries the collaborators of a Supervisor.
type Deps struct {
	Cache    *cache.Cache
	Client   remote.Client
	Flags    *Flags
	Sessions session.Source
	Binder   purchases.Binder
	Log      logging.Logger
	Now      func() time.Time
}

// Supervisor runs the three continuous forced-redirect checks. The checks are
// independent, safe in any interleaving, and each owns the flags it writes.
//
// Every check is guarded by its own generation counter: a new invocation bumps
// the counter, and an older in-flight invocation compares its generation
// immediately before every mutation derived from an awaited result, discarding
// stale results instead of applying them.
type Supervisor struct {
	cache    *cache.Cache
	client   remote.Client
	flags    *Flags
	sessions session.Source
	binder   purchases.Binder
	log      logging.Logger
	now      func() time.Time

	accessGen atomic.Uint64
	verifyGen atomic.Uint64
	ensureGen atomic.Uint64
}

func NewSupervisor(d Deps) *Supervisor {
	if d.Log == nil {
		d.Log = logging.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Binder == nil {
		d.Binder = purchases.NopBinder{}
	}
	return &Supervisor{
		cache:    d.Cache,
		client:   d.Client,
		flags:    d.Flags,
		sessions: d.Sessions,
		binder:   d.Binder,
		log:      d.Log,
		now:      d.Now,
	}
}

// Flags exposes the supervised flag state.
func (s *Supervisor) Flags() *Flags {
	return s.flags
}

// OnNavigate reacts to a navigation event from the shell: it supersedes any
// in-flight access and verification checks and runs fresh ones concurrently.
func (s *Supervisor) OnNavigate(ctx context.Context, path string) {
	go s.CheckAccess(ctx)
	go s.CheckVerification(ctx, path)
}

// OnSessionChange reacts to the shell establishing or replacing the
// authenticated session.
func (s *Supervisor) OnSessionChange(ctx context.Context) {
	go s.ReconcileLegacyIdentity(ctx)
}

// Run re-validates cooldown/ineligibility state on a timer until ctx is
// cancelled, so a cooldown that starts while the user sits on one screen is
// still picked up.
func (s *Supervisor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckAccess(ctx)
		}
	}
}

// CheckAccess re-validates the cooldown and lifetime-ineligibility flags
// against the authoritative user record.
func (s *Supervisor) CheckAccess(ctx context.Context) {
	gen := s.accessGen.Add(1)
	log := s.log.With("check", "access", "run", uuid.NewString())

	user, err := s.cache.User(ctx)
	if err != nil {
		log.Error(ctx, "cache read failed", "error", err)
		if s.accessCurrent(gen) {
			s.flags.SetAccess(false, false)
		}
		return
	}
	if user == nil {
		// No identity: the two owned flags reset, but ForceWelcome stays
		// untouched — another check may have raised it for a reason that
		// outlives the cache.
		if s.accessCurrent(gen) {
			s.flags.SetAccess(false, false)
		}
		return
	}

	fetched, err := s.client.FetchUser(ctx, user.ID)
	if errors.Is(err, remote.ErrNotFound) {
		if !s.accessCurrent(gen) {
			return
		}
		if cerr := s.cache.ClearIdentity(ctx); cerr != nil {
			log.Error(ctx, "cache invalidation failed", "error", cerr)
		}
		if !s.accessCurrent(gen) {
			return
		}
		s.flags.MarkDeleted()
		return
	}
	if err != nil {
		// Fail open on the stale local record; ForceWelcome is not toggled
		// by transient failures.
		log.Warn(ctx, "user fetch failed, using cached state", "error", err)
		if s.accessCurrent(gen) {
			s.flags.SetAccess(
				IsActiveCooldown(user.Status, user.CooldownUntil, s.now()),
				user.Status == models.StatusLifetimeIneligible,
			)
		}
		return
	}

	// Re-read immediately before merging: a concurrent check may have
	// mutated the cache while the fetch was in flight.
	if current, cerr := s.cache.User(ctx); cerr == nil && current != nil {
		user = current
	}
	merged := MergeUser(user, *fetched)

	if !s.accessCurrent(gen) {
		return
	}
	if err := s.cache.SaveUser(ctx, merged); err != nil {
		log.Error(ctx, "cache write failed", "error", err)
	}
	if !s.accessCurrent(gen) {
		return
	}
	s.flags.SetAccess(
		IsActiveCooldown(merged.Status, merged.CooldownUntil, s.now()),
		merged.Status == models.StatusLifetimeIneligible,
	)
	s.flags.ClearWelcome()
}

// CheckVerification re-validates the verification lock. On any of the safe
// paths the lock is forced inactive without a network call.
func (s *Supervisor) CheckVerification(ctx context.Context, currentPath string) {
	gen := s.verifyGen.Add(1)
	log := s.log.With("check", "verification", "run", uuid.NewString())

	if hasAnyPrefix(currentPath, safePathPrefixes...) {
		if s.verifyCurrent(gen) {
			s.flags.SetVerificationLocked(false)
		}
		return
	}

	user, err := s.cache.User(ctx)
	if err != nil {
		log.Error(ctx, "cache read failed", "error", err)
	}
	if err != nil || user == nil || user.ID == 0 {
		if s.verifyCurrent(gen) {
			s.flags.SetVerificationLocked(false)
		}
		return
	}

	res, err := s.client.FetchProfile(ctx, user.ID)
	if err != nil {
		// Fail open: a transient profile failure must not lock anyone out.
		log.Warn(ctx, "profile fetch failed", "error", err)
		if s.verifyCurrent(gen) {
			s.flags.SetVerificationLocked(false)
		}
		return
	}

	if res.Profile == nil {
		// The server answered and there is no profile row: same treatment
		// as a deleted user.
		if !s.verifyCurrent(gen) {
			return
		}
		if cerr := s.cache.ClearIdentity(ctx); cerr != nil {
			log.Error(ctx, "cache invalidation failed", "error", cerr)
		}
		if !s.verifyCurrent(gen) {
			return
		}
		s.flags.SetVerificationLocked(false)
		s.flags.RaiseWelcome()
		return
	}

	locked := res.Profile.VerificationLocked()
	if !s.verifyCurrent(gen) {
		return
	}
	s.flags.SetVerificationLocked(locked)
	if !locked {
		// A confirmed-good profile is strong evidence the account is real
		// and current.
		s.flags.ClearWelcome()
	}
}

// ReconcileLegacyIdentity ensures the legacy user row matching the bearer
// session exists, merges it into the cache, and re-binds the purchase
// identity to the ensured id.
func (s *Supervisor) ReconcileLegacyIdentity(ctx context.Context) {
	gen := s.ensureGen.Add(1)
	log := s.log.With("check", "ensure", "run", uuid.NewString())

	sess := s.sessions.Current()
	if sess == nil || !sess.Usable(s.now()) {
		// Phone-OTP sessions have no bearer JWT; nothing to reconcile.
		return
	}

	ensured, err := s.client.EnsureUser(ctx, sess.Token)
	if err != nil {
		log.Warn(ctx, "ensure call failed", "error", err)
		return
	}

	current, cerr := s.cache.User(ctx)
	if cerr != nil {
		log.Error(ctx, "cache read failed", "error", cerr)
		current = nil
	}
	merged := MergeUser(current, *ensured)

	if !s.ensureCurrent(gen) {
		return
	}
	if err := s.cache.SaveUser(ctx, merged); err != nil {
		log.Error(ctx, "cache write failed", "error", err)
		return
	}

	// The purchase binding may have been established on cold start against a
	// stale id; re-kick it with the ensured one.
	if err := s.binder.Configure(ctx, merged.ID); err != nil {
		log.Warn(ctx, "purchase rebind failed", "user_id", merged.ID, "error", err)
	}
}

func (s *Supervisor) accessCurrent(gen uint64) bool { return s.accessGen.Load() == gen }
func (s *Supervisor) verifyCurrent(gen uint64) bool { return s.verifyGen.Load() == gen }
func (s *Supervisor) ensureCurrent(gen uint64) bool { return s.ensureGen.Load() == gen }
