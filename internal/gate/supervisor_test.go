package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/wifeyapp/appgate/internal/cache"
	"github.com/wifeyapp/appgate/internal/models"
	"github.com/wifeyapp/appgate/internal/remote"
	"github.com/wifeyapp/appgate/internal/session"
	"github.com/wifeyapp/appgate/internal/storage"
)

// ---- fakes ----

type fakeBinder struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (b *fakeBinder) Configure(ctx context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.ids = append(b.ids, userID)
	return nil
}

func newSupervisor(t *testing.T, client remote.Client) (*Supervisor, *testDeps) {
	t.Helper()
	c, store := setupCache(t)
	d := &testDeps{
		cache:    c,
		store:    store,
		flags:    NewFlags(),
		sessions: session.NewStore(),
		binder:   &fakeBinder{},
	}
	sup := NewSupervisor(Deps{
		Cache:    c,
		Client:   client,
		Flags:    d.flags,
		Sessions: d.sessions,
		Binder:   d.binder,
		Now:      fixedNow,
	})
	return sup, d
}

type testDeps struct {
	cache    *cache.Cache
	store    *storage.MemoryStore
	flags    *Flags
	sessions *session.Store
	binder   *fakeBinder
}

func signedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

// ---- TESTS: access check ----

func TestCheckAccess_NoCachedUserLeavesWelcomeAlone(t *testing.T) {
	client := &fakeClient{}
	sup, d := newSupervisor(t, client)

	d.flags.SetAccess(true, true)
	d.flags.RaiseWelcome()

	sup.CheckAccess(context.Background())

	snap := d.flags.Snapshot()
	require.False(t, snap.CooldownActive)
	require.False(t, snap.LifetimeIneligible)
	require.True(t, snap.ForceWelcome, "welcome outlives the cleared cache")
	require.Zero(t, client.UserCalls)
}

func TestCheckAccess_DeletedUser(t *testing.T) {
	client := &fakeClient{
		UserFn: func(call int, id int64) (*models.UserRecord, error) {
			return nil, remote.ErrNotFound
		},
	}
	sup, d := newSupervisor(t, client)

	seedUser(t, d.cache, `{"id":7,"status":"APPROVED"}`)
	require.NoError(t, d.cache.MarkOnboardingSeen(context.Background()))
	d.flags.SetAccess(true, false)
	d.flags.SetVerificationLocked(true)

	sup.CheckAccess(context.Background())

	snap := d.flags.Snapshot()
	require.True(t, snap.ForceWelcome)
	require.False(t, snap.CooldownActive)
	require.False(t, snap.LifetimeIneligible)
	require.False(t, snap.VerificationLocked)

	user, err := d.cache.User(context.Background())
	require.NoError(t, err)
	require.Nil(t, user)
	require.False(t, d.cache.OnboardingSeen(context.Background()))
}

func TestCheckAccess_SuccessRecomputesAndClearsWelcome(t *testing.T) {
	future := testNow.Add(time.Hour).Format(time.RFC3339)
	client := &fakeClient{
		UserFn: func(call int, id int64) (*models.UserRecord, error) {
			return userFromJSON(t, `{"id":7,"status":"COOLDOWN","cooldownUntil":"`+future+`"}`), nil
		},
	}
	sup, d := newSupervisor(t, client)

	seedUser(t, d.cache, `{"id":7,"status":"PENDING"}`)
	d.flags.RaiseWelcome()

	sup.CheckAccess(context.Background())

	snap := d.flags.Snapshot()
	require.True(t, snap.CooldownActive)
	require.False(t, snap.LifetimeIneligible)
	require.False(t, snap.ForceWelcome, "a confirmed user clears the welcome redirect")

	user, err := d.cache.User(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.StatusCooldown, user.Status)
}

func TestCheckAccess_TransientFailureKeepsWelcome(t *testing.T) {
	client := &fakeClient{} // unavailable
	sup, d := newSupervisor(t, client)

	seedUser(t, d.cache, `{"id":7,"status":"LIFETIME_INELIGIBLE"}`)
	d.flags.RaiseWelcome()

	sup.CheckAccess(context.Background())

	snap := d.flags.Snapshot()
	require.True(t, snap.LifetimeIneligible, "flags recomputed from the stale local record")
	require.False(t, snap.CooldownActive)
	require.True(t, snap.ForceWelcome, "transient failures never lower the welcome redirect")
}

func TestCheckAccess_StaleInvocationDiscarded(t *testing.T) {
	future := testNow.Add(time.Hour).Format(time.RFC3339)

	var sup *Supervisor
	client := &fakeClient{}
	client.UserFn = func(call int, id int64) (*models.UserRecord, error) {
		if call == 1 {
			// A newer navigation event runs a full check while this fetch is
			// still in flight.
			sup.CheckAccess(context.Background())
			return userFromJSON(t, `{"id":7,"status":"COOLDOWN","cooldownUntil":"`+future+`"}`), nil
		}
		return nil, remote.ErrUnavailable
	}

	var d *testDeps
	sup, d = newSupervisor(t, client)
	seedUser(t, d.cache, `{"id":7,"status":"PENDING"}`)

	sup.CheckAccess(context.Background())

	snap := d.flags.Snapshot()
	require.False(t, snap.CooldownActive, "the superseded result must be discarded")

	user, err := d.cache.User(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, user.Status, "the stale merge must not be persisted")
	require.Equal(t, 2, client.UserCalls)
}

// ---- TESTS: verification check ----

func TestCheckVerification_ExemptPathShortCircuits(t *testing.T) {
	client := &fakeClient{}
	sup, d := newSupervisor(t, client)

	seedUser(t, d.cache, `{"id":7,"status":"APPROVED"}`)
	d.flags.SetVerificationLocked(true)

	for _, path := range []string{
		"/auth/login",
		"/onboarding",
		"/onboarding/profile",
		"/screening/gate",
		"/screening/reviewing",
		"/screening/cooldown",
		"/screening/outcome?result=LIFETIME_INELIGIBLE",
	} {
		d.flags.SetVerificationLocked(true)
		sup.CheckVerification(context.Background(), path)
		require.False(t, d.flags.Snapshot().VerificationLocked, "path %s", path)
	}
	require.Zero(t, client.ProfileCalls, "exempt paths must not trigger a fetch")
}

func TestCheckVerification_FetchFailureFailsOpen(t *testing.T) {
	client := &fakeClient{} // profile fetch unavailable
	sup, d := newSupervisor(t, client)

	seedUser(t, d.cache, `{"id":7,"status":"APPROVED"}`)
	d.flags.SetVerificationLocked(true)
	d.flags.RaiseWelcome()

	sup.CheckVerification(context.Background(), "/home")

	snap := d.flags.Snapshot()
	require.False(t, snap.VerificationLocked)
	require.True(t, snap.ForceWelcome, "transient failure must not lower the welcome redirect")
}

func TestCheckVerification_MissingProfileTreatedAsDeleted(t *testing.T) {
	client := &fakeClient{
		ProfileFn: func(call int, id int64) (*remote.ProfileResult, error) {
			return &remote.ProfileResult{Profile: nil}, nil
		},
	}
	sup, d := newSupervisor(t, client)

	seedUser(t, d.cache, `{"id":7,"status":"APPROVED"}`)
	require.NoError(t, d.cache.MarkOnboardingSeen(context.Background()))

	sup.CheckVerification(context.Background(), "/home")

	snap := d.flags.Snapshot()
	require.True(t, snap.ForceWelcome)
	require.False(t, snap.VerificationLocked)

	user, err := d.cache.User(context.Background())
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestCheckVerification_LockedAndUnlocked(t *testing.T) {
	locked := true
	client := &fakeClient{
		ProfileFn: func(call int, id int64) (*remote.ProfileResult, error) {
			p := &models.ProfileRecord{UserID: 7, IsVerified: !locked}
			if locked {
				p.VerificationStatus = models.VerificationRejected
			}
			return &remote.ProfileResult{Profile: p}, nil
		},
	}
	sup, d := newSupervisor(t, client)
	seedUser(t, d.cache, `{"id":7,"status":"APPROVED"}`)
	d.flags.RaiseWelcome()

	sup.CheckVerification(context.Background(), "/home")
	snap := d.flags.Snapshot()
	require.True(t, snap.VerificationLocked)
	require.True(t, snap.ForceWelcome, "a locked profile is not proof the account is fine")

	locked = false
	sup.CheckVerification(context.Background(), "/home")
	snap = d.flags.Snapshot()
	require.False(t, snap.VerificationLocked)
	require.False(t, snap.ForceWelcome, "an unlocked profile clears the welcome redirect")
}

func TestCheckVerification_UnverifiedProfileIsLocked(t *testing.T) {
	client := &fakeClient{
		ProfileFn: func(call int, id int64) (*remote.ProfileResult, error) {
			return &remote.ProfileResult{Profile: &models.ProfileRecord{UserID: 7, IsVerified: false}}, nil
		},
	}
	sup, d := newSupervisor(t, client)
	seedUser(t, d.cache, `{"id":7,"status":"APPROVED"}`)

	sup.CheckVerification(context.Background(), "/home")
	require.True(t, d.flags.Snapshot().VerificationLocked)
}

// ---- TESTS: legacy identity reconciliation ----

func TestReconcileLegacyIdentity_NoSession(t *testing.T) {
	client := &fakeClient{}
	sup, d := newSupervisor(t, client)

	sup.ReconcileLegacyIdentity(context.Background())
	require.Zero(t, client.EnsureCalls)

	// An opaque (non-JWT) token is an OTP session; nothing to reconcile.
	d.sessions.Set("opaque-otp-token")
	sup.ReconcileLegacyIdentity(context.Background())
	require.Zero(t, client.EnsureCalls)
}

func TestReconcileLegacyIdentity_ExpiredToken(t *testing.T) {
	client := &fakeClient{}
	sup, d := newSupervisor(t, client)

	d.sessions.Set(signedToken(t, "7", testNow.Add(-time.Minute)))
	sup.ReconcileLegacyIdentity(context.Background())
	require.Zero(t, client.EnsureCalls)
}

func TestReconcileLegacyIdentity_MergesAndRebinds(t *testing.T) {
	client := &fakeClient{
		EnsureFn: func(call int, bearer string) (*models.UserRecord, error) {
			return userFromJSON(t, `{"id":9,"status":"APPROVED","email":"a@example.com"}`), nil
		},
	}
	sup, d := newSupervisor(t, client)

	seedUser(t, d.cache, `{"id":7,"status":"PENDING","name":"Ann"}`)
	token := signedToken(t, "9", testNow.Add(time.Hour))
	d.sessions.Set(token)

	sup.ReconcileLegacyIdentity(context.Background())

	require.Equal(t, 1, client.EnsureCalls)
	require.Equal(t, token, client.LastBearer)

	user, err := d.cache.User(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, int64(9), user.ID, "the ensured identity wins")
	require.Equal(t, models.StatusApproved, user.Status)
	fields := user.RawFields()
	require.JSONEq(t, `"Ann"`, string(fields["name"]), "local-only fields survive the merge")

	require.Equal(t, []int64{9}, d.binder.ids, "purchase identity re-bound to the ensured id")
}

func TestReconcileLegacyIdentity_EnsureFailureIsSilent(t *testing.T) {
	client := &fakeClient{
		EnsureFn: func(call int, bearer string) (*models.UserRecord, error) {
			return nil, remote.ErrUnavailable
		},
	}
	sup, d := newSupervisor(t, client)

	seedUser(t, d.cache, `{"id":7,"status":"PENDING"}`)
	d.sessions.Set(signedToken(t, "7", testNow.Add(time.Hour)))

	sup.ReconcileLegacyIdentity(context.Background())

	user, err := d.cache.User(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), user.ID, "cache untouched on ensure failure")
	require.Empty(t, d.binder.ids)
}
