package gate

import (
	"strings"
	"sync"

	"github.com/wifeyapp/appgate/internal/models"
)

// Flags is the live forced-redirect state. Each field is written only through
// the setter owned by its check; ForceWelcome is the single field more than
// one check may raise, and it stays raised until a check affirmatively proves
// the account is valid and unlocked.
type Flags struct {
	mu sync.Mutex
	f  models.GateFlags
}

func NewFlags() *Flags {
	return &Flags{}
}

// Snapshot returns the current flag values.
func (f *Flags) Snapshot() models.GateFlags {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.f
}

// SetAccess writes the two flags owned by the cooldown/ineligibility check.
func (f *Flags) SetAccess(cooldownActive, lifetimeIneligible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.f.CooldownActive = cooldownActive
	f.f.LifetimeIneligible = lifetimeIneligible
}

// SetVerificationLocked writes the flag owned by the verification check.
func (f *Flags) SetVerificationLocked(locked bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.f.VerificationLocked = locked
}

// RaiseWelcome marks the account as deleted server-side. Once raised, only
// ClearWelcome lowers it.
func (f *Flags) RaiseWelcome() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.f.ForceWelcome = true
}

// ClearWelcome lowers the welcome redirect after a successful, non-locked
// user or profile confirmation.
func (f *Flags) ClearWelcome() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.f.ForceWelcome = false
}

// MarkDeleted applies the full deleted-user outcome in one step: every flag
// cleared except ForceWelcome, which is raised. This is the documented
// exception to single-check flag ownership.
func (f *Flags) MarkDeleted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.f = models.GateFlags{ForceWelcome: true}
}

// ForcedRoute resolves the current flags against the shell's path and returns
// the route the shell must redirect to, if any.
func (f *Flags) ForcedRoute(currentPath string) (string, bool) {
	return ForcedRouteFor(f.Snapshot(), currentPath)
}

// ForcedRouteFor resolves a flag snapshot against the shell's current path.
// Callers that report the flags and the forced route together must derive both
// from the same snapshot, so the pair never disagrees mid-check.
// Each flag is exempt on its own destination screens so a redirect never
// fights the screen that resolves it. Ineligibility takes precedence over the
// cooldown and verification gates.
func ForcedRouteFor(snap models.GateFlags, currentPath string) (string, bool) {
	path := currentPath

	switch {
	case snap.ForceWelcome &&
		!hasAnyPrefix(path, "/onboarding", "/auth/"):
		return "/onboarding", true

	case snap.LifetimeIneligible &&
		!strings.HasPrefix(path, "/screening/outcome"):
		return "/screening/outcome?result=" + models.ReasonLifetimeIneligible, true

	case snap.CooldownActive &&
		!strings.HasPrefix(path, "/screening/cooldown"):
		return "/screening/cooldown", true

	case snap.VerificationLocked &&
		!hasAnyPrefix(path, "/screening/gate", "/screening/reviewing"):
		return "/screening/gate", true
	}

	return "", false
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
