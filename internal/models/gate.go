package models

// Screen identifies one of the mutually exclusive application sections the
// gate resolver can route to.
type Screen string

const (
	ScreenOnboarding        Screen = "ONBOARDING"
	ScreenAuthLogin         Screen = "AUTH_LOGIN"
	ScreenScreeningOutcome  Screen = "SCREENING_OUTCOME"
	ScreenScreeningCooldown Screen = "SCREENING_COOLDOWN"
	ScreenOnboardingProfile Screen = "ONBOARDING_PROFILE"
	ScreenHome              Screen = "HOME"
	ScreenScreeningGate     Screen = "SCREENING_GATE"
)

// ReasonLifetimeIneligible is the outcome reason for a terminal rejection.
const ReasonLifetimeIneligible = "LIFETIME_INELIGIBLE"

// Target is a resolved destination: a screen plus an optional reason code
// carried by the outcome screen.
type Target struct {
	Screen Screen `json:"screen"`
	Reason string `json:"reason,omitempty"`
}

// Route translates the target into the shell path for that screen.
func (t Target) Route() string {
	switch t.Screen {
	case ScreenOnboarding:
		return "/onboarding"
	case ScreenAuthLogin:
		return "/auth/login"
	case ScreenScreeningOutcome:
		return "/screening/outcome?result=" + t.Reason
	case ScreenScreeningCooldown:
		return "/screening/cooldown"
	case ScreenOnboardingProfile:
		return "/onboarding/profile"
	case ScreenHome:
		return "/home"
	case ScreenScreeningGate:
		return "/screening/gate"
	}
	return "/onboarding"
}

// GateFlags is a point-in-time snapshot of the forced-redirect flags.
// Each flag is owned by exactly one continuous check; precedence between
// them is resolved at the point of consumption, not here.
type GateFlags struct {
	ForceWelcome       bool `json:"forceWelcome"`
	CooldownActive     bool `json:"cooldownActive"`
	LifetimeIneligible bool `json:"lifetimeIneligible"`
	VerificationLocked bool `json:"verificationLocked"`
}
