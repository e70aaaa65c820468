// Package gate implements the gate resolver: merging cached and remote
// account state, computing the initial target screen, and supervising the
// forced-redirect flags the routing shell obeys.
package gate

import (
	"encoding/json"
	"time"

	"github.com/wifeyapp/appgate/internal/models"
)

// MergeUser shallow-merges remote over local: remote wins field-for-field,
// fields present only locally are preserved. The merge operates on the raw
// wire fields so that fields this client does not model survive unchanged.
// Merging the same pair twice yields an identical record.
func MergeUser(local *models.UserRecord, remoteUser models.UserRecord) models.UserRecord {
	merged := make(map[string]json.RawMessage)
	if local != nil {
		for k, v := range local.RawFields() {
			merged[k] = v
		}
	}
	for k, v := range remoteUser.RawFields() {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return remoteUser
	}
	var out models.UserRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return remoteUser
	}
	return out
}

// IsActiveCooldown reports whether the record is in a live cooldown window:
// the status is exactly COOLDOWN, cooldownUntil parses as an instant, and
// that instant is strictly in the future. A malformed or past timestamp never
// blocks.
func IsActiveCooldown(status models.UserStatus, cooldownUntil string, now time.Time) bool {
	if status != models.StatusCooldown {
		return false
	}
	if cooldownUntil == "" {
		return false
	}
	until, err := time.Parse(time.RFC3339Nano, cooldownUntil)
	if err != nil {
		return false
	}
	return now.Before(until)
}

// PostQuizOnboardingComplete digs preferences.onboarding.postQuizComplete out
// of the profile. Anything short of an explicit true — a nil profile, absent
// or malformed preferences, a missing key — counts as incomplete.
func PostQuizOnboardingComplete(profile *models.ProfileRecord) bool {
	if profile == nil {
		return false
	}

	prefs := preferencesObject(profile.Preferences)
	rawOnboarding, ok := prefs["onboarding"]
	if !ok {
		return false
	}

	var onboarding struct {
		PostQuizComplete bool `json:"postQuizComplete"`
	}
	if err := json.Unmarshal(rawOnboarding, &onboarding); err != nil {
		return false
	}
	return onboarding.PostQuizComplete
}

// preferencesObject tolerates both shapes the server has historically used:
// a JSON object, or a JSON string containing encoded JSON.
func preferencesObject(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &obj); err != nil {
		return nil
	}
	return obj
}
