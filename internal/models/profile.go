package models

import "encoding/json"

// VerificationRejected is the verification_status value that locks an account
// out of the main application.
const VerificationRejected = "rejected"

// ProfileRecord is the post-approval profile attached to a user.
//
// Absence of a profile is a valid, meaningful state (the user has not
// completed post-approval onboarding) and is distinct from a fetch error;
// callers model that with a nil *ProfileRecord.
type ProfileRecord struct {
	UserID             int64           `json:"user_id"`
	VerificationStatus string          `json:"verification_status"`
	IsVerified         bool            `json:"is_verified"`
	Preferences        json.RawMessage `json:"preferences,omitempty"`
}

// VerificationLocked reports whether the profile blocks entry to the main app:
// an explicit rejection, or anything short of a confirmed verification.
func (p *ProfileRecord) VerificationLocked() bool {
	return p.VerificationStatus == VerificationRejected || !p.IsVerified
}
