// Package models defines the client-side data model: the cached user record,
// the remote profile, and the gate targets and flags the routing shell consumes.
package models

import (
	"encoding/json"
	"strconv"
)

// UserStatus is the screening status of an account. Values other than the
// ones below are legal and are treated as "not approved".
type UserStatus string

const (
	StatusPending            UserStatus = "PENDING"
	StatusApproved           UserStatus = "APPROVED"
	StatusCooldown           UserStatus = "COOLDOWN"
	StatusLifetimeIneligible UserStatus = "LIFETIME_INELIGIBLE"
)

// UserRecord is the locally cached account row.
//
// The server owns this object; the client only ever overwrites it wholesale
// with merged server state. Raw keeps every field exactly as received so that
// merges never drop fields this client does not understand. CooldownUntil is
// kept as the raw wire string; parsing happens only in the cooldown predicate.
type UserRecord struct {
	ID            int64
	Status        UserStatus
	CooldownUntil string

	// Raw holds all wire fields, including the typed ones above.
	// Nil for records constructed in code; RawFields synthesizes it.
	Raw map[string]json.RawMessage
}

func (u *UserRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rec := UserRecord{Raw: raw}
	if v, ok := raw["id"]; ok {
		rec.ID = parseID(v)
	}
	if v, ok := raw["status"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			rec.Status = UserStatus(s)
		}
	}
	if v, ok := raw["cooldownUntil"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			rec.CooldownUntil = s
		}
	}

	*u = rec
	return nil
}

func (u UserRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.RawFields())
}

// RawFields returns a copy of the record's wire fields with the typed fields
// written back over them, so struct mutations survive a round trip.
func (u UserRecord) RawFields() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(u.Raw)+3)
	for k, v := range u.Raw {
		out[k] = v
	}
	out["id"] = json.RawMessage(strconv.FormatInt(u.ID, 10))
	if u.Status != "" {
		out["status"], _ = json.Marshal(string(u.Status))
	}
	if u.CooldownUntil != "" {
		out["cooldownUntil"], _ = json.Marshal(u.CooldownUntil)
	}
	return out
}

// parseID accepts either a JSON number or a quoted numeric string; some legacy
// endpoints return ids as strings.
func parseID(v json.RawMessage) int64 {
	var n int64
	if err := json.Unmarshal(v, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
