// Package session holds the bearer credential of the authenticated web
// session. The credential is issued and verified elsewhere; this package only
// introspects its claims to decide whether a legacy-identity reconciliation
// call is worth making.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is an authenticated web session carrying a bearer JWT.
type Session struct {
	Token string
}

// claims parses the token without verifying its signature. Verification is
// the server's job; the client only needs to read the registered claims.
func (s *Session) claims() (*jwt.RegisteredClaims, bool) {
	if s == nil || s.Token == "" {
		return nil, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		// Phone-OTP sessions carry an opaque token, not a JWT.
		return nil, false
	}
	return claims, true
}

// Subject returns the token's subject claim, or "" when unavailable.
func (s *Session) Subject() string {
	claims, ok := s.claims()
	if !ok {
		return ""
	}
	return claims.Subject
}

// Usable reports whether the token is a JWT that has not expired as of now.
// Tokens without an expiry claim are considered usable.
func (s *Session) Usable(now time.Time) bool {
	claims, ok := s.claims()
	if !ok {
		return false
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return now.Before(claims.ExpiresAt.Time)
}

// Source exposes the current session to the checks that need it.
type Source interface {
	Current() *Session
}

// Store is a mutex-guarded Source the daemon mutates as the shell signs the
// user in and out.
type Store struct {
	mu      sync.RWMutex
	current *Session
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		s.current = nil
		return
	}
	s.current = &Session{Token: token}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
