// Package token keeps the short-lived access token in memory and answers
// expiry questions about it. The token is never written to disk; it is
// reconstructed on every process start by the session's silent refresh.
package token

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryLeeway is how close to its exp claim a token is already treated as
// expired, so a request never leaves with a token that dies in flight.
const ExpiryLeeway = 60 * time.Second

var ErrMalformedToken = errors.New("malformed access token")

// ExpiresAt extracts the exp claim without verifying the signature. The
// client holds no signing key; validity is the server's call, the client only
// needs to know when to stop attaching the token.
func ExpiresAt(tokenString string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return time.Time{}, ErrMalformedToken
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrMalformedToken
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the token is absent, unreadable or expires within
// ExpiryLeeway of now.
func IsExpired(tokenString string, now time.Time) bool {
	if tokenString == "" {
		return true
	}
	expiresAt, err := ExpiresAt(tokenString)
	if err != nil {
		return true
	}
	return !expiresAt.After(now.Add(ExpiryLeeway))
}

// Store is the single mutable slot holding the current access token. Set by
// the session manager on init/login, cleared on logout or auth failure, read
// by the HTTP layer when attaching the Authorization header.
type Store struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewStore returns an empty token store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the held token and its decoded expiry.
func (s *Store) Set(tokenString string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tokenString
	s.expiresAt = expiresAt
}

// Clear drops the held token.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

// Token returns the raw token and whether one is set. Callers still check
// expiry; the store does not judge it.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Valid returns the token only if it is set and not within ExpiryLeeway of
// its expiry. Expired-or-absent tokens must never be attached to requests.
func (s *Store) Valid(now time.Time) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	if !s.expiresAt.After(now.Add(ExpiryLeeway)) {
		return "", false
	}
	return s.token, true
}

// ExpiresAt returns the decoded expiry of the held token, zero when empty.
func (s *Store) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}
