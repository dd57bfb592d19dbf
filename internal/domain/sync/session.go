package sync

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the identity payload returned by the backend identity check.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Session is the authenticated user context. Validated=false marks a
// degraded session built for UI continuity after a failed or inconclusive
// remote check; it keeps the client usable but protected operations stay
// queued until a validated session exists.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Profile   User      `json:"profile"`
	Validated bool      `json:"validated"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthGrant is the success payload of the credential lifecycle endpoints
// (login, register, refresh).
type AuthGrant struct {
	Token     string `json:"token"`
	User      User   `json:"user"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// NewValidatedSession builds a session confirmed by the backend.
func NewValidatedSession(token string, user User) *Session {
	return &Session{
		Token:     token,
		UserID:    user.ID,
		Profile:   user,
		Validated: true,
		ExpiresAt: tokenExpiry(token),
		CreatedAt: time.Now(),
	}
}

// NewDegradedSession builds an unconfirmed session from a stored credential
// after a transient failure. The user identity is whatever was last known.
func NewDegradedSession(token string, user User) *Session {
	return &Session{
		Token:     token,
		UserID:    user.ID,
		Profile:   user,
		Validated: false,
		ExpiresAt: tokenExpiry(token),
		CreatedAt: time.Now(),
	}
}

// ExpiresSoon reports whether the token expires within the given window.
// Sessions with no parseable expiry never report true; the backend is the
// authority on their validity.
func (s *Session) ExpiresSoon(window time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(s.ExpiresAt) < window
}

// tokenExpiry extracts the exp claim without verifying the signature.
// The client holds no signing key; expiry is advisory only and drives
// background refresh timing, never an authorization decision.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
