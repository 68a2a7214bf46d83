package session

import "time"

// Session binds a browser cookie to an authenticated user.
type Session struct {
	Key       string
	UserID    int64
	AuthHash  string // must match the user's current session auth hash
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
