package domain

import "time"

// Session is a signed-in device. Access tokens carry its ID so that logout can revoke them.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// Extend pushes the expiry to ttl after now.
func (s *Session) Extend(now time.Time, ttl time.Duration) {
	if s == nil {
		return
	}
	s.ExpiresAt = now.Add(ttl)
}
