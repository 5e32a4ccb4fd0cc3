package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates assessment session states.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusExpired   SessionStatus = "EXPIRED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// ValidStatus reports whether s is one of the known session states.
func ValidStatus(s SessionStatus) bool {
	switch s {
	case SessionStatusActive, SessionStatusExpired, SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s is a state the cleanup sweep never transitions
// out of (other than retention-based deletion).
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// Session represents one assessment attempt by one student. The stored status
// column is authoritative for terminal states only; ACTIVE vs EXPIRED is
// always recomputed against the expiry timestamp via ComputeStatus.
type Session struct {
	ID                uuid.UUID     `json:"id"`
	StudentID         string        `json:"student_id"`
	AssessmentID      string        `json:"assessment_id"`
	ExternalSessionID string        `json:"external_session_id"`
	Status            SessionStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	ExpiresAt         *time.Time    `json:"expires_at,omitempty"`
}

// ComputeStatus derives the effective state of a session at the given time.
// A terminal stored status (COMPLETED/CANCELLED) always wins; otherwise a
// past expiry yields EXPIRED regardless of what the row says.
func ComputeStatus(s *Session, now time.Time) SessionStatus {
	if s.Status.IsTerminal() {
		return s.Status
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return SessionStatusExpired
	}
	return s.Status
}

// IsActive reports whether the session is usable at the given time.
func IsActive(s *Session, now time.Time) bool {
	return ComputeStatus(s, now) == SessionStatusActive
}

// IsResumable reports whether the player can be relaunched against this
// session: it must be active and carry the external identifier handed to the
// assessment engine at creation.
func IsResumable(s *Session, now time.Time) bool {
	return IsActive(s, now) && s.ExternalSessionID != ""
}

// TimeRemaining returns the time left until expiry, floored at zero.
// The second return value is false when the session never expires.
func TimeRemaining(s *Session, now time.Time) (time.Duration, bool) {
	if s.ExpiresAt == nil {
		return 0, false
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
