package model

import (
	"testing"
	"time"
)

func sessionWithExpiry(status SessionStatus, expiresAt *time.Time) *Session {
	return &Session{
		StudentID:         "student-1",
		AssessmentID:      "assessment-1",
		ExternalSessionID: "ext-1",
		Status:            status,
		ExpiresAt:         expiresAt,
	}
}

func TestComputeStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		status    SessionStatus
		expiresAt *time.Time
		want      SessionStatus
	}{
		{"active before expiry", SessionStatusActive, &future, SessionStatusActive},
		{"active past expiry", SessionStatusActive, &past, SessionStatusExpired},
		{"active exactly at expiry", SessionStatusActive, &now, SessionStatusExpired},
		{"active without expiry", SessionStatusActive, nil, SessionStatusActive},
		{"completed past expiry stays completed", SessionStatusCompleted, &past, SessionStatusCompleted},
		{"cancelled past expiry stays cancelled", SessionStatusCancelled, &past, SessionStatusCancelled},
		{"expired stays expired", SessionStatusExpired, &future, SessionStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStatus(sessionWithExpiry(tt.status, tt.expiresAt), now)
			if got != tt.want {
				t.Errorf("ComputeStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsResumable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	s := sessionWithExpiry(SessionStatusActive, &future)
	if !IsResumable(s, now) {
		t.Error("active session with external id should be resumable")
	}

	s = sessionWithExpiry(SessionStatusActive, &future)
	s.ExternalSessionID = ""
	if IsResumable(s, now) {
		t.Error("session without external id should not be resumable")
	}

	s = sessionWithExpiry(SessionStatusActive, &past)
	if IsResumable(s, now) {
		t.Error("expired session should not be resumable")
	}

	s = sessionWithExpiry(SessionStatusCompleted, &future)
	if IsResumable(s, now) {
		t.Error("completed session should not be resumable")
	}
}

func TestTimeRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	future := now.Add(30 * time.Minute)
	s := sessionWithExpiry(SessionStatusActive, &future)
	remaining, ok := TimeRemaining(s, now)
	if !ok || remaining != 30*time.Minute {
		t.Errorf("TimeRemaining() = %v, %v; want 30m, true", remaining, ok)
	}

	past := now.Add(-time.Minute)
	s = sessionWithExpiry(SessionStatusActive, &past)
	remaining, ok = TimeRemaining(s, now)
	if !ok || remaining != 0 {
		t.Errorf("TimeRemaining() past expiry = %v, %v; want 0, true", remaining, ok)
	}

	s = sessionWithExpiry(SessionStatusActive, nil)
	if _, ok := TimeRemaining(s, now); ok {
		t.Error("TimeRemaining() without expiry should report false")
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []SessionStatus{SessionStatusActive, SessionStatusExpired, SessionStatusCompleted, SessionStatusCancelled} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false", s)
		}
	}
	if ValidStatus("PAUSED") {
		t.Error("ValidStatus(PAUSED) = true, want false")
	}
}

func TestIsTerminal(t *testing.T) {
	if !SessionStatusCompleted.IsTerminal() || !SessionStatusCancelled.IsTerminal() {
		t.Error("COMPLETED and CANCELLED must be terminal")
	}
	if SessionStatusActive.IsTerminal() || SessionStatusExpired.IsTerminal() {
		t.Error("ACTIVE and EXPIRED must not be terminal")
	}
}
