package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/apexam/assess-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newResultFixture(t *testing.T) (*ResultService, *SessionService, *fakeStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeStore(clock)
	cache := newFakeCache()
	cfg := testConfig()
	sessions := NewSessionService(store, cache, cfg, clock, zerolog.Nop())
	results := NewResultService(resultStoreAdapter{store}, store, clock, zerolog.Nop())
	return results, sessions, store, clock
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(n int) *int           { return &n }

func TestCreateResult(t *testing.T) {
	results, sessions, store, _ := newResultFixture(t)
	ctx := context.Background()

	session, err := sessions.Create(ctx, "student-1", "assessment-1")
	if err != nil {
		t.Fatalf("session Create() error: %v", err)
	}
	before := session.UpdatedAt

	payload := json.RawMessage(`{"answers":{"q1":"a"}}`)
	result, err := results.Create(ctx, session.ID, payload, floatPtr(85), intPtr(900))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if result.SessionID != session.ID {
		t.Errorf("result bound to %s, want %s", result.SessionID, session.ID)
	}
	if string(result.Response) != string(payload) {
		t.Error("response payload must be stored verbatim")
	}

	// Submitting a result counts as activity.
	stored, _ := store.GetByID(ctx, session.ID)
	if stored.UpdatedAt.Before(before) {
		t.Error("session updated_at should not move backwards on submission")
	}
}

func TestCreateResultExpiredSession(t *testing.T) {
	results, sessions, _, clock := newResultFixture(t)
	ctx := context.Background()

	session, err := sessions.Create(ctx, "student-1", "assessment-1")
	if err != nil {
		t.Fatalf("session Create() error: %v", err)
	}

	clock.Advance(2 * time.Hour)

	_, err = results.Create(ctx, session.ID, json.RawMessage(`{}`), nil, nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Create() on expired session = %v, want ErrSessionExpired", err)
	}
}

func TestCreateResultMissingSession(t *testing.T) {
	results, _, _, _ := newResultFixture(t)

	_, err := results.Create(context.Background(), uuid.New(), json.RawMessage(`{}`), nil, nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Create() with unknown session = %v, want ErrSessionNotFound", err)
	}
}

func TestCreateResultTerminalSession(t *testing.T) {
	results, sessions, _, _ := newResultFixture(t)
	ctx := context.Background()

	session, err := sessions.Create(ctx, "student-1", "assessment-1")
	if err != nil {
		t.Fatalf("session Create() error: %v", err)
	}
	if _, err := sessions.UpdateStatus(ctx, session.ID, model.SessionStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}

	_, err = results.Create(ctx, session.ID, json.RawMessage(`{}`), nil, nil)
	if !errors.Is(err, ErrTerminalStatus) {
		t.Errorf("Create() on completed session = %v, want ErrTerminalStatus", err)
	}
}

func TestUpdateResult(t *testing.T) {
	results, sessions, _, _ := newResultFixture(t)
	ctx := context.Background()

	session, err := sessions.Create(ctx, "student-1", "assessment-1")
	if err != nil {
		t.Fatalf("session Create() error: %v", err)
	}
	created, err := results.Create(ctx, session.ID, json.RawMessage(`{"v":1}`), nil, nil)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	updated, err := results.Update(ctx, session.ID, created.ID, json.RawMessage(`{"v":2}`), floatPtr(70), nil)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if string(updated.Response) != `{"v":2}` {
		t.Errorf("response = %s, want {\"v\":2}", updated.Response)
	}
	if updated.Score == nil || *updated.Score != 70 {
		t.Error("score not updated")
	}

	// A result cannot be updated through someone else's session.
	other, err := sessions.Create(ctx, "student-2", "assessment-1")
	if err != nil {
		t.Fatalf("session Create() error: %v", err)
	}
	if _, err := results.Update(ctx, other.ID, created.ID, json.RawMessage(`{}`), nil, nil); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("cross-session Update() = %v, want ErrResultNotFound", err)
	}
}

func TestDeleteResult(t *testing.T) {
	results, sessions, _, clock := newResultFixture(t)
	ctx := context.Background()

	session, err := sessions.Create(ctx, "student-1", "assessment-1")
	if err != nil {
		t.Fatalf("session Create() error: %v", err)
	}
	created, err := results.Create(ctx, session.ID, json.RawMessage(`{}`), nil, nil)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Deletion works even after the session lapses.
	clock.Advance(2 * time.Hour)
	if err := results.Delete(ctx, session.ID, created.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := results.Delete(ctx, session.ID, created.ID); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("second Delete() = %v, want ErrResultNotFound", err)
	}
}

func TestListForSession(t *testing.T) {
	results, sessions, _, _ := newResultFixture(t)
	ctx := context.Background()

	if _, _, err := results.ListForSession(ctx, uuid.New(), 1, 20); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ListForSession() unknown session = %v, want ErrSessionNotFound", err)
	}

	session, err := sessions.Create(ctx, "student-1", "assessment-1")
	if err != nil {
		t.Fatalf("session Create() error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := results.Create(ctx, session.ID, json.RawMessage(`{}`), nil, nil); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	list, pagination, err := results.ListForSession(ctx, session.ID, 1, 20)
	if err != nil {
		t.Fatalf("ListForSession() error: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("len = %d, want 3", len(list))
	}
	if pagination.TotalItems != 3 || pagination.TotalPages != 1 {
		t.Errorf("pagination = %+v, want 3 items over 1 page", pagination)
	}

	// Page size smaller than the result count splits the list.
	page2, pagination, err := results.ListForSession(ctx, session.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListForSession() page 2 error: %v", err)
	}
	if len(page2) != 1 {
		t.Errorf("page 2 len = %d, want 1", len(page2))
	}
	if pagination.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", pagination.TotalPages)
	}

	// Out-of-range bounds are clamped, not errors.
	empty, pagination, err := results.ListForSession(ctx, session.ID, 5, 0)
	if err != nil {
		t.Fatalf("ListForSession() clamped error: %v", err)
	}
	if pagination.PerPage != 20 {
		t.Errorf("PerPage = %d, want clamped default 20", pagination.PerPage)
	}
	if len(empty) != 0 {
		t.Errorf("page 5 len = %d, want 0", len(empty))
	}
}
