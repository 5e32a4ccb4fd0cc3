package service

import (
	"context"
	"time"

	"github.com/apexam/assess-backend/internal/model"
	"github.com/apexam/assess-backend/internal/repository"
	"github.com/google/uuid"
)

// SessionStore is the persistence surface the services need for sessions.
// *repository.SessionRepository is the production implementation; tests use
// an in-memory fake. Missing rows are reported as pgx.ErrNoRows.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetLatestByStudent(ctx context.Context, studentID string) (*model.Session, error)
	GetActiveByStudent(ctx context.Context, studentID string, now time.Time) (*model.Session, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus) (bool, error)
	Touch(ctx context.Context, id uuid.UUID) error
	ExpireActiveByStudent(ctx context.Context, studentID string) (int64, error)
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
	MarkAbandoned(ctx context.Context, now, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, int64, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Counts(ctx context.Context, now, abandonCutoff time.Time) (*repository.SessionCounts, error)
	Housekeeping(ctx context.Context) error
}

// ResultStore is the persistence surface for results.
type ResultStore interface {
	Create(ctx context.Context, res *model.Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error)
	Update(ctx context.Context, res *model.Result) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]model.Result, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

// SessionCache is the redis-backed fast path for session lookups plus the
// monitor event fan-out. All methods are best effort: failures are logged by
// the implementation and never fail the caller.
type SessionCache interface {
	GetActiveSession(ctx context.Context, studentID string) (*model.Session, bool)
	SetActiveSession(ctx context.Context, s *model.Session)
	InvalidateStudent(ctx context.Context, studentID string)
	SetStats(ctx context.Context, counts *repository.SessionCounts)
	PublishSweep(ctx context.Context, stats SweepStats)
}

// Clock abstracts time for the lifecycle and cleanup logic so tests can pin
// "now" instead of sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used in production.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
