package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/apexam/assess-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionCounts is the aggregate snapshot used by cleanup statistics.
// Expiry is evaluated against the supplied reference time, not the stored
// status column, so sessions the sweep has not normalized yet still count
// as expired.
type SessionCounts struct {
	Total     int64 `json:"total_sessions"`
	Active    int64 `json:"active_sessions"`
	Expired   int64 `json:"expired_sessions"`
	Abandoned int64 `json:"abandoned_sessions"`
	Completed int64 `json:"completed_sessions"`
	Cancelled int64 `json:"cancelled_sessions"`
	Results   int64 `json:"total_results"`
}

// SessionRepository handles session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, student_id, assessment_id, external_session_id, status, created_at, updated_at, expires_at`

func scanSession(row interface{ Scan(dest ...any) error }) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(&s.ID, &s.StudentID, &s.AssessmentID, &s.ExternalSessionID,
		&s.Status, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session and fills in the generated fields.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO sessions (student_id, assessment_id, external_session_id, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		s.StudentID, s.AssessmentID, s.ExternalSessionID, s.Status, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a session by its identifier.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// GetLatestByStudent retrieves the student's most recently created session
// regardless of state.
func (r *SessionRepository) GetLatestByStudent(ctx context.Context, studentID string) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE student_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, studentID))
}

// GetActiveByStudent retrieves the student's most recent session that is
// still ACTIVE and not past its expiry at the given time.
func (r *SessionRepository) GetActiveByStudent(ctx context.Context, studentID string, now time.Time) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE student_id = $1
		   AND status = $2
		   AND (expires_at IS NULL OR expires_at > $3)
		 ORDER BY created_at DESC
		 LIMIT 1`, studentID, model.SessionStatusActive, now))
}

// UpdateStatus sets a session's status and bumps updated_at. Returns false
// when no row matched.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Touch bumps a session's updated_at, recording activity for the
// abandonment heuristic.
func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET updated_at = NOW() WHERE id = $1`, id)
	return err
}

// ExpireActiveByStudent transitions all of a student's still-active sessions
// to EXPIRED. Used by the replace conflict policy before creating a new one.
func (r *SessionRepository) ExpireActiveByStudent(ctx context.Context, studentID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET status = $1, updated_at = NOW()
		 WHERE student_id = $2 AND status = $3`,
		model.SessionStatusExpired, studentID, model.SessionStatusActive)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkExpired normalizes sessions that are still marked ACTIVE but whose
// expiry has passed. Returns the number of rows transitioned.
func (r *SessionRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3`,
		model.SessionStatusExpired, model.SessionStatusActive, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkAbandoned transitions ACTIVE sessions with no recorded activity since
// the cutoff and an expiry still in the future (or none). Sessions already
// past expiry belong to MarkExpired instead.
func (r *SessionRepository) MarkAbandoned(ctx context.Context, now, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET status = $1, updated_at = NOW()
		 WHERE status = $2
		   AND updated_at < $3
		   AND (expires_at IS NULL OR expires_at > $4)`,
		model.SessionStatusExpired, model.SessionStatusActive, cutoff, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteOlderThan hard-deletes terminal sessions whose last update is older
// than the cutoff, removing their results in the same transaction. Returns
// deleted session and result counts.
func (r *SessionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	resTag, err := tx.Exec(ctx,
		`DELETE FROM results
		 WHERE session_id IN (
			SELECT id FROM sessions
			WHERE status IN ($1, $2, $3) AND updated_at < $4
		 )`,
		model.SessionStatusExpired, model.SessionStatusCompleted, model.SessionStatusCancelled, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("delete results: %w", err)
	}

	sessTag, err := tx.Exec(ctx,
		`DELETE FROM sessions
		 WHERE status IN ($1, $2, $3) AND updated_at < $4`,
		model.SessionStatusExpired, model.SessionStatusCompleted, model.SessionStatusCancelled, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("delete sessions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return sessTag.RowsAffected(), resTag.RowsAffected(), nil
}

// Delete removes one session and all of its results in a single transaction,
// regardless of state. Returns false when the session does not exist.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM results WHERE session_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete results: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Counts aggregates session totals. ACTIVE/EXPIRED are derived from the
// expiry timestamp at the reference time; abandoned means active but idle
// since before abandonCutoff.
func (r *SessionRepository) Counts(ctx context.Context, now, abandonCutoff time.Time) (*SessionCounts, error) {
	c := &SessionCounts{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'ACTIVE' AND (expires_at IS NULL OR expires_at > $1)),
			COUNT(*) FILTER (WHERE status = 'EXPIRED' OR (status = 'ACTIVE' AND expires_at IS NOT NULL AND expires_at <= $1)),
			COUNT(*) FILTER (WHERE status = 'ACTIVE' AND (expires_at IS NULL OR expires_at > $1) AND updated_at < $2),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'CANCELLED'),
			(SELECT COUNT(*) FROM results)
		 FROM sessions`, now, abandonCutoff,
	).Scan(&c.Total, &c.Active, &c.Expired, &c.Abandoned, &c.Completed, &c.Cancelled, &c.Results)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Housekeeping refreshes planner statistics after a sweep has churned rows.
func (r *SessionRepository) Housekeeping(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `ANALYZE sessions, results`)
	return err
}
