package repository

import (
	"context"
	"errors"

	"github.com/apexam/assess-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultRepository handles result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

const resultColumns = `id, session_id, response, score, time_spent_seconds, created_at, updated_at`

// Create inserts a new result for a session. A foreign key violation means
// the session was deleted between the caller's check and the insert; it is
// reported as pgx.ErrNoRows like any other missing session.
func (r *ResultRepository) Create(ctx context.Context, res *model.Result) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO results (session_id, response, score, time_spent_seconds)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		res.SessionID, res.Response, res.Score, res.TimeSpentSeconds,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return pgx.ErrNoRows
	}
	return err
}

// GetByID retrieves a result by its identifier.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	res := &model.Result{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM results WHERE id = $1`, id,
	).Scan(&res.ID, &res.SessionID, &res.Response, &res.Score,
		&res.TimeSpentSeconds, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Update replaces a result's payload and optional fields.
func (r *ResultRepository) Update(ctx context.Context, res *model.Result) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE results
		 SET response = $1, score = $2, time_spent_seconds = $3, updated_at = NOW()
		 WHERE id = $4`,
		res.Response, res.Score, res.TimeSpentSeconds, res.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes one result. Returns false when it does not exist.
func (r *ResultRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM results WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListBySession retrieves one page of a session's results, oldest first.
func (r *ResultRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM results
		 WHERE session_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2 OFFSET $3`, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		if err := rows.Scan(&res.ID, &res.SessionID, &res.Response, &res.Score,
			&res.TimeSpentSeconds, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// CountBySession returns the number of results attached to a session.
func (r *ResultRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM results WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}
