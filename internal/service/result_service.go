package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apexam/assess-backend/internal/model"
	"github.com/apexam/assess-backend/internal/response"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrResultNotFound is returned when a result id does not exist.
var ErrResultNotFound = errors.New("result not found")

// ResultService handles result submissions. Results belong to exactly one
// session and require that session to still be active; an expired parent is a
// distinct error so callers can tell "lapsed" from "never existed".
type ResultService struct {
	results  ResultStore
	sessions SessionStore
	clock    Clock
	log      zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(results ResultStore, sessions SessionStore, clock Clock, log zerolog.Logger) *ResultService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ResultService{
		results:  results,
		sessions: sessions,
		clock:    clock,
		log:      log.With().Str("component", "result_service").Logger(),
	}
}

// Create stores a response payload against a session. The payload is opaque
// and stored verbatim. The parent session's updated_at is bumped as an
// activity signal for the abandonment sweep.
func (s *ResultService) Create(ctx context.Context, sessionID uuid.UUID, response json.RawMessage, score *float64, timeSpent *int) (*model.Result, error) {
	if err := s.requireActiveSession(ctx, sessionID); err != nil {
		return nil, err
	}

	result := &model.Result{
		SessionID:        sessionID,
		Response:         response,
		Score:            score,
		TimeSpentSeconds: timeSpent,
	}
	if err := s.results.Create(ctx, result); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("create result: %w", err)
	}

	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to record session activity")
	}
	return result, nil
}

// Update replaces an existing result's payload. The parent session must
// still be active.
func (s *ResultService) Update(ctx context.Context, sessionID, resultID uuid.UUID, response json.RawMessage, score *float64, timeSpent *int) (*model.Result, error) {
	if err := s.requireActiveSession(ctx, sessionID); err != nil {
		return nil, err
	}

	existing, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if existing.SessionID != sessionID {
		return nil, ErrResultNotFound
	}

	existing.Response = response
	existing.Score = score
	existing.TimeSpentSeconds = timeSpent
	if _, err := s.results.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update result: %w", err)
	}

	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to record session activity")
	}
	return s.results.GetByID(ctx, resultID)
}

// Delete removes one result. Deletion is allowed regardless of the parent
// session's state — reclaiming storage must work on expired sessions too.
func (s *ResultService) Delete(ctx context.Context, sessionID, resultID uuid.UUID) error {
	existing, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrResultNotFound
		}
		return fmt.Errorf("get result: %w", err)
	}
	if existing.SessionID != sessionID {
		return ErrResultNotFound
	}

	if _, err := s.results.Delete(ctx, resultID); err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}

// ListForSession returns one page of a session's results, oldest first. The
// session must exist but may be in any state: reading back results of a
// completed attempt is a normal operation.
func (s *ResultService) ListForSession(ctx context.Context, sessionID uuid.UUID, page, perPage int) ([]model.Result, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("get session: %w", err)
	}

	total, err := s.results.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("count results: %w", err)
	}
	results, err := s.results.ListBySession(ctx, sessionID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.Result{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: (int(total) + perPage - 1) / perPage,
	}
	return results, pagination, nil
}

// requireActiveSession maps a missing parent to ErrSessionNotFound and a
// lapsed one to ErrSessionExpired.
func (s *ResultService) requireActiveSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("get session: %w", err)
	}

	switch model.ComputeStatus(session, s.clock.Now()) {
	case model.SessionStatusActive:
		return nil
	case model.SessionStatusExpired:
		return ErrSessionExpired
	default:
		return ErrTerminalStatus
	}
}
