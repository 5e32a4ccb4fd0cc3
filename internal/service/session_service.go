package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/apexam/assess-backend/internal/config"
	"github.com/apexam/assess-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Common session errors surfaced to the handler layer.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")
	ErrSessionConflict = errors.New("student already has an active session")
	ErrInvalidStatus   = errors.New("invalid session status")
	ErrTerminalStatus  = errors.New("session is in a terminal state")
)

// SessionService handles session lifecycle business logic.
type SessionService struct {
	sessions SessionStore
	cache    SessionCache
	cfg      *config.Config
	clock    Clock
	log      zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions SessionStore, cache SessionCache, cfg *config.Config, clock Clock, log zerolog.Logger) *SessionService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SessionService{
		sessions: sessions,
		cache:    cache,
		cfg:      cfg,
		clock:    clock,
		log:      log.With().Str("component", "session_service").Logger(),
	}
}

// Create starts a new assessment session for a student. The external session
// identifier handed to the assessment player is generated here, once, and is
// immutable afterwards. What happens to a pre-existing active session depends
// on the configured conflict policy.
func (s *SessionService) Create(ctx context.Context, studentID, assessmentID string) (*model.Session, error) {
	now := s.clock.Now()

	switch s.cfg.ConflictPolicy {
	case config.ConflictReject:
		existing, err := s.sessions.GetActiveByStudent(ctx, studentID, now)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check active session: %w", err)
		}
		if existing != nil {
			return nil, ErrSessionConflict
		}
	case config.ConflictReplace:
		expired, err := s.sessions.ExpireActiveByStudent(ctx, studentID)
		if err != nil {
			return nil, fmt.Errorf("expire previous sessions: %w", err)
		}
		if expired > 0 {
			s.log.Info().
				Str("student_id", studentID).
				Int64("expired", expired).
				Msg("Replaced previous active sessions")
		}
	case config.ConflictAllow:
		// Multiple concurrent sessions are permitted.
	}

	expiresAt := now.Add(s.cfg.SessionTimeout)
	session := &model.Session{
		StudentID:         studentID,
		AssessmentID:      assessmentID,
		ExternalSessionID: uuid.New().String(),
		Status:            model.SessionStatusActive,
		ExpiresAt:         &expiresAt,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.cache.SetActiveSession(ctx, session)
	return session, nil
}

// GetByID retrieves a session. When the stored status lags behind a passed
// expiry the transition is persisted before returning (lazy expiry-on-read),
// so direct status reads after a GET observe EXPIRED.
func (s *SessionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s.normalize(ctx, session), nil
}

// GetActiveForStudent returns the student's most recent active session, or
// ErrSessionNotFound if none exists. ErrSessionExpired is returned when the
// student's latest session exists but has lapsed, so callers can distinguish
// "never started" from "ran out of time".
func (s *SessionService) GetActiveForStudent(ctx context.Context, studentID string) (*model.Session, error) {
	now := s.clock.Now()

	if cached, ok := s.cache.GetActiveSession(ctx, studentID); ok && model.IsActive(cached, now) {
		return cached, nil
	}

	session, err := s.sessions.GetActiveByStudent(ctx, studentID, now)
	if err == nil {
		s.cache.SetActiveSession(ctx, session)
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get active session: %w", err)
	}

	// No active session. Check whether the latest one expired.
	latest, err := s.sessions.GetLatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get latest session: %w", err)
	}
	if model.ComputeStatus(latest, now) == model.SessionStatusExpired {
		s.normalize(ctx, latest)
		return nil, ErrSessionExpired
	}
	return nil, ErrSessionNotFound
}

// UpdateStatus applies an explicit status transition. Transitions out of a
// terminal state are rejected.
func (s *SessionService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus) (*model.Session, error) {
	if !model.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status.IsTerminal() && session.Status != status {
		return nil, ErrTerminalStatus
	}

	if _, err := s.sessions.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.cache.InvalidateStudent(ctx, session.StudentID)

	return s.GetByID(ctx, id)
}

// Touch records activity on a session, feeding the abandonment heuristic.
func (s *SessionService) Touch(ctx context.Context, id uuid.UUID) error {
	return s.sessions.Touch(ctx, id)
}

// normalize persists a lagging ACTIVE→EXPIRED transition and returns the
// session with its effective status. Persistence failures are logged only:
// the caller still gets the correct derived state.
func (s *SessionService) normalize(ctx context.Context, session *model.Session) *model.Session {
	now := s.clock.Now()
	effective := model.ComputeStatus(session, now)
	if effective == session.Status {
		return session
	}

	if _, err := s.sessions.UpdateStatus(ctx, session.ID, effective); err != nil {
		s.log.Warn().Err(err).
			Str("session_id", session.ID.String()).
			Msg("Failed to persist lazy expiry")
	} else {
		s.cache.InvalidateStudent(ctx, session.StudentID)
	}
	session.Status = effective
	return session
}
