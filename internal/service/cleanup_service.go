package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/apexam/assess-backend/internal/config"
	"github.com/apexam/assess-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SweepStats summarizes one cleanup sweep. A Skipped sweep performed no work
// because another sweep was already in flight.
type SweepStats struct {
	ExpiredTransitioned   int64     `json:"expired_transitioned"`
	AbandonedTransitioned int64     `json:"abandoned_transitioned"`
	DeletedSessions       int64     `json:"deleted_sessions"`
	DeletedResults        int64     `json:"deleted_results"`
	Skipped               bool      `json:"skipped"`
	StartedAt             time.Time `json:"started_at"`
	DurationMS            int64     `json:"duration_ms"`
}

// CleanupService reclaims storage and normalizes status for sessions that
// are no longer useful. Sweeps are serialized within one process; multiple
// instances can race on cleanup, which is accepted — every step is written
// so that running it twice is harmless.
type CleanupService struct {
	sessions SessionStore
	cache    SessionCache
	cfg      *config.Config
	clock    Clock
	log      zerolog.Logger

	sweeping atomic.Bool
}

// NewCleanupService creates a new CleanupService.
func NewCleanupService(sessions SessionStore, cache SessionCache, cfg *config.Config, clock Clock, log zerolog.Logger) *CleanupService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CleanupService{
		sessions: sessions,
		cache:    cache,
		cfg:      cfg,
		clock:    clock,
		log:      log.With().Str("component", "cleanup_service").Logger(),
	}
}

// PerformCleanup runs the full sweep:
//
//	ACTIVE past expiry            -> EXPIRED
//	ACTIVE idle past abandonment  -> EXPIRED
//	terminal past retention       -> deleted (results cascade)
//
// followed by store housekeeping. The sweep is best effort: a storage error
// in one step is logged and the remaining steps still run, so the method
// never returns an error. A call while another sweep is in flight is a no-op
// that returns zero-valued stats with Skipped set.
func (s *CleanupService) PerformCleanup(ctx context.Context) SweepStats {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.log.Debug().Msg("Sweep already in progress, skipping")
		return SweepStats{Skipped: true}
	}
	defer s.sweeping.Store(false)

	now := s.clock.Now()
	stats := SweepStats{StartedAt: now}

	expired, err := s.sessions.MarkExpired(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("Sweep step failed: mark expired")
	} else {
		stats.ExpiredTransitioned = expired
	}

	abandoned, err := s.sessions.MarkAbandoned(ctx, now, now.Add(-s.cfg.AbandonThreshold))
	if err != nil {
		s.log.Error().Err(err).Msg("Sweep step failed: mark abandoned")
	} else {
		stats.AbandonedTransitioned = abandoned
	}

	deletedSessions, deletedResults, err := s.sessions.DeleteOlderThan(ctx, now.Add(-s.cfg.RetentionWindow))
	if err != nil {
		s.log.Error().Err(err).Msg("Sweep step failed: retention delete")
	} else {
		stats.DeletedSessions = deletedSessions
		stats.DeletedResults = deletedResults
	}

	if err := s.sessions.Housekeeping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Sweep step failed: housekeeping")
	}

	stats.DurationMS = time.Since(now).Milliseconds()

	if stats.ExpiredTransitioned > 0 || stats.AbandonedTransitioned > 0 || stats.DeletedSessions > 0 {
		s.log.Info().
			Int64("expired", stats.ExpiredTransitioned).
			Int64("abandoned", stats.AbandonedTransitioned).
			Int64("deleted_sessions", stats.DeletedSessions).
			Int64("deleted_results", stats.DeletedResults).
			Msg("Sweep completed")
	}

	s.publish(ctx, stats)
	return stats
}

// ForceCleanupSession deletes one session and all of its results regardless
// of state. Returns false when the session does not exist. The student's
// cached lookup is invalidated so the deletion is visible immediately, not
// after the cache TTL.
func (s *CleanupService) ForceCleanupSession(ctx context.Context, id uuid.UUID) (bool, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	deleted, err := s.sessions.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.cache.InvalidateStudent(ctx, session.StudentID)
		s.log.Info().Str("session_id", id.String()).Msg("Session force-cleaned")
	}
	return deleted, nil
}

// Stats returns the read-only aggregate counts. It never mutates.
func (s *CleanupService) Stats(ctx context.Context) (*repository.SessionCounts, error) {
	now := s.clock.Now()
	return s.sessions.Counts(ctx, now, now.Add(-s.cfg.AbandonThreshold))
}

// IsCleanupNeeded is a heuristic signal for operators: true when anything is
// expired or abandoned, or the total session count exceeds the configured
// limit. It is advisory, not a correctness gate.
func (s *CleanupService) IsCleanupNeeded(ctx context.Context) (bool, error) {
	counts, err := s.Stats(ctx)
	if err != nil {
		return false, err
	}
	return counts.Expired > 0 || counts.Abandoned > 0 || counts.Total > int64(s.cfg.CleanupSessionLimit), nil
}

// publish refreshes the cached stats snapshot and fans the sweep out to the
// monitor channel. Best effort on both.
func (s *CleanupService) publish(ctx context.Context, stats SweepStats) {
	counts, err := s.Stats(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to refresh stats after sweep")
	} else {
		s.cache.SetStats(ctx, counts)
	}
	s.cache.PublishSweep(ctx, stats)
}
