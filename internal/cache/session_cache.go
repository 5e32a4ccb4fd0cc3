package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/apexam/assess-backend/internal/config"
	"github.com/apexam/assess-backend/internal/model"
	"github.com/apexam/assess-backend/internal/repository"
	"github.com/apexam/assess-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// activeSessionTTL keeps the cached lookup short-lived; the store remains the
// source of truth and lazy expiry still applies on the fallback path.
const activeSessionTTL = 60 * time.Second

// statsTTL bounds staleness of the cached cleanup snapshot between sweeps.
const statsTTL = 5 * time.Minute

// RedisSessionCache implements service.SessionCache on go-redis. Every
// operation is best effort: redis being down degrades to store lookups, it
// never fails a request.
type RedisSessionCache struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisSessionCache creates a new RedisSessionCache.
func NewRedisSessionCache(rdb *redis.Client, log zerolog.Logger) *RedisSessionCache {
	return &RedisSessionCache{
		rdb: rdb,
		log: log.With().Str("component", "session_cache").Logger(),
	}
}

// GetActiveSession returns the cached most-recent active session for a
// student, if present and decodable.
func (c *RedisSessionCache) GetActiveSession(ctx context.Context, studentID string) (*model.Session, bool) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.StudentActiveSessionKey(studentID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("student_id", studentID).Msg("Cache read failed")
		}
		return nil, false
	}

	var s model.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		c.log.Warn().Err(err).Str("student_id", studentID).Msg("Cache entry corrupt, dropping")
		c.InvalidateStudent(ctx, studentID)
		return nil, false
	}
	return &s, true
}

// SetActiveSession caches a session under its student's key.
func (c *RedisSessionCache) SetActiveSession(ctx context.Context, s *model.Session) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, config.CacheKey.StudentActiveSessionKey(s.StudentID), raw, activeSessionTTL).Err(); err != nil {
		c.log.Warn().Err(err).Str("student_id", s.StudentID).Msg("Cache write failed")
	}
}

// InvalidateStudent drops the cached session for a student.
func (c *RedisSessionCache) InvalidateStudent(ctx context.Context, studentID string) {
	if err := c.rdb.Del(ctx, config.CacheKey.StudentActiveSessionKey(studentID)).Err(); err != nil {
		c.log.Warn().Err(err).Str("student_id", studentID).Msg("Cache invalidation failed")
	}
}

// SetStats caches the latest cleanup counts snapshot.
func (c *RedisSessionCache) SetStats(ctx context.Context, counts *repository.SessionCounts) {
	raw, err := json.Marshal(counts)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, config.CacheKey.CleanupStatsKey(), raw, statsTTL).Err(); err != nil {
		c.log.Warn().Err(err).Msg("Stats cache write failed")
	}
}

// PublishSweep fans a sweep summary out to the monitor channel.
func (c *RedisSessionCache) PublishSweep(ctx context.Context, stats service.SweepStats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.rdb.Publish(ctx, config.CacheKey.MonitorChannel(), raw).Err(); err != nil {
		c.log.Warn().Err(err).Msg("Sweep publish failed")
	}
}
