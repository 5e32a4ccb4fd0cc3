package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentActiveSessionKey returns the cache key for a student's most recent
// active session.
func (r *CacheKeyStruct) StudentActiveSessionKey(studentID string) string {
	return fmt.Sprintf("student:%s:active_session", studentID)
}

// CleanupStatsKey returns the cache key for the latest cleanup statistics.
func (r *CacheKeyStruct) CleanupStatsKey() string {
	return "cleanup:stats"
}

// MonitorChannel returns the Redis PubSub channel name for session lifecycle
// events consumed by the operator monitor stream.
func (r *CacheKeyStruct) MonitorChannel() string {
	return "sessions:monitor"
}

var CacheKey = NewCacheKeyStruct()
