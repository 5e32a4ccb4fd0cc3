package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/apexam/assess-backend/internal/config"
	"github.com/apexam/assess-backend/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Launch token errors.
var (
	ErrTokenInvalid        = errors.New("launch token is invalid")
	ErrTokenExpired        = errors.New("launch token has expired")
	ErrSessionNotResumable = errors.New("session is not resumable")
)

// LaunchClaims is the signed payload handed to the third-party assessment
// player. The player echoes the token back on its result callback, which is
// how callback requests are correlated with a local session.
type LaunchClaims struct {
	jwt.RegisteredClaims
	SessionID         string `json:"session_id"`
	ExternalSessionID string `json:"external_session_id"`
	StudentID         string `json:"student_id"`
	AssessmentID      string `json:"assessment_id"`
}

// LaunchConfig is everything the browser needs to embed the player.
type LaunchConfig struct {
	ScriptURL         string     `json:"script_url"`
	Token             string     `json:"token"`
	ExternalSessionID string     `json:"external_session_id"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

// LaunchService mints and validates player launch tokens.
type LaunchService struct {
	cfg   *config.Config
	clock Clock
}

// NewLaunchService creates a new LaunchService.
func NewLaunchService(cfg *config.Config, clock Clock) *LaunchService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &LaunchService{cfg: cfg, clock: clock}
}

// BuildLaunchConfig produces the player embed configuration for a session.
// Only resumable sessions (active, with an external id) can be launched.
func (s *LaunchService) BuildLaunchConfig(session *model.Session) (*LaunchConfig, error) {
	now := s.clock.Now()
	if !model.IsResumable(session, now) {
		return nil, ErrSessionNotResumable
	}

	token, err := s.generateToken(session, now)
	if err != nil {
		return nil, fmt.Errorf("sign launch token: %w", err)
	}

	return &LaunchConfig{
		ScriptURL:         s.cfg.PlayerScriptURL,
		Token:             token,
		ExternalSessionID: session.ExternalSessionID,
		ExpiresAt:         session.ExpiresAt,
	}, nil
}

// ValidateToken parses and verifies a launch token from the player callback.
func (s *LaunchService) ValidateToken(tokenStr string) (*LaunchClaims, error) {
	claims := &LaunchClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.PlayerTokenSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// generateToken signs a launch token whose lifetime tracks the session's
// expiry. Sessions without an expiry get the configured session timeout as
// token lifetime so a leaked token still lapses.
func (s *LaunchService) generateToken(session *model.Session, now time.Time) (string, error) {
	expiresAt := now.Add(s.cfg.SessionTimeout)
	if session.ExpiresAt != nil {
		expiresAt = *session.ExpiresAt
	}

	claims := LaunchClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   session.StudentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID:         session.ID.String(),
		ExternalSessionID: session.ExternalSessionID,
		StudentID:         session.StudentID,
		AssessmentID:      session.AssessmentID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.PlayerTokenSecret))
}
