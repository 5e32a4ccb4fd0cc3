package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Result is one stored response submission belonging to a session. The
// response payload comes from the third-party assessment player and is kept
// opaque — it is stored and returned verbatim.
type Result struct {
	ID               uuid.UUID       `json:"id"`
	SessionID        uuid.UUID       `json:"session_id"`
	Response         json.RawMessage `json:"response"`
	Score            *float64        `json:"score,omitempty"`
	TimeSpentSeconds *int            `json:"time_spent_seconds,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
