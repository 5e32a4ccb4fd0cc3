package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing  Action = "ping"
	ActionStats Action = "stats"
)

// RequestPayload is the single client message shape on the monitor stream.
type RequestPayload struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventPong  Event = "pong"
	EventSweep Event = "sweep"
	EventStats Event = "stats"
)

// SweepEvent relays a cleanup sweep summary to the monitor client. The
// payload is the SweepStats JSON as published on the redis channel.
type SweepEvent struct {
	Event Event           `json:"event"`
	Sweep json.RawMessage `json:"sweep"`
}

// StatsEvent carries an on-demand session count snapshot.
type StatsEvent struct {
	Event  Event       `json:"event"`
	Counts interface{} `json:"counts"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
