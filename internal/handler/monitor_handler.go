package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/apexam/assess-backend/internal/config"
	"github.com/apexam/assess-backend/internal/service"
	ws "github.com/apexam/assess-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams cleanup sweep events to operator UIs over
// WebSocket. Events arrive via the redis monitor channel the cleanup
// service publishes to, so every instance's sweeps show up on any
// instance's stream.
type MonitorHandler struct {
	rdb            *redis.Client
	cleanupService *service.CleanupService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, cleanupService *service.CleanupService, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		cleanupService: cleanupService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// MonitorStream godoc
// WS /ws/v1/monitor
func (h *MonitorHandler) MonitorStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.rdb.Subscribe(ctx, config.CacheKey.MonitorChannel())
	defer pubsub.Close()

	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Monitor connected")

	sweeps := make(chan json.RawMessage, 8)
	go relaySweeps(ctx, pubsub, sweeps)

	h.serveMonitor(ctx, cancel, conn, sweeps)
}

// serveMonitor owns the connection. gorilla/websocket allows only one
// concurrent writer per conn, so sweep events and action replies are
// multiplexed into this single loop; the read goroutine never writes.
func (h *MonitorHandler) serveMonitor(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sweeps <-chan json.RawMessage) {
	replies := make(chan interface{}, 8)
	go h.readActions(ctx, cancel, conn, replies)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sweeps:
			if !ok {
				return
			}
			event := ws.SweepEvent{Event: ws.EventSweep, Sweep: payload}
			if err := ws.WriteTyped(conn, event); err != nil {
				cancel()
				return
			}
		case reply := <-replies:
			if err := ws.WriteTyped(conn, reply); err != nil {
				cancel()
				return
			}
		}
	}
}

// readActions parses client messages and queues the reply payloads for the
// writer loop. It cancels the stream when the client goes away.
func (h *MonitorHandler) readActions(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, replies chan<- interface{}) {
	defer cancel()
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				h.log.Debug().Msg("Monitor disconnected")
			}
			return
		}

		var reply interface{}
		switch msg.Action {
		case ws.ActionPing:
			reply = ws.PongResponse{Event: ws.EventPong}
		case ws.ActionStats:
			counts, err := h.cleanupService.Stats(ctx)
			if err != nil {
				reply = ws.ErrorResponse{Event: ws.EventError, Error: "stats unavailable"}
			} else {
				reply = ws.StatsEvent{Event: ws.EventStats, Counts: counts}
			}
		default:
			reply = ws.ErrorResponse{Event: ws.EventError, Error: "unknown action"}
		}

		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

// relaySweeps forwards redis sweep payloads to the writer loop.
func relaySweeps(ctx context.Context, pubsub *redis.PubSub, sweeps chan<- json.RawMessage) {
	defer close(sweeps)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case sweeps <- json.RawMessage(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}
