package handler

import (
	"net/http"

	"github.com/apexam/assess-backend/internal/response"
	"github.com/apexam/assess-backend/internal/service"
	"github.com/apexam/assess-backend/internal/validator"
	"github.com/apexam/assess-backend/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CleanupHandler exposes the cleanup sweep over HTTP: manual triggers,
// statistics, and control of the recurring worker.
type CleanupHandler struct {
	cleanupService *service.CleanupService
	cleanupWorker  *worker.CleanupWorker
}

// NewCleanupHandler creates a new CleanupHandler.
func NewCleanupHandler(cleanupService *service.CleanupService, cleanupWorker *worker.CleanupWorker) *CleanupHandler {
	return &CleanupHandler{
		cleanupService: cleanupService,
		cleanupWorker:  cleanupWorker,
	}
}

// TriggerCleanupRequest selects either a full sweep or the forced removal of
// one session. Force must be set for a single-session delete — it is
// irreversible.
type TriggerCleanupRequest struct {
	SessionID string `json:"session_id"`
	Force     bool   `json:"force"`
}

// TriggerCleanup godoc
// POST /api/v1/sessions/cleanup
func (h *CleanupHandler) TriggerCleanup(c *gin.Context) {
	var req TriggerCleanupRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if req.SessionID != "" {
		if !req.Force {
			response.Fail(c, http.StatusBadRequest, response.ErrActionForbidden)
			return
		}

		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		deleted, err := h.cleanupService.ForceCleanupSession(c.Request.Context(), id)
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if !deleted {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"deleted": true})
		return
	}

	stats := h.cleanupService.PerformCleanup(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{"sweep": stats})
}

// GetCleanupStats godoc
// GET /api/v1/sessions/cleanup?include_details=true
// Read-only aggregate counts; details add the advisory cleanup-needed flag
// and worker state.
func (h *CleanupHandler) GetCleanupStats(c *gin.Context) {
	counts, err := h.cleanupService.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if c.Query("include_details") != "true" {
		response.Success(c, http.StatusOK, gin.H{"stats": counts})
		return
	}

	needed, err := h.cleanupService.IsCleanupNeeded(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"stats":          counts,
		"cleanup_needed": needed,
		"worker_running": h.cleanupWorker.Running(),
	})
}

// ControlCleanupRequest drives the recurring worker.
type ControlCleanupRequest struct {
	Action string `json:"action" binding:"required,oneof=start stop status"`
}

// ControlCleanup godoc
// PATCH /api/v1/sessions/cleanup
// Starts or stops the recurring sweep timer, or reports its state. Start and
// stop are both idempotent.
func (h *CleanupHandler) ControlCleanup(c *gin.Context) {
	var req ControlCleanupRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	switch req.Action {
	case "start":
		h.cleanupWorker.Start()
	case "stop":
		h.cleanupWorker.Stop()
	case "status":
		// Report only.
	default:
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAction)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"action":         req.Action,
		"worker_running": h.cleanupWorker.Running(),
	})
}
