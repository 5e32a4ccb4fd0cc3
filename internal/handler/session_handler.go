package handler

import (
	"errors"
	"net/http"

	"github.com/apexam/assess-backend/internal/model"
	"github.com/apexam/assess-backend/internal/response"
	"github.com/apexam/assess-backend/internal/service"
	"github.com/apexam/assess-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles session lifecycle endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
	launchService  *service.LaunchService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, launchService *service.LaunchService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		launchService:  launchService,
	}
}

// CreateSessionRequest is the payload for starting an assessment session.
type CreateSessionRequest struct {
	StudentID    string `json:"student_id" binding:"required,min=1,max=64"`
	AssessmentID string `json:"assessment_id" binding:"required,min=1,max=64"`
}

// CreateSession godoc
// POST /api/v1/sessions
// Starts a new assessment session for a student.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Create(c.Request.Context(), req.StudentID, req.AssessmentID)
	if err != nil {
		if errors.Is(err, service.ErrSessionConflict) {
			response.Fail(c, http.StatusConflict, response.ErrSessionActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// FindSession godoc
// GET /api/v1/sessions?student_id=...
// Returns the student's most recent active session. A 410 distinguishes a
// lapsed session from one that never existed.
func (h *SessionHandler) FindSession(c *gin.Context) {
	studentID := c.Query("student_id")
	if studentID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	session, err := h.sessionService.GetActiveForStudent(c.Request.Context(), studentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrSessionExpired):
			response.Fail(c, http.StatusGone, response.ErrSessionExpired)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetSession godoc
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// UpdateSessionRequest is the payload for an explicit status transition.
type UpdateSessionRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateSession godoc
// PUT /api/v1/sessions/:id
// Applies a status transition. Transitions out of COMPLETED/CANCELLED are
// rejected.
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req UpdateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.UpdateStatus(c.Request.Context(), id, model.SessionStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidStatus)
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrTerminalStatus):
			response.Fail(c, http.StatusConflict, response.ErrSessionTerminal)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// LaunchSession godoc
// GET /api/v1/sessions/:id/launch
// Returns the player embed configuration (script URL + signed launch token)
// for a resumable session.
func (h *SessionHandler) LaunchSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	cfg, err := h.launchService.BuildLaunchConfig(session)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotResumable) {
			if session.Status == model.SessionStatusExpired {
				response.Fail(c, http.StatusGone, response.ErrSessionExpired)
				return
			}
			response.Fail(c, http.StatusConflict, response.ErrSessionNotResumable)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"launch": cfg})
}
