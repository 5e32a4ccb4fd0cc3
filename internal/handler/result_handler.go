package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/apexam/assess-backend/internal/middleware"
	"github.com/apexam/assess-backend/internal/response"
	"github.com/apexam/assess-backend/internal/service"
	"github.com/apexam/assess-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ResultHandler handles result submission endpoints, including the callback
// the third-party assessment player posts to.
type ResultHandler struct {
	resultService *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// ResultRequest is the payload for creating or updating a result. The
// response payload is opaque and stored verbatim.
type ResultRequest struct {
	Response         json.RawMessage `json:"response" binding:"required"`
	Score            *float64        `json:"score"`
	TimeSpentSeconds *int            `json:"time_spent_seconds"`
}

// ListResults godoc
// GET /api/v1/sessions/:id/results
// Lists a session's results with pagination, oldest first.
func (h *ResultHandler) ListResults(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, perPage, fields := parsePageQuery(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results, pagination, err := h.resultService.ListForSession(c.Request.Context(), sessionID, page, perPage)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// parsePageQuery reads the page and per_page query parameters. Non-numeric or
// non-positive values are validation errors rather than silently clamped.
func parsePageQuery(c *gin.Context) (page, perPage int, fields map[string]string) {
	fields = map[string]string{}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		fields["page"] = "must be a positive integer"
	}
	perPage, err = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if err != nil || perPage < 1 {
		fields["per_page"] = "must be a positive integer"
	}

	if len(fields) > 0 {
		return 0, 0, fields
	}
	return page, perPage, nil
}

// CreateResult godoc
// POST /api/v1/sessions/:id/results
// Stores a response submission. The parent session must still be active; an
// expired parent yields 410, distinct from validation failures.
func (h *ResultHandler) CreateResult(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req ResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.resultService.Create(c.Request.Context(), sessionID, req.Response, req.Score, req.TimeSpentSeconds)
	if err != nil {
		h.failResult(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"result": result})
}

// UpdateResult godoc
// PUT /api/v1/sessions/:id/results/:result_id
func (h *ResultHandler) UpdateResult(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req ResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.resultService.Update(c.Request.Context(), sessionID, resultID, req.Response, req.Score, req.TimeSpentSeconds)
	if err != nil {
		h.failResult(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// DeleteResult godoc
// DELETE /api/v1/sessions/:id/results/:result_id
func (h *ResultHandler) DeleteResult(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.resultService.Delete(c.Request.Context(), sessionID, resultID); err != nil {
		h.failResult(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "result deleted successfully"})
}

// PlayerCallback godoc
// POST /api/v1/player/results
// Receives a result from the assessment player. The session is taken from
// the validated launch token, not from the request body — the player cannot
// write into someone else's session.
func (h *ResultHandler) PlayerCallback(c *gin.Context) {
	claims := middleware.GetLaunchClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	var req ResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.resultService.Create(c.Request.Context(), sessionID, req.Response, req.Score, req.TimeSpentSeconds)
	if err != nil {
		h.failResult(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"result": result})
}

// failResult maps result service errors onto the response taxonomy.
func (h *ResultHandler) failResult(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrResultNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.Is(err, service.ErrTerminalStatus):
		response.Fail(c, http.StatusConflict, response.ErrSessionTerminal)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
