package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/psw-tryout/tryout-backend/internal/config"
	"github.com/psw-tryout/tryout-backend/internal/middleware"
	"github.com/psw-tryout/tryout-backend/internal/model"
	"github.com/psw-tryout/tryout-backend/internal/response"
	"github.com/psw-tryout/tryout-backend/internal/service"
	"github.com/psw-tryout/tryout-backend/internal/validator"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PortalHandler handles the participant-facing exam endpoints.
type PortalHandler struct {
	tryoutService      *service.TryoutService
	attemptService     *service.AttemptService
	participantService *service.ParticipantService
	rdb                *redis.Client
	log                zerolog.Logger
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(
	tryoutService *service.TryoutService,
	attemptService *service.AttemptService,
	participantService *service.ParticipantService,
	rdb *redis.Client,
	log zerolog.Logger,
) *PortalHandler {
	return &PortalHandler{
		tryoutService:      tryoutService,
		attemptService:     attemptService,
		participantService: participantService,
		rdb:                rdb,
		log:                log.With().Str("component", "portal_handler").Logger(),
	}
}

// ListTryouts godoc
// GET /api/v1/participant/tryouts
// Returns published tryouts overlaid with the participant's attempt status.
func (h *PortalHandler) ListTryouts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	list, err := h.tryoutService.ListForParticipant(c.Request.Context(), claims.UserID, time.Now())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tryouts": list})
}

// StartTryout godoc
// POST /api/v1/participant/tryouts/:tryout_id/start
// Begins or resumes an attempt. The response carries access=false when
// the attempt is already finished, which the client treats as a
// redirect back to the list, not an error.
func (h *PortalHandler) StartTryout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.attemptService.Start(c.Request.Context(), claims.UserID, tryoutID, time.Now())
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetExam godoc
// GET /api/v1/participant/tryouts/:tryout_id/exam
// Returns the exam view: questions without answer keys, the
// participant's saved answers, and the remaining time. Covers page
// reload.
func (h *PortalHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	view, err := h.attemptService.Exam(c.Request.Context(), claims.UserID, tryoutID, time.Now())
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// SaveAnswer godoc
// PUT /api/v1/participant/tryouts/:tryout_id/answer
// Records or overwrites the participant's selection for one question.
func (h *PortalHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err = h.attemptService.SaveAnswer(c.Request.Context(), claims.UserID, tryoutID, req.QuestionID, req.SelectedOption, time.Now())
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// SubmitTryout godoc
// POST /api/v1/participant/tryouts/:tryout_id/submit
// Finalizes the attempt and computes the score.
func (h *PortalHandler) SubmitTryout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), claims.UserID, tryoutID, time.Now())
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ReportTamper godoc
// POST /api/v1/participant/tryouts/:tryout_id/tamper
// Increments the attempt's tamper counter and queues the raw event for
// the audit trail. Works even after the attempt is finished.
func (h *PortalHandler) ReportTamper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// The payload field is optional and exam clients send a bare POST,
	// so an empty body counts as an empty payload.
	var req model.TamperEventRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}

	count, err := h.attemptService.RecordTamper(c.Request.Context(), claims.UserID, tryoutID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	// Queue the raw event for the async audit trail. Counter is already
	// persisted; losing an audit row is acceptable, blocking the exam
	// room on it is not.
	event, _ := json.Marshal(gin.H{
		"participant_id": claims.UserID,
		"tryout_id":      tryoutID.String(),
		"timestamp":      time.Now().Unix(),
		"payload":        req.Payload,
	})
	if err := h.rdb.RPush(c.Request.Context(), config.WorkerKey.PersistTamperQueue, event).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to queue tamper event")
	}

	response.Success(c, http.StatusOK, gin.H{"tamper_count": count})
}

// GetCard godoc
// GET /api/v1/participant/card
// Returns the participant's printable credential card.
func (h *PortalHandler) GetCard(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	card, err := h.participantService.Card(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"card": card})
}

// failAttemptError maps attempt service sentinels to API error codes.
func (h *PortalHandler) failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTryoutNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrTryoutNotAccessible):
		response.Fail(c, http.StatusForbidden, response.ErrTryoutNotAccessible)
	case errors.Is(err, service.ErrAttemptNotFound), errors.Is(err, service.ErrAttemptNotStarted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotStarted)
	case errors.Is(err, service.ErrAttemptFinished):
		response.Fail(c, http.StatusConflict, response.ErrAttemptFinished)
	case errors.Is(err, service.ErrQuestionNotInTryout):
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotInTryout)
	default:
		h.log.Error().Err(err).Msg("Attempt operation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
