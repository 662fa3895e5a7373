package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/psw-tryout/tryout-backend/internal/model"
	"github.com/psw-tryout/tryout-backend/internal/repository"
	"github.com/psw-tryout/tryout-backend/internal/response"
	"github.com/psw-tryout/tryout-backend/internal/service"
	"github.com/psw-tryout/tryout-backend/internal/validator"
	"github.com/rs/zerolog"
)

// ParticipantMgmtHandler handles the admin roster endpoints.
type ParticipantMgmtHandler struct {
	participantService *service.ParticipantService
	authService        *service.AuthService
	log                zerolog.Logger
}

// NewParticipantMgmtHandler creates a new ParticipantMgmtHandler.
func NewParticipantMgmtHandler(
	participantService *service.ParticipantService,
	authService *service.AuthService,
	log zerolog.Logger,
) *ParticipantMgmtHandler {
	return &ParticipantMgmtHandler{
		participantService: participantService,
		authService:        authService,
		log:                log.With().Str("component", "participant_mgmt_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/admin/participants?day=&page=&per_page=
func (h *ParticipantMgmtHandler) List(c *gin.Context) {
	var day *int
	if dayStr := c.Query("day"); dayStr != "" {
		d, err := strconv.Atoi(dayStr)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		day = &d
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	participants, pagination, err := h.participantService.List(c.Request.Context(), day, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"participants": participants}, pagination)
}

// Get godoc
// GET /api/v1/admin/participants/:id
func (h *ParticipantMgmtHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	participant, err := h.participantService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.failParticipantError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"participant": participant})
}

// Create godoc
// POST /api/v1/admin/participants
// Registers a participant with generated credentials and queues the
// credential email.
func (h *ParticipantMgmtHandler) Create(c *gin.Context) {
	var req model.CreateParticipantRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	participant, err := h.participantService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"participant": participant})
}

// Update godoc
// PUT /api/v1/admin/participants/:id
func (h *ParticipantMgmtHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateParticipantRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	participant, err := h.participantService.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.failParticipantError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"participant": participant})
}

// SetBlocked godoc
// PUT /api/v1/admin/participants/:id/blocked
// Body: {"blocked": true|false}. Blocking also kills the active session.
func (h *ParticipantMgmtHandler) SetBlocked(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req struct {
		Blocked *bool `json:"blocked" binding:"required"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	participant, err := h.participantService.SetBlocked(c.Request.Context(), id, *req.Blocked)
	if err != nil {
		h.failParticipantError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"participant": participant})
}

// Delete godoc
// DELETE /api/v1/admin/participants/:id
func (h *ParticipantMgmtHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.participantService.Delete(c.Request.Context(), id); err != nil {
		h.failParticipantError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetCard godoc
// GET /api/v1/admin/participants/:id/card
// Returns the printable credential card for one participant.
func (h *ParticipantMgmtHandler) GetCard(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	card, err := h.participantService.Card(c.Request.Context(), id)
	if err != nil {
		h.failParticipantError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"card": card})
}

// ResendCard godoc
// POST /api/v1/admin/participants/:id/resend-card
// Queues the credential email again for one participant.
func (h *ParticipantMgmtHandler) ResendCard(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	participant, err := h.participantService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.failParticipantError(c, err)
		return
	}

	if err := h.participantService.QueueCredentialMail(c.Request.Context(), participant); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// SendAllCards godoc
// POST /api/v1/admin/participants/send-cards
// Queues credential emails for the whole roster.
func (h *ParticipantMgmtHandler) SendAllCards(c *gin.Context) {
	queued, err := h.participantService.SendAllCards(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"queued": queued})
}

// ResetSession godoc
// POST /api/v1/admin/participants/:id/reset-session
// Clears the participant's single-device session so they can log in again.
func (h *ParticipantMgmtHandler) ResetSession(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.participantService.GetByID(c.Request.Context(), id); err != nil {
		h.failParticipantError(c, err)
		return
	}

	if err := h.authService.ResetParticipantSession(c.Request.Context(), id); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

func (h *ParticipantMgmtHandler) failParticipantError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrParticipantNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	h.log.Error().Err(err).Msg("Participant operation failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}
