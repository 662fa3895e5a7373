package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/psw-tryout/tryout-backend/internal/model"
	"github.com/psw-tryout/tryout-backend/internal/repository"
	"github.com/psw-tryout/tryout-backend/internal/response"
	"github.com/psw-tryout/tryout-backend/internal/service"
	"github.com/psw-tryout/tryout-backend/internal/validator"
	"github.com/rs/zerolog"
)

// TryoutAdminHandler handles tryout management endpoints for admins.
type TryoutAdminHandler struct {
	tryoutService *service.TryoutService
	log           zerolog.Logger
}

// NewTryoutAdminHandler creates a new TryoutAdminHandler.
func NewTryoutAdminHandler(tryoutService *service.TryoutService, log zerolog.Logger) *TryoutAdminHandler {
	return &TryoutAdminHandler{
		tryoutService: tryoutService,
		log:           log.With().Str("component", "tryout_admin_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/admin/tryouts?page=&per_page=
func (h *TryoutAdminHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	tryouts, total, err := h.tryoutService.ListPaginated(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if tryouts == nil {
		tryouts = []model.Tryout{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tryouts": tryouts}, response.NewPagination(page, perPage, total))
}

// Get godoc
// GET /api/v1/admin/tryouts/:tryout_id
func (h *TryoutAdminHandler) Get(c *gin.Context) {
	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	tryout, err := h.tryoutService.GetByID(c.Request.Context(), tryoutID)
	if err != nil {
		h.failTryoutError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tryout": tryout})
}

// Create godoc
// POST /api/v1/admin/tryouts
func (h *TryoutAdminHandler) Create(c *gin.Context) {
	var req model.CreateTryoutRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	tryout, err := h.tryoutService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"tryout": tryout})
}

// Update godoc
// PUT /api/v1/admin/tryouts/:tryout_id
// Partial update. Setting is_published=true requires a non-empty item
// bank and warms the payload cache.
func (h *TryoutAdminHandler) Update(c *gin.Context) {
	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateTryoutRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	tryout, err := h.tryoutService.Update(c.Request.Context(), tryoutID, &req)
	if err != nil {
		h.failTryoutError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tryout": tryout})
}

// Delete godoc
// DELETE /api/v1/admin/tryouts/:tryout_id
func (h *TryoutAdminHandler) Delete(c *gin.Context) {
	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.tryoutService.Delete(c.Request.Context(), tryoutID); err != nil {
		h.failTryoutError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ListQuestions godoc
// GET /api/v1/admin/tryouts/:tryout_id/questions
// Returns the full item bank including answer keys and weights.
func (h *TryoutAdminHandler) ListQuestions(c *gin.Context) {
	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.tryoutService.ListQuestions(c.Request.Context(), tryoutID)
	if err != nil {
		h.failTryoutError(c, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// ReplaceQuestions godoc
// PUT /api/v1/admin/tryouts/:tryout_id/questions
// Replaces the whole item bank atomically.
func (h *TryoutAdminHandler) ReplaceQuestions(c *gin.Context) {
	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.tryoutService.ReplaceQuestions(c.Request.Context(), tryoutID, &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateNumber) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		h.failTryoutError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// Results godoc
// GET /api/v1/admin/tryouts/:tryout_id/results?page=&per_page=
// Per-participant outcomes plus aggregate stats.
func (h *TryoutAdminHandler) Results(c *gin.Context) {
	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 500 {
		perPage = 50
	}

	results, err := h.tryoutService.Results(c.Request.Context(), tryoutID, perPage, (page-1)*perPage)
	if err != nil {
		h.failTryoutError(c, err)
		return
	}
	if results.Rows == nil {
		results.Rows = []repository.AttemptResult{}
	}

	response.SuccessWithPagination(c, http.StatusOK, results, response.NewPagination(page, perPage, results.Total))
}

// RefreshCache godoc
// POST /api/v1/admin/tryouts/:tryout_id/refresh-cache
// Rewarms the participant-facing payload cache from PostgreSQL.
func (h *TryoutAdminHandler) RefreshCache(c *gin.Context) {
	tryoutID, err := uuid.Parse(c.Param("tryout_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	tryout, err := h.tryoutService.GetByID(c.Request.Context(), tryoutID)
	if err != nil {
		h.failTryoutError(c, err)
		return
	}

	if err := h.tryoutService.WarmTryoutCache(c.Request.Context(), tryout); err != nil {
		h.failTryoutError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

func (h *TryoutAdminHandler) failTryoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTryoutNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	default:
		h.log.Error().Err(err).Msg("Tryout operation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
