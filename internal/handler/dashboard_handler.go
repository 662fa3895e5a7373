package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psw-tryout/tryout-backend/internal/response"
	"github.com/psw-tryout/tryout-backend/internal/service"
	"github.com/rs/zerolog"
)

// DashboardHandler handles the admin dashboard endpoint.
type DashboardHandler struct {
	dashboardService *service.DashboardService
	log              zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		log:              log.With().Str("component", "dashboard_handler").Logger(),
	}
}

// GetDashboard godoc
// GET /api/v1/admin/dashboard
// Returns consolidated roster, tryout, and attempt metrics.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	data, err := h.dashboardService.GetDashboardData(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build dashboard")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, data)
}
