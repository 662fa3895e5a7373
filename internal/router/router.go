package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/psw-tryout/tryout-backend/internal/config"
	"github.com/psw-tryout/tryout-backend/internal/handler"
	"github.com/psw-tryout/tryout-backend/internal/middleware"
	"github.com/psw-tryout/tryout-backend/internal/response"
	"github.com/psw-tryout/tryout-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth            *handler.AuthHandler
	Portal          *handler.PortalHandler
	ParticipantMgmt *handler.ParticipantMgmtHandler
	TryoutAdmin     *handler.TryoutAdminHandler
	Dashboard       *handler.DashboardHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/participant/login", handlers.Auth.ParticipantLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/participant/logout", middleware.RequireParticipantJWT(authService), handlers.Auth.ParticipantLogout)
		auth.GET("/participant/me", middleware.RequireParticipantJWT(authService), handlers.Auth.GetParticipantProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Participant Group (JWT + Single Device) ────────────────────
	participantAPI := router.Group("/api/v1/participant")
	participantAPI.Use(
		middleware.RequireParticipantJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		participantAPI.GET("/tryouts", handlers.Portal.ListTryouts)
		participantAPI.GET("/card", handlers.Portal.GetCard)
		participantAPI.POST("/tryouts/:tryout_id/start", handlers.Portal.StartTryout)
		participantAPI.GET("/tryouts/:tryout_id/exam", handlers.Portal.GetExam)
		participantAPI.PUT("/tryouts/:tryout_id/answer", handlers.Portal.SaveAnswer)
		participantAPI.POST("/tryouts/:tryout_id/submit", handlers.Portal.SubmitTryout)
		participantAPI.POST("/tryouts/:tryout_id/tamper", handlers.Portal.ReportTamper)
	}

	// ─── 3. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Dashboard
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboard)

		// Tryout management
		adminAPI.GET("/tryouts", handlers.TryoutAdmin.List)
		adminAPI.POST("/tryouts", handlers.TryoutAdmin.Create)
		adminAPI.GET("/tryouts/:tryout_id", handlers.TryoutAdmin.Get)
		adminAPI.PUT("/tryouts/:tryout_id", handlers.TryoutAdmin.Update)
		adminAPI.DELETE("/tryouts/:tryout_id", handlers.TryoutAdmin.Delete)
		adminAPI.GET("/tryouts/:tryout_id/questions", handlers.TryoutAdmin.ListQuestions)
		adminAPI.PUT("/tryouts/:tryout_id/questions", handlers.TryoutAdmin.ReplaceQuestions)
		adminAPI.GET("/tryouts/:tryout_id/results", handlers.TryoutAdmin.Results)
		adminAPI.POST("/tryouts/:tryout_id/refresh-cache", handlers.TryoutAdmin.RefreshCache)

		// Roster management
		adminAPI.GET("/participants", handlers.ParticipantMgmt.List)
		adminAPI.POST("/participants", handlers.ParticipantMgmt.Create)
		adminAPI.POST("/participants/send-cards", handlers.ParticipantMgmt.SendAllCards)
		adminAPI.GET("/participants/:id", handlers.ParticipantMgmt.Get)
		adminAPI.PUT("/participants/:id", handlers.ParticipantMgmt.Update)
		adminAPI.DELETE("/participants/:id", handlers.ParticipantMgmt.Delete)
		adminAPI.PUT("/participants/:id/blocked", handlers.ParticipantMgmt.SetBlocked)
		adminAPI.GET("/participants/:id/card", handlers.ParticipantMgmt.GetCard)
		adminAPI.POST("/participants/:id/resend-card", handlers.ParticipantMgmt.ResendCard)
		adminAPI.POST("/participants/:id/reset-session", handlers.ParticipantMgmt.ResetSession)
	}

	return router
}
