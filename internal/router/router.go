package router

import (
	"net/http"
	"time"

	"github.com/apexam/assess-backend/internal/config"
	"github.com/apexam/assess-backend/internal/handler"
	"github.com/apexam/assess-backend/internal/middleware"
	"github.com/apexam/assess-backend/internal/response"
	"github.com/apexam/assess-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Result  *handler.ResultHandler
	Cleanup *handler.CleanupHandler
	Monitor *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	launchService *service.LaunchService,
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

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Serve the demo UI assets statically with aggressive caching (1 hour).
	staticGroup := router.Group("/static")
	staticGroup.Use(middleware.CacheControl(3600))
	{
		staticGroup.Static("/", "./static")
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for cleanup triggers (30 requests per minute per IP) —
	// sweeps and forced deletes are heavier than plain CRUD.
	cleanupLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Sessions ───────────────────────────────────────────────────
	sessions := router.Group("/api/v1/sessions")
	{
		// Cleanup surface. Registered before /:id so the literal segment wins.
		sessions.POST("/cleanup", cleanupLimiter.Middleware(), handlers.Cleanup.TriggerCleanup)
		sessions.GET("/cleanup", handlers.Cleanup.GetCleanupStats)
		sessions.PATCH("/cleanup", cleanupLimiter.Middleware(), handlers.Cleanup.ControlCleanup)

		sessions.POST("", handlers.Session.CreateSession)
		sessions.GET("", handlers.Session.FindSession)
		sessions.GET("/:id", handlers.Session.GetSession)
		sessions.PUT("/:id", handlers.Session.UpdateSession)
		sessions.GET("/:id/launch", handlers.Session.LaunchSession)

		sessions.GET("/:id/results", handlers.Result.ListResults)
		sessions.POST("/:id/results", handlers.Result.CreateResult)
		sessions.PUT("/:id/results/:result_id", handlers.Result.UpdateResult)
		sessions.DELETE("/:id/results/:result_id", handlers.Result.DeleteResult)
	}

	// ─── 2. Player Callback (Launch Token Auth) ────────────────────────
	player := router.Group("/api/v1/player")
	player.Use(middleware.RequireLaunchToken(launchService))
	{
		player.POST("/results", handlers.Result.PlayerCallback)
	}

	// ─── 3. WebSocket Monitor ──────────────────────────────────────────
	wsGroup := router.Group("/ws/v1")
	{
		wsGroup.GET("/monitor", handlers.Monitor.MonitorStream)
	}

	return router
}
