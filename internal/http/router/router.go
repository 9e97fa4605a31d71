package router

import (
	"github.com/gin-gonic/gin"

	"github.com/communityhub/grievance-backend/internal/config"
	"github.com/communityhub/grievance-backend/internal/http/handlers"
	"github.com/communityhub/grievance-backend/internal/http/middleware"
	"github.com/communityhub/grievance-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	grievanceHandler *handlers.GrievanceHandler,
	groupHandler *handlers.GroupHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		fileRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
		protected.POST("/grievances", fileRateLimit, grievanceHandler.FileGrievance)
		protected.GET("/grievances", grievanceHandler.ListGrievances)
		protected.GET("/grievances/:id", middleware.UUIDValidator("id"), grievanceHandler.GetGrievance)
		protected.POST("/grievances/:id/status", middleware.UUIDValidator("id"), grievanceHandler.AdvanceStatus)
		protected.POST("/grievances/:id/mediator", middleware.UUIDValidator("id"), grievanceHandler.AssignMediator)
		protected.GET("/grievances/:id/mediators/eligible", middleware.UUIDValidator("id"), grievanceHandler.ListEligibleMediators)
		protected.POST("/grievances/:id/votes", middleware.UUIDValidator("id"), grievanceHandler.RecordVote)
		protected.GET("/grievances/:id/votes", middleware.UUIDValidator("id"), grievanceHandler.ListVotes)
		protected.GET("/grievances/:id/tally", middleware.UUIDValidator("id"), grievanceHandler.GetTally)
		protected.POST("/grievances/:id/log", middleware.UUIDValidator("id"), grievanceHandler.AppendNote)
		protected.GET("/grievances/:id/log", middleware.UUIDValidator("id"), grievanceHandler.ListLogEntries)

		protected.POST("/groups", groupHandler.CreateGroup)
		protected.GET("/groups/:id", middleware.UUIDValidator("id"), groupHandler.GetGroup)
		protected.GET("/groups/:id/members", middleware.UUIDValidator("id"), groupHandler.ListMembers)
		protected.POST("/groups/:id/members", middleware.UUIDValidator("id"), groupHandler.AddMember)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	return r
}
