package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-core/internal/config"
	"github.com/ignatzorin/freelance-core/internal/http/handlers"
	"github.com/ignatzorin/freelance-core/internal/http/middleware"
	"github.com/ignatzorin/freelance-core/internal/service"
)

// SetupRouter собирает все маршруты приложения.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	jobHandler *handlers.JobHandler,
	bidHandler *handlers.BidHandler,
	invitationHandler *handlers.InvitationHandler,
	contractHandler *handlers.ContractHandler,
	escrowHandler *handlers.EscrowHandler,
	disputeHandler *handlers.DisputeHandler,
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
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Публичные маршруты
	api.GET("/jobs", jobHandler.ListJobs)
	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/me", authHandler.Me)

		// Задания
		protected.POST("/jobs", jobHandler.CreateJob)
		protected.GET("/jobs/my", jobHandler.ListMyJobs)
		protected.GET("/jobs/:id", middleware.UUIDValidator("id"), jobHandler.GetJob)
		protected.DELETE("/jobs/:id", middleware.UUIDValidator("id"), jobHandler.DeleteJob)

		// Отклики
		protected.POST("/jobs/:id/bids", middleware.UUIDValidator("id"), bidHandler.PlaceBid)
		protected.GET("/jobs/:id/bids", middleware.UUIDValidator("id"), bidHandler.ListJobBids)
		protected.GET("/bids/my", bidHandler.ListMyBids)
		protected.GET("/bids/:id", middleware.UUIDValidator("id"), bidHandler.GetBid)
		protected.POST("/bids/:id/accept", middleware.UUIDValidator("id"), bidHandler.AcceptBid)
		protected.PUT("/bids/:id", middleware.UUIDValidator("id"), bidHandler.UpdateBid)
		protected.DELETE("/bids/:id", middleware.UUIDValidator("id"), bidHandler.DeleteBid)

		// Приглашения
		protected.POST("/jobs/:id/invitations", middleware.UUIDValidator("id"), invitationHandler.SendInvitation)
		protected.GET("/jobs/:id/invitations", middleware.UUIDValidator("id"), invitationHandler.ListJobInvitations)
		protected.GET("/invitations/my", invitationHandler.ListMyInvitations)
		protected.POST("/invitations/:id/respond", middleware.UUIDValidator("id"), invitationHandler.RespondToInvitation)

		// Контракты и вехи
		protected.POST("/contracts", contractHandler.CreateContract)
		protected.GET("/contracts/my", contractHandler.ListMyContracts)
		protected.GET("/contracts/:id", middleware.UUIDValidator("id"), contractHandler.GetContract)
		protected.PUT("/contracts/:id/status", middleware.UUIDValidator("id"), contractHandler.UpdateStatus)
		protected.POST("/contracts/:id/milestones", middleware.UUIDValidator("id"), contractHandler.AddMilestone)
		protected.POST("/contracts/:id/milestones/:position/complete", middleware.UUIDValidator("id"), contractHandler.CompleteMilestone)
		protected.GET("/jobs/:id/contract", middleware.UUIDValidator("id"), contractHandler.GetJobContract)

		// Escrow
		protected.POST("/escrow", escrowHandler.Fund)
		protected.GET("/escrow/my", escrowHandler.ListMyEscrows)
		protected.GET("/escrow/:id", middleware.UUIDValidator("id"), escrowHandler.GetEscrow)
		protected.GET("/jobs/:id/escrow", middleware.UUIDValidator("id"), escrowHandler.GetJobEscrow)

		// Споры
		protected.POST("/disputes", disputeHandler.CreateDispute)
		protected.GET("/disputes/my", disputeHandler.ListMyDisputes)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.GetDispute)
		protected.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.UploadEvidence)
		protected.GET("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.ListEvidence)

		// Уведомления
		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.DeleteNotification)
	}

	// Административные маршруты. Роль проверяется в сервисах.
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager))
	{
		admin.GET("/disputes", disputeHandler.ListOpenDisputes)
		admin.POST("/disputes/:id/review", middleware.UUIDValidator("id"), disputeHandler.StartReview)
		admin.POST("/disputes/:id/escalate", middleware.UUIDValidator("id"), disputeHandler.Escalate)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.ResolveDispute)
		admin.POST("/escrow/:id/release", middleware.UUIDValidator("id"), escrowHandler.Release)
		admin.POST("/escrow/:id/refund", middleware.UUIDValidator("id"), escrowHandler.Refund)
	}

	return r
}
