package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/artmarket-backend/internal/config"
	"github.com/ignatzorin/artmarket-backend/internal/http/handlers"
	"github.com/ignatzorin/artmarket-backend/internal/http/middleware"
	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	listingHandler *handlers.ListingHandler,
	orderHandler *handlers.OrderHandler,
	paymentHandler *handlers.PaymentHandler,
	disputeHandler *handlers.DisputeHandler,
	earningsHandler *handlers.EarningsHandler,
	notificationHandler *handlers.NotificationHandler,
	mediaHandler *handlers.MediaHandler,
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
	r.StaticFS("/media/files", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Публичные маршруты
	api.GET("/listings", listingHandler.List)
	api.GET("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Get)
	api.GET("/listings/:id/bids", middleware.UUIDValidator("id"), listingHandler.ListBids)
	api.GET("/fees/preview", listingHandler.FeePreview)
	api.GET("/ws", wsHandler.Handle)

	// Вебхук платёжного провайдера: авторизации нет, провайдер
	// подписывает доставку на своей стороне.
	webhookGroup := api.Group("/payments")
	webhookGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		webhookGroup.POST("/webhook", paymentHandler.Webhook)
	}

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/auth/logout", authHandler.Logout)

		protected.POST("/listings", listingHandler.Create)
		protected.POST("/listings/:id/bids", middleware.UUIDValidator("id"), listingHandler.PlaceBid)

		protected.POST("/orders", orderHandler.Create)
		protected.GET("/orders", orderHandler.ListMy)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), orderHandler.Get)
		protected.POST("/orders/:id/tracking", middleware.UUIDValidator("id"), orderHandler.SubmitTracking)

		protected.POST("/orders/:id/disputes", middleware.UUIDValidator("id"), disputeHandler.Open)
		protected.GET("/orders/:id/dispute", middleware.UUIDValidator("id"), disputeHandler.GetByOrder)
		protected.GET("/disputes", disputeHandler.ListMy)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		protected.POST("/disputes/:id/response", middleware.UUIDValidator("id"), disputeHandler.Respond)

		protected.GET("/earnings/balance", earningsHandler.Balance)
		protected.POST("/payouts", earningsHandler.RequestPayout)
		protected.GET("/payouts", earningsHandler.ListPayouts)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)

		protected.POST("/media", mediaHandler.Upload)
		protected.GET("/media", mediaHandler.ListMy)
		protected.GET("/media/:id", middleware.UUIDValidator("id"), mediaHandler.Get)
		protected.DELETE("/media/:id", middleware.UUIDValidator("id"), mediaHandler.Delete)
	}

	// Маршруты модераторов: проверка трек-номеров и разбор споров.
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(models.UserRoleAdmin))
	{
		admin.POST("/orders/:id/tracking/approve", middleware.UUIDValidator("id"), orderHandler.ApproveTracking)
		admin.POST("/orders/:id/tracking/reject", middleware.UUIDValidator("id"), orderHandler.RejectTracking)
		admin.POST("/orders/:id/delivered", middleware.UUIDValidator("id"), orderHandler.MarkDelivered)
		admin.GET("/disputes", disputeHandler.ListOpen)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.Resolve)
		admin.POST("/payouts/:id/process", middleware.UUIDValidator("id"), earningsHandler.ProcessPayout)
	}

	return r
}
