package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/artmarket-backend/internal/config"
	"github.com/ignatzorin/artmarket-backend/internal/db"
	httpHandlers "github.com/ignatzorin/artmarket-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/artmarket-backend/internal/http/router"
	"github.com/ignatzorin/artmarket-backend/internal/logger"
	"github.com/ignatzorin/artmarket-backend/internal/repository"
	"github.com/ignatzorin/artmarket-backend/internal/scheduler"
	"github.com/ignatzorin/artmarket-backend/internal/service"
	"github.com/ignatzorin/artmarket-backend/internal/storage"
	"github.com/ignatzorin/artmarket-backend/internal/tracking"
	"github.com/ignatzorin/artmarket-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	artworkStorage, err := storage.NewArtworkStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	trackingClient := tracking.NewClient(cfg.TrackingAPIBaseURL, cfg.TrackingAPIKey)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	listingRepo := repository.NewListingRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	payoutRepo := repository.NewPayoutRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo, hub)
	authService := service.NewAuthService(userRepo, tokenManager)
	listingService := service.NewListingService(listingRepo, notificationService)
	orderService := service.NewOrderService(orderRepo, listingRepo, trackingClient, notificationService)
	settlementService := service.NewSettlementService(listingRepo, orderRepo, notificationService)
	shippingService := service.NewShippingService(orderRepo, listingRepo, notificationService)
	earningsService := service.NewEarningsService(orderRepo, payoutRepo, notificationService)
	disputeService := service.NewDisputeService(disputeRepo, orderRepo, notificationService)

	// Фоновые проходы: расчёт аукционов, дедлайны отправки,
	// разблокировка выручки, чистка брошенных заказов.
	sched := scheduler.New(cfg, settlementService, shippingService, earningsService, orderService)
	sched.Start(ctx)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	listingHandler := httpHandlers.NewListingHandler(listingService)
	orderHandler := httpHandlers.NewOrderHandler(orderService)
	paymentHandler := httpHandlers.NewPaymentHandler(orderService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	earningsHandler := httpHandlers.NewEarningsHandler(earningsService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	mediaHandler := httpHandlers.NewMediaHandler(mediaRepo, artworkStorage)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		listingHandler,
		orderHandler,
		paymentHandler,
		disputeHandler,
		earningsHandler,
		notificationHandler,
		mediaHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
