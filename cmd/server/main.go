package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-core/internal/config"
	"github.com/ignatzorin/freelance-core/internal/db"
	"github.com/ignatzorin/freelance-core/internal/events"
	httpHandlers "github.com/ignatzorin/freelance-core/internal/http/handlers"
	httpRouter "github.com/ignatzorin/freelance-core/internal/http/router"
	"github.com/ignatzorin/freelance-core/internal/logger"
	"github.com/ignatzorin/freelance-core/internal/repository"
	"github.com/ignatzorin/freelance-core/internal/service"
	"github.com/ignatzorin/freelance-core/internal/storage"
	"github.com/ignatzorin/freelance-core/internal/ws"
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
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
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

	evidenceStorage, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn)
	bidRepo := repository.NewBidRepository(dbConn)
	invitationRepo := repository.NewInvitationRepository(dbConn)
	contractRepo := repository.NewContractRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты и доставка событий.
	hub := ws.NewHub()
	go hub.Run()

	sink := events.NewNotificationSink(notificationRepo, hub)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	jobService := service.NewJobService(jobRepo)
	bidService := service.NewBidService(bidRepo, jobRepo, contractRepo, sink)
	invitationService := service.NewInvitationService(invitationRepo, jobRepo, userRepo, contractRepo, sink)
	contractService := service.NewContractService(contractRepo, jobRepo, sink)
	escrowService := service.NewEscrowService(escrowRepo, jobRepo, contractRepo, sink)
	disputeService := service.NewDisputeService(disputeRepo, escrowRepo, sink)
	notificationService := service.NewNotificationService(notificationRepo)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	jobHandler := httpHandlers.NewJobHandler(jobService)
	bidHandler := httpHandlers.NewBidHandler(bidService)
	invitationHandler := httpHandlers.NewInvitationHandler(invitationService)
	contractHandler := httpHandlers.NewContractHandler(contractService)
	escrowHandler := httpHandlers.NewEscrowHandler(escrowService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService, evidenceStorage)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, jobHandler, bidHandler, invitationHandler, contractHandler, escrowHandler, disputeHandler, notificationHandler, wsHandler, healthHandler, tokenManager)

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
