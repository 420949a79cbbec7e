package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/hiredvalley/mentorbooking/internal/app"
	"github.com/hiredvalley/mentorbooking/internal/config"
	httpcontroller "github.com/hiredvalley/mentorbooking/internal/controller/http"
	"github.com/hiredvalley/mentorbooking/internal/metrics"
	"github.com/hiredvalley/mentorbooking/internal/payment"
	"github.com/hiredvalley/mentorbooking/internal/repository"
	"github.com/hiredvalley/mentorbooking/internal/service"
	"github.com/hiredvalley/mentorbooking/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting mentor booking service",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подключаемся к базе
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	// Применяем миграции
	migrator, err := app.NewMigrator(pool, migrations.Embed)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrator.Close()

	metrics.Register()

	// Репозитории
	userRepo := repository.NewUserRepository(pool)
	mentorRepo := repository.NewMentorRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	escrowRepo := repository.NewEscrowRepository(pool)
	eventRepo := repository.NewSessionEventRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	taskRepo := repository.NewPaymentTaskRepository(pool)

	// Телеграм-канал уведомлений опционален
	var telegram service.TelegramClient
	if cfg.TelegramToken != "" {
		tgBot, err := bot.New(cfg.TelegramToken)
		if err != nil {
			logger.Error("Failed to init telegram bot, push channel disabled", zap.Error(err))
		} else {
			telegram = tgBot
		}
	}

	// Сервисы
	provider := payment.NewStripeProvider(cfg.StripeSecretKey, logger)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, telegram, logger)
	escrowService := service.NewEscrowService(escrowRepo, userRepo, taskRepo, provider, logger)
	mentorService := service.NewMentorService(mentorRepo, userRepo, logger)
	checker := service.NewConflictChecker(mentorRepo, sessionRepo, logger)
	bookingService := service.NewBookingService(
		sessionRepo,
		mentorRepo,
		userRepo,
		eventRepo,
		taskRepo,
		checker,
		escrowService,
		notificationService,
		cfg.BaseCurrency,
		logger,
	)

	// Фоновые задачи: напоминания и reconciler платежей
	scheduler := app.NewScheduler(bookingService, escrowService, logger)
	scheduler.Start(ctx)

	server := httpcontroller.NewServer(
		bookingService,
		mentorService,
		notificationService,
		cfg.JWTSecret,
		cfg.Environment,
		logger,
	)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Ждём сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}
