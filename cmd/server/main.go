package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	orderingapp "github.com/motorline/backend/internal/application/ordering"
	paymentapp "github.com/motorline/backend/internal/application/payment"
	reservationapp "github.com/motorline/backend/internal/application/reservation"
	"github.com/motorline/backend/internal/infrastructure/cache"
	"github.com/motorline/backend/internal/infrastructure/config"
	"github.com/motorline/backend/internal/infrastructure/gateway"
	"github.com/motorline/backend/internal/infrastructure/logger"
	"github.com/motorline/backend/internal/infrastructure/notification"
	"github.com/motorline/backend/internal/infrastructure/persistence"
	"github.com/motorline/backend/internal/infrastructure/scheduler"
	"github.com/motorline/backend/internal/interfaces/http/handler"
	"github.com/motorline/backend/internal/interfaces/http/middleware"
	"github.com/motorline/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Motorline Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with GORM logging through zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if err := persistence.AutoMigrate(db.DB); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Redis backs webhook deduplication and customer notifications
	redisClient, err := cache.NewRedisClient(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	log.Info("Redis connected")

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)

	// Payment gateway
	stripeAdapter, err := gateway.NewStripeAdapter(&gateway.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}

	// Application services
	reservationManager := reservationapp.NewManager(reservationRepo, cfg.Reservation.TTL, log)

	deduper := cache.NewRedisEventDeduper(redisClient, cfg.Payment.EventDedupTTL)
	orchestrator := paymentapp.NewOrchestrator(paymentRepo, stripeAdapter, deduper, paymentapp.RetryConfig{
		MaxRetries:      uint64(cfg.Payment.MaxRetries),
		InitialInterval: cfg.Payment.InitialInterval,
		MaxInterval:     cfg.Payment.MaxInterval,
	}, log)

	notifier := notification.NewRedisNotifier(redisClient, log)
	coordinator := orderingapp.NewCoordinator(orderRepo, reservationManager, orchestrator, notifier, log)

	webhookService := paymentapp.NewWebhookService(stripeAdapter, orchestrator, log)
	webhookService.SetOrderReactor(coordinator)

	// Background expiration sweep
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := scheduler.NewReservationSweeper(reservationManager, cfg.Reservation.SweepInterval, log)
	if cfg.Reservation.SweepEnabled {
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// HTTP engine
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		logger.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewOrderHandler(coordinator))
	r.Register(handler.NewReservationHandler(reservationManager))
	r.Register(handler.NewPaymentHandler(orchestrator))
	r.RegisterRoot(handler.NewPaymentWebhookHandler(webhookService, log))
	r.RegisterRoot(handler.NewHealthHandler(db, redisClient))
	r.Setup()

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("Server stopped")
}
