package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Olzhas-K/sportsmeet-system/config"
	"github.com/Olzhas-K/sportsmeet-system/db"
	"github.com/Olzhas-K/sportsmeet-system/handlers"
	"github.com/Olzhas-K/sportsmeet-system/live"
	mw "github.com/Olzhas-K/sportsmeet-system/middleware"
	"github.com/Olzhas-K/sportsmeet-system/queue"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
	api "github.com/Olzhas-K/sportsmeet-system/routes"
	"github.com/Olzhas-K/sportsmeet-system/services"
	"github.com/Olzhas-K/sportsmeet-system/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const (
	sessionPurgeInterval = 1 * time.Hour
	qrScanLimit          = 30 // запросов на IP в окно
	qrScanWindow         = 10 * time.Second
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Загрузчик фотографий (Cloudflare R2). Без конфигурации фото отключены.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 is not configured, photo uploads are disabled")
	}

	// Redis для rate limiting сканера. Без Redis лимитер пропускает всё.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis is unreachable, rate limiting disabled", slog.Any("error", err))
			redisClient = nil
		} else {
			logger.Info("redis connection established")
		}
		cancel()
	}

	// Публикация исходящих событий (RabbitMQ). Без брокера события не шлются.
	var publisher queue.Publisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := queue.NewAMQPPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("failed to initialize AMQP publisher", slog.Any("error", err))
			os.Exit(1)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		logger.Info("AMQP publisher initialized")
	} else {
		logger.Warn("AMQP is not configured, outbound events are disabled")
	}

	// WebSocket-хаб живых счётчиков
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Репозитории
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	enrollmentRepo := repositories.NewPostgresEnrollmentRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	sessionRepo := repositories.NewPostgresSessionRepository(dbConn)
	configRepo := repositories.NewPostgresSystemConfigRepository(dbConn)
	logger.Info("Repositories initialized")

	// Сервисы
	authService := services.NewAuthService(participantRepo, sessionRepo)
	jerseyService := services.NewJerseyService(participantRepo, configRepo, logger)
	enrollmentService := services.NewEnrollmentService(participantRepo, enrollmentRepo, eventRepo, wsHub, logger)
	attendanceService := services.NewAttendanceService(participantRepo, enrollmentRepo, eventRepo, wsHub, logger)
	rosterService := services.NewRosterService(dbConn, participantRepo, enrollmentRepo, eventRepo, wsHub, publisher, logger)
	eventService := services.NewEventService(eventRepo)
	repairService := services.NewRepairService(eventRepo, logger)
	participantService := services.NewParticipantService(
		dbConn,
		participantRepo,
		enrollmentRepo,
		eventRepo,
		sessionRepo,
		configRepo,
		jerseyService,
		uploader,
		publisher,
		wsHub,
		logger,
	)
	logger.Info("Services initialized")

	// Периодическая чистка протухших сессий
	go func() {
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for range ticker.C {
			purged, err := authService.PurgeExpiredSessions(context.Background())
			if err != nil {
				logger.Error("session purge failed", slog.Any("error", err))
				continue
			}
			if purged > 0 {
				logger.Info("expired sessions purged", slog.Int("count", purged))
			}
		}
	}()

	// HTTP-обработчики
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	participantHandler := handlers.NewParticipantHandler(participantService)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceService)
	rosterHandler := handlers.NewRosterHandler(rosterService, repairService)
	eventHandler := handlers.NewEventHandler(eventService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	// Маршрутизатор
	router := chi.NewRouter()
	qrLimiter := mw.RateLimit(redisClient, qrScanLimit, qrScanWindow)
	api.SetupRoutes(
		router,
		authHandler,
		participantHandler,
		enrollmentHandler,
		attendanceHandler,
		rosterHandler,
		eventHandler,
		webSocketHandler,
		cfg.JWTSecretKey,
		qrLimiter,
	)
	logger.Info("Routes configured")

	// HTTP-сервер
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
