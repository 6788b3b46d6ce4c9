package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/config"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/generator"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/handler"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/logger"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/messaging"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/middleware"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/repository"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	ctx := context.Background()

	// --- Session store ---
	repo, cleanup, err := setupSessionStore(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to set up session store", zap.Error(err))
	}
	defer cleanup()
	zapLogger.Info("Session store ready", zap.String("driver", cfg.SessionStore))

	// --- AI generator ---
	aiClient, err := generator.NewAIClient(generator.ClientConfig{
		Provider: cfg.AIProvider,
		Model:    cfg.AIModel,
		BaseURL:  cfg.AIBaseURL,
		APIKey:   cfg.AIAPIKey,
		Timeout:  cfg.AITimeout,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create AI client", zap.Error(err))
	}
	sceneGenerator := generator.NewSceneGenerator(aiClient, cfg.HistoryTokenBudget, generator.GenerationParams{
		Temperature: &cfg.AITemperature,
		MaxTokens:   &cfg.AIMaxTokens,
		TopP:        &cfg.AITopP,
	}, zapLogger)

	// --- Optional session eventing ---
	var publisher messaging.SessionEventPublisher
	var amqpConn *amqp.Connection
	if cfg.RabbitMQURL != "" {
		amqpConn, err = connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer amqpConn.Close()

		publisher, err = messaging.NewRabbitMQSessionEventPublisher(amqpConn, cfg.SessionEventsQueue, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to create session event publisher", zap.Error(err))
		}
	} else {
		zapLogger.Info("RABBITMQ_URL not set, session events disabled")
	}

	storyService := service.NewStoryService(repo, sceneGenerator, publisher, cfg.MaxSteps, zapLogger)
	storyHandler := handler.NewStoryHandler(storyService, zapLogger)

	// --- HTTP server ---
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.EchoZapLogger(zapLogger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	storyHandler.RegisterRoutes(e)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server error", zap.Error(err))
		}
	}()
	zapLogger.Info("Story engine listening", zap.String("port", cfg.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Graceful shutdown failed", zap.Error(err))
	}
	zapLogger.Info("Story engine stopped")
}

// setupSessionStore builds the configured SessionRepository and returns a
// cleanup function closing its connections.
func setupSessionStore(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (repository.SessionRepository, func(), error) {
	switch cfg.SessionStore {
	case "memory":
		return repository.NewMemorySessionRepository(), func() {}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		return repository.NewRedisSessionRepository(client, cfg.SessionTTL, zapLogger),
			func() { client.Close() }, nil

	case "postgres":
		poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
		if err != nil {
			return nil, nil, err
		}
		poolConfig.MaxConns = int32(cfg.DBMaxConns)
		poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPgSessionRepository(pool, zapLogger),
			func() { pool.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store driver: %q", cfg.SessionStore)
	}
}

// connectRabbitMQ dials RabbitMQ with a few retries so the service survives
// broker startup races.
func connectRabbitMQ(url string, zapLogger *zap.Logger) (*amqp.Connection, error) {
	const maxRetries = 5
	const retryDelay = 3 * time.Second

	var conn *amqp.Connection
	var err error
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		zapLogger.Warn("RabbitMQ connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
