package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/lostmarbl3/fai-trainsmart/internal/config"
	"github.com/lostmarbl3/fai-trainsmart/internal/database"
	"github.com/lostmarbl3/fai-trainsmart/internal/logging"
	"github.com/lostmarbl3/fai-trainsmart/internal/routes"
	sessionws "github.com/lostmarbl3/fai-trainsmart/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logging.New(cfg.AppEnv, false)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Postgres and Redis
	if cfg.DBUrl == "" {
		zl.Fatal("DB_URL is required")
	}
	pool, err := database.ConnectDB(ctx, cfg.DBUrl, zl)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		zl.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := sessionws.NewHub(zl.Named("hub"))
	go hub.Run(ctx)

	// 3. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: !cfg.IsDevelopment(),
	})

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	// Routes
	stopRoutes, err := routes.RegisterRoutes(app, routes.Dependencies{
		Config:   cfg,
		DB:       pool,
		Redis:    redisClient,
		Hub:      hub,
		Registry: registry,
		Logger:   zl,
	})
	if err != nil {
		zl.Fatal("Failed to register routes", zap.Error(err))
	}
	defer stopRoutes()

	// 4. Start Server
	serveErr := make(chan error, 1)
	go func() {
		zl.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		serveErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			zl.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zl.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
