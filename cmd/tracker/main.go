package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-portfolio-tracker/internal/alerts"
	"crypto-portfolio-tracker/internal/api"
	"crypto-portfolio-tracker/internal/audit"
	"crypto-portfolio-tracker/internal/auth"
	"crypto-portfolio-tracker/internal/coingecko"
	"crypto-portfolio-tracker/internal/config"
	"crypto-portfolio-tracker/internal/database"
	"crypto-portfolio-tracker/internal/logger"
	"crypto-portfolio-tracker/internal/market"
	"crypto-portfolio-tracker/internal/portfolio"
	"crypto-portfolio-tracker/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret must be set (AUTH_JWT_SECRET)")
	}
	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.", zap.String("driver", cfg.Database.Driver))

	// Initialize CoinGecko client. Market data is optional at startup: the
	// caches serve empty or stale data until the API answers.
	client := coingecko.NewClient(&cfg.CoinGecko, log)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.CoinGecko.Timeout)
	if err := client.Ping(pingCtx); err != nil {
		log.Warn("CoinGecko API is not reachable", zap.Error(err))
	} else {
		log.Info("Successfully connected to CoinGecko API.")
	}
	cancelPing()

	marketSvc := market.NewService(db, client, &cfg.Market, log)
	assets := portfolio.NewStore(db)
	alertStore := alerts.NewStore(db)

	senders := []alerts.Sender{alerts.NewLogSender(log)}
	if cfg.Notifications.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Notifications.RedisAddr})
		defer rdb.Close()
		senders = append(senders, alerts.NewRedisSender(rdb, cfg.Notifications.RedisChannel))
		log.Info("Publishing notifications to redis",
			zap.String("addr", cfg.Notifications.RedisAddr), zap.String("channel", cfg.Notifications.RedisChannel))
	}
	evaluator := alerts.NewEvaluator(alertStore, marketSvc, alerts.NewNotifier(db, log, senders...), log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	server := api.NewServer(&cfg.Server, api.Services{
		Auth:      auth.NewService(db, &cfg.Auth, log),
		Audit:     audit.NewRecorder(db, log),
		Assets:    assets,
		Portfolio: portfolio.NewService(assets, marketSvc, log),
		Market:    marketSvc,
		Alerts:    alertStore,
	}, log)
	server.Start()

	// Run the alert scheduler until shutdown
	sched := scheduler.New(log, evaluator, cfg.Alerts.CheckInterval, cfg.Alerts.MaxConcurrent)
	sched.Run(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Tracker has been shut down.", zap.Time("at", time.Now()))
}
