// Package main runs the Golden Bell game server with WebSocket fan-out and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"goldenbell-backend/internal/config"
	"goldenbell-backend/internal/handlers"
	"goldenbell-backend/internal/realtime"
	"goldenbell-backend/internal/store"
	"goldenbell-backend/internal/ws"
)

func main() {
	_ = godotenv.Load()

	logger := newLogger()
	defer logger.Sync()

	cfg := config.Load()

	st := store.NewMemStore()
	defer st.Close()

	hub := ws.NewHub(logger)

	var bridge *realtime.RedisBridge
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		bridge = realtime.NewRedisBridge(rdb, logger)
		if err := bridge.Run(hub); err != nil {
			logger.Fatal("redis bridge", zap.Error(err))
		}
		defer bridge.Close()
		hub.SetBridge(bridge)
	} else {
		logger.Info("REDIS_ADDR not set, running single-instance")
	}

	registry := handlers.NewRegistry(st, hub, logger)
	router := handlers.NewRouter(cfg, st, hub, registry, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
