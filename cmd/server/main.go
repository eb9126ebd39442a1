package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"securetalk/config"
	"securetalk/internal/crypto"
	"securetalk/internal/database"
	"securetalk/internal/jobs"
	"securetalk/internal/router"
	"securetalk/internal/ws"
	"securetalk/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// CONFIG_PATH is optional; defaults plus env vars are enough to boot.
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Server.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		zl.Fatal("database connect failed", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		zl.Fatal("migrate failed", zap.Error(err))
	}

	cipher, err := crypto.NewCipher(cfg.Crypto.MessageKey)
	if err != nil {
		zl.Fatal("message cipher init failed", zap.Error(err))
	}

	hub := ws.NewHub()
	engine, services := router.Setup(router.Deps{
		Cfg:    cfg,
		DB:     db,
		Cipher: cipher,
		Hub:    hub,
		Log:    zl,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := jobs.NewSweeper(services.Tokens, services.Blocks, cfg.Sweeper.Interval, zl)
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		zl.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
	zl.Info("server stopped")
}
