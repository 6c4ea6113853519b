package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notify-realtime/internal/config"
	"notify-realtime/internal/devserver"
	"notify-realtime/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logr := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logr)
	slog.Info("Starting dev server")

	srv := devserver.New(devserver.Config{
		JWTSecret: cfg.DevServer.JWTSecret,
		TokenTTL:  cfg.DevServer.JWTExpire,
		AccessLog: true,
		Logger:    logr,
	})

	server := &http.Server{
		Addr:         cfg.DevServer.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.DevServer.ReadTimeout,
		WriteTimeout: cfg.DevServer.WriteTimeout,
		IdleTimeout:  cfg.DevServer.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Disconnect push clients first so their long-polls return.
	srv.Close()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
