package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/config"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/devserver"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/logging"
)

func main() {
	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Logger
	logger, closer := logging.New(cfg.Log, os.Stdout)
	defer closer.Close()
	slog.SetDefault(logger)

	// SQLite
	db, err := devserver.Open(cfg.DevServer.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	sessions := devserver.NewSessions(cfg.DevServer.SessionTTL)
	router := devserver.NewRouter(db, sessions, logger)

	// Server
	srv := &http.Server{
		Addr:         cfg.DevServer.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("flow dev server starting",
			"addr", cfg.DevServer.Addr,
			"base_path", devserver.BasePath,
			"db", cfg.DevServer.DBPath,
			"demo_login", devserver.DemoLogin,
			"demo_script", devserver.DemoScriptName,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
