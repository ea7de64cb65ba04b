package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/HitoniYori/ijime-support-ai/internal/api"
	"github.com/HitoniYori/ijime-support-ai/internal/app"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
	"github.com/HitoniYori/ijime-support-ai/internal/session"
)

func main() {
	a, err := app.Bootstrap()
	if err != nil {
		logger.L.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	sessions := session.NewManager(a.Backend, a.SessionOptions())
	defer sessions.CloseAll()

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	api.NewHandler(sessions, a.Archive).RegisterRoutes(r)

	// Turns wait on the model, so no WriteTimeout.
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", a.Config.Server.Host, a.Config.Server.Port),
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.L.Info("starting server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.L.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("forced shutdown", "error", err)
	}
}
