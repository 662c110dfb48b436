package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/medical-rag-assistant/internal/adapters/http"
	mcpadapter "github.com/kirillkom/medical-rag-assistant/internal/adapters/mcp"
	"github.com/kirillkom/medical-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/medical-rag-assistant/internal/config"
	"github.com/kirillkom/medical-rag-assistant/internal/observability/logging"
	"github.com/kirillkom/medical-rag-assistant/internal/observability/metrics"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("api_exit", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, cfg.ServiceName, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(cfg.ServiceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Role: bootstrap.RoleAPI,
		OnBreakerChange: func(operation, state string) {
			httpMetrics.SetBreakerState(cfg.ServiceName, operation, state)
		},
	})
	if err != nil {
		return err
	}
	defer app.Close()

	openAPIDocument, err := httpadapter.LoadOpenAPI(ctx)
	if err != nil {
		return err
	}

	router := httpadapter.NewRouter(
		cfg,
		app.Chat,
		app.Status,
		app.IngestUC,
		app.Repo,
		httpadapter.WithMetrics(httpMetrics),
		httpadapter.WithMCP(mcpadapter.New(app.Chat, version).Handler()),
		httpadapter.WithOpenAPI(openAPIDocument),
	).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("api_listening", "addr", server.Addr, "version", version, "uploads", cfg.UploadsEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api_shutdown_error", "error", err)
	}
	return nil
}
