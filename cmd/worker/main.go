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

	"github.com/kirillkom/medical-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/medical-rag-assistant/internal/config"
	"github.com/kirillkom/medical-rag-assistant/internal/observability/logging"
	"github.com/kirillkom/medical-rag-assistant/internal/observability/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker_exit", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg := config.Load()
	service := cfg.ServiceName + "-worker"
	slog.SetDefault(logging.New(os.Stdout, service, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Role: bootstrap.RoleWorker,
		OnBreakerChange: func(operation, state string) {
			workerMetrics.SetBreakerState(service, operation, state)
		},
	})
	if err != nil {
		return err
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "namespace", cfg.VectorNamespace)
	return app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		if doc, err := app.Repo.GetByID(handlerCtx, documentID); err == nil {
			workerMetrics.ObserveQueueLag(service, time.Since(doc.CreatedAt))
		}

		workerMetrics.StartDocument()
		start := time.Now()
		err := app.ProcessUC.ProcessByID(handlerCtx, documentID)
		workerMetrics.FinishDocument(service, time.Since(start), err)
		if err != nil {
			return err
		}

		if doc, err := app.Repo.GetByID(handlerCtx, documentID); err == nil {
			workerMetrics.AddIndexedChunks(service, doc.ChunkCount)
			slog.Info("document_indexed",
				"document_id", documentID,
				"chunks", doc.ChunkCount,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
		return nil
	})
}
