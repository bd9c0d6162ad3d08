// Command wasted serves the waste pipeline HTTP API, a gRPC health endpoint and the
// background processing queue.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/app"
	"github.com/joseph-ayodele/waste-pipeline/internal/async"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	common.LoadDotEnv()
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("wasted.failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		return err
	}

	queue := async.NewProcessorQueue(a.Documents, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	requeuePending(ctx, a, queue, logger)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	api := server.New(server.Deps{
		Documents: a.Documents,
		Ingestor:  a.Ingest,
		Queue:     queue,
		Exporter:  a.Export,
		Settings:  a.Settings,
		Health:    a.DB,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("wasted.grpc.listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("wasted.http.listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go watchDatabase(ctx, a, healthServer, logger)

	select {
	case <-ctx.Done():
		logger.Info("wasted.shutdown.start")
	case err = <-errCh:
		logger.Error("wasted.serve.failed", "error", err)
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if herr := httpServer.Shutdown(shutdownCtx); herr != nil {
		logger.Error("wasted.http.shutdown_failed", "error", herr)
	}
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	logger.Info("wasted.shutdown.done")
	return err
}

// requeuePending picks up documents left queued or processing by a previous run.
func requeuePending(ctx context.Context, a *app.App, q async.Queue, logger *slog.Logger) {
	docs, err := a.Docs.ListByStatus(ctx, constants.DocumentQueued, constants.DocumentProcessing)
	if err != nil {
		logger.Warn("wasted.requeue.failed", "error", err)
		return
	}
	for _, d := range docs {
		if d.Status == constants.DocumentProcessing {
			if err := a.Docs.UpdateStatus(ctx, d.ID, constants.DocumentQueued, ""); err != nil {
				logger.Warn("wasted.requeue.reset_failed", "doc_id", d.ID, "error", err)
				continue
			}
		}
		if err := q.Enqueue(ctx, async.Job{DocumentID: d.ID, SubmittedAt: time.Now()}); err != nil {
			logger.Warn("wasted.requeue.enqueue_failed", "doc_id", d.ID, "error", err)
		}
	}
	if len(docs) > 0 {
		logger.Info("wasted.requeue.done", "documents", len(docs))
	}
}

// watchDatabase flips the gRPC health status with database reachability.
func watchDatabase(ctx context.Context, a *app.App, hs *health.Server, logger *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := a.DB.HealthCheck(ctx, 3*time.Second)
			switch {
			case err != nil && serving:
				logger.Warn("wasted.health.not_serving", "error", err)
				hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
				serving = false
			case err == nil && !serving:
				logger.Info("wasted.health.serving")
				hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
				serving = true
			}
		}
	}
}
