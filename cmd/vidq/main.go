package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/vidq/config"
	"github.com/bnema/vidq/internal/adapter/converter/ffmpeg"
	HTTPAdapter "github.com/bnema/vidq/internal/adapter/http"
	"github.com/bnema/vidq/internal/adapter/rpc"
	"github.com/bnema/vidq/internal/adapter/storage/filetable"
	sqlitestore "github.com/bnema/vidq/internal/adapter/storage/sqlite"
	"github.com/bnema/vidq/internal/infrastructure/fsutil"
	"github.com/bnema/vidq/internal/infrastructure/logger"
	"github.com/bnema/vidq/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}
	logger.Setup(cfg.LogLevel, os.Stdout)
	if cfg.Debug() {
		logger.Debug.Printf("config: %+v", *cfg)
	}

	layout := service.NewLayout(cfg.DataDir)
	if err := fsutil.EnsureDirs(layout.Dirs()...); err != nil {
		logger.Error.Printf("failed to create data directories: %v", err)
		os.Exit(1)
	}

	dedup, aside, err := filetable.Open(layout.FileTable)
	if err != nil {
		logger.Error.Printf("failed to open file table: %v", err)
		os.Exit(1)
	}
	if aside != "" {
		logger.Warn.Printf("file table was unreadable, moved to %s", aside)
	}

	ledger, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to open job ledger: %v", err)
		os.Exit(1)
	}
	defer func() { _ = ledger.Close() }()

	if n, err := ledger.ResetStalled(); err != nil {
		logger.Warn.Printf("failed to reset stalled jobs: %v", err)
	} else if n > 0 {
		logger.Info.Printf("marked %d interrupted jobs as abandoned", n)
	}

	registry := ffmpeg.NewRegistry()
	converter := ffmpeg.NewConverter(cfg.FFmpegPath, registry)
	eventBus := service.NewEventBus()

	orchestrator := service.NewOrchestrator(converter, dedup, ledger, eventBus, service.OrchestratorConfig{
		Layout:           layout,
		CompressionSlots: cfg.CompressionSlots,
		PreviewSeconds:   cfg.PreviewSeconds,
	})

	ingest := service.NewIngestService(orchestrator, registry, dedup, ledger, cfg.EnqueueTimeout)
	if err := ingest.Configure(cfg.MaxWorkers, cfg.MaxQueue); err != nil {
		logger.Error.Printf("failed to configure ingest: %v", err)
		os.Exit(1)
	}

	logger.Info.Printf("starting vidq: data=%s workers=%d queue=%d grpc=%d http=%d",
		cfg.DataDir, cfg.MaxWorkers, cfg.MaxQueue, cfg.GRPCPort, cfg.HTTPPort)

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		logger.Error.Printf("failed to listen for gRPC: %v", err)
		os.Exit(1)
	}
	httpLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		logger.Error.Printf("failed to listen for HTTP: %v", err)
		os.Exit(1)
	}

	rpcServer := rpc.NewServer(ingest)
	catalog := service.NewCatalog(layout, ledger, dedup)
	httpServer := HTTPAdapter.NewServer(catalog, ingest, eventBus, layout.Previews)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- rpcServer.Serve(grpcLis) }()
	go func() { errCh <- httpServer.Serve(httpLis) }()

	select {
	case <-ctx.Done():
		logger.Info.Printf("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error.Printf("server failed: %v", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		rpcServer.Drain()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn.Printf("open upload streams did not finish, closing them")
		rpcServer.Stop()
	}

	if err := ingest.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("ingest shutdown: %v", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("http shutdown error: %v", err)
	}

	logger.Info.Printf("shutdown complete")
}

