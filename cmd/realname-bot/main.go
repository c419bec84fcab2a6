package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/usecase"
	"github.com/DevRickLin/feishu-realname-sync/internal/conf"
	"github.com/DevRickLin/feishu-realname-sync/internal/data"
	"github.com/DevRickLin/feishu-realname-sync/internal/infra/feishu"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
	"github.com/DevRickLin/feishu-realname-sync/internal/metrics"
	"github.com/DevRickLin/feishu-realname-sync/internal/server"
	"github.com/DevRickLin/feishu-realname-sync/internal/service"
)

const shutdownFlushTimeout = 30 * time.Second

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()
	log := logger.New(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *conf.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, log)

	// Repository layer
	repos, err := data.NewRepositories(feishuClient, cfg.ToDataOptions())
	if err != nil {
		return fmt.Errorf("create repositories: %w", err)
	}
	defer repos.Close()

	log.Info("snapshot backend ready", "backend", cfg.Storage.Backend)

	// Usecase layer
	ucs := biz.NewUsecases(biz.Repos{
		Snapshot: repos.Snapshot,
		Member:   repos.Member,
		Policy:   repos.Policy,
	}, cfg.Storage.ToPersistConfig(), cfg.ToSyncConfig(), m, log)
	engine := ucs.Sync
	engine.Load(ctx)

	// Service layer
	realNameSvc := service.NewRealNameService(engine, repos.Message, cfg.Messages, cfg.Naming.MaxLabelLength, log)
	flusher := service.NewFlusher(engine, cfg.Storage.FlushInterval, log)

	// Servers
	feishuSrv := server.NewFeishuServer(feishuClient, realNameSvc, log)
	httpSrv := server.NewHTTPServer(cfg.HTTPAddr, reg, log)
	if repos.Ping != nil {
		httpSrv.RegisterCheck("names", repos.Ping)
	}

	log.Info("starting real-name sync bot", "version", server.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feishuSrv.Run(gctx) })
	g.Go(func() error { return httpSrv.Run(gctx) })
	g.Go(func() error { return flusher.Run(gctx) })
	runErr := g.Wait()

	log.Info("shutting down, flushing names")
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()
	if err := engine.Flush(flushCtx, usecase.FlushReasonShutdown); err != nil {
		log.Error("final flush failed", "error", err)
	}

	return runErr
}
