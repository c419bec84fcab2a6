package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/feishu-realname-sync/internal/conf"
	"github.com/DevRickLin/feishu-realname-sync/internal/data"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
	"github.com/DevRickLin/feishu-realname-sync/internal/mcpserver"
	"github.com/DevRickLin/feishu-realname-sync/internal/server"
)

// realname-mcp serves read-only real-name lookups over stdio. It reads
// the same snapshot the bot writes and never talks to Feishu.
func main() {
	_ = godotenv.Load()

	cfg := conf.LoadFromEnv()

	// stdout carries the protocol, so logs go to stderr
	log := logger.NewWithWriter(os.Stderr, cfg.Debug)

	if err := run(cfg, log); err != nil {
		log.Error("MCP server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *conf.Config, log *slog.Logger) error {
	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	snapshotRepo, err := data.NewSnapshotRepo(cfg.ToDataOptions())
	if err != nil {
		return fmt.Errorf("open snapshot backend: %w", err)
	}
	if closer, ok := snapshotRepo.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mcpserver.NewServer(snapshotRepo, server.Version, log).Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
