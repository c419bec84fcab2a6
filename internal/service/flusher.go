package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/usecase"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
)

// Flusher writes the name store on a fixed interval, dirty or not, so a
// failed command flush is retried and remote drift is overwritten
type Flusher struct {
	engine   *usecase.SyncEngine
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewFlusher creates a new periodic flusher
func NewFlusher(engine *usecase.SyncEngine, interval time.Duration, log *slog.Logger) *Flusher {
	return &Flusher{
		engine:   engine,
		interval: interval,
		log:      logger.Component(log, "Flusher"),
		stopCh:   make(chan struct{}),
	}
}

// Start starts the flush loop
func (f *Flusher) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return
	}
	f.running = true
	f.wg.Add(1)
	go f.loop(ctx)
	f.log.Info("started", "interval", f.interval)
}

// Stop stops the flush loop and waits for an in-flight flush
func (f *Flusher) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	close(f.stopCh)
	f.mu.Unlock()

	f.wg.Wait()
	f.log.Info("stopped")
}

// Run starts the loop and blocks until ctx is cancelled
func (f *Flusher) Run(ctx context.Context) error {
	f.Start(ctx)
	<-ctx.Done()
	f.Stop()
	return nil
}

func (f *Flusher) loop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Errors are logged and counted by the engine.
			_ = f.engine.Flush(ctx, usecase.FlushReasonPeriodic)
		case <-f.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
