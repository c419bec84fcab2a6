package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
	"github.com/DevRickLin/feishu-realname-sync/internal/metrics"
)

// PersistConfig controls the compare-and-swap retry loop
type PersistConfig struct {
	ConflictRetryLimit int           // Total write attempts on conflict
	ConflictBackoff    time.Duration // Fixed delay between attempts
}

// DefaultPersistConfig is the default retry policy
var DefaultPersistConfig = PersistConfig{
	ConflictRetryLimit: 3,
	ConflictBackoff:    500 * time.Millisecond,
}

// Persister writes snapshots to the remote store with optimistic concurrency
type Persister struct {
	snapshotRepo repo.SnapshotRepo
	config       PersistConfig
	metrics      *metrics.Metrics
	log          *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPersister creates a new persister
func NewPersister(snapshotRepo repo.SnapshotRepo, config PersistConfig, m *metrics.Metrics, log *slog.Logger) *Persister {
	if config.ConflictRetryLimit <= 0 {
		config.ConflictRetryLimit = DefaultPersistConfig.ConflictRetryLimit
	}
	return &Persister{
		snapshotRepo: snapshotRepo,
		config:       config,
		metrics:      m,
		log:          logger.Component(log, "Persister"),
		sleep:        sleepContext,
	}
}

// Load reads the current snapshot. A missing snapshot is not an error.
func (p *Persister) Load(ctx context.Context) ([]byte, error) {
	snap, err := p.snapshotRepo.Fetch(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	return snap.Content, nil
}

// Persist writes content, re-reading the version token right before every
// attempt. Conflicts are retried up to ConflictRetryLimit attempts with a
// fixed backoff; any other failure stops immediately.
func (p *Persister) Persist(ctx context.Context, content []byte) error {
	var lastErr error
	for attempt := 1; attempt <= p.config.ConflictRetryLimit; attempt++ {
		version, err := p.currentVersion(ctx)
		if err != nil {
			return fmt.Errorf("%w: read version: %v", domain.ErrPersistenceUnavailable, err)
		}

		err = p.snapshotRepo.Write(ctx, content, version)
		if err == nil {
			if attempt > 1 {
				p.log.Info("snapshot written after conflict", "attempt", attempt)
			}
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("%w: write: %v", domain.ErrPersistenceUnavailable, err)
		}

		lastErr = err
		p.metrics.IncrementFlushConflict()
		p.log.Warn("snapshot version conflict", "attempt", attempt, "limit", p.config.ConflictRetryLimit)

		if attempt < p.config.ConflictRetryLimit {
			if err := p.sleep(ctx, p.config.ConflictBackoff); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
			}
		}
	}

	return fmt.Errorf("%w: gave up after %d attempts: %w",
		domain.ErrPersistenceUnavailable, p.config.ConflictRetryLimit, lastErr)
}

func (p *Persister) currentVersion(ctx context.Context) (string, error) {
	snap, err := p.snapshotRepo.Fetch(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return snap.Version, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
