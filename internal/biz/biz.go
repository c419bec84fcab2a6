package biz

import (
	"log/slog"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/usecase"
	"github.com/DevRickLin/feishu-realname-sync/internal/metrics"
)

// Repos contains the repositories the usecases depend on
type Repos struct {
	Snapshot repo.SnapshotRepo
	Member   repo.MemberRepo
	Policy   repo.PolicyRepo
}

// Usecases contains all usecases
type Usecases struct {
	Persister *usecase.Persister
	Sync      *usecase.SyncEngine
}

// NewUsecases wires the usecases around an empty name store
func NewUsecases(
	repos Repos,
	persistCfg usecase.PersistConfig,
	syncCfg usecase.SyncConfig,
	m *metrics.Metrics,
	log *slog.Logger,
) *Usecases {
	persister := usecase.NewPersister(repos.Snapshot, persistCfg, m, log)
	return &Usecases{
		Persister: persister,
		Sync:      usecase.NewSyncEngine(domain.NewNameStore(), repos.Member, repos.Policy, persister, syncCfg, m, log),
	}
}
