package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
	"github.com/DevRickLin/feishu-realname-sync/internal/metrics"
)

// Flush reasons, used for logging and metrics labels
const (
	FlushReasonCommand  = "command"
	FlushReasonPeriodic = "periodic"
	FlushReasonImport   = "import"
	FlushReasonShutdown = "shutdown"
)

// SyncConfig configures the sync engine
type SyncConfig struct {
	MaxLabelLength int
}

// SetResult reports the side effects of a successful set request.
// Relabel and persistence failures never fail the request itself.
type SetResult struct {
	RealName      string
	Label         string // Label the bot tried to apply, empty if unknown
	RelabelFailed bool
	PersistFailed bool
}

// RemoveResult reports the side effects of a successful remove request
type RemoveResult struct {
	RemovedName   string
	Label         string
	RelabelFailed bool
	PersistFailed bool
}

// SyncEngine owns the name store and orchestrates commands, drift events
// and flushes. Handlers are expected to be invoked one at a time from the
// server's event loop; only Flush may run concurrently (periodic timer).
type SyncEngine struct {
	store      *domain.NameStore
	memberRepo repo.MemberRepo
	policyRepo repo.PolicyRepo
	persister  *Persister
	reconciler *Reconciler
	config     SyncConfig
	metrics    *metrics.Metrics
	log        *slog.Logger

	flushMu sync.Mutex
}

// NewSyncEngine creates a new sync engine around store
func NewSyncEngine(
	store *domain.NameStore,
	memberRepo repo.MemberRepo,
	policyRepo repo.PolicyRepo,
	persister *Persister,
	config SyncConfig,
	m *metrics.Metrics,
	log *slog.Logger,
) *SyncEngine {
	if config.MaxLabelLength <= 0 {
		config.MaxLabelLength = domain.DefaultMaxLabelLength
	}
	return &SyncEngine{
		store:      store,
		memberRepo: memberRepo,
		policyRepo: policyRepo,
		persister:  persister,
		reconciler: NewReconciler(store, memberRepo, config.MaxLabelLength, m, log),
		config:     config,
		metrics:    m,
		log:        logger.Component(log, "SyncEngine"),
	}
}

// Store returns the engine's name store
func (e *SyncEngine) Store() *domain.NameStore {
	return e.store
}

// Load fills the store from the remote snapshot. A missing or unreadable
// snapshot leaves the store empty: availability wins over strict persistence.
func (e *SyncEngine) Load(ctx context.Context) {
	content, err := e.persister.Load(ctx)
	if err != nil {
		e.log.Warn("could not load names, starting empty", "error", err)
		return
	}

	loaded := domain.DeserializeNameStore(content)
	for _, b := range loaded.Bindings() {
		_ = e.store.Set(b.MemberID, b.RealName)
	}
	e.store.MarkClean()
	e.metrics.SetBindings(e.store.Len())
	e.log.Info("names loaded", "bindings", e.store.Len())
}

// HandleSetRequest binds realName to targetID on behalf of actorID
func (e *SyncEngine) HandleSetRequest(ctx context.Context, actorID, targetID, realName string) (*SetResult, error) {
	result, err := e.handleSet(ctx, actorID, targetID, realName)
	e.metrics.IncrementCommand("set", outcomeLabel(err))
	return result, err
}

func (e *SyncEngine) handleSet(ctx context.Context, actorID, targetID, realName string) (*SetResult, error) {
	realName = strings.TrimSpace(realName)
	if realName == "" {
		return nil, fmt.Errorf("%w: empty real name", domain.ErrInvalidInput)
	}
	if err := e.authorize(ctx, actorID, targetID); err != nil {
		return nil, err
	}
	if err := domain.CheckNameFits(realName, e.config.MaxLabelLength); err != nil {
		return nil, err
	}

	result := &SetResult{RealName: realName}

	// Fresh read: the member may have changed their base since the last event.
	member, err := e.memberRepo.GetMember(ctx, targetID)
	if err != nil {
		e.log.Warn("could not read current label", "member_id", targetID, "error", err)
		result.RelabelFailed = true
	} else {
		label, err := domain.FormatNickname(domain.BaseLabel(member.Label()), realName, e.config.MaxLabelLength)
		if err != nil {
			return nil, err
		}
		result.Label = label
	}

	if err := e.store.Set(targetID, realName); err != nil {
		return nil, err
	}
	e.metrics.SetBindings(e.store.Len())
	e.log.Info("real name set", "actor_id", actorID, "member_id", targetID)

	if result.Label != "" {
		if err := e.memberRepo.SetNickname(ctx, targetID, result.Label); err != nil {
			e.metrics.IncrementRelabelFailure()
			e.log.Warn("relabel after set failed", "member_id", targetID, "error", err)
			result.RelabelFailed = true
		}
	}

	result.PersistFailed = e.Flush(ctx, FlushReasonCommand) != nil
	return result, nil
}

// HandleRemoveRequest drops targetID's binding and restores the base label
func (e *SyncEngine) HandleRemoveRequest(ctx context.Context, actorID, targetID string) (*RemoveResult, error) {
	result, err := e.handleRemove(ctx, actorID, targetID)
	e.metrics.IncrementCommand("remove", outcomeLabel(err))
	return result, err
}

func (e *SyncEngine) handleRemove(ctx context.Context, actorID, targetID string) (*RemoveResult, error) {
	if err := e.authorize(ctx, actorID, targetID); err != nil {
		return nil, err
	}

	removed, ok := e.store.Get(targetID)
	if !ok {
		return nil, fmt.Errorf("%w: no real name for %s", domain.ErrNotFound, targetID)
	}
	if err := e.store.Remove(targetID); err != nil {
		return nil, err
	}
	e.metrics.SetBindings(e.store.Len())
	e.log.Info("real name removed", "actor_id", actorID, "member_id", targetID)

	result := &RemoveResult{RemovedName: removed}

	member, err := e.memberRepo.GetMember(ctx, targetID)
	if err != nil {
		e.log.Warn("could not read current label", "member_id", targetID, "error", err)
		result.RelabelFailed = true
	} else {
		result.Label = domain.BaseLabel(member.Label())
		if result.Label != member.Label() {
			if err := e.memberRepo.SetNickname(ctx, targetID, result.Label); err != nil {
				e.metrics.IncrementRelabelFailure()
				e.log.Warn("restoring base label failed", "member_id", targetID, "error", err)
				result.RelabelFailed = true
			}
		}
	}

	result.PersistFailed = e.Flush(ctx, FlushReasonCommand) != nil
	return result, nil
}

// HandleShowRequest returns the real name bound to targetID
func (e *SyncEngine) HandleShowRequest(ctx context.Context, targetID string) (string, bool) {
	name, ok := e.store.Get(targetID)
	e.metrics.IncrementCommand("show", outcomeLabel(nil))
	return name, ok
}

// HandleDriftEvent reacts to a member's label changing. It never mutates the store.
func (e *SyncEngine) HandleDriftEvent(ctx context.Context, memberID, observed string) ReconcileResult {
	return e.reconciler.Reconcile(ctx, memberID, observed)
}

// ImportCandidates lists the bindings an import would add: members without
// a binding whose label carries a suffix that fits the label limit.
func (e *SyncEngine) ImportCandidates(members []domain.Member) []domain.NameBinding {
	var out []domain.NameBinding
	for _, m := range members {
		if m.OpenID == "" {
			continue
		}
		if _, ok := e.store.Get(m.OpenID); ok {
			continue
		}
		name, ok := domain.SuffixName(m.Label())
		if !ok {
			continue
		}
		if err := domain.CheckNameFits(name, e.config.MaxLabelLength); err != nil {
			e.log.Warn("skipping member during import", "member_id", m.OpenID, "error", err)
			continue
		}
		out = append(out, domain.NameBinding{MemberID: m.OpenID, RealName: name})
	}
	return out
}

// ImportFromLabels binds names that members already carry as "<base> | <name>"
// suffixes, skipping members that have a binding. Returns how many were imported.
func (e *SyncEngine) ImportFromLabels(ctx context.Context, members []domain.Member) (int, error) {
	imported := 0
	for _, b := range e.ImportCandidates(members) {
		if err := e.store.Set(b.MemberID, b.RealName); err != nil {
			e.log.Warn("skipping member during import", "member_id", b.MemberID, "error", err)
			continue
		}
		imported++
	}

	e.metrics.SetBindings(e.store.Len())
	e.log.Info("import from labels finished", "members", len(members), "imported", imported)

	if imported == 0 {
		return 0, nil
	}
	if err := e.Flush(ctx, FlushReasonImport); err != nil {
		return imported, err
	}
	return imported, nil
}

// Flush serializes the store and persists it. Errors are logged here and
// returned for callers that want to report them; the in-memory store stays
// authoritative either way.
func (e *SyncEngine) Flush(ctx context.Context, reason string) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	start := time.Now()
	defer func() {
		e.metrics.ObserveFlushDuration(time.Since(start).Seconds())
	}()

	content, gen, err := e.store.SerializeAt()
	if err != nil {
		e.metrics.IncrementFlush(reason, "error")
		e.log.Error("serialize names failed", "reason", reason, "error", err)
		return err
	}

	if err := e.persister.Persist(ctx, content); err != nil {
		e.metrics.IncrementFlush(reason, "error")
		e.log.Error("flush failed, will retry on next schedule", "reason", reason, "error", err)
		return err
	}

	// A mutation that landed during Persist is not in content and stays dirty.
	e.store.MarkCleanAt(gen)
	e.metrics.IncrementFlush(reason, "ok")
	e.log.Debug("names flushed", "reason", reason, "bindings", e.store.Len())
	return nil
}

// authorize checks the edit-others capability; self-edits skip the lookup
func (e *SyncEngine) authorize(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return nil
	}

	allowed, err := e.policyRepo.CanEditOthers(ctx, actorID)
	if err != nil {
		e.log.Warn("authorization lookup failed", "actor_id", actorID, "error", err)
		allowed = false
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not edit %s", domain.ErrPolicyRejected, actorID, targetID)
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNameTooLong):
		return "name_too_long"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPolicyRejected):
		return "policy_rejected"
	default:
		return "error"
	}
}
