package usecase

import (
	"context"
	"log/slog"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
	"github.com/DevRickLin/feishu-realname-sync/internal/metrics"
)

// ReconcileOutcome is the result of checking one observed label
type ReconcileOutcome string

const (
	ReconcileUnbound          ReconcileOutcome = "unbound"           // No real name configured
	ReconcileSynced           ReconcileOutcome = "synced"            // Label already matches
	ReconcileCorrected        ReconcileOutcome = "corrected"         // Label rewritten
	ReconcileCorrectionFailed ReconcileOutcome = "correction_failed" // Platform refused the rewrite
	ReconcileUnfixable        ReconcileOutcome = "unfixable"         // Stored name exceeds the ceiling
)

// ReconcileResult describes what the reconciler did
type ReconcileResult struct {
	Outcome  ReconcileOutcome
	Expected string
}

// Reconciler enforces "<base> | <real name>" on observed labels
type Reconciler struct {
	store      *domain.NameStore
	memberRepo repo.MemberRepo
	maxLength  int
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(store *domain.NameStore, memberRepo repo.MemberRepo, maxLength int, m *metrics.Metrics, log *slog.Logger) *Reconciler {
	return &Reconciler{
		store:      store,
		memberRepo: memberRepo,
		maxLength:  maxLength,
		metrics:    m,
		log:        logger.Component(log, "Reconciler"),
	}
}

// Reconcile compares observed with the label the member should carry and
// issues a correction when they differ. The base is recovered from the
// observed label, so a member who changes their own base keeps it.
// Correction failures are logged and swallowed; the next label change
// delivers another event.
func (r *Reconciler) Reconcile(ctx context.Context, memberID, observed string) ReconcileResult {
	result := r.reconcile(ctx, memberID, observed)
	r.metrics.IncrementDriftEvent(string(result.Outcome))
	return result
}

func (r *Reconciler) reconcile(ctx context.Context, memberID, observed string) ReconcileResult {
	realName, ok := r.store.Get(memberID)
	if !ok {
		return ReconcileResult{Outcome: ReconcileUnbound}
	}

	expected, err := domain.FormatNickname(domain.BaseLabel(observed), realName, r.maxLength)
	if err != nil {
		r.log.Warn("stored real name no longer fits", "member_id", memberID, "error", err)
		return ReconcileResult{Outcome: ReconcileUnfixable}
	}

	if observed == expected {
		return ReconcileResult{Outcome: ReconcileSynced, Expected: expected}
	}

	r.log.Info("label drifted, correcting", "member_id", memberID, "observed", observed, "expected", expected)
	if err := r.memberRepo.SetNickname(ctx, memberID, expected); err != nil {
		r.metrics.IncrementRelabelFailure()
		r.log.Warn("label correction failed", "member_id", memberID, "error", err)
		return ReconcileResult{Outcome: ReconcileCorrectionFailed, Expected: expected}
	}

	return ReconcileResult{Outcome: ReconcileCorrected, Expected: expected}
}
