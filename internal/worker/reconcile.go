// Package worker runs the periodic background jobs of the service.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cubixnet/comp/internal/reconcile"
)

// Reconciler runs one reconciliation pass over the held bonus ledger.
type Reconciler interface {
	Run(ctx context.Context) (reconcile.Summary, error)
}

// AfterRunHook is called after each successful reconciliation run.
type AfterRunHook interface {
	Export(ctx context.Context, summary reconcile.Summary) error
}

// ReconcileWorker periodically reconciles held bonuses. At most one run
// is active at a time; a tick or manual trigger that finds a prior run
// still active is skipped, not queued.
type ReconcileWorker struct {
	reconciler Reconciler
	interval   time.Duration
	hook       AfterRunHook // optional
	running    atomic.Bool
}

// NewReconcileWorker creates a new ReconcileWorker with an optional
// post-run hook.
func NewReconcileWorker(reconciler Reconciler, interval time.Duration, hook AfterRunHook) *ReconcileWorker {
	return &ReconcileWorker{
		reconciler: reconciler,
		interval:   interval,
		hook:       hook,
	}
}

// RunOnce runs a single reconciliation pass unless one is already
// active, in which case it reports skipped=true. Safe to call from the
// admin API while the periodic loop is running.
func (w *ReconcileWorker) RunOnce(ctx context.Context) (summary reconcile.Summary, skipped bool, err error) {
	if !w.running.CompareAndSwap(false, true) {
		slog.Info("ReconcileWorker: run already active, skipping")
		return reconcile.Summary{}, true, nil
	}
	defer w.running.Store(false)

	summary, err = w.reconciler.Run(ctx)
	if err != nil {
		return summary, false, err
	}
	w.runHook(ctx, summary)
	return summary, false, nil
}

// runHook calls the post-run hook if one is configured.
func (w *ReconcileWorker) runHook(ctx context.Context, summary reconcile.Summary) {
	if w.hook == nil {
		return
	}
	if err := w.hook.Export(ctx, summary); err != nil {
		slog.Error("ReconcileWorker: export hook failed", "error", err)
	} else {
		slog.Info("ReconcileWorker: export hook completed")
	}
}

// Run starts the worker loop. It blocks until the context is cancelled.
func (w *ReconcileWorker) Run(ctx context.Context) {
	slog.Info("ReconcileWorker: starting", "interval", w.interval)

	// Reconcile immediately on startup
	if _, _, err := w.RunOnce(ctx); err != nil {
		slog.Error("ReconcileWorker: initial run failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ReconcileWorker: shutting down")
			return
		case <-ticker.C:
			if _, _, err := w.RunOnce(ctx); err != nil {
				slog.Error("ReconcileWorker: run failed", "error", err)
			}
		}
	}
}
