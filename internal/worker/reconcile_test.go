package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cubixnet/comp/internal/reconcile"
)

type mockReconciler struct {
	callCount atomic.Int32
	block     chan struct{} // optional, holds a run open
}

func (m *mockReconciler) Run(_ context.Context) (reconcile.Summary, error) {
	m.callCount.Add(1)
	if m.block != nil {
		<-m.block
	}
	return reconcile.Summary{Scanned: 3, Released: 2}, nil
}

type mockHook struct {
	callCount atomic.Int32
}

func (m *mockHook) Export(_ context.Context, _ reconcile.Summary) error {
	m.callCount.Add(1)
	return nil
}

func TestReconcileWorkerRunsAndShutdown(t *testing.T) {
	mock := &mockReconciler{}
	hook := &mockHook{}
	w := NewReconcileWorker(mock, 50*time.Millisecond, hook)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := mock.callCount.Load(); got < 1 {
		t.Errorf("call count = %d, want >= 1", got)
	}
	if got := hook.callCount.Load(); got != mock.callCount.Load() {
		t.Errorf("hook calls = %d, want %d", got, mock.callCount.Load())
	}
}

func TestReconcileWorkerSkipsConcurrentRun(t *testing.T) {
	mock := &mockReconciler{block: make(chan struct{})}
	w := NewReconcileWorker(mock, time.Hour, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, skipped, err := w.RunOnce(context.Background()); skipped || err != nil {
			t.Errorf("first run skipped=%v err=%v", skipped, err)
		}
	}()

	// Wait until the first run is inside the reconciler.
	for mock.callCount.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	if _, skipped, err := w.RunOnce(context.Background()); !skipped || err != nil {
		t.Errorf("overlapping run skipped=%v err=%v, want skipped", skipped, err)
	}

	close(mock.block)
	wg.Wait()

	if got := mock.callCount.Load(); got != 1 {
		t.Errorf("reconciler ran %d times, want 1", got)
	}
}
