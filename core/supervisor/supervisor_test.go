package supervisor

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	// The restart tests re-exec this binary through the supervisor; the
	// child exits immediately so the parent sees a crash.
	if IsWorker() {
		os.Exit(3)
	}
	os.Exit(m.Run())
}

func TestIsWorker(t *testing.T) {
	t.Setenv(workerEnv, "")
	if IsWorker() {
		t.Fatal("unset env must not mark a worker")
	}
	t.Setenv(workerEnv, "1")
	if !IsWorker() {
		t.Fatal("env marker not detected")
	}
}

func TestWorkerID(t *testing.T) {
	t.Setenv(workerIDEnv, "3")
	if WorkerID() != 3 {
		t.Fatalf("WorkerID = %d", WorkerID())
	}
	t.Setenv(workerIDEnv, "")
	if WorkerID() != 0 {
		t.Fatalf("WorkerID = %d, want 0 when unset", WorkerID())
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.RestartBackoff != time.Second {
		t.Fatalf("RestartBackoff = %v", cfg.RestartBackoff)
	}
	if cfg.StopTimeout != 10*time.Second {
		t.Fatalf("StopTimeout = %v", cfg.StopTimeout)
	}
}

func TestRunRespawnsThenGivesUp(t *testing.T) {
	sup := New(Config{
		Workers:        1,
		RestartBackoff: 10 * time.Millisecond,
		MaxRestarts:    2,
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := sup.Run(ctx)
	var crash *WorkerCrash
	if !errors.As(err, &crash) {
		t.Fatalf("err = %v, want WorkerCrash", err)
	}
	if crash.ID != 1 {
		t.Fatalf("crashed worker = %d", crash.ID)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	// Unlimited restarts; only cancellation ends the pool.
	sup := New(Config{
		Workers:        1,
		RestartBackoff: 10 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestWorkerCrashError(t *testing.T) {
	err := &WorkerCrash{ID: 2, Err: os.ErrProcessDone}
	if err.Unwrap() != os.ErrProcessDone {
		t.Fatal("Unwrap lost the cause")
	}
}
