package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Worker processes are this same binary re-executed with these variables
// set. Each worker binds the serving address itself with SO_REUSEPORT, so
// the kernel balances accepts across the pool.
const (
	workerEnv   = "STRAND_WORKER"
	workerIDEnv = "STRAND_WORKER_ID"
)

// IsWorker reports whether this process was spawned as a worker.
func IsWorker() bool {
	return os.Getenv(workerEnv) == "1"
}

// WorkerID returns this worker's index, or 0 in the supervisor.
func WorkerID() int {
	id, _ := strconv.Atoi(os.Getenv(workerIDEnv))
	return id
}

// WorkerCrash reports a worker that exceeded its restart budget.
type WorkerCrash struct {
	ID  int
	Err error
}

func (e *WorkerCrash) Error() string {
	return fmt.Sprintf("supervisor: worker %d gave up: %v", e.ID, e.Err)
}

func (e *WorkerCrash) Unwrap() error { return e.Err }

// Config tunes the worker pool.
type Config struct {
	// Workers is the pool size. Zero means serve in-process with no pool.
	Workers int
	// RestartBackoff is the initial delay before respawning a dead worker.
	// It doubles per consecutive crash up to 16x.
	RestartBackoff time.Duration
	// MaxRestarts bounds consecutive crashes per worker before the
	// supervisor gives up. Zero means unlimited.
	MaxRestarts int
	// StopTimeout is how long a worker gets after SIGTERM before SIGKILL.
	StopTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.RestartBackoff <= 0 {
		c.RestartBackoff = time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	return c
}

// Supervisor keeps a pool of worker processes alive.
type Supervisor struct {
	cfg Config
	log *zap.Logger
}

// New builds a supervisor.
func New(cfg Config, log *zap.Logger) *Supervisor {
	return &Supervisor{cfg: cfg.withDefaults(), log: log}
}

// Run spawns the pool and blocks until ctx cancels or a worker exhausts its
// restart budget. A cancelled ctx kills the children and returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("supervisor: locate executable: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for id := 1; id <= s.cfg.Workers; id++ {
		id := id
		g.Go(func() error { return s.keepAlive(ctx, exe, id) })
	}
	return g.Wait()
}

// keepAlive runs one worker slot: spawn, wait, respawn with backoff. A
// clean run longer than a minute resets the crash counter.
func (s *Supervisor) keepAlive(ctx context.Context, exe string, id int) error {
	crashes := 0
	for {
		started := time.Now()
		err := s.runWorker(ctx, exe, id)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) > time.Minute {
			crashes = 0
		}
		crashes++
		s.log.Warn("worker exited",
			zap.Int("worker", id),
			zap.Int("consecutive_crashes", crashes),
			zap.Error(err))

		if s.cfg.MaxRestarts > 0 && crashes > s.cfg.MaxRestarts {
			return &WorkerCrash{ID: id, Err: err}
		}

		backoff := s.cfg.RestartBackoff << min(crashes-1, 4)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (s *Supervisor) runWorker(ctx context.Context, exe string, id int) error {
	cmd := exec.CommandContext(ctx, exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(),
		workerEnv+"=1",
		workerIDEnv+"="+strconv.Itoa(id))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Cancellation asks the worker to drain before the kill escalation.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = s.cfg.StopTimeout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: start worker %d: %w", id, err)
	}
	s.log.Info("worker started", zap.Int("worker", id), zap.Int("pid", cmd.Process.Pid))
	return cmd.Wait()
}
