// Package scheduler runs periodic vesting snapshots on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/observability"
	"y8u-distributor/internal/storage"
)

// Snapshotter captures the current vesting progress of every pool.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]*domain.PoolSnapshot, error)
}

// Scheduler manages the snapshot cron task.
type Scheduler struct {
	cron   *cron.Cron
	source Snapshotter
	store  storage.SnapshotStore // optional
	logger *log.Logger
	ctx    context.Context

	mu      sync.Mutex
	waiting bool // TGE not set at the last run
}

// New creates a scheduler. Specs use the six-field format with seconds.
// store may be nil, in which case snapshots only feed the metrics.
func New(ctx context.Context, source Snapshotter, store storage.SnapshotStore, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		source: source,
		store:  store,
		logger: logger,
		ctx:    ctx,
	}
}

// Register adds the snapshot task under spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Println("scheduler started")
}

// Stop stops the scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Println("scheduler stopped")
}

// RunNow takes one snapshot immediately. Before TGE it does nothing.
func (s *Scheduler) RunNow() error {
	snaps, err := s.source.Snapshot(s.ctx)
	if errors.Is(err, domain.ErrTgeNotStarted) {
		s.mu.Lock()
		first := !s.waiting
		s.waiting = true
		s.mu.Unlock()
		if first {
			s.logger.Println("snapshot skipped: TGE not started")
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	s.mu.Lock()
	s.waiting = false
	s.mu.Unlock()

	for _, snap := range snaps {
		observability.RecordSnapshot(snap)
	}

	if s.store != nil {
		if err := s.store.InsertBulk(s.ctx, snaps); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("store snapshot: %w", err)
		}
	}

	if len(snaps) > 0 {
		observability.RecordSnapshotSuccess(snaps[0].TakenAt)
	}
	return nil
}

func (s *Scheduler) snapshotTask() {
	if err := s.RunNow(); err != nil {
		s.logger.Printf("[ERROR] %v", err)
	}
}
