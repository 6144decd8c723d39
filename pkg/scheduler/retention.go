package scheduler

import (
	"context"
	"time"

	"github.com/mportillo/dealerd/internal/logging"
	"github.com/mportillo/dealerd/pkg/repositories/ledger"
)

// RetentionConfig holds the sweep windows and periods
type RetentionConfig struct {
	CompletedWindow   time.Duration // how long completed entries are kept
	DedupWindow       time.Duration // how long dedup records are kept
	CompletedInterval time.Duration // how often the completed sweep runs
	DedupInterval     time.Duration // how often the dedup sweep runs
}

// RetentionSweeper purges aged ledger and dedup entries on two
// independent periods, keeping long-running memory use flat. Purging is
// gated purely by age: a pending record older than its window is purged
// like any other, a documented limitation when an external transfer
// outlives the retention window.
type RetentionSweeper struct {
	scheduler *Scheduler
	repo      ledger.Repository
	archiver  *ledger.Archiver
	config    RetentionConfig
	logger    *logging.Logger
}

// NewRetentionSweeper creates a retention sweeper. The archiver is
// optional; when present, completed entries are indexed before purge.
func NewRetentionSweeper(repo ledger.Repository, archiver *ledger.Archiver, config RetentionConfig, logger *logging.Logger) *RetentionSweeper {
	if logger == nil {
		logger = logging.Default
	}
	return &RetentionSweeper{
		scheduler: NewScheduler(logger),
		repo:      repo,
		archiver:  archiver,
		config:    config,
		logger:    logger,
	}
}

// Start registers the sweep tasks and starts the scheduler
func (s *RetentionSweeper) Start(ctx context.Context) {
	s.scheduler.AddTask("completed_retention", s.config.CompletedInterval, s.sweepCompleted)
	s.scheduler.AddTask("dedup_retention", s.config.DedupInterval, s.sweepDedup)
	s.scheduler.Start(ctx)
}

// Stop stops the sweeper
func (s *RetentionSweeper) Stop() {
	s.scheduler.Stop()
}

// sweepCompleted archives then purges completed entries past the window
func (s *RetentionSweeper) sweepCompleted(ctx context.Context) error {
	cutoff := time.Now().Add(-s.config.CompletedWindow)

	if s.archiver != nil {
		entries, err := s.repo.ListCompletedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		if err := s.archiver.Archive(ctx, entries); err != nil {
			// Archive failure delays the purge rather than losing rows
			return err
		}
	}

	purged, err := s.repo.PurgeCompletedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		s.logger.Info("purged %d completed entries older than %s", purged, s.config.CompletedWindow)
	}
	return nil
}

// sweepDedup purges dedup records past the window
func (s *RetentionSweeper) sweepDedup(ctx context.Context) error {
	cutoff := time.Now().Add(-s.config.DedupWindow)

	purged, err := s.repo.PurgeDedupBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		s.logger.Info("purged %d dedup records older than %s", purged, s.config.DedupWindow)
	}
	return nil
}
