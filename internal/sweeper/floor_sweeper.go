package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/openfloor/market-indexer/internal/adapter"
	"github.com/openfloor/market-indexer/internal/aggregates"
	"github.com/openfloor/market-indexer/internal/logger"
	"github.com/openfloor/market-indexer/internal/store"
)

const (
	SWEEP_CYCLE_INTERVAL = 5 * time.Minute // Time to sleep between sweep cycles
)

// FloorSweeperConfig holds configuration for the collection floor sweeper
type FloorSweeperConfig struct {
	BatchSize      int // Collections to recalculate per cycle
	WorkerPoolSize int // Concurrent recalculations
}

// floorSweeper recomputes the floor cache of collections whose listings have
// changed since the cache was last written
type floorSweeper struct {
	config       *FloorSweeperConfig
	store        store.Store
	recalculator *aggregates.Recalculator
	pool         pond.Pool
	clock        adapter.Clock
	running      atomic.Bool
	stopChan     chan struct{}
	stoppedCh    chan struct{}
}

// NewFloorSweeper creates a new collection floor sweeper
func NewFloorSweeper(
	config *FloorSweeperConfig,
	st store.Store,
	recalculator *aggregates.Recalculator,
	clock adapter.Clock,
) Sweeper {
	return &floorSweeper{
		config:       config,
		store:        st,
		recalculator: recalculator,
		clock:        clock,
		stopChan:     make(chan struct{}),
		stoppedCh:    make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *floorSweeper) Name() string {
	return "collection-floor-sweeper"
}

// Start begins the sweeper's main loop
func (s *floorSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh) // Signal that we've stopped
	}()

	logger.InfoCtx(ctx, "Starting collection floor sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
	)

	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Collection floor sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Collection floor sweeper stop requested")
			s.cleanup()
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
		}
	}
}

// cleanup stops the worker pool and waits for tasks to complete
func (s *floorSweeper) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *floorSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping collection floor sweeper")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Collection floor sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Collection floor sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle runs a single sweep cycle
func (s *floorSweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()

	collections, err := s.fetchStaleCollectionsWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stale collections: %w", err)
	}

	if len(collections) == 0 {
		logger.DebugCtx(ctx, "No stale collections, waiting...")
		if !s.sleep(ctx, SWEEP_CYCLE_INTERVAL) {
			return ctx.Err() // Context canceled during sleep
		}
		return nil
	}

	logger.InfoCtx(ctx, "Found stale collections", zap.Int("count", len(collections)))

	var updatedCount, failedCount atomic.Int32

	for _, collectionID := range collections {
		s.pool.Submit(func() {
			if err := s.recalculator.RecalculateCollectionFloorSell(ctx, collectionID); err != nil {
				failedCount.Add(1)
				logger.ErrorCtx(ctx, err, zap.String("collection", collectionID))
				return
			}
			if err := s.recalculator.RevalidateCollectionTopBuy(ctx, collectionID); err != nil {
				failedCount.Add(1)
				logger.ErrorCtx(ctx, err, zap.String("collection", collectionID))
				return
			}
			updatedCount.Add(1)
		})
	}

	// Wait for all recalculations to complete
	s.pool.StopAndWait()

	// Recreate pool for next cycle
	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	duration := s.clock.Since(startTime)
	logger.InfoCtx(ctx, "Sweep cycle completed",
		zap.Duration("duration", duration),
		zap.Int("total", len(collections)),
		zap.Int32("recalculated", updatedCount.Load()),
		zap.Int32("failed", failedCount.Load()),
	)

	if !s.sleep(ctx, SWEEP_CYCLE_INTERVAL) {
		return ctx.Err() // Context canceled during sleep
	}

	return nil
}

// fetchStaleCollectionsWithRetry queries the stale collection set with
// exponential backoff, so a transient database hiccup does not abort the
// sweep loop
func (s *floorSweeper) fetchStaleCollectionsWithRetry(ctx context.Context) ([]string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 1 * time.Minute
	b.MaxElapsedTime = 10 * time.Minute
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5 // Add jitter to prevent thundering herd

	backoffWithContext := backoff.WithContext(b, ctx)

	var collections []string
	operation := func() error {
		var err error
		collections, err = s.store.GetStaleFloorCollections(ctx, s.config.BatchSize)
		return err
	}

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Stale collection query failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoffWithContext, notifyOnError); err != nil {
		return nil, fmt.Errorf("failed after %d attempts: %w", attemptCount, err)
	}

	return collections, nil
}

// sleep sleeps for the given duration but can be interrupted by context cancellation
// Returns true if sleep completed normally, false if interrupted by context
func (s *floorSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true // Sleep completed
	case <-ctx.Done():
		return false // Interrupted by context cancellation
	case <-s.stopChan:
		return false // Interrupted by stop signal
	}
}
