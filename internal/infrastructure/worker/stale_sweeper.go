package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StaleFailer fails GENERATING records untouched for longer than staleAfter
type StaleFailer interface {
	FailStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

// StaleSweeperConfig holds configuration for the stale generation sweeper
type StaleSweeperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// DefaultStaleSweeperConfig returns default configuration
func DefaultStaleSweeperConfig() StaleSweeperConfig {
	return StaleSweeperConfig{
		Interval:   time.Minute,
		StaleAfter: 10 * time.Minute,
		BatchSize:  100,
	}
}

// StaleGenerationSweeper fails generations stuck in GENERATING, e.g. after a crash mid-render
type StaleGenerationSweeper struct {
	config StaleSweeperConfig
	failer StaleFailer
	logger *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
}

// NewStaleGenerationSweeper creates a new sweeper
func NewStaleGenerationSweeper(config StaleSweeperConfig, failer StaleFailer, logger *zap.Logger) *StaleGenerationSweeper {
	defaults := DefaultStaleSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaults.StaleAfter
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &StaleGenerationSweeper{
		config: config,
		failer: failer,
		logger: logger,
	}
}

// Start begins the sweep loop
func (s *StaleGenerationSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("stale sweeper already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("StaleGenerationSweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("stale_after", s.config.StaleAfter))

	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for it to exit
func (s *StaleGenerationSweeper) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Name returns the worker name for identification
func (s *StaleGenerationSweeper) Name() string {
	return "StaleGenerationSweeper"
}

func (s *StaleGenerationSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one sweep and returns the number of generations failed
func (s *StaleGenerationSweeper) SweepOnce(ctx context.Context) int {
	n, err := s.failer.FailStale(ctx, s.config.StaleAfter, s.config.BatchSize)
	if err != nil {
		s.logger.Error("Failed to sweep stale generations", zap.Error(err))
	}
	if n > 0 {
		s.logger.Warn("Stale generations failed",
			zap.Int("count", n),
			zap.Duration("stale_after", s.config.StaleAfter))
	}
	return n
}
