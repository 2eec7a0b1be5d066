package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

// Processor carries one PENDING generation to a resting state
type Processor interface {
	Process(ctx context.Context, id int64) error
}

// PendingLister lists PENDING generations, oldest first
type PendingLister interface {
	ListPending(ctx context.Context, limit int) ([]*entity.Generation, error)
}

// GenerationWorkerConfig holds configuration for the generation worker
type GenerationWorkerConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	ProcessTimeout time.Duration
}

// DefaultGenerationWorkerConfig returns default configuration
func DefaultGenerationWorkerConfig() GenerationWorkerConfig {
	return GenerationWorkerConfig{
		PollInterval:   5 * time.Second,
		BatchSize:      10,
		ProcessTimeout: 2 * time.Minute,
	}
}

// GenerationWorker picks up PENDING generations that async dispatch missed,
// e.g. after a restart.
type GenerationWorker struct {
	config    GenerationWorkerConfig
	pending   PendingLister
	processor Processor
	logger    *zap.Logger

	mu             sync.Mutex
	cancel         context.CancelFunc
	done           chan struct{}
	isRunning      bool
	processedCount int
	failedCount    int
}

// NewGenerationWorker creates a new generation worker
func NewGenerationWorker(
	config GenerationWorkerConfig,
	pending PendingLister,
	processor Processor,
	logger *zap.Logger,
) *GenerationWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultGenerationWorkerConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultGenerationWorkerConfig().BatchSize
	}
	return &GenerationWorker{
		config:    config,
		pending:   pending,
		processor: processor,
		logger:    logger,
	}
}

// Start begins the polling loop
func (w *GenerationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("generation worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("GenerationWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current batch to finish
func (w *GenerationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	processed, failed := w.Counts()
	w.logger.Info("GenerationWorker stopped",
		zap.Int("processed_count", processed),
		zap.Int("failed_count", failed))
	return nil
}

// Name returns the worker name for identification
func (w *GenerationWorker) Name() string {
	return "GenerationWorker"
}

// Counts returns how many generations were processed and how many failed
func (w *GenerationWorker) Counts() (processed, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processedCount, w.failedCount
}

func (w *GenerationWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("Failed to process pending generations", zap.Error(err))
			}
		}
	}
}

// RunOnce processes one batch of PENDING generations and returns how many were picked up
func (w *GenerationWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.pending.ListPending(ctx, w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending generations: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.Debug("Processing pending generations", zap.Int("count", len(pending)))

	for _, gen := range pending {
		if ctx.Err() != nil {
			break
		}

		if err := w.processOne(ctx, gen.ID); err != nil {
			w.logger.Warn("Failed to process generation",
				zap.Int64("generation_id", gen.ID),
				zap.String("document_type", string(gen.DocumentType)),
				zap.Error(err))
			w.mu.Lock()
			w.failedCount++
			w.mu.Unlock()
			continue
		}

		w.mu.Lock()
		w.processedCount++
		w.mu.Unlock()
	}
	return len(pending), nil
}

func (w *GenerationWorker) processOne(ctx context.Context, id int64) error {
	if w.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.ProcessTimeout)
		defer cancel()
	}
	return w.processor.Process(ctx, id)
}
