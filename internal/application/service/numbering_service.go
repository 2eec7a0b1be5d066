package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/legal"
)

// NumberingConfig tunes conflict retries
type NumberingConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	// Location decides the calendar year of legal numbers
	Location *time.Location
}

// DefaultNumberingConfig returns default retry settings
func DefaultNumberingConfig() NumberingConfig {
	return NumberingConfig{
		MaxAttempts: 5,
		Backoff:     20 * time.Millisecond,
		Location:    time.UTC,
	}
}

// Reservation is a candidate legal number. It becomes final only when the
// counter advance commits.
type Reservation struct {
	Number   string
	Year     int
	Sequence int64
	IssuedAt time.Time
}

// CommitFunc runs inside the short transaction that advances the counter
type CommitFunc func(txCtx context.Context) error

// PrepareFunc does the slow work for a reservation outside any transaction
// and returns the step to commit together with the counter advance.
type PrepareFunc func(ctx context.Context, r Reservation) (CommitFunc, error)

// NumberingService is the legal numbering authority
type NumberingService interface {
	// Next returns the number the next reservation of docType would take, without taking it
	Next(ctx context.Context, docType entity.DocumentType) (Reservation, error)

	// Reserve prepares the next number then commits it in one short transaction.
	// When prepare or commit fails the number stays free; conflicts are retried with a fresh number.
	Reserve(ctx context.Context, docType entity.DocumentType, prepare PrepareFunc) error

	// Current returns the last number allocated for (docType, year), 0 when none
	Current(ctx context.Context, docType entity.DocumentType, year int) (int64, error)
}

type numberingServiceImpl struct {
	counterRepo port.CounterRepository
	txManager   port.TransactionManager
	clock       port.Clock
	cfg         NumberingConfig
	logger      Logger

	mu    sync.Mutex
	locks map[entity.DocumentType]*sync.Mutex
}

// NewNumberingService creates a new NumberingService
func NewNumberingService(
	counterRepo port.CounterRepository,
	txManager port.TransactionManager,
	clock port.Clock,
	cfg NumberingConfig,
	logger Logger,
) NumberingService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &numberingServiceImpl{
		counterRepo: counterRepo,
		txManager:   txManager,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
		locks:       make(map[entity.DocumentType]*sync.Mutex),
	}
}

func (s *numberingServiceImpl) Next(ctx context.Context, docType entity.DocumentType) (Reservation, error) {
	if !docType.IsRegulated() {
		return Reservation{}, fmt.Errorf("%w: %s is not numbered", entity.ErrInvalidDocumentType, docType)
	}

	now := s.clock.Now()
	year := s.yearOf(now)

	current, err := s.counterRepo.Current(ctx, docType, year)
	if err != nil {
		return Reservation{}, err
	}

	seq := current + 1
	return Reservation{
		Number:   legal.FormatNumber(docType.Prefix(), year, seq),
		Year:     year,
		Sequence: seq,
		IssuedAt: now,
	}, nil
}

func (s *numberingServiceImpl) Reserve(ctx context.Context, docType entity.DocumentType, prepare PrepareFunc) error {
	if !docType.IsRegulated() {
		return fmt.Errorf("%w: %s is not numbered", entity.ErrInvalidDocumentType, docType)
	}

	lock := s.lockFor(docType)
	lock.Lock()
	defer lock.Unlock()

	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err = s.reserveOnce(ctx, docType, prepare)
		if !errors.Is(err, entity.ErrNumberingConflict) {
			return err
		}

		s.logger.Info("Numbering conflict, retrying",
			"document_type", docType,
			"attempt", attempt,
			"error", err,
		)
		if attempt == s.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.Backoff * time.Duration(attempt)):
		}
	}

	s.logger.Error("Numbering conflict not resolved", "document_type", docType, "error", err)
	return fmt.Errorf("failed to allocate %s number after %d attempts: %w", docType, s.cfg.MaxAttempts, err)
}

// reserveOnce reads the next number under the per-type lock, lets prepare render
// without holding a write transaction, then advances the counter only if no
// other writer moved it in between.
func (s *numberingServiceImpl) reserveOnce(ctx context.Context, docType entity.DocumentType, prepare PrepareFunc) error {
	r, err := s.Next(ctx, docType)
	if err != nil {
		return err
	}

	commit, err := prepare(ctx, r)
	if err != nil {
		return err
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if year := s.yearOf(s.clock.Now()); year != r.Year {
			return fmt.Errorf("%w: year changed from %d to %d", entity.ErrNumberingConflict, r.Year, year)
		}
		if _, err := s.counterRepo.Advance(txCtx, docType, r.Year, r.Sequence-1); err != nil {
			return err
		}
		if commit == nil {
			return nil
		}
		return commit(txCtx)
	})
}

func (s *numberingServiceImpl) Current(ctx context.Context, docType entity.DocumentType, year int) (int64, error) {
	if !docType.IsValid() {
		return 0, entity.ErrInvalidDocumentType
	}
	return s.counterRepo.Current(ctx, docType, year)
}

func (s *numberingServiceImpl) yearOf(t time.Time) int {
	return t.In(s.cfg.Location).Year()
}

func (s *numberingServiceImpl) lockFor(docType entity.DocumentType) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[docType]
	if !ok {
		l = &sync.Mutex{}
		s.locks[docType] = l
	}
	return l
}
