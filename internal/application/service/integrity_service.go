package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
	"github.com/garyjia/legal-docgen/internal/domain/legal"
)

// Verification outcomes that are not a match
const (
	ReasonNotLocked     = "not locked"
	ReasonOutputMissing = "output missing"
	ReasonHashMismatch  = "hash mismatch"
)

// VerifyResult is the outcome of re-hashing a locked document.
// A mismatch is a result, never an error.
type VerifyResult struct {
	GenerationID int64     `json:"generation_id"`
	LegalNumber  string    `json:"legal_number,omitempty"`
	Verified     bool      `json:"verified"`
	Reason       string    `json:"reason,omitempty"`
	StoredHash   string    `json:"stored_hash,omitempty"`
	ComputedHash string    `json:"computed_hash,omitempty"`
	VerifiedAt   time.Time `json:"verified_at"`
}

// IntegrityService verifies stored outputs against their locked fingerprints
type IntegrityService interface {
	Verify(ctx context.Context, id int64) (*VerifyResult, error)
	// VerifyAll checks every locked generation and returns the failures and the number checked
	VerifyAll(ctx context.Context, batchSize int) ([]*VerifyResult, int, error)
}

type integrityServiceImpl struct {
	generationRepo port.GenerationRepository
	storage        port.FileStorage
	publisher      port.EventPublisher
	clock          port.Clock
	logger         Logger
}

// NewIntegrityService creates a new IntegrityService
func NewIntegrityService(
	generationRepo port.GenerationRepository,
	storage port.FileStorage,
	publisher port.EventPublisher,
	clock port.Clock,
	logger Logger,
) IntegrityService {
	return &integrityServiceImpl{
		generationRepo: generationRepo,
		storage:        storage,
		publisher:      publisher,
		clock:          clock,
		logger:         logger,
	}
}

func (s *integrityServiceImpl) Verify(ctx context.Context, id int64) (*VerifyResult, error) {
	gen, err := s.generationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	if gen == nil {
		return nil, entity.ErrGenerationNotFound
	}
	return s.verify(ctx, gen)
}

func (s *integrityServiceImpl) verify(ctx context.Context, gen *entity.Generation) (*VerifyResult, error) {
	result := &VerifyResult{
		GenerationID: gen.ID,
		LegalNumber:  gen.LegalNumber,
		VerifiedAt:   s.clock.Now(),
	}

	if !gen.Locked {
		result.Reason = ReasonNotLocked
		return result, nil
	}
	result.StoredHash = gen.DocumentHash

	exists, err := s.storage.Exists(ctx, gen.OutputKey)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output: %w", err)
	}
	if !exists {
		result.Reason = ReasonOutputMissing
		s.report(ctx, gen, result)
		return result, nil
	}

	content, err := s.storage.Read(ctx, gen.OutputKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	result.ComputedHash = legal.Fingerprint(content)
	if !legal.SameFingerprint(result.StoredHash, result.ComputedHash) {
		result.Reason = ReasonHashMismatch
		s.report(ctx, gen, result)
		return result, nil
	}

	result.Verified = true
	return result, nil
}

func (s *integrityServiceImpl) report(ctx context.Context, gen *entity.Generation, result *VerifyResult) {
	s.logger.Error("Integrity check failed",
		"generation_id", gen.ID,
		"legal_number", gen.LegalNumber,
		"reason", result.Reason,
		"stored_hash", result.StoredHash,
		"computed_hash", result.ComputedHash,
	)
	if s.publisher != nil {
		s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypeIntegrityMismatch, gen.ID, map[string]interface{}{
			"legal_number":  gen.LegalNumber,
			"reason":        result.Reason,
			"stored_hash":   result.StoredHash,
			"computed_hash": result.ComputedHash,
		}))
	}
}

func (s *integrityServiceImpl) VerifyAll(ctx context.Context, batchSize int) ([]*VerifyResult, int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var failures []*VerifyResult
	checked := 0
	for offset := 0; ; offset += batchSize {
		batch, err := s.generationRepo.ListLocked(ctx, batchSize, offset)
		if err != nil {
			return failures, checked, fmt.Errorf("failed to list locked generations: %w", err)
		}

		for _, gen := range batch {
			result, err := s.verify(ctx, gen)
			if err != nil {
				return failures, checked, err
			}
			checked++
			if !result.Verified {
				failures = append(failures, result)
			}
		}

		if len(batch) < batchSize {
			break
		}
	}

	s.logger.Info("Integrity sweep finished", "checked", checked, "failures", len(failures))
	return failures, checked, nil
}
