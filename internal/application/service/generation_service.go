package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/application/workflow"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
	domainwf "github.com/garyjia/legal-docgen/internal/domain/workflow"
	"github.com/garyjia/legal-docgen/pkg/utils"
)

// GenerateRequest asks for one document built from a reference entity
type GenerateRequest struct {
	DocumentType  entity.DocumentType  `json:"document_type"`
	ReferenceID   string               `json:"reference_id"`
	ReferenceType entity.ReferenceType `json:"reference_type"`
	EmailTo       string               `json:"email_to,omitempty"`
	SendEmail     bool                 `json:"send_email"`
	RequestedBy   string               `json:"requested_by,omitempty"`
}

// OutputFile is a stored generation output
type OutputFile struct {
	FileName string
	Content  []byte
}

// GenerationConfig holds pipeline settings
type GenerationConfig struct {
	// Location decides the year in output keys of unnumbered documents
	Location *time.Location
}

// GenerationService runs the document generation pipeline
type GenerationService interface {
	Generate(ctx context.Context, req GenerateRequest) (*entity.Generation, error)
	CreateCorrective(ctx context.Context, originalID int64, req GenerateRequest) (*entity.Generation, error)
	Retry(ctx context.Context, failedID int64) (*entity.Generation, error)

	// Process claims a PENDING generation and carries it to a resting state
	Process(ctx context.Context, id int64) error
	// FailStale fails GENERATING records untouched for longer than staleAfter
	FailStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error)

	Get(ctx context.Context, id int64) (*entity.Generation, error)
	FindByLegalNumber(ctx context.Context, legalNumber string) (*entity.Generation, error)
	List(ctx context.Context, filter entity.GenerationFilter) ([]*entity.Generation, error)
	OpenOutput(ctx context.Context, id int64) (*OutputFile, error)
	Archive(ctx context.Context, id int64) (*entity.Generation, error)
}

type generationServiceImpl struct {
	templateRepo   port.TemplateRepository
	generationRepo port.GenerationRepository
	numbering      NumberingService
	resolver       ResolverService
	renderer       port.Renderer
	storage        port.FileStorage
	publisher      port.EventPublisher
	clock          port.Clock
	cfg            GenerationConfig
	logger         Logger
}

// NewGenerationService creates a new GenerationService
func NewGenerationService(
	templateRepo port.TemplateRepository,
	generationRepo port.GenerationRepository,
	numbering NumberingService,
	resolver ResolverService,
	renderer port.Renderer,
	storage port.FileStorage,
	publisher port.EventPublisher,
	clock port.Clock,
	cfg GenerationConfig,
	logger Logger,
) GenerationService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &generationServiceImpl{
		templateRepo:   templateRepo,
		generationRepo: generationRepo,
		numbering:      numbering,
		resolver:       resolver,
		renderer:       renderer,
		storage:        storage,
		publisher:      publisher,
		clock:          clock,
		cfg:            cfg,
		logger:         logger,
	}
}

func validateGenerateRequest(req GenerateRequest) error {
	if !req.DocumentType.IsValid() {
		return entity.ErrInvalidDocumentType
	}
	if !req.ReferenceType.IsValid() {
		return fmt.Errorf("%w: unknown reference type %q", entity.ErrInvalidRequest, req.ReferenceType)
	}
	if strings.TrimSpace(req.ReferenceID) == "" {
		return fmt.Errorf("%w: reference id is required", entity.ErrInvalidRequest)
	}
	if req.SendEmail || req.EmailTo != "" {
		if err := utils.ValidateEmail(req.EmailTo); err != nil {
			return fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err)
		}
	}
	return nil
}

func (s *generationServiceImpl) Generate(ctx context.Context, req GenerateRequest) (*entity.Generation, error) {
	if err := validateGenerateRequest(req); err != nil {
		return nil, err
	}
	return s.enqueue(ctx, req, nil)
}

func (s *generationServiceImpl) CreateCorrective(ctx context.Context, originalID int64, req GenerateRequest) (*entity.Generation, error) {
	original, err := s.generationRepo.GetByID(ctx, originalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	if original == nil {
		return nil, fmt.Errorf("%w: generation %d does not exist", entity.ErrCorrectionTargetInvalid, originalID)
	}
	if !original.Locked {
		return nil, fmt.Errorf("%w: generation %d is not locked", entity.ErrCorrectionTargetInvalid, originalID)
	}

	if req.DocumentType == "" {
		req.DocumentType = original.DocumentType
	}
	if req.ReferenceID == "" {
		req.ReferenceID = original.ReferenceID
		req.ReferenceType = original.ReferenceType
	}
	if !original.DocumentType.CanBeCorrectedBy(req.DocumentType) {
		return nil, fmt.Errorf("%w: %s cannot correct %s", entity.ErrCorrectionTargetInvalid, req.DocumentType, original.DocumentType)
	}
	if err := validateGenerateRequest(req); err != nil {
		return nil, err
	}

	s.logger.Info("Creating corrective generation",
		"original_id", originalID,
		"original_number", original.LegalNumber,
		"document_type", req.DocumentType,
	)
	return s.enqueue(ctx, req, &original.ID)
}

func (s *generationServiceImpl) Retry(ctx context.Context, failedID int64) (*entity.Generation, error) {
	failed, err := s.generationRepo.GetByID(ctx, failedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	if failed == nil {
		return nil, entity.ErrGenerationNotFound
	}
	if failed.Status != entity.GenerationStatusFailed {
		return nil, fmt.Errorf("%w: only failed generations can be retried, %d is %s", entity.ErrInvalidRequest, failedID, failed.Status)
	}

	s.logger.Info("Retrying failed generation", "generation_id", failedID)
	return s.enqueue(ctx, GenerateRequest{
		DocumentType:  failed.DocumentType,
		ReferenceID:   failed.ReferenceID,
		ReferenceType: failed.ReferenceType,
		EmailTo:       failed.EmailTo,
		SendEmail:     failed.SendEmail,
		RequestedBy:   failed.RequestedBy,
	}, failed.CorrectsID)
}

// enqueue persists a PENDING generation bound to the active template and announces it
func (s *generationServiceImpl) enqueue(ctx context.Context, req GenerateRequest, correctsID *int64) (*entity.Generation, error) {
	tpl, err := s.templateRepo.GetActive(ctx, req.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("failed to get active template: %w", err)
	}
	if tpl == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrTemplateNotActive, req.DocumentType)
	}

	now := s.clock.Now()
	gen := &entity.Generation{
		TemplateID:    tpl.ID,
		TemplateName:  tpl.Name,
		DocumentType:  req.DocumentType,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
		RequestedBy:   req.RequestedBy,
		Status:        entity.GenerationStatusPending,
		EmailTo:       req.EmailTo,
		SendEmail:     req.SendEmail,
		CorrectsID:    correctsID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.SendEmail {
		gen.EmailStatus = entity.EmailStatusPending
	}

	if err := s.generationRepo.Create(ctx, gen); err != nil {
		s.logger.Error("Failed to create generation", "error", err, "document_type", req.DocumentType)
		return nil, fmt.Errorf("failed to create generation: %w", err)
	}

	s.logger.Info("Generation requested",
		"generation_id", gen.ID,
		"document_type", gen.DocumentType,
		"reference_id", gen.ReferenceID,
		"template_id", tpl.ID,
	)
	s.publish(ctx, event.TypeGenerationRequested, gen, nil)

	return gen, nil
}

func (s *generationServiceImpl) Process(ctx context.Context, id int64) error {
	gen, err := s.generationRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get generation: %w", err)
	}
	if gen == nil {
		return entity.ErrGenerationNotFound
	}
	if gen.Status != entity.GenerationStatusPending {
		return nil
	}

	startedAt := s.clock.Now()
	claimed, err := s.generationRepo.Claim(ctx, id, startedAt)
	if err != nil {
		return fmt.Errorf("failed to claim generation: %w", err)
	}
	if !claimed {
		s.logger.Info("Generation already claimed", "generation_id", id)
		return nil
	}
	gen.Status = entity.GenerationStatusGenerating
	gen.UpdatedAt = startedAt

	if err := s.run(ctx, gen, startedAt); err != nil {
		s.fail(ctx, gen, startedAt, err)
		return err
	}
	return nil
}

func (s *generationServiceImpl) run(ctx context.Context, gen *entity.Generation, startedAt time.Time) error {
	tpl, err := s.templateRepo.GetByID(ctx, gen.TemplateID)
	if err != nil {
		return fmt.Errorf("failed to get template: %w", err)
	}
	if tpl == nil {
		return fmt.Errorf("%w: %d", entity.ErrTemplateNotFound, gen.TemplateID)
	}

	source, err := s.storage.Read(ctx, tpl.FileKey)
	if err != nil {
		return fmt.Errorf("failed to read template file: %w", err)
	}

	values, err := s.resolver.Resolve(ctx, ResolveRequest{
		DocumentType:  gen.DocumentType,
		ReferenceID:   gen.ReferenceID,
		ReferenceType: gen.ReferenceType,
		Tags:          tpl.Tags,
	})
	if err != nil {
		return err
	}

	job := &renderJob{gen: gen, tpl: tpl, source: source, values: values, startedAt: startedAt}
	if gen.DocumentType.IsRegulated() {
		return s.runRegulated(ctx, job)
	}
	return s.runUnregulated(ctx, job)
}

func (s *generationServiceImpl) runUnregulated(ctx context.Context, job *renderJob) error {
	gen := job.gen
	year := s.clock.Now().In(s.cfg.Location).Year()

	out, err := s.render(ctx, job)
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("%s-%d.%s", gen.DocumentType, gen.ID, out.Ext)
	key := outputKey(gen.DocumentType, year, fileName)
	if err := s.storage.Save(ctx, key, out.Content); err != nil {
		return fmt.Errorf("failed to store output: %w", err)
	}

	now := s.clock.Now()
	completed, err := gen.Complete(entity.GenerationOutput{
		Key:      key,
		FileName: fileName,
		Size:     int64(len(out.Content)),
		Pages:    out.Pages,
	}, job.startedAt, now)
	if err == nil {
		_, err = workflow.Transition(ctx, gen, domainwf.TriggerComplete)
	}
	if err == nil {
		err = s.generationRepo.Complete(ctx, &completed)
	}
	if err != nil {
		s.discard(ctx, key)
		return fmt.Errorf("failed to complete generation: %w", err)
	}

	*gen = completed
	s.logger.Info("Generation completed", "generation_id", gen.ID, "output_key", key, "duration_ms", gen.DurationMs)
	s.publish(ctx, event.TypeGenerationCompleted, gen, nil)
	return nil
}

// runRegulated renders against the next legal number outside any transaction, then
// commits the counter advance and the seal together. A failed or lost attempt
// leaves the counter untouched and removes the stored object.
func (s *generationServiceImpl) runRegulated(ctx context.Context, job *renderJob) error {
	gen := job.gen

	if gen.CorrectsID != nil {
		original, err := s.generationRepo.GetByID(ctx, *gen.CorrectsID)
		if err != nil {
			return fmt.Errorf("failed to get corrected generation: %w", err)
		}
		if original == nil || !original.Locked {
			return fmt.Errorf("%w: generation %d", entity.ErrCorrectionTargetInvalid, *gen.CorrectsID)
		}
		job.corrects = original.LegalNumber
	}

	var locked entity.Generation
	var storedKey string
	discardStored := func() {
		if storedKey != "" {
			s.discard(ctx, storedKey)
			storedKey = ""
		}
	}

	err := s.numbering.Reserve(ctx, gen.DocumentType, func(ctx context.Context, r Reservation) (CommitFunc, error) {
		discardStored()

		job.number = r.Number
		job.issuedAt = r.IssuedAt
		out, err := s.render(ctx, job)
		if err != nil {
			return nil, err
		}

		fileName := r.Number + "." + out.Ext
		key := outputKey(gen.DocumentType, r.Year, fileName)
		if err := s.storage.Save(ctx, key, out.Content); err != nil {
			return nil, fmt.Errorf("failed to store output: %w", err)
		}
		storedKey = key

		output := entity.GenerationOutput{
			Key:      key,
			FileName: fileName,
			Size:     int64(len(out.Content)),
			Pages:    out.Pages,
		}
		hash := fingerprint(out.Content)

		return func(txCtx context.Context) error {
			doneAt := s.clock.Now()
			completed, err := gen.Complete(output, job.startedAt, doneAt)
			if err != nil {
				return err
			}
			sealed, err := completed.Lock(r.Number, hash, doneAt)
			if err != nil {
				return err
			}
			if _, err := workflow.Transition(txCtx, gen, domainwf.TriggerComplete, domainwf.TriggerLock); err != nil {
				return err
			}
			if err := txCtx.Err(); err != nil {
				return err
			}
			if err := s.generationRepo.Finalize(txCtx, &sealed); err != nil {
				return fmt.Errorf("failed to finalize generation: %w", err)
			}

			locked = sealed
			return nil
		}, nil
	})
	if err != nil {
		discardStored()
		return err
	}

	*gen = locked
	s.logger.Info("Generation locked",
		"generation_id", gen.ID,
		"legal_number", gen.LegalNumber,
		"document_hash", gen.DocumentHash,
		"duration_ms", gen.DurationMs,
	)
	s.publish(ctx, event.TypeGenerationCompleted, gen, nil)
	s.publish(ctx, event.TypeGenerationLocked, gen, map[string]interface{}{"document_hash": gen.DocumentHash})
	return nil
}

func (s *generationServiceImpl) fail(ctx context.Context, gen *entity.Generation, startedAt time.Time, cause error) {
	writeCtx := context.WithoutCancel(ctx)

	reason := cause.Error()
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		reason = "cancelled: " + reason
	}

	failed, err := gen.Fail(reason, startedAt, s.clock.Now())
	if err == nil {
		_, err = workflow.Transition(writeCtx, gen, domainwf.TriggerFail)
	}
	if err == nil {
		err = s.generationRepo.MarkFailed(writeCtx, &failed)
	}
	if err != nil {
		s.logger.Error("Failed to record generation failure", "generation_id", gen.ID, "cause", reason, "error", err)
		return
	}

	*gen = failed
	s.logger.Error("Generation failed", "generation_id", gen.ID, "error", reason)
	s.publish(writeCtx, event.TypeGenerationFailed, gen, map[string]interface{}{"error": reason})
}

func (s *generationServiceImpl) FailStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	cutoff := s.clock.Now().Add(-staleAfter)
	stale, err := s.generationRepo.ListStale(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale generations: %w", err)
	}

	count := 0
	for _, gen := range stale {
		failed, err := gen.Fail("generation timed out", gen.UpdatedAt, s.clock.Now())
		if err != nil {
			continue
		}
		if err := s.generationRepo.MarkFailed(ctx, &failed); err != nil {
			s.logger.Error("Failed to fail stale generation", "generation_id", gen.ID, "error", err)
			continue
		}
		s.publish(ctx, event.TypeGenerationFailed, &failed, map[string]interface{}{"error": failed.ErrorMessage})
		count++
	}
	return count, nil
}

func (s *generationServiceImpl) Get(ctx context.Context, id int64) (*entity.Generation, error) {
	gen, err := s.generationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	if gen == nil {
		return nil, entity.ErrGenerationNotFound
	}
	return gen, nil
}

func (s *generationServiceImpl) FindByLegalNumber(ctx context.Context, legalNumber string) (*entity.Generation, error) {
	gen, err := s.generationRepo.GetByLegalNumber(ctx, strings.TrimSpace(legalNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to find generation: %w", err)
	}
	if gen == nil {
		return nil, entity.ErrGenerationNotFound
	}
	return gen, nil
}

func (s *generationServiceImpl) List(ctx context.Context, filter entity.GenerationFilter) ([]*entity.Generation, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	return s.generationRepo.List(ctx, filter)
}

func (s *generationServiceImpl) OpenOutput(ctx context.Context, id int64) (*OutputFile, error) {
	gen, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if gen.OutputKey == "" {
		return nil, fmt.Errorf("%w: generation %d has no output", entity.ErrInvalidRequest, id)
	}

	content, err := s.storage.Read(ctx, gen.OutputKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	return &OutputFile{FileName: gen.OutputFileName, Content: content}, nil
}

func (s *generationServiceImpl) Archive(ctx context.Context, id int64) (*entity.Generation, error) {
	gen, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	archived, err := gen.Archive(s.clock.Now())
	if err == nil {
		_, err = workflow.Transition(ctx, gen, domainwf.TriggerArchive)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err)
	}
	if err := s.generationRepo.Archive(ctx, id, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("failed to archive generation: %w", err)
	}

	s.logger.Info("Generation archived", "generation_id", id, "legal_number", gen.LegalNumber)
	return &archived, nil
}

func (s *generationServiceImpl) publish(ctx context.Context, typ event.Type, gen *entity.Generation, extra map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	payload := map[string]interface{}{
		"document_type": gen.DocumentType.String(),
		"status":        gen.Status,
		"send_email":    gen.SendEmail,
	}
	if gen.LegalNumber != "" {
		payload["legal_number"] = gen.LegalNumber
	}
	for k, v := range extra {
		payload[k] = v
	}
	s.publisher.DispatchAsync(ctx, event.NewEvent(typ, gen.ID, payload))
}

func (s *generationServiceImpl) discard(ctx context.Context, key string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Error("Failed to delete orphaned output", "key", key, "error", err)
	}
}

func outputKey(docType entity.DocumentType, year int, fileName string) string {
	return fmt.Sprintf("generations/%s/%d/%s", docType, year, fileName)
}
