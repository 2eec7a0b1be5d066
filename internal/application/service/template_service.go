package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
	"github.com/garyjia/legal-docgen/pkg/utils"
)

// UploadRequest carries a new template file and its metadata
type UploadRequest struct {
	Name         string
	DocumentType entity.DocumentType
	FileName     string
	Content      []byte
	Description  string
	EventTrigger string
	EmailSubject string
	EmailBody    string
	CreatedBy    string
}

// TemplateConfig holds template limits
type TemplateConfig struct {
	MaxFileSize int64
}

// TemplateService manages template files, their manifests and activation
type TemplateService interface {
	Upload(ctx context.Context, req UploadRequest) (*entity.Template, error)
	Reparse(ctx context.Context, id int64) (*entity.Template, error)
	Activate(ctx context.Context, id int64) (*entity.Template, error)
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*entity.Template, error)
	List(ctx context.Context, filter entity.TemplateFilter) ([]*entity.Template, error)
	GetActive(ctx context.Context, docType entity.DocumentType) (*entity.Template, error)
}

type templateServiceImpl struct {
	templateRepo   port.TemplateRepository
	generationRepo port.GenerationRepository
	storage        port.FileStorage
	extractor      port.TextExtractor
	scanner        *tag.Scanner
	txManager      port.TransactionManager
	publisher      port.EventPublisher
	clock          port.Clock
	cfg            TemplateConfig
	logger         Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(
	templateRepo port.TemplateRepository,
	generationRepo port.GenerationRepository,
	storage port.FileStorage,
	extractor port.TextExtractor,
	scanner *tag.Scanner,
	txManager port.TransactionManager,
	publisher port.EventPublisher,
	clock port.Clock,
	cfg TemplateConfig,
	logger Logger,
) TemplateService {
	return &templateServiceImpl{
		templateRepo:   templateRepo,
		generationRepo: generationRepo,
		storage:        storage,
		extractor:      extractor,
		scanner:        scanner,
		txManager:      txManager,
		publisher:      publisher,
		clock:          clock,
		cfg:            cfg,
		logger:         logger,
	}
}

func (s *templateServiceImpl) Upload(ctx context.Context, req UploadRequest) (*entity.Template, error) {
	tpl, err := entity.NewTemplate(req.Name, req.DocumentType, req.FileName)
	if err != nil {
		return nil, err
	}
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: template file is empty", entity.ErrInvalidRequest)
	}
	if s.cfg.MaxFileSize > 0 && int64(len(req.Content)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: template file exceeds %d bytes", entity.ErrInvalidRequest, s.cfg.MaxFileSize)
	}

	text, err := s.extractor.Extract(ctx, tpl.FileName, req.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read template: %v", entity.ErrInvalidRequest, err)
	}

	now := s.clock.Now()
	tpl.Description = strings.TrimSpace(utils.SanitizeString(req.Description))
	tpl.EventTrigger = strings.TrimSpace(req.EventTrigger)
	tpl.EmailSubject = utils.SanitizeString(req.EmailSubject)
	tpl.EmailBody = req.EmailBody
	tpl.CreatedBy = utils.SanitizeString(req.CreatedBy)
	tpl.FileSize = int64(len(req.Content))
	tpl.FileKey = fmt.Sprintf("templates/%s/%s-%s", tpl.DocumentType, uuid.NewString(), utils.SanitizeFileName(tpl.FileName))
	tpl.StaticText = text
	tpl.Tags = s.scanner.Scan(text, tpl.DocumentType)
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := s.storage.Save(ctx, tpl.FileKey, req.Content); err != nil {
		return nil, fmt.Errorf("failed to store template file: %w", err)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		version, err := s.templateRepo.NextVersion(txCtx, tpl.Name, tpl.DocumentType)
		if err != nil {
			return err
		}
		tpl.Version = version
		return s.templateRepo.Create(txCtx, tpl)
	})
	if err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), tpl.FileKey); delErr != nil {
			s.logger.Error("Failed to delete orphaned template file", "key", tpl.FileKey, "error", delErr)
		}
		s.logger.Error("Failed to create template", "name", tpl.Name, "error", err)
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.logger.Info("Template uploaded",
		"template_id", tpl.ID,
		"name", tpl.Name,
		"document_type", tpl.DocumentType,
		"version", tpl.Version,
		"tags", len(tpl.Tags),
		"unresolved", len(tpl.UnresolvedTags()),
	)
	s.publish(ctx, event.TypeTemplateUploaded, tpl)

	return tpl, nil
}

// Reparse rebuilds the manifest from the stored file. The file itself is never touched.
func (s *templateServiceImpl) Reparse(ctx context.Context, id int64) (*entity.Template, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := s.storage.Read(ctx, tpl.FileKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	text, err := s.extractor.Extract(ctx, tpl.FileName, content)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read template: %v", entity.ErrInvalidRequest, err)
	}

	tags := s.scanner.Scan(text, tpl.DocumentType)
	if err := s.templateRepo.ReplaceManifest(ctx, id, tags, text); err != nil {
		return nil, fmt.Errorf("failed to replace manifest: %w", err)
	}

	tpl.Tags = tags
	tpl.StaticText = text
	s.logger.Info("Template reparsed", "template_id", id, "tags", len(tags))
	return tpl, nil
}

func (s *templateServiceImpl) Activate(ctx context.Context, id int64) (*entity.Template, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl.IsDeleted() {
		return nil, fmt.Errorf("%w: template %d is deleted", entity.ErrInvalidRequest, id)
	}

	if err := s.templateRepo.SetActive(ctx, tpl.DocumentType, id); err != nil {
		return nil, fmt.Errorf("failed to activate template: %w", err)
	}
	tpl.Active = true

	s.logger.Info("Template activated", "template_id", id, "document_type", tpl.DocumentType)
	s.publish(ctx, event.TypeTemplateActivated, tpl)
	return tpl, nil
}

func (s *templateServiceImpl) Deactivate(ctx context.Context, id int64) error {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	cleared, err := s.templateRepo.ClearActive(ctx, tpl.DocumentType, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate template: %w", err)
	}
	if !cleared {
		return fmt.Errorf("%w: template %d is not active", entity.ErrInvalidRequest, id)
	}

	s.logger.Info("Template deactivated", "template_id", id, "document_type", tpl.DocumentType)
	return nil
}

// Delete soft-deletes templates that generations still reference and removes the others entirely
func (s *templateServiceImpl) Delete(ctx context.Context, id int64) error {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if tpl.Active {
		return entity.ErrTemplateInUse
	}

	used, err := s.generationRepo.CountByTemplate(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count generations: %w", err)
	}

	if used > 0 {
		if tpl.IsDeleted() {
			return nil
		}
		if err := s.templateRepo.SoftDelete(ctx, id, s.clock.Now()); err != nil {
			return fmt.Errorf("failed to delete template: %w", err)
		}
		s.logger.Info("Template soft-deleted", "template_id", id, "generations", used)
		return nil
	}

	if err := s.templateRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if err := s.storage.Delete(ctx, tpl.FileKey); err != nil {
		s.logger.Error("Failed to delete template file", "key", tpl.FileKey, "error", err)
	}
	s.logger.Info("Template deleted", "template_id", id)
	return nil
}

func (s *templateServiceImpl) Get(ctx context.Context, id int64) (*entity.Template, error) {
	tpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if tpl == nil {
		return nil, entity.ErrTemplateNotFound
	}
	return tpl, nil
}

func (s *templateServiceImpl) List(ctx context.Context, filter entity.TemplateFilter) ([]*entity.Template, error) {
	if filter.DocumentType != "" && !filter.DocumentType.IsValid() {
		return nil, entity.ErrInvalidDocumentType
	}
	return s.templateRepo.List(ctx, filter)
}

func (s *templateServiceImpl) GetActive(ctx context.Context, docType entity.DocumentType) (*entity.Template, error) {
	if !docType.IsValid() {
		return nil, entity.ErrInvalidDocumentType
	}
	tpl, err := s.templateRepo.GetActive(ctx, docType)
	if err != nil {
		return nil, fmt.Errorf("failed to get active template: %w", err)
	}
	if tpl == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrTemplateNotActive, docType)
	}
	return tpl, nil
}

func (s *templateServiceImpl) publish(ctx context.Context, typ event.Type, tpl *entity.Template) {
	if s.publisher == nil {
		return
	}
	s.publisher.DispatchAsync(ctx, event.NewEvent(typ, tpl.ID, map[string]interface{}{
		"document_type": tpl.DocumentType.String(),
		"version":       tpl.Version,
	}))
}
