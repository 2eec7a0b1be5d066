package service

import (
	"context"
	"fmt"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/compliance"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
)

// ComplianceService audits templates and aggregates compliance statistics
type ComplianceService interface {
	Check(ctx context.Context, templateID int64, checkedBy string) (*entity.ComplianceReport, error)
	CheckAll(ctx context.Context, checkedBy string) ([]*entity.ComplianceReport, error)
	Latest(ctx context.Context, templateID int64) (*entity.ComplianceReport, error)
	Stats(ctx context.Context) (*entity.ComplianceStats, error)
}

type complianceServiceImpl struct {
	templateRepo   port.TemplateRepository
	generationRepo port.GenerationRepository
	reportRepo     port.ComplianceReportRepository
	rules          compliance.RuleSet
	jurisdiction   string
	publisher      port.EventPublisher
	clock          port.Clock
	logger         Logger
}

// NewComplianceService creates a new ComplianceService
func NewComplianceService(
	templateRepo port.TemplateRepository,
	generationRepo port.GenerationRepository,
	reportRepo port.ComplianceReportRepository,
	rules compliance.RuleSet,
	jurisdiction string,
	publisher port.EventPublisher,
	clock port.Clock,
	logger Logger,
) ComplianceService {
	return &complianceServiceImpl{
		templateRepo:   templateRepo,
		generationRepo: generationRepo,
		reportRepo:     reportRepo,
		rules:          rules,
		jurisdiction:   jurisdiction,
		publisher:      publisher,
		clock:          clock,
		logger:         logger,
	}
}

func (s *complianceServiceImpl) Check(ctx context.Context, templateID int64, checkedBy string) (*entity.ComplianceReport, error) {
	tpl, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if tpl == nil {
		return nil, entity.ErrTemplateNotFound
	}
	return s.check(ctx, tpl, checkedBy)
}

func (s *complianceServiceImpl) check(ctx context.Context, tpl *entity.Template, checkedBy string) (*entity.ComplianceReport, error) {
	report, err := compliance.Evaluate(s.rules, s.jurisdiction, tpl)
	if err != nil {
		return nil, err
	}
	report.CheckedBy = checkedBy
	report.CheckedAt = s.clock.Now()

	if err := s.reportRepo.Save(ctx, &report); err != nil {
		s.logger.Error("Failed to save compliance report", "template_id", tpl.ID, "error", err)
		return nil, fmt.Errorf("failed to save compliance report: %w", err)
	}

	s.logger.Info("Template compliance checked",
		"template_id", tpl.ID,
		"document_type", tpl.DocumentType,
		"score", report.Score,
		"compliant", report.Compliant,
		"missing_mentions", report.MissingMentions,
	)
	if s.publisher != nil {
		s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypeComplianceChecked, tpl.ID, map[string]interface{}{
			"score":     report.Score,
			"compliant": report.Compliant,
		}))
	}

	return &report, nil
}

func (s *complianceServiceImpl) CheckAll(ctx context.Context, checkedBy string) ([]*entity.ComplianceReport, error) {
	templates, err := s.templateRepo.List(ctx, entity.TemplateFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	reports := make([]*entity.ComplianceReport, 0, len(templates))
	for _, tpl := range templates {
		report, err := s.check(ctx, tpl, checkedBy)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *complianceServiceImpl) Latest(ctx context.Context, templateID int64) (*entity.ComplianceReport, error) {
	report, err := s.reportRepo.GetByTemplateID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get compliance report: %w", err)
	}
	if report == nil {
		return nil, entity.ErrReportNotFound
	}
	return report, nil
}

func (s *complianceServiceImpl) Stats(ctx context.Context) (*entity.ComplianceStats, error) {
	total, active, err := s.templateRepo.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count templates: %w", err)
	}

	gens, err := s.generationRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate generations: %w", err)
	}

	summary, err := s.reportRepo.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate compliance reports: %w", err)
	}

	return &entity.ComplianceStats{
		TotalTemplates:      total,
		ActiveTemplates:     active,
		TotalGenerations:    gens.Total,
		GenerationsByType:   gens.ByType,
		GenerationsByStatus: gens.ByStatus,
		LockedGenerations:   gens.Locked,
		CheckedTemplates:    summary.Checked,
		CompliantTemplates:  summary.Compliant,
		AverageScore:        summary.AverageScore,
		LastCheckAt:         summary.LastCheckAt,
	}, nil
}
