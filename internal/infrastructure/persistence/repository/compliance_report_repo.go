package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/infrastructure/persistence/sqlite"
)

// ComplianceReportRepository implements port.ComplianceReportRepository
type ComplianceReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewComplianceReportRepository creates a new compliance report repository
func NewComplianceReportRepository(db *sql.DB, logger *zap.Logger) port.ComplianceReportRepository {
	return &ComplianceReportRepository{
		db:     db,
		logger: logger,
	}
}

// Save replaces the stored report of the template
func (r *ComplianceReportRepository) Save(ctx context.Context, report *entity.ComplianceReport) error {
	missingTags, err := marshalList(report.MissingTags)
	if err != nil {
		return err
	}
	missingMentions, err := marshalList(report.MissingMentions)
	if err != nil {
		return err
	}
	warnings, err := marshalList(report.Warnings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO compliance_reports (
			template_id, document_type, jurisdiction, compliant, score,
			missing_tags, missing_mentions, warnings, checked_by, checked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (template_id) DO UPDATE SET
			document_type = excluded.document_type,
			jurisdiction = excluded.jurisdiction,
			compliant = excluded.compliant,
			score = excluded.score,
			missing_tags = excluded.missing_tags,
			missing_mentions = excluded.missing_mentions,
			warnings = excluded.warnings,
			checked_by = excluded.checked_by,
			checked_at = excluded.checked_at
	`

	_, err = sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		report.TemplateID,
		string(report.DocumentType),
		report.Jurisdiction,
		report.Compliant,
		report.Score,
		missingTags,
		missingMentions,
		warnings,
		report.CheckedBy,
		utc(report.CheckedAt),
	)
	if err != nil {
		r.logger.Error("Failed to save compliance report", zap.Int64("template_id", report.TemplateID), zap.Error(err))
		return fmt.Errorf("failed to save compliance report: %w", err)
	}
	return nil
}

// GetByTemplateID returns the latest report of a template, nil when never checked
func (r *ComplianceReportRepository) GetByTemplateID(ctx context.Context, templateID int64) (*entity.ComplianceReport, error) {
	query := `
		SELECT template_id, document_type, jurisdiction, compliant, score,
		       missing_tags, missing_mentions, warnings, checked_by, checked_at
		FROM compliance_reports
		WHERE template_id = ?
	`

	var report entity.ComplianceReport
	var docType, missingTags, missingMentions, warnings string

	err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, templateID).Scan(
		&report.TemplateID,
		&docType,
		&report.Jurisdiction,
		&report.Compliant,
		&report.Score,
		&missingTags,
		&missingMentions,
		&warnings,
		&report.CheckedBy,
		&report.CheckedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get compliance report", zap.Int64("template_id", templateID), zap.Error(err))
		return nil, fmt.Errorf("failed to get compliance report: %w", err)
	}

	report.DocumentType = entity.DocumentType(docType)
	if report.MissingTags, err = unmarshalList(missingTags); err != nil {
		return nil, err
	}
	if report.MissingMentions, err = unmarshalList(missingMentions); err != nil {
		return nil, err
	}
	if report.Warnings, err = unmarshalList(warnings); err != nil {
		return nil, err
	}
	return &report, nil
}

// Summary aggregates the reports of templates that are not deleted
func (r *ComplianceReportRepository) Summary(ctx context.Context) (*port.ComplianceSummary, error) {
	exec := sqlite.GetExecutor(ctx, r.db)

	query := `
		SELECT COUNT(*), COALESCE(SUM(c.compliant), 0), COALESCE(AVG(c.score), 0)
		FROM compliance_reports c
		JOIN templates t ON t.id = c.template_id
		WHERE t.deleted_at IS NULL
	`

	var summary port.ComplianceSummary
	if err := exec.QueryRowContext(ctx, query).Scan(&summary.Checked, &summary.Compliant, &summary.AverageScore); err != nil {
		r.logger.Error("Failed to summarize compliance reports", zap.Error(err))
		return nil, fmt.Errorf("failed to summarize compliance reports: %w", err)
	}

	// MAX() over a DATETIME column loses its declared type, so read the row instead
	var last time.Time
	err := exec.QueryRowContext(ctx, `
		SELECT c.checked_at
		FROM compliance_reports c
		JOIN templates t ON t.id = c.template_id
		WHERE t.deleted_at IS NULL
		ORDER BY c.checked_at DESC
		LIMIT 1
	`).Scan(&last)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("failed to get last compliance check: %w", err)
	default:
		summary.LastCheckAt = &last
	}

	return &summary, nil
}

func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func unmarshalList(data string) ([]string, error) {
	values := []string{}
	if data == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return values, nil
}

// Verify interface compliance
var _ port.ComplianceReportRepository = (*ComplianceReportRepository)(nil)
