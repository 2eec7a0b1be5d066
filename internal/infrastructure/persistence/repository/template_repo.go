package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/infrastructure/persistence/sqlite"
)

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

const templateColumns = `
	t.id, t.name, t.document_type, t.description, t.event_trigger,
	t.file_key, t.file_name, t.file_format, t.file_size, t.version,
	t.email_subject, t.email_body, t.static_text, t.created_by,
	t.created_at, t.updated_at, t.deleted_at,
	a.template_id IS NOT NULL
`

const templateFrom = `
	FROM templates t
	LEFT JOIN active_templates a ON a.template_id = t.id
`

// Create inserts the template row and its manifest atomically
func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.Template) error {
	query := `
		INSERT INTO templates (
			name, document_type, description, event_trigger,
			file_key, file_name, file_format, file_size, version,
			email_subject, email_body, static_text, created_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return sqlite.RunInTx(ctx, r.db, func(exec sqlite.Executor) error {
		result, err := exec.ExecContext(ctx, query,
			tpl.Name,
			string(tpl.DocumentType),
			tpl.Description,
			tpl.EventTrigger,
			tpl.FileKey,
			tpl.FileName,
			tpl.FileFormat,
			tpl.FileSize,
			tpl.Version,
			tpl.EmailSubject,
			tpl.EmailBody,
			tpl.StaticText,
			tpl.CreatedBy,
			utc(tpl.CreatedAt),
			utc(tpl.UpdatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create template", zap.String("name", tpl.Name), zap.Error(err))
			return fmt.Errorf("failed to create template: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		if err := r.insertTags(ctx, exec, id, tpl.Tags); err != nil {
			return err
		}

		tpl.ID = id
		return nil
	})
}

func (r *TemplateRepository) insertTags(ctx context.Context, exec sqlite.Executor, templateID int64, tags []entity.TagRef) error {
	query := `
		INSERT INTO template_tags (template_id, position, name, category, type, required, unresolved)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, tag := range tags {
		_, err := exec.ExecContext(ctx, query,
			templateID,
			i,
			tag.Name,
			tag.Category,
			tag.Type,
			tag.Required,
			tag.Unresolved,
		)
		if err != nil {
			return fmt.Errorf("failed to insert tag %s: %w", tag.Name, err)
		}
	}
	return nil
}

// GetByID retrieves a template, soft-deleted or not
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*entity.Template, error) {
	query := `SELECT ` + templateColumns + templateFrom + ` WHERE t.id = ?`

	exec := sqlite.GetExecutor(ctx, r.db)
	tpl, err := scanTemplate(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get template by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if err := r.loadTags(ctx, exec, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// List returns templates ordered by type, name and version
func (r *TemplateRepository) List(ctx context.Context, filter entity.TemplateFilter) ([]*entity.Template, error) {
	var where []string
	var args []interface{}

	if filter.DocumentType != "" {
		where = append(where, "t.document_type = ?")
		args = append(args, string(filter.DocumentType))
	}
	if !filter.IncludeDeleted {
		where = append(where, "t.deleted_at IS NULL")
	}

	query := `SELECT ` + templateColumns + templateFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.document_type, t.name, t.version"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	exec := sqlite.GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	var templates []*entity.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate templates: %w", err)
	}

	if err := r.loadTags(ctx, exec, templates...); err != nil {
		return nil, err
	}
	return templates, nil
}

// loadTags fills the manifests of templates with a single query
func (r *TemplateRepository) loadTags(ctx context.Context, exec sqlite.Executor, templates ...*entity.Template) error {
	if len(templates) == 0 {
		return nil
	}

	byID := make(map[int64]*entity.Template, len(templates))
	args := make([]interface{}, 0, len(templates))
	for _, tpl := range templates {
		tpl.Tags = []entity.TagRef{}
		byID[tpl.ID] = tpl
		args = append(args, tpl.ID)
	}

	query := fmt.Sprintf(`
		SELECT template_id, position, name, category, type, required, unresolved
		FROM template_tags
		WHERE template_id IN (%s)
		ORDER BY template_id, position
	`, placeholders(len(args)))

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load template tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var templateID int64
		var tag entity.TagRef
		if err := rows.Scan(&templateID, &tag.Position, &tag.Name, &tag.Category, &tag.Type, &tag.Required, &tag.Unresolved); err != nil {
			return fmt.Errorf("failed to scan template tag: %w", err)
		}
		if tpl, ok := byID[templateID]; ok {
			tpl.Tags = append(tpl.Tags, tag)
		}
	}
	return rows.Err()
}

// NextVersion returns the next version number for (name, docType)
func (r *TemplateRepository) NextVersion(ctx context.Context, name string, docType entity.DocumentType) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM templates WHERE name = ? AND document_type = ?`

	var version int
	if err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, name, string(docType)).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get next version: %w", err)
	}
	return version, nil
}

// ReplaceManifest swaps the tags and extracted text of a template atomically
func (r *TemplateRepository) ReplaceManifest(ctx context.Context, id int64, tags []entity.TagRef, staticText string) error {
	return sqlite.RunInTx(ctx, r.db, func(exec sqlite.Executor) error {
		result, err := exec.ExecContext(ctx,
			`UPDATE templates SET static_text = ?, updated_at = ? WHERE id = ?`,
			staticText, utc(time.Now()), id)
		if err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", entity.ErrTemplateNotFound, id)
		}

		if _, err := exec.ExecContext(ctx, `DELETE FROM template_tags WHERE template_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear template tags: %w", err)
		}
		return r.insertTags(ctx, exec, id, tags)
	})
}

// SoftDelete hides a template that generations still reference
func (r *TemplateRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE templates SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	if _, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, utc(at), utc(at), id); err != nil {
		r.logger.Error("Failed to soft-delete template", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to soft-delete template: %w", err)
	}
	return nil
}

// Delete removes a template, its manifest and its compliance report
func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	if _, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete template", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

// SetActive points docType at templateID. The template must be of that type and not deleted.
func (r *TemplateRepository) SetActive(ctx context.Context, docType entity.DocumentType, templateID int64) error {
	query := `
		INSERT INTO active_templates (document_type, template_id, activated_at)
		SELECT document_type, id, ? FROM templates
		WHERE id = ? AND document_type = ? AND deleted_at IS NULL
		ON CONFLICT (document_type)
		DO UPDATE SET template_id = excluded.template_id, activated_at = excluded.activated_at
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, utc(time.Now()), templateID, string(docType))
	if err != nil {
		r.logger.Error("Failed to set active template",
			zap.String("document_type", string(docType)),
			zap.Int64("template_id", templateID),
			zap.Error(err))
		return fmt.Errorf("failed to set active template: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d is not an available %s template", entity.ErrTemplateNotFound, templateID, docType)
	}
	return nil
}

// ClearActive removes the active pointer of docType when it targets templateID
func (r *TemplateRepository) ClearActive(ctx context.Context, docType entity.DocumentType, templateID int64) (bool, error) {
	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM active_templates WHERE document_type = ? AND template_id = ?`,
		string(docType), templateID)
	if err != nil {
		return false, fmt.Errorf("failed to clear active template: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// GetActive returns the active template of docType, nil when none
func (r *TemplateRepository) GetActive(ctx context.Context, docType entity.DocumentType) (*entity.Template, error) {
	query := `SELECT ` + templateColumns + `
		FROM active_templates a
		JOIN templates t ON t.id = a.template_id
		WHERE a.document_type = ?
	`

	exec := sqlite.GetExecutor(ctx, r.db)
	tpl, err := scanTemplate(exec.QueryRowContext(ctx, query, string(docType)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active template", zap.String("document_type", string(docType)), zap.Error(err))
		return nil, fmt.Errorf("failed to get active template: %w", err)
	}

	if err := r.loadTags(ctx, exec, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// Counts returns the number of live templates and of active pointers
func (r *TemplateRepository) Counts(ctx context.Context) (int, int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM templates WHERE deleted_at IS NULL),
			(SELECT COUNT(*) FROM active_templates)
	`

	var total, active int
	if err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("failed to count templates: %w", err)
	}
	return total, active, nil
}

func scanTemplate(row rowScanner) (*entity.Template, error) {
	var tpl entity.Template
	var docType string
	var deletedAt sql.NullTime

	err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&docType,
		&tpl.Description,
		&tpl.EventTrigger,
		&tpl.FileKey,
		&tpl.FileName,
		&tpl.FileFormat,
		&tpl.FileSize,
		&tpl.Version,
		&tpl.EmailSubject,
		&tpl.EmailBody,
		&tpl.StaticText,
		&tpl.CreatedBy,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
		&deletedAt,
		&tpl.Active,
	)
	if err != nil {
		return nil, err
	}

	tpl.DocumentType = entity.DocumentType(docType)
	tpl.DeletedAt = timePtr(deletedAt)
	return &tpl, nil
}

// Verify interface compliance
var _ port.TemplateRepository = (*TemplateRepository)(nil)
