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

// GenerationRepository implements port.GenerationRepository.
// Rows whose locked flag is set are additionally guarded by triggers in the schema.
type GenerationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewGenerationRepository creates a new generation repository
func NewGenerationRepository(db *sql.DB, logger *zap.Logger) port.GenerationRepository {
	return &GenerationRepository{
		db:     db,
		logger: logger,
	}
}

const generationColumns = `
	id, template_id, template_name, document_type, reference_id, reference_type,
	requested_by, output_key, output_file_name, output_size, output_pages,
	status, error_message, duration_ms, email_to, send_email, email_status,
	email_sent_at, legal_number, document_hash, locked, locked_at, corrects_id,
	created_at, updated_at
`

// Create inserts a new generation. Legal number and hash start NULL.
func (r *GenerationRepository) Create(ctx context.Context, gen *entity.Generation) error {
	query := `
		INSERT INTO generations (
			template_id, template_name, document_type, reference_id, reference_type,
			requested_by, status, email_to, send_email, email_status, corrects_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		gen.TemplateID,
		gen.TemplateName,
		string(gen.DocumentType),
		gen.ReferenceID,
		string(gen.ReferenceType),
		gen.RequestedBy,
		gen.Status,
		gen.EmailTo,
		gen.SendEmail,
		gen.EmailStatus,
		nullInt64(gen.CorrectsID),
		utc(gen.CreatedAt),
		utc(gen.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create generation",
			zap.Int64("template_id", gen.TemplateID),
			zap.String("reference_id", gen.ReferenceID),
			zap.Error(err))
		return fmt.Errorf("failed to create generation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	gen.ID = id
	return nil
}

// GetByID retrieves a generation by its ID
func (r *GenerationRepository) GetByID(ctx context.Context, id int64) (*entity.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ?`

	gen, err := scanGeneration(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get generation by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	if err := r.applyDeliveries(ctx, []*entity.Generation{gen}); err != nil {
		return nil, err
	}
	return gen, nil
}

// GetByLegalNumber retrieves the generation carrying a legal number
func (r *GenerationRepository) GetByLegalNumber(ctx context.Context, legalNumber string) (*entity.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE legal_number = ?`

	gen, err := scanGeneration(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, legalNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get generation by legal number", zap.String("legal_number", legalNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	if err := r.applyDeliveries(ctx, []*entity.Generation{gen}); err != nil {
		return nil, err
	}
	return gen, nil
}

// List returns generations newest first
func (r *GenerationRepository) List(ctx context.Context, filter entity.GenerationFilter) ([]*entity.Generation, error) {
	var where []string
	var args []interface{}

	if filter.DocumentType != "" {
		where = append(where, "document_type = ?")
		args = append(args, string(filter.DocumentType))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + generationColumns + ` FROM generations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	return r.query(ctx, "list generations", query, args...)
}

// Claim moves a PENDING row to GENERATING. Only one concurrent caller can win.
func (r *GenerationRepository) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE generations
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND locked = 0
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		entity.GenerationStatusGenerating, utc(now), id, entity.GenerationStatusPending)
	if err != nil {
		r.logger.Error("Failed to claim generation", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to claim generation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListPending returns PENDING generations oldest first
func (r *GenerationRepository) ListPending(ctx context.Context, limit int) ([]*entity.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE status = ? ORDER BY id LIMIT ?`
	return r.query(ctx, "list pending generations", query, entity.GenerationStatusPending, limit)
}

// ListStale returns GENERATING rows whose claim is older than startedBefore
func (r *GenerationRepository) ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]*entity.Generation, error) {
	query := `
		SELECT ` + generationColumns + `
		FROM generations
		WHERE status = ? AND locked = 0 AND updated_at < ?
		ORDER BY id
		LIMIT ?
	`
	return r.query(ctx, "list stale generations", query, entity.GenerationStatusGenerating, utc(startedBefore), limit)
}

// ListLocked pages through locked generations in id order
func (r *GenerationRepository) ListLocked(ctx context.Context, limit, offset int) ([]*entity.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE locked = 1 ORDER BY id LIMIT ? OFFSET ?`
	return r.query(ctx, "list locked generations", query, limit, offset)
}

// Complete records the output of an unregulated generation
func (r *GenerationRepository) Complete(ctx context.Context, gen *entity.Generation) error {
	query := `
		UPDATE generations
		SET status = ?, output_key = ?, output_file_name = ?, output_size = ?, output_pages = ?,
		    error_message = '', duration_ms = ?, updated_at = ?
		WHERE id = ? AND status = ? AND locked = 0
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		gen.Status,
		gen.OutputKey,
		gen.OutputFileName,
		gen.OutputSize,
		gen.OutputPages,
		gen.DurationMs,
		utc(gen.UpdatedAt),
		gen.ID,
		entity.GenerationStatusGenerating,
	)
	if err != nil {
		r.logger.Error("Failed to complete generation", zap.Int64("id", gen.ID), zap.Error(err))
		return fmt.Errorf("failed to complete generation: %w", err)
	}
	return r.expectOne(ctx, result, gen.ID, "complete")
}

// Finalize seals a regulated generation. Number, hash, output and lock land in one statement.
func (r *GenerationRepository) Finalize(ctx context.Context, gen *entity.Generation) error {
	if !gen.Locked || gen.LegalNumber == "" || gen.DocumentHash == "" || gen.LockedAt == nil {
		return fmt.Errorf("generation %d is not sealed", gen.ID)
	}

	query := `
		UPDATE generations
		SET status = ?, output_key = ?, output_file_name = ?, output_size = ?, output_pages = ?,
		    error_message = '', duration_ms = ?, legal_number = ?, document_hash = ?,
		    locked = 1, locked_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND locked = 0
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		gen.Status,
		gen.OutputKey,
		gen.OutputFileName,
		gen.OutputSize,
		gen.OutputPages,
		gen.DurationMs,
		gen.LegalNumber,
		gen.DocumentHash,
		utc(*gen.LockedAt),
		utc(gen.UpdatedAt),
		gen.ID,
		entity.GenerationStatusGenerating,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s already assigned: %v", entity.ErrNumberingConflict, gen.LegalNumber, err)
		}
		if sqlite.IsBusy(err) {
			return fmt.Errorf("%w: %v", entity.ErrNumberingConflict, err)
		}
		r.logger.Error("Failed to finalize generation",
			zap.Int64("id", gen.ID),
			zap.String("legal_number", gen.LegalNumber),
			zap.Error(err))
		return fmt.Errorf("failed to finalize generation: %w", err)
	}
	return r.expectOne(ctx, result, gen.ID, "finalize")
}

// MarkFailed records a failure on a PENDING or GENERATING row
func (r *GenerationRepository) MarkFailed(ctx context.Context, gen *entity.Generation) error {
	query := `
		UPDATE generations
		SET status = ?, error_message = ?, duration_ms = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?) AND locked = 0
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		entity.GenerationStatusFailed,
		gen.ErrorMessage,
		gen.DurationMs,
		utc(gen.UpdatedAt),
		gen.ID,
		entity.GenerationStatusPending,
		entity.GenerationStatusGenerating,
	)
	if err != nil {
		r.logger.Error("Failed to mark generation failed", zap.Int64("id", gen.ID), zap.Error(err))
		return fmt.Errorf("failed to mark generation failed: %w", err)
	}
	return r.expectOne(ctx, result, gen.ID, "fail")
}

// UpdateDelivery records the email outcome of an unlocked generation
func (r *GenerationRepository) UpdateDelivery(ctx context.Context, gen *entity.Generation) error {
	query := `
		UPDATE generations
		SET status = ?, email_status = ?, email_sent_at = ?, updated_at = ?
		WHERE id = ? AND locked = 0
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		gen.Status,
		gen.EmailStatus,
		nullTime(gen.EmailSentAt),
		utc(gen.UpdatedAt),
		gen.ID,
	)
	if err != nil {
		if sqlite.IsTriggerAbort(err) {
			return fmt.Errorf("%w: %d", entity.ErrGenerationLocked, gen.ID)
		}
		r.logger.Error("Failed to update generation delivery", zap.Int64("id", gen.ID), zap.Error(err))
		return fmt.Errorf("failed to update delivery: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", entity.ErrGenerationLocked, gen.ID)
	}
	return nil
}

// Archive moves a generation to ARCHIVED. Locked rows keep their updated_at.
func (r *GenerationRepository) Archive(ctx context.Context, id int64, now time.Time) error {
	query := `
		UPDATE generations
		SET status = ?, updated_at = CASE WHEN locked = 1 THEN updated_at ELSE ? END
		WHERE id = ? AND status != ?
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		entity.GenerationStatusArchived, utc(now), id, entity.GenerationStatusArchived)
	if err != nil {
		r.logger.Error("Failed to archive generation", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to archive generation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", entity.ErrGenerationNotFound, id)
	}
	return nil
}

// CountByTemplate returns how many generations reference a template
func (r *GenerationRepository) CountByTemplate(ctx context.Context, templateID int64) (int, error) {
	var count int
	err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generations WHERE template_id = ?`, templateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return count, nil
}

// Stats aggregates generations by type and status
func (r *GenerationRepository) Stats(ctx context.Context) (*port.GenerationStats, error) {
	query := `
		SELECT document_type, status, locked, COUNT(*)
		FROM generations
		GROUP BY document_type, status, locked
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to compute generation stats", zap.Error(err))
		return nil, fmt.Errorf("failed to compute generation stats: %w", err)
	}
	defer rows.Close()

	stats := &port.GenerationStats{
		ByType:   make(map[string]int),
		ByStatus: make(map[string]int),
	}
	for rows.Next() {
		var docType, status string
		var locked bool
		var count int
		if err := rows.Scan(&docType, &status, &locked, &count); err != nil {
			return nil, fmt.Errorf("failed to scan generation stats: %w", err)
		}
		stats.Total += count
		stats.ByType[docType] += count
		stats.ByStatus[status] += count
		if locked {
			stats.Locked += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generation stats: %w", err)
	}
	return stats, nil
}

func (r *GenerationRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*entity.Generation, error) {
	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var gens []*entity.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gens = append(gens, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generations: %w", err)
	}
	rows.Close()

	if err := r.applyDeliveries(ctx, gens); err != nil {
		return nil, err
	}
	return gens, nil
}

// applyDeliveries fills the email status of locked rows from the delivery log.
// Their own email columns are frozen at sealing time.
func (r *GenerationRepository) applyDeliveries(ctx context.Context, gens []*entity.Generation) error {
	locked := make(map[int64]*entity.Generation)
	var ids []string
	var args []interface{}
	for _, gen := range gens {
		if gen.Locked {
			locked[gen.ID] = gen
			ids = append(ids, "?")
			args = append(args, gen.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	query := `
		SELECT generation_id, status, created_at
		FROM generation_deliveries
		WHERE generation_id IN (` + strings.Join(ids, ", ") + `)
		ORDER BY id
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to read delivery log", zap.Int("generations", len(ids)), zap.Error(err))
		return fmt.Errorf("failed to read delivery log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var status string
		var at time.Time
		if err := rows.Scan(&id, &status, &at); err != nil {
			return fmt.Errorf("failed to scan delivery: %w", err)
		}
		gen := locked[id]
		gen.EmailStatus = status
		if status == entity.EmailStatusSent {
			sentAt := at
			gen.EmailSentAt = &sentAt
		}
	}
	return rows.Err()
}

// expectOne turns a conditional update that matched nothing into a descriptive error
func (r *GenerationRepository) expectOne(ctx context.Context, result sql.Result, id int64, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %d", entity.ErrGenerationNotFound, id)
	}
	if current.Locked {
		return fmt.Errorf("%w: %d", entity.ErrGenerationLocked, id)
	}
	return fmt.Errorf("cannot %s generation %d in status %s", op, id, current.Status)
}

func scanGeneration(row rowScanner) (*entity.Generation, error) {
	var gen entity.Generation
	var docType, refType string
	var emailSentAt, lockedAt sql.NullTime
	var legalNumber, documentHash sql.NullString
	var correctsID sql.NullInt64

	err := row.Scan(
		&gen.ID,
		&gen.TemplateID,
		&gen.TemplateName,
		&docType,
		&gen.ReferenceID,
		&refType,
		&gen.RequestedBy,
		&gen.OutputKey,
		&gen.OutputFileName,
		&gen.OutputSize,
		&gen.OutputPages,
		&gen.Status,
		&gen.ErrorMessage,
		&gen.DurationMs,
		&gen.EmailTo,
		&gen.SendEmail,
		&gen.EmailStatus,
		&emailSentAt,
		&legalNumber,
		&documentHash,
		&gen.Locked,
		&lockedAt,
		&correctsID,
		&gen.CreatedAt,
		&gen.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	gen.DocumentType = entity.DocumentType(docType)
	gen.ReferenceType = entity.ReferenceType(refType)
	gen.EmailSentAt = timePtr(emailSentAt)
	gen.LegalNumber = legalNumber.String
	gen.DocumentHash = documentHash.String
	gen.LockedAt = timePtr(lockedAt)
	gen.CorrectsID = int64Ptr(correctsID)
	return &gen, nil
}

// Verify interface compliance
var _ port.GenerationRepository = (*GenerationRepository)(nil)
