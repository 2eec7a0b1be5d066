package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/infrastructure/persistence/sqlite"
)

// CounterRepository implements port.CounterRepository on legal_counters
type CounterRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(db *sql.DB, logger *zap.Logger) port.CounterRepository {
	return &CounterRepository{
		db:     db,
		logger: logger,
	}
}

// Advance takes the value after from. The first number of a year is an insert,
// later ones a compare-and-set on the current value, so two writers that read the
// same counter cannot both succeed.
func (r *CounterRepository) Advance(ctx context.Context, docType entity.DocumentType, year int, from int64) (int64, error) {
	if from < 0 {
		return 0, fmt.Errorf("invalid counter value %d", from)
	}

	query := `
		UPDATE legal_counters
		SET value = value + 1, updated_at = CURRENT_TIMESTAMP
		WHERE document_type = ? AND year = ? AND value = ?
	`
	args := []interface{}{string(docType), year, from}
	if from == 0 {
		query = `
			INSERT INTO legal_counters (document_type, year, value, updated_at)
			VALUES (?, ?, 1, CURRENT_TIMESTAMP)
			ON CONFLICT (document_type, year) DO NOTHING
		`
		args = args[:2]
	}

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		if sqlite.IsBusy(err) {
			return 0, fmt.Errorf("%w: %s %d: %v", entity.ErrNumberingConflict, docType, year, err)
		}
		r.logger.Error("Failed to advance legal counter",
			zap.String("document_type", string(docType)),
			zap.Int("year", year),
			zap.Int64("from", from),
			zap.Error(err))
		return 0, fmt.Errorf("failed to advance counter: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter: %w", err)
	}
	if rows == 0 {
		return 0, fmt.Errorf("%w: %s %d moved past %d", entity.ErrNumberingConflict, docType, year, from)
	}

	return from + 1, nil
}

// Current returns the last committed value, 0 when the counter does not exist
func (r *CounterRepository) Current(ctx context.Context, docType entity.DocumentType, year int) (int64, error) {
	query := `SELECT value FROM legal_counters WHERE document_type = ? AND year = ?`

	var value int64
	err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, string(docType), year).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return value, nil
}

// Verify interface compliance
var _ port.CounterRepository = (*CounterRepository)(nil)
