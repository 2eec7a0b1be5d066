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

// DeliveryRepository implements port.DeliveryRepository on the append-only delivery log
type DeliveryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db *sql.DB, logger *zap.Logger) port.DeliveryRepository {
	return &DeliveryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a delivery attempt
func (r *DeliveryRepository) Create(ctx context.Context, d *entity.Delivery) error {
	query := `
		INSERT INTO generation_deliveries (generation_id, recipient, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		d.GenerationID,
		d.Recipient,
		d.Status,
		d.ErrorMessage,
		utc(d.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to record delivery",
			zap.Int64("generation_id", d.GenerationID),
			zap.String("recipient", d.Recipient),
			zap.Error(err))
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	d.ID = id
	return nil
}

// ListByGeneration returns the delivery attempts of a generation in order
func (r *DeliveryRepository) ListByGeneration(ctx context.Context, generationID int64) ([]*entity.Delivery, error) {
	query := `
		SELECT id, generation_id, recipient, status, error_message, created_at
		FROM generation_deliveries
		WHERE generation_id = ?
		ORDER BY id
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, generationID)
	if err != nil {
		r.logger.Error("Failed to list deliveries", zap.Int64("generation_id", generationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*entity.Delivery
	for rows.Next() {
		var d entity.Delivery
		if err := rows.Scan(&d.ID, &d.GenerationID, &d.Recipient, &d.Status, &d.ErrorMessage, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}
	return deliveries, nil
}

// Verify interface compliance
var _ port.DeliveryRepository = (*DeliveryRepository)(nil)
