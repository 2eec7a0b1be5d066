package port

import (
	"context"
	"time"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

// TemplateRepository defines persistence operations for Template and its tag manifest
type TemplateRepository interface {
	// Create inserts the template and its manifest and sets tpl.ID
	Create(ctx context.Context, tpl *entity.Template) error
	GetByID(ctx context.Context, id int64) (*entity.Template, error)
	List(ctx context.Context, filter entity.TemplateFilter) ([]*entity.Template, error)

	// NextVersion returns 1 + the highest version for (name, docType), deleted rows included
	NextVersion(ctx context.Context, name string, docType entity.DocumentType) (int, error)

	// ReplaceManifest swaps the tag manifest and extracted text of a template
	ReplaceManifest(ctx context.Context, id int64, tags []entity.TagRef, staticText string) error

	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error

	// SetActive points docType at templateID in a single statement
	SetActive(ctx context.Context, docType entity.DocumentType, templateID int64) error
	// ClearActive removes the pointer of docType if it targets templateID
	ClearActive(ctx context.Context, docType entity.DocumentType, templateID int64) (bool, error)
	GetActive(ctx context.Context, docType entity.DocumentType) (*entity.Template, error)

	Counts(ctx context.Context) (total, active int, err error)
}

// GenerationStats aggregates generation rows
type GenerationStats struct {
	Total    int
	Locked   int
	ByType   map[string]int
	ByStatus map[string]int
}

// GenerationRepository defines persistence operations for Generation
type GenerationRepository interface {
	Create(ctx context.Context, gen *entity.Generation) error
	GetByID(ctx context.Context, id int64) (*entity.Generation, error)
	GetByLegalNumber(ctx context.Context, legalNumber string) (*entity.Generation, error)
	List(ctx context.Context, filter entity.GenerationFilter) ([]*entity.Generation, error)

	// Claim moves a PENDING row to GENERATING and reports whether this caller won it
	Claim(ctx context.Context, id int64, now time.Time) (bool, error)
	ListPending(ctx context.Context, limit int) ([]*entity.Generation, error)
	ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]*entity.Generation, error)
	ListLocked(ctx context.Context, limit, offset int) ([]*entity.Generation, error)

	// Complete persists an unregulated COMPLETED generation
	Complete(ctx context.Context, gen *entity.Generation) error
	// Finalize persists a LOCKED generation, number, hash and output in one write
	Finalize(ctx context.Context, gen *entity.Generation) error
	// MarkFailed records a failure on a PENDING or GENERATING row
	MarkFailed(ctx context.Context, gen *entity.Generation) error
	// UpdateDelivery records email status on an unlocked row
	UpdateDelivery(ctx context.Context, gen *entity.Generation) error
	Archive(ctx context.Context, id int64, now time.Time) error

	CountByTemplate(ctx context.Context, templateID int64) (int, error)
	Stats(ctx context.Context) (*GenerationStats, error)
}

// CounterRepository defines operations on the legal sequence counters
type CounterRepository interface {
	// Advance moves the counter of (docType, year) from one value to the next and returns it.
	// It fails with ErrNumberingConflict when the counter no longer holds from.
	Advance(ctx context.Context, docType entity.DocumentType, year int, from int64) (int64, error)
	// Current returns the last allocated value, 0 when none
	Current(ctx context.Context, docType entity.DocumentType, year int) (int64, error)
}

// ComplianceSummary aggregates stored compliance reports
type ComplianceSummary struct {
	Checked      int
	Compliant    int
	AverageScore float64
	LastCheckAt  *time.Time
}

// ComplianceReportRepository stores the latest compliance report per template
type ComplianceReportRepository interface {
	Save(ctx context.Context, report *entity.ComplianceReport) error
	GetByTemplateID(ctx context.Context, templateID int64) (*entity.ComplianceReport, error)
	Summary(ctx context.Context) (*ComplianceSummary, error)
}

// DeliveryRepository is the append-only log of email delivery attempts
type DeliveryRepository interface {
	Create(ctx context.Context, d *entity.Delivery) error
	ListByGeneration(ctx context.Context, generationID int64) ([]*entity.Delivery, error)
}

// TransactionManager manages database transactions
type TransactionManager interface {
	// WithTransaction runs fn inside a transaction carried by the context
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
