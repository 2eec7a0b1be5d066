package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/service"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/legal-docgen/migrations"
	"github.com/garyjia/legal-docgen/pkg/database"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func TestCounterRepository_Advance(t *testing.T) {
	db := newTestDB(t)
	repo := NewCounterRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	current, err := repo.Current(ctx, entity.DocumentTypeFacture, 2025)
	require.NoError(t, err)
	assert.Zero(t, current)

	for from := int64(0); from < 3; from++ {
		got, err := repo.Advance(ctx, entity.DocumentTypeFacture, 2025, from)
		require.NoError(t, err)
		assert.Equal(t, from+1, got)
	}

	// counters are independent per type and per year
	got, err := repo.Advance(ctx, entity.DocumentTypeFacture, 2026, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	got, err = repo.Advance(ctx, entity.DocumentTypeDevis, 2025, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	current, err = repo.Current(ctx, entity.DocumentTypeFacture, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(3), current)
}

func TestCounterRepository_StaleAdvanceIsConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewCounterRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Advance(ctx, entity.DocumentTypeFacture, 2025, 0)
	require.NoError(t, err)

	// both the first-number insert and the compare-and-set refuse a stale value
	_, err = repo.Advance(ctx, entity.DocumentTypeFacture, 2025, 0)
	assert.ErrorIs(t, err, entity.ErrNumberingConflict)
	_, err = repo.Advance(ctx, entity.DocumentTypeFacture, 2025, 5)
	assert.ErrorIs(t, err, entity.ErrNumberingConflict)

	current, err := repo.Current(ctx, entity.DocumentTypeFacture, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
}

func TestCounterRepository_RollbackReleasesValue(t *testing.T) {
	db := newTestDB(t)
	repo := NewCounterRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		got, err := repo.Advance(txCtx, entity.DocumentTypeFacture, 2025, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
		return errors.New("render failed")
	})
	require.Error(t, err)

	got, err := repo.Advance(ctx, entity.DocumentTypeFacture, 2025, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestCounterRepository_BusyIsConflict(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewCounterRepository(sqlDB, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE legal_counters")).
		WithArgs("FACTURE", 2025, int64(6)).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrBusy})
	mock.ExpectExec(regexp.QuoteMeta("UPDATE legal_counters")).
		WithArgs("FACTURE", 2025, int64(6)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE legal_counters")).
		WithArgs("FACTURE", 2025, int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO legal_counters")).
		WithArgs("FACTURE", 2026).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = repo.Advance(context.Background(), entity.DocumentTypeFacture, 2025, 6)
	assert.ErrorIs(t, err, entity.ErrNumberingConflict)

	_, err = repo.Advance(context.Background(), entity.DocumentTypeFacture, 2025, 6)
	require.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrNumberingConflict)

	got, err := repo.Advance(context.Background(), entity.DocumentTypeFacture, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	_, err = repo.Advance(context.Background(), entity.DocumentTypeFacture, 2026, 0)
	assert.ErrorIs(t, err, entity.ErrNumberingConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func newNumbering(t *testing.T) (service.NumberingService, *GenerationRepository, func() *entity.Template) {
	t.Helper()
	return newNumberingOn(t, newTestDB(t))
}

func newNumberingOn(t *testing.T, db *sqlite.DB) (service.NumberingService, *GenerationRepository, func() *entity.Template) {
	t.Helper()

	numbering := service.NewNumberingService(
		NewCounterRepository(db.DB, zap.NewNop()),
		db,
		fixedClock(testNow),
		service.NumberingConfig{MaxAttempts: 5, Backoff: 5 * time.Millisecond},
		nopLogger{},
	)
	gens := NewGenerationRepository(db.DB, zap.NewNop()).(*GenerationRepository)
	return numbering, gens, func() *entity.Template {
		return seedTemplate(t, db.DB, "Facture", entity.DocumentTypeFacture)
	}
}

func TestNumbering_ConcurrentReservationsAreGapFree(t *testing.T) {
	numbering, gens, newTemplate := newNumbering(t)
	ctx := context.Background()
	tpl := newTemplate()

	const workers = 20
	rows := make([]*entity.Generation, workers)
	for i := range rows {
		rows[i] = seedGeneration(t, gens.db, tpl)
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, gen := range rows {
		wg.Add(1)
		go func(gen *entity.Generation) {
			defer wg.Done()
			if _, err := gens.Claim(ctx, gen.ID, testNow); err != nil {
				errs <- err
				return
			}
			gen.Status = entity.GenerationStatusGenerating

			errs <- numbering.Reserve(ctx, entity.DocumentTypeFacture, func(_ context.Context, r service.Reservation) (service.CommitFunc, error) {
				number := r.Number
				completed, err := gen.Complete(entity.GenerationOutput{Key: "generations/FACTURE/2025/" + number + ".txt", FileName: number + ".txt"}, testNow, testNow)
				if err != nil {
					return nil, err
				}
				sealed, err := completed.Lock(number, "hash-"+number, testNow)
				if err != nil {
					return nil, err
				}
				return func(txCtx context.Context) error {
					return gens.Finalize(txCtx, &sealed)
				}, nil
			})
		}(gen)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	locked, err := gens.ListLocked(ctx, workers+1, 0)
	require.NoError(t, err)
	require.Len(t, locked, workers)

	numbers := make([]string, 0, workers)
	for _, gen := range locked {
		numbers = append(numbers, gen.LegalNumber)
	}
	sort.Strings(numbers)
	for i, number := range numbers {
		assert.Equal(t, fmt.Sprintf("FAC-2025-%05d", i+1), number)
	}

	current, err := numbering.Current(ctx, entity.DocumentTypeFacture, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), current)
}

func TestNumbering_FailedReservationReusesNumber(t *testing.T) {
	numbering, _, _ := newNumbering(t)
	ctx := context.Background()

	err := numbering.Reserve(ctx, entity.DocumentTypeFacture, func(context.Context, service.Reservation) (service.CommitFunc, error) {
		return nil, errors.New("rendering engine unavailable")
	})
	require.Error(t, err)

	var got string
	err = numbering.Reserve(ctx, entity.DocumentTypeFacture, func(_ context.Context, r service.Reservation) (service.CommitFunc, error) {
		got = r.Number
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "FAC-2025-00001", got)
}

func TestNumbering_SlowRenderDoesNotBlockOtherWriters(t *testing.T) {
	conn, err := database.New(database.Config{
		Path:        filepath.Join(t.TempDir(), "docgen.db"),
		BusyTimeout: 200 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = database.NewMigrator(conn, zap.NewNop()).RunMigrations(migrations.FS)
	require.NoError(t, err)
	db := sqlite.NewDB(conn.DB, zap.NewNop())

	numbering, gens, newTemplate := newNumberingOn(t, db)
	ctx := context.Background()
	invoiceTpl := newTemplate()
	quoteTpl := seedTemplate(t, db.DB, "Devis", entity.DocumentTypeDevis)

	invoice := seedGeneration(t, db.DB, invoiceTpl)
	_, err = gens.Claim(ctx, invoice.ID, testNow)
	require.NoError(t, err)
	invoice.Status = entity.GenerationStatusGenerating

	err = numbering.Reserve(ctx, entity.DocumentTypeFacture, func(_ context.Context, r service.Reservation) (service.CommitFunc, error) {
		written := make(chan error, 1)
		go func() {
			quote := &entity.Generation{
				TemplateID:    quoteTpl.ID,
				TemplateName:  quoteTpl.Name,
				DocumentType:  entity.DocumentTypeDevis,
				ReferenceID:   "43",
				ReferenceType: entity.ReferenceTypeIntervention,
				Status:        entity.GenerationStatusPending,
				CreatedAt:     testNow,
				UpdatedAt:     testNow,
			}
			written <- gens.Create(ctx, quote)
		}()

		// rendering takes longer than the busy timeout
		time.Sleep(600 * time.Millisecond)
		require.NoError(t, <-written)

		completed, err := invoice.Complete(entity.GenerationOutput{Key: "generations/FACTURE/2025/" + r.Number + ".pdf", FileName: r.Number + ".pdf"}, testNow, testNow)
		if err != nil {
			return nil, err
		}
		sealed, err := completed.Lock(r.Number, "hash", testNow)
		if err != nil {
			return nil, err
		}
		return func(txCtx context.Context) error {
			return gens.Finalize(txCtx, &sealed)
		}, nil
	})
	require.NoError(t, err)

	stored, err := gens.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2025-00001", stored.LegalNumber)
	assert.True(t, stored.Locked)
}
