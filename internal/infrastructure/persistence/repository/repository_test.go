package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/legal-docgen/migrations"
	"github.com/garyjia/legal-docgen/pkg/database"
)

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

// newTestDB opens a migrated database in a temporary directory
func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	conn, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "docgen.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = database.NewMigrator(conn, zap.NewNop()).RunMigrations(migrations.FS)
	require.NoError(t, err)

	return sqlite.NewDB(conn.DB, zap.NewNop())
}

func seedTemplate(t *testing.T, db *sql.DB, name string, docType entity.DocumentType) *entity.Template {
	t.Helper()

	repo := NewTemplateRepository(db, zap.NewNop())
	version, err := repo.NextVersion(context.Background(), name, docType)
	require.NoError(t, err)

	tpl := &entity.Template{
		Name:         name,
		DocumentType: docType,
		FileKey:      "templates/" + name + ".txt",
		FileName:     name + ".txt",
		FileFormat:   entity.FileFormatTXT,
		FileSize:     42,
		Version:      version,
		StaticText:   "FACTURE ${legal.numero} ${client.nom}",
		CreatedBy:    "tests",
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
		Tags: []entity.TagRef{
			{Name: "legal.numero", Category: "legal", Type: "string", Required: true, Position: 0},
			{Name: "client.nom", Category: "client", Type: "string", Required: true, Position: 1},
		},
	}
	require.NoError(t, repo.Create(context.Background(), tpl))
	return tpl
}

func seedGeneration(t *testing.T, db *sql.DB, tpl *entity.Template) *entity.Generation {
	t.Helper()

	gen := &entity.Generation{
		TemplateID:    tpl.ID,
		TemplateName:  tpl.Name,
		DocumentType:  tpl.DocumentType,
		ReferenceID:   "42",
		ReferenceType: entity.ReferenceTypeIntervention,
		RequestedBy:   "tests",
		Status:        entity.GenerationStatusPending,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	require.NoError(t, NewGenerationRepository(db, zap.NewNop()).Create(context.Background(), gen))
	return gen
}
