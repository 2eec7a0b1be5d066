package container

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/service"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/legal"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

const entitiesYAML = `
intervention:
  "42":
    reference: INT-42
    description: Remplacement chaudière
    montant_ht: "100.00"
    client_id: 7
client:
  "7":
    nom: Dupont
    adresse: 1 rue de la Paix
`

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	entities := filepath.Join(dir, "entities.yaml")
	require.NoError(t, os.WriteFile(entities, []byte(entitiesYAML), 0644))

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "docgen.db")
	cfg.Storage.BaseDir = filepath.Join(dir, "documents")
	cfg.Entities = EntitiesConfig{Driver: "static", StaticFile: entities}
	cfg.Worker.Enabled = false
	cfg.Company = map[string]string{"nom": "ACME Services", "siret": "73282932000074"}
	return cfg
}

func startContainer(t *testing.T, cfg *Config) *Container {
	t.Helper()

	c, err := NewContainer(cfg, zap.NewNop(), WithClock(fixedClock{now: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)}))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		if !c.closed.Load() {
			_ = c.Close()
		}
	})
	return c
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"unknown storage backend", func(c *Config) { c.Storage.Backend = "ftp" }},
		{"minio without bucket", func(c *Config) { c.Storage.Backend = "minio"; c.Storage.MinioEndpoint = "localhost:9000" }},
		{"gotenberg without url", func(c *Config) { c.Renderer.Mode = RendererGotenberg }},
		{"unknown renderer", func(c *Config) { c.Renderer.Mode = "latex" }},
		{"postgres without dsn", func(c *Config) { c.Entities = EntitiesConfig{Driver: "postgres"} }},
		{"email enabled without host", func(c *Config) { c.Email.Enabled = true }},
		{"bad time zone", func(c *Config) { c.Pipeline.TimeZone = "Mars/Olympus" }},
		{"bad company siret", func(c *Config) { c.Company["siret"] = "12345678901234" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, testConfig(t).Validate())
}

func TestNewContainer_RequiresConfigAndLogger(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c := startContainer(t, testConfig(t))

	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()))

	health := c.Health(context.Background())
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "static", health.Components["entities"].Message)
	assert.Equal(t, "merge", health.Components["renderer"].Message)
	assert.NotContains(t, health.Components, "workers")

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()))
	assert.False(t, c.Health(context.Background()).Overall)
}

func TestContainer_StartFailureReleasesResources(t *testing.T) {
	cfg := testConfig(t)
	cfg.Compliance.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compliance rules")
	assert.False(t, c.Ready())
	assert.Nil(t, c.sqlDB)
}

func TestContainer_WorkersStartWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Worker.Enabled = true
	cfg.Worker.PollInterval = time.Hour
	cfg.Worker.SweepInterval = time.Hour

	c := startContainer(t, cfg)
	require.NotNil(t, c.Workers())
	assert.True(t, c.Workers().IsRunning())
	assert.Equal(t, 2, c.Workers().Count())
	assert.True(t, c.Health(context.Background()).Components["workers"].Healthy)
}

func TestContainer_GeneratesLockedInvoice(t *testing.T) {
	c := startContainer(t, testConfig(t))
	svc := c.Services()
	ctx := context.Background()

	tpl, err := svc.Template.Upload(ctx, service.UploadRequest{
		Name:         "Facture standard",
		DocumentType: entity.DocumentTypeFacture,
		FileName:     "facture.txt",
		Content:      []byte("FACTURE ${legal.numero} du ${legal.date_emission}\nClient : ${client.nom}\nSIRET ${company.siret}"),
	})
	require.NoError(t, err)

	// template.uploaded triggers the compliance audit
	assert.Eventually(t, func() bool {
		report, err := svc.Compliance.Latest(ctx, tpl.ID)
		return err == nil && report.CheckedBy == ComplianceCheckedBy
	}, 5*time.Second, 20*time.Millisecond)

	_, err = svc.Template.Activate(ctx, tpl.ID)
	require.NoError(t, err)

	gen, err := svc.Generation.Generate(ctx, service.GenerateRequest{
		DocumentType:  entity.DocumentTypeFacture,
		ReferenceID:   "42",
		ReferenceType: entity.ReferenceTypeIntervention,
	})
	require.NoError(t, err)

	// generation.requested runs the pipeline in the background
	var locked *entity.Generation
	require.Eventually(t, func() bool {
		locked, err = svc.Generation.Get(ctx, gen.ID)
		return err == nil && locked.Status == entity.GenerationStatusLocked
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "FAC-2025-00001", locked.LegalNumber)
	assert.True(t, locked.Locked)

	out, err := svc.Generation.OpenOutput(ctx, gen.ID)
	require.NoError(t, err)
	text := string(out.Content)
	assert.True(t, strings.HasPrefix(text, "FACTURE FAC-2025-00001"))
	assert.Contains(t, text, "Client : Dupont")
	assert.Equal(t, legal.Fingerprint(out.Content), locked.DocumentHash)

	result, err := svc.Integrity.Verify(ctx, gen.ID)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	found, err := svc.Generation.FindByLegalNumber(ctx, "FAC-2025-00001")
	require.NoError(t, err)
	assert.Equal(t, gen.ID, found.ID)

	current, err := svc.Numbering.Current(ctx, entity.DocumentTypeFacture, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("template_id", int64(7), 42, "skipped", "error", errors.New("boom"), "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "template_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
