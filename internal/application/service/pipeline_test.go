package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

// pipeline wires the generation services on in-memory adapters
type pipeline struct {
	templates   *mockTemplateRepo
	generations *memGenerationRepo
	counters    *memCounterRepo
	storage     *memStorage
	provider    *fakeProvider
	renderer    *fakeRenderer
	publisher   *recordingPublisher
	clock       *fixedClock

	numbering NumberingService
	resolver  ResolverService
	svc       GenerationService
}

func newPipeline(t *testing.T, loc *time.Location) *pipeline {
	t.Helper()

	p := &pipeline{
		templates:   newMockTemplateRepo(),
		generations: newMemGenerationRepo(),
		counters:    newMemCounterRepo(),
		storage:     newMemStorage(),
		provider:    newFakeProvider(),
		renderer:    &fakeRenderer{},
		publisher:   &recordingPublisher{},
		clock:       &fixedClock{now: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)},
	}

	p.provider.add("intervention", "42", port.Attributes{
		"reference":   "INT-42",
		"description": "Remplacement chaudière",
		"montant_ht":  "100.00",
		"client_id":   int64(7),
	})
	p.provider.add("client", "7", port.Attributes{"nom": "Dupont", "adresse": "1 rue de la Paix"})

	txManager := &memTxManager{counters: p.counters, generations: p.generations}
	p.numbering = NewNumberingService(p.counters, txManager, p.clock, NumberingConfig{MaxAttempts: 3, Backoff: time.Millisecond, Location: loc}, &mockLogger{})
	p.resolver = NewResolverService(p.provider, tag.DefaultCatalog(), p.clock, ResolverConfig{
		Company: map[string]string{"nom": "ACME Services", "siret": "73282932000074"},
		Legal:   map[string]string{"conditions_paiement": "30 jours"},
	}, &mockLogger{})
	p.svc = NewGenerationService(
		p.templates,
		p.generations,
		p.numbering,
		p.resolver,
		p.renderer,
		p.storage,
		p.publisher,
		p.clock,
		GenerationConfig{Location: loc},
		&mockLogger{},
	)
	return p
}

// activate uploads and activates a text template for docType
func (p *pipeline) activate(t *testing.T, docType entity.DocumentType, text string) *entity.Template {
	t.Helper()
	ctx := context.Background()

	key := "templates/" + docType.String() + "/source.txt"
	require.NoError(t, p.storage.Save(ctx, key, []byte(text)))

	tpl := &entity.Template{
		Name:         docType.String() + " standard",
		DocumentType: docType,
		FileKey:      key,
		FileName:     "source.txt",
		FileFormat:   entity.FileFormatTXT,
		Version:      1,
		StaticText:   text,
		Tags:         tag.NewScanner(tag.DefaultCatalog()).Scan(text, docType),
	}
	require.NoError(t, p.templates.Create(ctx, tpl))
	require.NoError(t, p.templates.SetActive(ctx, docType, tpl.ID))
	return tpl
}

// generate enqueues and processes one request, returning the stored record
func (p *pipeline) generate(t *testing.T, req GenerateRequest) (*entity.Generation, error) {
	t.Helper()
	ctx := context.Background()

	gen, err := p.svc.Generate(ctx, req)
	require.NoError(t, err)

	processErr := p.svc.Process(ctx, gen.ID)

	stored, err := p.generations.GetByID(ctx, gen.ID)
	require.NoError(t, err)
	return stored, processErr
}

func invoiceRequest() GenerateRequest {
	return GenerateRequest{
		DocumentType:  entity.DocumentTypeFacture,
		ReferenceID:   "42",
		ReferenceType: entity.ReferenceTypeIntervention,
	}
}

const invoiceTemplate = "FACTURE ${legal.numero} du ${legal.date_emission} pour ${client.nom}"
