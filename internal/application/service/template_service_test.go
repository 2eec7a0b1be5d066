package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

type templateFixture struct {
	templates   *mockTemplateRepo
	generations *memGenerationRepo
	storage     *memStorage
	extractor   *fakeExtractor
	publisher   *recordingPublisher
	svc         TemplateService
}

func newTemplateFixture() *templateFixture {
	f := &templateFixture{
		templates:   newMockTemplateRepo(),
		generations: newMemGenerationRepo(),
		storage:     newMemStorage(),
		extractor:   &fakeExtractor{},
		publisher:   &recordingPublisher{},
	}
	f.svc = NewTemplateService(
		f.templates,
		f.generations,
		f.storage,
		f.extractor,
		tag.NewScanner(tag.DefaultCatalog()),
		&mockTxManager{},
		f.publisher,
		&fixedClock{now: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)},
		TemplateConfig{MaxFileSize: 1024},
		&mockLogger{},
	)
	return f
}

func invoiceUpload() UploadRequest {
	return UploadRequest{
		Name:         "Facture standard",
		DocumentType: entity.DocumentTypeFacture,
		FileName:     "../Facture Standard.txt",
		Content:      []byte(invoiceTemplate + " ${client.numero_fidelite}"),
		CreatedBy:    "admin",
	}
}

func TestTemplateService_Upload(t *testing.T) {
	f := newTemplateFixture()
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, invoiceUpload())
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, invoiceUpload())
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.NotEqual(t, first.FileKey, second.FileKey)

	assert.Equal(t, entity.FileFormatTXT, first.FileFormat)
	assert.True(t, strings.HasPrefix(first.FileKey, "templates/FACTURE/"))
	assert.True(t, strings.HasSuffix(first.FileKey, "-Facture_Standard.txt"))
	assert.Equal(t, []string{"legal.numero", "legal.date_emission", "client.nom", "client.numero_fidelite"}, first.TagNames())
	assert.Equal(t, []string{"client.numero_fidelite"}, first.UnresolvedTags())

	stored, err := f.storage.Read(ctx, first.FileKey)
	require.NoError(t, err)
	assert.Equal(t, invoiceUpload().Content, stored)

	assert.Equal(t, []event.Type{event.TypeTemplateUploaded, event.TypeTemplateUploaded}, f.publisher.types())
}

func TestTemplateService_Upload_Validation(t *testing.T) {
	f := newTemplateFixture()

	tests := []struct {
		name    string
		mutate  func(r *UploadRequest)
		wantErr error
	}{
		{name: "missing name", mutate: func(r *UploadRequest) { r.Name = " " }, wantErr: entity.ErrInvalidRequest},
		{name: "unknown type", mutate: func(r *UploadRequest) { r.DocumentType = "LETTRE" }, wantErr: entity.ErrInvalidDocumentType},
		{name: "unsupported format", mutate: func(r *UploadRequest) { r.FileName = "facture.exe" }, wantErr: entity.ErrInvalidRequest},
		{name: "empty file", mutate: func(r *UploadRequest) { r.Content = nil }, wantErr: entity.ErrInvalidRequest},
		{name: "too large", mutate: func(r *UploadRequest) { r.Content = make([]byte, 2048) }, wantErr: entity.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := invoiceUpload()
			tt.mutate(&req)
			_, err := f.svc.Upload(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, f.storage.keysWithPrefix("templates/"))
}

func TestTemplateService_Upload_UnreadableFile(t *testing.T) {
	f := newTemplateFixture()
	f.extractor.err = errors.New("zip: not a valid zip file")

	_, err := f.svc.Upload(context.Background(), invoiceUpload())
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	assert.Empty(t, f.storage.keysWithPrefix("templates/"))
}

func TestTemplateService_Upload_RemovesFileWhenCreateFails(t *testing.T) {
	f := newTemplateFixture()
	f.templates.createFunc = func(ctx context.Context, tpl *entity.Template) error {
		return errors.New("database is locked")
	}

	_, err := f.svc.Upload(context.Background(), invoiceUpload())
	require.Error(t, err)
	assert.Empty(t, f.storage.keysWithPrefix("templates/"))
	assert.Empty(t, f.publisher.types())
}

func TestTemplateService_Activation(t *testing.T) {
	f := newTemplateFixture()
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, invoiceUpload())
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, invoiceUpload())
	require.NoError(t, err)

	_, err = f.svc.GetActive(ctx, entity.DocumentTypeFacture)
	assert.ErrorIs(t, err, entity.ErrTemplateNotActive)

	_, err = f.svc.Activate(ctx, first.ID)
	require.NoError(t, err)
	activated, err := f.svc.Activate(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, activated.Active)

	active, err := f.svc.GetActive(ctx, entity.DocumentTypeFacture)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	previous, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, previous.Active)

	assert.ErrorIs(t, f.svc.Deactivate(ctx, first.ID), entity.ErrInvalidRequest)
	require.NoError(t, f.svc.Deactivate(ctx, second.ID))

	_, err = f.svc.GetActive(ctx, entity.DocumentTypeFacture)
	assert.ErrorIs(t, err, entity.ErrTemplateNotActive)

	_, err = f.svc.Activate(ctx, 999)
	assert.ErrorIs(t, err, entity.ErrTemplateNotFound)
}

func TestTemplateService_Delete(t *testing.T) {
	f := newTemplateFixture()
	ctx := context.Background()

	used, err := f.svc.Upload(ctx, invoiceUpload())
	require.NoError(t, err)
	unused, err := f.svc.Upload(ctx, invoiceUpload())
	require.NoError(t, err)
	active, err := f.svc.Upload(ctx, invoiceUpload())
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, active.ID)
	require.NoError(t, err)

	require.NoError(t, f.generations.Create(ctx, &entity.Generation{TemplateID: used.ID, Status: entity.GenerationStatusLocked}))

	assert.ErrorIs(t, f.svc.Delete(ctx, active.ID), entity.ErrTemplateInUse)

	require.NoError(t, f.svc.Delete(ctx, used.ID))
	soft, err := f.svc.Get(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, soft.IsDeleted())
	exists, _ := f.storage.Exists(ctx, used.FileKey)
	assert.True(t, exists)

	_, err = f.svc.Activate(ctx, used.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)

	require.NoError(t, f.svc.Delete(ctx, unused.ID))
	_, err = f.svc.Get(ctx, unused.ID)
	assert.ErrorIs(t, err, entity.ErrTemplateNotFound)
	exists, _ = f.storage.Exists(ctx, unused.FileKey)
	assert.False(t, exists)

	listed, err := f.svc.List(ctx, entity.TemplateFilter{DocumentType: entity.DocumentTypeFacture})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, active.ID, listed[0].ID)
}

func TestTemplateService_Reparse(t *testing.T) {
	f := newTemplateFixture()
	ctx := context.Background()

	tpl, err := f.svc.Upload(ctx, invoiceUpload())
	require.NoError(t, err)

	// manifest drifted, e.g. after a catalog change
	require.NoError(t, f.templates.ReplaceManifest(ctx, tpl.ID, nil, ""))

	first, err := f.svc.Reparse(ctx, tpl.ID)
	require.NoError(t, err)
	second, err := f.svc.Reparse(ctx, tpl.ID)
	require.NoError(t, err)

	assert.Equal(t, tpl.Tags, first.Tags)
	assert.Equal(t, first.Tags, second.Tags)

	stored, _ := f.svc.Get(ctx, tpl.ID)
	assert.Equal(t, tpl.TagNames(), stored.TagNames())
	assert.Equal(t, tpl.FileKey, stored.FileKey)
}
