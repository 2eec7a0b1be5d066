package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
	"github.com/garyjia/legal-docgen/internal/domain/legal"
)

func TestIntegrityService_Verify(t *testing.T) {
	p := newPipeline(t, time.UTC)
	p.activate(t, entity.DocumentTypeFacture, invoiceTemplate)
	p.activate(t, entity.DocumentTypeMandat, "MANDAT ${client.nom}")
	ctx := context.Background()

	locked, err := p.generate(t, invoiceRequest())
	require.NoError(t, err)
	mandate, err := p.generate(t, GenerateRequest{
		DocumentType:  entity.DocumentTypeMandat,
		ReferenceID:   "7",
		ReferenceType: entity.ReferenceTypeUser,
	})
	require.NoError(t, err)

	svc := NewIntegrityService(p.generations, p.storage, p.publisher, p.clock, &mockLogger{})

	result, err := svc.Verify(ctx, locked.ID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, locked.DocumentHash, result.ComputedHash)
	assert.Equal(t, "FAC-2025-00001", result.LegalNumber)

	result, err = svc.Verify(ctx, mandate.ID)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, ReasonNotLocked, result.Reason)

	_, err = svc.Verify(ctx, 999)
	assert.ErrorIs(t, err, entity.ErrGenerationNotFound)
}

func TestIntegrityService_DetectsTampering(t *testing.T) {
	p := newPipeline(t, time.UTC)
	p.activate(t, entity.DocumentTypeFacture, invoiceTemplate)
	ctx := context.Background()

	gen, err := p.generate(t, invoiceRequest())
	require.NoError(t, err)

	content, err := p.storage.Read(ctx, gen.OutputKey)
	require.NoError(t, err)
	content[0] ^= 0x01
	require.NoError(t, p.storage.Save(ctx, gen.OutputKey, content))

	svc := NewIntegrityService(p.generations, p.storage, p.publisher, p.clock, &mockLogger{})
	result, err := svc.Verify(ctx, gen.ID)
	require.NoError(t, err)

	assert.False(t, result.Verified)
	assert.Equal(t, ReasonHashMismatch, result.Reason)
	assert.Equal(t, gen.DocumentHash, result.StoredHash)
	assert.Equal(t, legal.Fingerprint(content), result.ComputedHash)
	assert.NotEqual(t, result.StoredHash, result.ComputedHash)
	assert.Contains(t, p.publisher.types(), event.TypeIntegrityMismatch)

	// the record itself is never touched
	stored, _ := p.generations.GetByID(ctx, gen.ID)
	assert.Equal(t, *gen, *stored)
}

func TestIntegrityService_VerifyAll(t *testing.T) {
	p := newPipeline(t, time.UTC)
	p.activate(t, entity.DocumentTypeFacture, invoiceTemplate)
	ctx := context.Background()

	var gens []*entity.Generation
	for i := 0; i < 5; i++ {
		gen, err := p.generate(t, invoiceRequest())
		require.NoError(t, err)
		gens = append(gens, gen)
	}
	require.NoError(t, p.storage.Delete(ctx, gens[3].OutputKey))

	svc := NewIntegrityService(p.generations, p.storage, p.publisher, p.clock, &mockLogger{})
	failures, checked, err := svc.VerifyAll(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, checked)
	require.Len(t, failures, 1)
	assert.Equal(t, gens[3].ID, failures[0].GenerationID)
	assert.Equal(t, ReasonOutputMissing, failures[0].Reason)
}
