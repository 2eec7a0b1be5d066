package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/legal"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

// renderJob carries one pipeline run from resolution to storage
type renderJob struct {
	gen       *entity.Generation
	tpl       *entity.Template
	source    []byte
	values    tag.Values
	startedAt time.Time

	// set by the numbering step
	number   string
	issuedAt time.Time
	corrects string
}

// mergedValues overlays the pipeline-owned legal tags on the resolved values
func (j *renderJob) mergedValues() tag.Values {
	values := make(tag.Values, len(j.values)+3)
	values.Merge(j.values)

	if j.number != "" {
		values["legal.numero"] = tag.TextValue{Text: j.number}
		values["legal.date_emission"] = tag.DateValue{Time: j.issuedAt}
	}
	if j.corrects != "" {
		values["legal.document_corrige"] = tag.TextValue{Text: j.corrects}
	}
	return values
}

func (s *generationServiceImpl) render(ctx context.Context, job *renderJob) (*port.RenderOutput, error) {
	if !job.issuedAt.IsZero() {
		job.issuedAt = job.issuedAt.In(s.cfg.Location)
	}

	out, err := s.renderer.Render(ctx, port.RenderInput{
		Template: job.source,
		FileName: job.tpl.FileName,
		Format:   job.tpl.FileFormat,
		Values:   job.mergedValues(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrRenderingFailed, err)
	}
	if out == nil || len(out.Content) == 0 {
		return nil, fmt.Errorf("%w: empty output", entity.ErrRenderingFailed)
	}
	return out, nil
}

func fingerprint(content []byte) string {
	return legal.Fingerprint(content)
}
