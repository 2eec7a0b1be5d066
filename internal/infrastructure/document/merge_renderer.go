package document

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

// MergeRenderer implements port.Renderer by substituting tags in place.
// The output keeps the template's format; PDF templates cannot be merged.
type MergeRenderer struct {
	logger *zap.Logger
}

// NewMergeRenderer creates a new MergeRenderer
func NewMergeRenderer(logger *zap.Logger) *MergeRenderer {
	return &MergeRenderer{logger: logger}
}

// Render merges in.Values into the template. Tags without a value are left as written.
func (r *MergeRenderer) Render(ctx context.Context, in port.RenderInput) (*port.RenderOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := strings.ToLower(in.Format)
	if format == "" {
		f, err := entity.FileFormatOf(in.FileName)
		if err != nil {
			return nil, err
		}
		format = f
	}

	values := in.Values.Strings()
	lookup := func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}

	var content []byte
	var err error
	switch format {
	case entity.FileFormatTXT:
		content = []byte(tag.Replace(string(in.Template), lookup))
	case entity.FileFormatHTML:
		content = []byte(tag.Replace(string(in.Template), func(name string) (string, bool) {
			v, ok := lookup(name)
			return html.EscapeString(v), ok
		}))
	case entity.FileFormatDOCX:
		content, err = mergeDocx(in.Template, lookup)
	case entity.FileFormatXLSX:
		content, err = r.mergeXlsx(in.Template, lookup)
	case entity.FileFormatPDF:
		err = fmt.Errorf("pdf templates are not mergeable")
	default:
		err = fmt.Errorf("unsupported template format %q", format)
	}
	if err != nil {
		r.logger.Error("Failed to merge template",
			zap.String("file_name", in.FileName),
			zap.String("format", format),
			zap.Error(err))
		return nil, err
	}

	return &port.RenderOutput{
		Content: content,
		Ext:     format,
	}, nil
}

// mergeXlsx rewrites every cell holding a tag, across all sheets
func (r *MergeRenderer) mergeXlsx(content []byte, lookup func(string) (string, bool)) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for y, row := range rows {
			for x, cell := range row {
				if !strings.Contains(cell, "${") {
					continue
				}
				merged := tag.Replace(cell, lookup)
				if merged == cell {
					continue
				}
				name, err := excelize.CoordinatesToCellName(x+1, y+1)
				if err != nil {
					return nil, err
				}
				r.setCell(f, sheet, name, merged)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// setCell sets a cell value in the workbook
func (r *MergeRenderer) setCell(f *excelize.File, sheet, cell, value string) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// Verify interface compliance
var _ port.Renderer = (*MergeRenderer)(nil)
