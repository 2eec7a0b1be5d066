// Package document reads and renders template files: plain text, HTML, DOCX, XLSX and PDF.
package document

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

// Extractor implements port.TextExtractor, dispatching on the file extension
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a new Extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the text of a template file, in reading order
func (e *Extractor) Extract(ctx context.Context, fileName string, content []byte) (string, error) {
	format, err := entity.FileFormatOf(fileName)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var text string
	switch format {
	case entity.FileFormatTXT:
		text = string(content)
	case entity.FileFormatHTML:
		text = htmlText(string(content))
	case entity.FileFormatDOCX:
		text, err = docxText(content)
	case entity.FileFormatXLSX:
		text, err = xlsxText(content)
	case entity.FileFormatPDF:
		text, err = pdfText(content)
	}
	if err != nil {
		e.logger.Error("Failed to extract template text",
			zap.String("file_name", filepath.Base(fileName)),
			zap.String("format", format),
			zap.Error(err))
		return "", fmt.Errorf("failed to extract %s text: %w", format, err)
	}

	e.logger.Debug("Extracted template text",
		zap.String("file_name", filepath.Base(fileName)),
		zap.Int("length", len(text)))
	return text, nil
}

var (
	markupPattern = regexp.MustCompile(`(?s)<[^>]*>`)
	scriptPattern = regexp.MustCompile(`(?is)<(script|style)\b.*?</(script|style)>`)
	// tags placed in attributes, e.g. <img src="${image.logo}">
	attrTagPattern = regexp.MustCompile(`\$\{[^}]*\}`)
	blankRuns      = regexp.MustCompile(`[ \t]+`)
)

// htmlText drops markup but keeps tags written inside attributes
func htmlText(doc string) string {
	doc = scriptPattern.ReplaceAllString(doc, " ")
	doc = markupPattern.ReplaceAllStringFunc(doc, func(markup string) string {
		if found := attrTagPattern.FindAllString(markup, -1); len(found) > 0 {
			return " " + strings.Join(found, " ") + " "
		}
		return " "
	})
	doc = html.UnescapeString(doc)
	return strings.TrimSpace(blankRuns.ReplaceAllString(doc, " "))
}

// xlsxText returns the cells of every sheet, tab-separated, one row per line
func xlsxText(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// Verify interface compliance
var _ port.TextExtractor = (*Extractor)(nil)
