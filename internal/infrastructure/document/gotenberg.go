package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

const (
	officeRoute = "/forms/libreoffice/convert"
	htmlRoute   = "/forms/chromium/convert/html"
	healthRoute = "/health"

	maxOutputSize = 64 << 20
)

// GotenbergConfig holds the conversion engine settings
type GotenbergConfig struct {
	URL     string
	Timeout time.Duration
}

// GotenbergRenderer merges a template then converts the result to PDF through a Gotenberg server
type GotenbergRenderer struct {
	merge      port.Renderer
	baseURL    string
	client     *http.Client
	logger     *zap.Logger
	countPages func([]byte) (int, error)
}

// NewGotenbergRenderer wraps merge with a PDF conversion step
func NewGotenbergRenderer(merge port.Renderer, cfg GotenbergConfig, logger *zap.Logger) *GotenbergRenderer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GotenbergRenderer{
		merge:      merge,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
		countPages: PDFPageCount,
	}
}

// Render merges the values, then converts anything that is not already a PDF
func (r *GotenbergRenderer) Render(ctx context.Context, in port.RenderInput) (*port.RenderOutput, error) {
	merged, err := r.merge.Render(ctx, in)
	if err != nil {
		return nil, err
	}
	if merged.Ext == entity.FileFormatPDF {
		return merged, nil
	}

	route, fileName := officeRoute, "document."+merged.Ext
	if merged.Ext == entity.FileFormatHTML {
		// the chromium route requires the entry file to be named index.html
		route, fileName = htmlRoute, "index.html"
	}

	start := time.Now()
	content, err := r.convert(ctx, route, fileName, merged.Content)
	if err != nil {
		r.logger.Error("Conversion failed",
			zap.String("file_name", in.FileName),
			zap.String("route", route),
			zap.Error(err))
		return nil, err
	}

	pages, err := r.countPages(content)
	if err != nil {
		r.logger.Warn("Failed to count PDF pages", zap.String("file_name", in.FileName), zap.Error(err))
		pages = 0
	}

	r.logger.Info("Document converted",
		zap.String("file_name", in.FileName),
		zap.Int("size", len(content)),
		zap.Int("pages", pages),
		zap.Duration("duration", time.Since(start)))

	return &port.RenderOutput{
		Content: content,
		Ext:     entity.FileFormatPDF,
		Pages:   pages,
	}, nil
}

func (r *GotenbergRenderer) convert(ctx context.Context, route, fileName string, content []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("files", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+route, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("conversion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("conversion engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxOutputSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read converted document: %w", err)
	}
	if len(out) > maxOutputSize {
		return nil, fmt.Errorf("converted document exceeds %d bytes", maxOutputSize)
	}
	return out, nil
}

// Ping checks that the conversion engine is up
func (r *GotenbergRenderer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+healthRoute, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("conversion engine unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("conversion engine unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Verify interface compliance
var _ port.Renderer = (*GotenbergRenderer)(nil)
