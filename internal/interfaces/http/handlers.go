package http

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/service"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	templates     service.TemplateService
	generations   service.GenerationService
	integrity     service.IntegrityService
	compliance    service.ComplianceService
	delivery      service.DeliveryService
	health        HealthChecker
	maxUploadSize int64
	logger        *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, health HealthChecker, maxUploadSize int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		templates:     services.Templates,
		generations:   services.Generations,
		integrity:     services.Integrity,
		compliance:    services.Compliance,
		delivery:      services.Delivery,
		health:        health,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                             `json:"status"`
	Timestamp  string                             `json:"timestamp"`
	Components map[string]ComponentHealthResponse `json:"components,omitempty"`
}

// ComponentHealthResponse is the health of one component
type ComponentHealthResponse struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// CheckRequest identifies who triggered a compliance check
type CheckRequest struct {
	CheckedBy string `json:"checked_by"`
}

// CheckAllResponse summarizes a full compliance sweep
type CheckAllResponse struct {
	Checked   int                        `json:"checked"`
	Compliant int                        `json:"compliant"`
	Reports   []*entity.ComplianceReport `json:"reports"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if h.health != nil {
		report := h.health.Health(c.Request.Context())
		resp.Components = make(map[string]ComponentHealthResponse, len(report.Components))
		for name, comp := range report.Components {
			resp.Components[name] = ComponentHealthResponse{Healthy: comp.Healthy, Message: comp.Message}
		}
		if !report.Overall {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// UploadTemplate handles POST /api/v1/templates (multipart)
func (h *Handlers) UploadTemplate(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if h.maxUploadSize > 0 && fileHeader.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Success: false,
			Error:   fmt.Sprintf("file exceeds %d bytes", h.maxUploadSize),
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}

	docType, err := entity.ParseDocumentType(c.PostForm("document_type"))
	if err != nil {
		respondError(c, err)
		return
	}

	tpl, err := h.templates.Upload(c.Request.Context(), service.UploadRequest{
		Name:         c.PostForm("name"),
		DocumentType: docType,
		FileName:     fileHeader.Filename,
		Content:      content,
		Description:  c.PostForm("description"),
		EventTrigger: c.PostForm("event_trigger"),
		EmailSubject: c.PostForm("email_subject"),
		EmailBody:    c.PostForm("email_body"),
		CreatedBy:    c.PostForm("created_by"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: tpl})
}

// ListTemplates handles GET /api/v1/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	filter := entity.TemplateFilter{
		IncludeDeleted: c.Query("include_deleted") == "true",
	}
	if raw := c.Query("document_type"); raw != "" {
		docType, err := entity.ParseDocumentType(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.DocumentType = docType
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	filter.Limit, filter.Offset = limit, offset

	templates, err := h.templates.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: templates})
}

// GetTemplate handles GET /api/v1/templates/:id
func (h *Handlers) GetTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	tpl, err := h.templates.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tpl})
}

// ReparseTemplate handles POST /api/v1/templates/:id/reparse
func (h *Handlers) ReparseTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	tpl, err := h.templates.Reparse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tpl})
}

// ActivateTemplate handles POST /api/v1/templates/:id/activate
func (h *Handlers) ActivateTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	tpl, err := h.templates.Activate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tpl})
}

// DeactivateTemplate handles POST /api/v1/templates/:id/deactivate
func (h *Handlers) DeactivateTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.templates.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// DeleteTemplate handles DELETE /api/v1/templates/:id
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.templates.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// CheckCompliance handles POST /api/v1/templates/:id/compliance
func (h *Handlers) CheckCompliance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req CheckRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	report, err := h.compliance.Check(c.Request.Context(), id, req.CheckedBy)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// GetComplianceReport handles GET /api/v1/templates/:id/compliance
func (h *Handlers) GetComplianceReport(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	report, err := h.compliance.Latest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// CheckAllCompliance handles POST /api/v1/compliance/check-all
func (h *Handlers) CheckAllCompliance(c *gin.Context) {
	var req CheckRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	reports, err := h.compliance.CheckAll(c.Request.Context(), req.CheckedBy)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := CheckAllResponse{Checked: len(reports), Reports: reports}
	for _, r := range reports {
		if r.Compliant {
			resp.Compliant++
		}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// ComplianceStats handles GET /api/v1/compliance/stats
func (h *Handlers) ComplianceStats(c *gin.Context) {
	stats, err := h.compliance.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// Generate handles POST /api/v1/generations. The document is produced asynchronously.
func (h *Handlers) Generate(c *gin.Context) {
	var req service.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	gen, err := h.generations.Generate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Generation requested",
		zap.Int64("generation_id", gen.ID),
		zap.String("document_type", gen.DocumentType.String()),
		zap.String("request_id", GetRequestID(c)))

	c.JSON(http.StatusAccepted, Response{Success: true, Data: gen})
}

// ListGenerations handles GET /api/v1/generations
func (h *Handlers) ListGenerations(c *gin.Context) {
	filter := entity.GenerationFilter{Status: c.Query("status")}
	if raw := c.Query("document_type"); raw != "" {
		docType, err := entity.ParseDocumentType(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.DocumentType = docType
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	filter.Limit, filter.Offset = limit, offset

	generations, err := h.generations.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: generations})
}

// GetGeneration handles GET /api/v1/generations/:id
func (h *Handlers) GetGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	gen, err := h.generations.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gen})
}

// FindByLegalNumber handles GET /api/v1/generations/by-number/:legal_number
func (h *Handlers) FindByLegalNumber(c *gin.Context) {
	gen, err := h.generations.FindByLegalNumber(c.Request.Context(), c.Param("legal_number"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gen})
}

// CreateCorrective handles POST /api/v1/generations/:id/corrections
func (h *Handlers) CreateCorrective(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	gen, err := h.generations.CreateCorrective(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, Response{Success: true, Data: gen})
}

// RetryGeneration handles POST /api/v1/generations/:id/retry
func (h *Handlers) RetryGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	gen, err := h.generations.Retry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, Response{Success: true, Data: gen})
}

// ArchiveGeneration handles POST /api/v1/generations/:id/archive
func (h *Handlers) ArchiveGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	gen, err := h.generations.Archive(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gen})
}

// VerifyGeneration handles GET /api/v1/generations/:id/verify
func (h *Handlers) VerifyGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.integrity.Verify(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// DownloadGeneration handles GET /api/v1/generations/:id/download
func (h *Handlers) DownloadGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	out, err := h.generations.OpenOutput(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(out.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.FileName}))
	c.Data(http.StatusOK, contentType, out.Content)
}

// DeliverGeneration handles POST /api/v1/generations/:id/deliveries
func (h *Handlers) DeliverGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	delivery, err := h.delivery.Deliver(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: delivery})
}

// ListDeliveries handles GET /api/v1/generations/:id/deliveries
func (h *Handlers) ListDeliveries(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	deliveries, err := h.delivery.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: deliveries})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (int, int, bool) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		badRequest(c, "invalid limit")
		return 0, 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		badRequest(c, "invalid offset")
		return 0, 0, false
	}
	return limit, offset, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
