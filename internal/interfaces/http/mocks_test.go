package http

import (
	"context"
	"time"

	"github.com/garyjia/legal-docgen/internal/application/service"
	"github.com/garyjia/legal-docgen/internal/container"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
)

type mockTemplateService struct {
	UploadFunc     func(ctx context.Context, req service.UploadRequest) (*entity.Template, error)
	ActivateFunc   func(ctx context.Context, id int64) (*entity.Template, error)
	DeactivateFunc func(ctx context.Context, id int64) error
	DeleteFunc     func(ctx context.Context, id int64) error
	GetFunc        func(ctx context.Context, id int64) (*entity.Template, error)
	ListFunc       func(ctx context.Context, filter entity.TemplateFilter) ([]*entity.Template, error)
}

func (m *mockTemplateService) Upload(ctx context.Context, req service.UploadRequest) (*entity.Template, error) {
	return m.UploadFunc(ctx, req)
}

func (m *mockTemplateService) Reparse(ctx context.Context, id int64) (*entity.Template, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockTemplateService) Activate(ctx context.Context, id int64) (*entity.Template, error) {
	return m.ActivateFunc(ctx, id)
}

func (m *mockTemplateService) Deactivate(ctx context.Context, id int64) error {
	return m.DeactivateFunc(ctx, id)
}

func (m *mockTemplateService) Delete(ctx context.Context, id int64) error {
	return m.DeleteFunc(ctx, id)
}

func (m *mockTemplateService) Get(ctx context.Context, id int64) (*entity.Template, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockTemplateService) List(ctx context.Context, filter entity.TemplateFilter) ([]*entity.Template, error) {
	return m.ListFunc(ctx, filter)
}

func (m *mockTemplateService) GetActive(ctx context.Context, docType entity.DocumentType) (*entity.Template, error) {
	return nil, entity.ErrTemplateNotActive
}

type mockGenerationService struct {
	GenerateFunc          func(ctx context.Context, req service.GenerateRequest) (*entity.Generation, error)
	CreateCorrectiveFunc  func(ctx context.Context, originalID int64, req service.GenerateRequest) (*entity.Generation, error)
	RetryFunc             func(ctx context.Context, id int64) (*entity.Generation, error)
	GetFunc               func(ctx context.Context, id int64) (*entity.Generation, error)
	FindByLegalNumberFunc func(ctx context.Context, legalNumber string) (*entity.Generation, error)
	ListFunc              func(ctx context.Context, filter entity.GenerationFilter) ([]*entity.Generation, error)
	OpenOutputFunc        func(ctx context.Context, id int64) (*service.OutputFile, error)
	ArchiveFunc           func(ctx context.Context, id int64) (*entity.Generation, error)
}

func (m *mockGenerationService) Generate(ctx context.Context, req service.GenerateRequest) (*entity.Generation, error) {
	return m.GenerateFunc(ctx, req)
}

func (m *mockGenerationService) CreateCorrective(ctx context.Context, originalID int64, req service.GenerateRequest) (*entity.Generation, error) {
	return m.CreateCorrectiveFunc(ctx, originalID, req)
}

func (m *mockGenerationService) Retry(ctx context.Context, id int64) (*entity.Generation, error) {
	return m.RetryFunc(ctx, id)
}

func (m *mockGenerationService) Process(ctx context.Context, id int64) error {
	return nil
}

func (m *mockGenerationService) FailStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	return 0, nil
}

func (m *mockGenerationService) Get(ctx context.Context, id int64) (*entity.Generation, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockGenerationService) FindByLegalNumber(ctx context.Context, legalNumber string) (*entity.Generation, error) {
	return m.FindByLegalNumberFunc(ctx, legalNumber)
}

func (m *mockGenerationService) List(ctx context.Context, filter entity.GenerationFilter) ([]*entity.Generation, error) {
	return m.ListFunc(ctx, filter)
}

func (m *mockGenerationService) OpenOutput(ctx context.Context, id int64) (*service.OutputFile, error) {
	return m.OpenOutputFunc(ctx, id)
}

func (m *mockGenerationService) Archive(ctx context.Context, id int64) (*entity.Generation, error) {
	return m.ArchiveFunc(ctx, id)
}

type mockIntegrityService struct {
	VerifyFunc func(ctx context.Context, id int64) (*service.VerifyResult, error)
}

func (m *mockIntegrityService) Verify(ctx context.Context, id int64) (*service.VerifyResult, error) {
	return m.VerifyFunc(ctx, id)
}

func (m *mockIntegrityService) VerifyAll(ctx context.Context, batchSize int) ([]*service.VerifyResult, int, error) {
	return nil, 0, nil
}

type mockComplianceService struct {
	CheckFunc    func(ctx context.Context, templateID int64, checkedBy string) (*entity.ComplianceReport, error)
	CheckAllFunc func(ctx context.Context, checkedBy string) ([]*entity.ComplianceReport, error)
	LatestFunc   func(ctx context.Context, templateID int64) (*entity.ComplianceReport, error)
	StatsFunc    func(ctx context.Context) (*entity.ComplianceStats, error)
}

func (m *mockComplianceService) Check(ctx context.Context, templateID int64, checkedBy string) (*entity.ComplianceReport, error) {
	return m.CheckFunc(ctx, templateID, checkedBy)
}

func (m *mockComplianceService) CheckAll(ctx context.Context, checkedBy string) ([]*entity.ComplianceReport, error) {
	return m.CheckAllFunc(ctx, checkedBy)
}

func (m *mockComplianceService) Latest(ctx context.Context, templateID int64) (*entity.ComplianceReport, error) {
	return m.LatestFunc(ctx, templateID)
}

func (m *mockComplianceService) Stats(ctx context.Context) (*entity.ComplianceStats, error) {
	return m.StatsFunc(ctx)
}

type mockDeliveryService struct {
	DeliverFunc func(ctx context.Context, generationID int64) (*entity.Delivery, error)
	HistoryFunc func(ctx context.Context, generationID int64) ([]*entity.Delivery, error)
}

func (m *mockDeliveryService) Deliver(ctx context.Context, generationID int64) (*entity.Delivery, error) {
	return m.DeliverFunc(ctx, generationID)
}

func (m *mockDeliveryService) HandleCompleted(ctx context.Context, evt *event.Event) error {
	return nil
}

func (m *mockDeliveryService) History(ctx context.Context, generationID int64) ([]*entity.Delivery, error) {
	return m.HistoryFunc(ctx, generationID)
}

type mockHealthChecker struct {
	status *container.HealthStatus
}

func (m *mockHealthChecker) Health(ctx context.Context) *container.HealthStatus {
	return m.status
}
