package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// memStorage is an in-memory FileStorage
type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (s *memStorage) Save(ctx context.Context, key string, content []byte) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = append([]byte(nil), content...)
	return nil
}

func (s *memStorage) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", key)
	}
	return append([]byte(nil), b...), nil
}

func (s *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[key]
	return ok, nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

func (s *memStorage) Size(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.files[key])), nil
}

func (s *memStorage) keysWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.files {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// memCounterRepo is an in-memory CounterRepository
type memCounterRepo struct {
	mu           sync.Mutex
	values       map[string]int64
	advanceErr   func(call int) error
	calls        int
}

func newMemCounterRepo() *memCounterRepo {
	return &memCounterRepo{values: make(map[string]int64)}
}

func counterKey(docType entity.DocumentType, year int) string {
	return fmt.Sprintf("%s/%d", docType, year)
}

func (r *memCounterRepo) Advance(ctx context.Context, docType entity.DocumentType, year int, from int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.advanceErr != nil {
		if err := r.advanceErr(r.calls); err != nil {
			return 0, err
		}
	}
	key := counterKey(docType, year)
	if r.values[key] != from {
		return 0, entity.ErrNumberingConflict
	}
	r.values[key] = from + 1
	return from + 1, nil
}

// set moves a counter as another process would
func (r *memCounterRepo) set(docType entity.DocumentType, year int, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[counterKey(docType, year)] = value
}

func (r *memCounterRepo) Current(ctx context.Context, docType entity.DocumentType, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[counterKey(docType, year)], nil
}

func (r *memCounterRepo) snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[string]int64, len(r.values))
	for k, v := range r.values {
		cp[k] = v
	}
	return cp
}

func (r *memCounterRepo) restore(values map[string]int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = values
}

// memGenerationRepo is an in-memory GenerationRepository that enforces the lock rules
type memGenerationRepo struct {
	mu          sync.Mutex
	rows        map[int64]entity.Generation
	nextID      int64
	finalizeErr error
}

func newMemGenerationRepo() *memGenerationRepo {
	return &memGenerationRepo{rows: make(map[int64]entity.Generation)}
}

func (r *memGenerationRepo) Create(ctx context.Context, gen *entity.Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	gen.ID = r.nextID
	r.rows[gen.ID] = *gen
	return nil
}

func (r *memGenerationRepo) GetByID(ctx context.Context, id int64) (*entity.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *memGenerationRepo) GetByLegalNumber(ctx context.Context, legalNumber string) (*entity.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.rows {
		if g.LegalNumber == legalNumber {
			g := g
			return &g, nil
		}
	}
	return nil, nil
}

func (r *memGenerationRepo) sorted(keep func(entity.Generation) bool) []*entity.Generation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Generation
	for _, g := range r.rows {
		if keep(g) {
			g := g
			out = append(out, &g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memGenerationRepo) List(ctx context.Context, filter entity.GenerationFilter) ([]*entity.Generation, error) {
	return r.sorted(func(g entity.Generation) bool {
		return (filter.DocumentType == "" || g.DocumentType == filter.DocumentType) &&
			(filter.Status == "" || g.Status == filter.Status)
	}), nil
}

func (r *memGenerationRepo) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rows[id]
	if !ok || g.Status != entity.GenerationStatusPending {
		return false, nil
	}
	g.Status = entity.GenerationStatusGenerating
	g.UpdatedAt = now
	r.rows[id] = g
	return true, nil
}

func (r *memGenerationRepo) ListPending(ctx context.Context, limit int) ([]*entity.Generation, error) {
	return r.sorted(func(g entity.Generation) bool { return g.Status == entity.GenerationStatusPending }), nil
}

func (r *memGenerationRepo) ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]*entity.Generation, error) {
	return r.sorted(func(g entity.Generation) bool {
		return g.Status == entity.GenerationStatusGenerating && g.UpdatedAt.Before(startedBefore)
	}), nil
}

func (r *memGenerationRepo) ListLocked(ctx context.Context, limit, offset int) ([]*entity.Generation, error) {
	all := r.sorted(func(g entity.Generation) bool { return g.Locked })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memGenerationRepo) update(id int64, fn func(old entity.Generation) (entity.Generation, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("generation %d not found", id)
	}
	if old.Locked {
		return entity.ErrGenerationLocked
	}
	next, err := fn(old)
	if err != nil {
		return err
	}
	r.rows[id] = next
	return nil
}

func (r *memGenerationRepo) Complete(ctx context.Context, gen *entity.Generation) error {
	return r.update(gen.ID, func(old entity.Generation) (entity.Generation, error) {
		if old.Status != entity.GenerationStatusGenerating {
			return old, errors.New("not generating")
		}
		return *gen, nil
	})
}

func (r *memGenerationRepo) Finalize(ctx context.Context, gen *entity.Generation) error {
	if r.finalizeErr != nil {
		return r.finalizeErr
	}
	return r.update(gen.ID, func(old entity.Generation) (entity.Generation, error) {
		for _, other := range r.rows {
			if other.ID != gen.ID && other.LegalNumber != "" && other.LegalNumber == gen.LegalNumber {
				return old, errors.New("UNIQUE constraint failed: generations.legal_number")
			}
		}
		return *gen, nil
	})
}

func (r *memGenerationRepo) MarkFailed(ctx context.Context, gen *entity.Generation) error {
	return r.update(gen.ID, func(old entity.Generation) (entity.Generation, error) {
		old.Status = entity.GenerationStatusFailed
		old.ErrorMessage = gen.ErrorMessage
		old.DurationMs = gen.DurationMs
		old.UpdatedAt = gen.UpdatedAt
		return old, nil
	})
}

func (r *memGenerationRepo) UpdateDelivery(ctx context.Context, gen *entity.Generation) error {
	return r.update(gen.ID, func(old entity.Generation) (entity.Generation, error) {
		old.Status = gen.Status
		old.EmailStatus = gen.EmailStatus
		old.EmailSentAt = gen.EmailSentAt
		old.UpdatedAt = gen.UpdatedAt
		return old, nil
	})
}

func (r *memGenerationRepo) Archive(ctx context.Context, id int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.rows[id]
	g.Status = entity.GenerationStatusArchived
	r.rows[id] = g
	return nil
}

func (r *memGenerationRepo) CountByTemplate(ctx context.Context, templateID int64) (int, error) {
	return len(r.sorted(func(g entity.Generation) bool { return g.TemplateID == templateID })), nil
}

func (r *memGenerationRepo) Stats(ctx context.Context) (*port.GenerationStats, error) {
	stats := &port.GenerationStats{ByType: map[string]int{}, ByStatus: map[string]int{}}
	for _, g := range r.sorted(func(entity.Generation) bool { return true }) {
		stats.Total++
		stats.ByType[g.DocumentType.String()]++
		stats.ByStatus[g.Status]++
		if g.Locked {
			stats.Locked++
		}
	}
	return stats, nil
}

func (r *memGenerationRepo) snapshot() map[int64]entity.Generation {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[int64]entity.Generation, len(r.rows))
	for k, v := range r.rows {
		cp[k] = v
	}
	return cp
}

func (r *memGenerationRepo) restore(rows map[int64]entity.Generation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = rows
}

// memTxManager rolls the in-memory counters and generations back when fn fails
// or the context ends before commit
type memTxManager struct {
	counters    *memCounterRepo
	generations *memGenerationRepo
	mu          sync.Mutex
}

func (m *memTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters := m.counters.snapshot()
	rows := m.generations.snapshot()

	err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		m.counters.restore(counters)
		m.generations.restore(rows)
	}
	return err
}

// mockTemplateRepo is a func-field TemplateRepository backed by a small map by default
type mockTemplateRepo struct {
	mu     sync.Mutex
	rows   map[int64]*entity.Template
	active map[entity.DocumentType]int64
	nextID int64

	createFunc func(ctx context.Context, tpl *entity.Template) error
}

func newMockTemplateRepo() *mockTemplateRepo {
	return &mockTemplateRepo{
		rows:   make(map[int64]*entity.Template),
		active: make(map[entity.DocumentType]int64),
	}
}

func (m *mockTemplateRepo) copyOf(t *entity.Template) *entity.Template {
	cp := *t
	cp.Tags = append([]entity.TagRef(nil), t.Tags...)
	cp.Active = m.active[t.DocumentType] == t.ID
	return &cp
}

func (m *mockTemplateRepo) Create(ctx context.Context, tpl *entity.Template) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, tpl); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	tpl.ID = m.nextID
	m.rows[tpl.ID] = m.copyOf(tpl)
	return nil
}

func (m *mockTemplateRepo) GetByID(ctx context.Context, id int64) (*entity.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return m.copyOf(t), nil
}

func (m *mockTemplateRepo) List(ctx context.Context, filter entity.TemplateFilter) ([]*entity.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Template
	for id := int64(1); id <= m.nextID; id++ {
		t, ok := m.rows[id]
		if !ok || (t.IsDeleted() && !filter.IncludeDeleted) {
			continue
		}
		if filter.DocumentType != "" && t.DocumentType != filter.DocumentType {
			continue
		}
		out = append(out, m.copyOf(t))
	}
	return out, nil
}

func (m *mockTemplateRepo) NextVersion(ctx context.Context, name string, docType entity.DocumentType) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, t := range m.rows {
		if t.Name == name && t.DocumentType == docType && t.Version > max {
			max = t.Version
		}
	}
	return max + 1, nil
}

func (m *mockTemplateRepo) ReplaceManifest(ctx context.Context, id int64, tags []entity.TagRef, staticText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("template %d not found", id)
	}
	t.Tags = append([]entity.TagRef(nil), tags...)
	t.StaticText = staticText
	return nil
}

func (m *mockTemplateRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].DeletedAt = &at
	return nil
}

func (m *mockTemplateRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *mockTemplateRepo) SetActive(ctx context.Context, docType entity.DocumentType, templateID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[docType] = templateID
	return nil
}

func (m *mockTemplateRepo) ClearActive(ctx context.Context, docType entity.DocumentType, templateID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[docType] != templateID {
		return false, nil
	}
	delete(m.active, docType)
	return true, nil
}

func (m *mockTemplateRepo) GetActive(ctx context.Context, docType entity.DocumentType) (*entity.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[docType]
	if !ok {
		return nil, nil
	}
	return m.copyOf(m.rows[id]), nil
}

func (m *mockTemplateRepo) Counts(ctx context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), len(m.active), nil
}

// fakeProvider serves entities from a nested map and counts lookups per category
type fakeProvider struct {
	mu      sync.Mutex
	records map[string]map[string]port.Attributes
	calls   map[string]int
	err     error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		records: make(map[string]map[string]port.Attributes),
		calls:   make(map[string]int),
	}
}

func (p *fakeProvider) add(entityType, id string, attrs port.Attributes) {
	if p.records[entityType] == nil {
		p.records[entityType] = make(map[string]port.Attributes)
	}
	p.records[entityType][id] = attrs
}

func (p *fakeProvider) Lookup(ctx context.Context, entityType, id string) (port.Attributes, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[entityType]++
	if p.err != nil {
		return nil, p.err
	}
	return p.records[entityType][id], nil
}

// fakeRenderer writes the flattened values in tag-name order
type fakeRenderer struct {
	renderFunc func(ctx context.Context, in port.RenderInput) (*port.RenderOutput, error)
}

func (r *fakeRenderer) Render(ctx context.Context, in port.RenderInput) (*port.RenderOutput, error) {
	if r.renderFunc != nil {
		return r.renderFunc(ctx, in)
	}
	values := in.Values.Strings()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.Write(in.Template)
	for _, name := range names {
		fmt.Fprintf(&b, "\n%s=%s", name, values[name])
	}
	return &port.RenderOutput{Content: []byte(b.String()), Ext: "txt", Pages: 1}, nil
}

type fakeExtractor struct {
	err error
}

func (e *fakeExtractor) Extract(ctx context.Context, fileName string, content []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return string(content), nil
}

type mockEmailSender struct {
	mu       sync.Mutex
	sent     []port.EmailMessage
	sendFunc func(ctx context.Context, msg port.EmailMessage) error
}

func (m *mockEmailSender) Send(ctx context.Context, msg port.EmailMessage) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type memDeliveryRepo struct {
	mu   sync.Mutex
	rows []*entity.Delivery
}

func (r *memDeliveryRepo) Create(ctx context.Context, d *entity.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = int64(len(r.rows) + 1)
	cp := *d
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memDeliveryRepo) ListByGeneration(ctx context.Context, generationID int64) ([]*entity.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Delivery
	for _, d := range r.rows {
		if d.GenerationID == generationID {
			out = append(out, d)
		}
	}
	return out, nil
}

type memReportRepo struct {
	mu      sync.Mutex
	reports map[int64]entity.ComplianceReport
}

func newMemReportRepo() *memReportRepo {
	return &memReportRepo{reports: make(map[int64]entity.ComplianceReport)}
}

func (r *memReportRepo) Save(ctx context.Context, report *entity.ComplianceReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.TemplateID] = *report
	return nil
}

func (r *memReportRepo) GetByTemplateID(ctx context.Context, templateID int64) (*entity.ComplianceReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[templateID]
	if !ok {
		return nil, nil
	}
	return &rep, nil
}

func (r *memReportRepo) Summary(ctx context.Context) (*port.ComplianceSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &port.ComplianceSummary{}
	total := 0
	for _, rep := range r.reports {
		s.Checked++
		total += rep.Score
		if rep.Compliant {
			s.Compliant++
		}
		if s.LastCheckAt == nil || rep.CheckedAt.After(*s.LastCheckAt) {
			at := rep.CheckedAt
			s.LastCheckAt = &at
		}
	}
	if s.Checked > 0 {
		s.AverageScore = float64(total) / float64(s.Checked)
	}
	return s, nil
}

var (
	_ port.FileStorage                = (*memStorage)(nil)
	_ port.CounterRepository          = (*memCounterRepo)(nil)
	_ port.GenerationRepository       = (*memGenerationRepo)(nil)
	_ port.TemplateRepository         = (*mockTemplateRepo)(nil)
	_ port.TransactionManager         = (*memTxManager)(nil)
	_ port.EntityProvider             = (*fakeProvider)(nil)
	_ port.Renderer                   = (*fakeRenderer)(nil)
	_ port.TextExtractor              = (*fakeExtractor)(nil)
	_ port.EmailSender                = (*mockEmailSender)(nil)
	_ port.DeliveryRepository         = (*memDeliveryRepo)(nil)
	_ port.ComplianceReportRepository = (*memReportRepo)(nil)
	_ port.EventPublisher             = (*recordingPublisher)(nil)
)
