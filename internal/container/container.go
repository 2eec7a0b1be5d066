package container

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/dispatcher"
	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/application/service"
	"github.com/garyjia/legal-docgen/internal/domain/compliance"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
	"github.com/garyjia/legal-docgen/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/legal-docgen/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger
	clock  port.Clock

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	storage  port.FileStorage
	renderer *RendererBundle
	entities *EntityBundle
	sender   port.EmailSender

	// Application
	catalog    *tag.Catalog
	rules      compliance.RuleSet
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Template   port.TemplateRepository
	Generation port.GenerationRepository
	Counter    port.CounterRepository
	Compliance port.ComplianceReportRepository
	Delivery   port.DeliveryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Template   service.TemplateService
	Resolver   service.ResolverService
	Numbering  service.NumberingService
	Generation service.GenerationService
	Integrity  service.IntegrityService
	Compliance service.ComplianceService
	Delivery   service.DeliveryService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option configures the container
type Option func(*Container)

// WithClock replaces the wall clock, e.g. to pin the numbering year in tests
func WithClock(clock port.Clock) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		loc, err := time.LoadLocation(cfg.Pipeline.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid time zone: %w", err)
		}
		c.clock = port.SystemClock{Location: loc}
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Storage, renderer, entity provider and email sender
// 3. Tag catalog and compliance rules
// 4. Event dispatcher, application services and their subscriptions
// 5. Workers, when enabled
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"external adapters", c.initExternal},
		{"compliance rules", c.initRules},
		{"services", c.initServices},
		{"workers", c.initWorkers},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.logger.Error("Container initialization failed", zap.String("step", step.name), zap.Error(err))
			c.teardown()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Container step initialized", zap.String("step", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// running handlers finish before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.entities != nil && c.entities.Database != nil {
		if err := c.entities.Database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close entity database: %w", err))
		}
		c.entities = nil
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.sqlDB = nil
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, err error, message string) {
		h := ComponentHealth{Healthy: err == nil, Message: message}
		if err != nil {
			h.Message = err.Error()
			status.Overall = false
		}
		status.Components[name] = h
	}

	if c.sqlDB == nil {
		set("database", errors.New("not initialized"), "")
	} else {
		set("database", c.sqlDB.PingContext(ctx), "")
	}

	if c.entities == nil {
		set("entities", errors.New("not initialized"), "")
	} else if c.entities.Database != nil {
		set("entities", c.entities.Database.Ping(ctx), "")
	} else {
		set("entities", nil, "static")
	}

	if c.renderer != nil && c.renderer.Gotenberg != nil {
		set("renderer", c.renderer.Gotenberg.Ping(ctx), "gotenberg")
	} else if c.renderer != nil {
		set("renderer", nil, "merge")
	}

	if c.dispatcher == nil {
		set("dispatcher", errors.New("not initialized"), "")
	} else {
		set("dispatcher", nil, "")
	}

	if c.config.Worker.Enabled {
		if c.workers == nil || !c.workers.IsRunning() {
			set("workers", errors.New("not running"), "")
		} else {
			set("workers", nil, fmt.Sprintf("worker count: %d", c.workers.Count()))
		}
	}

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternal() error {
	fileStorage, err := ProvideStorage(c.ctx, &c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.storage = fileStorage

	if c.renderer, err = ProvideRenderer(&c.config.Renderer, c.logger); err != nil {
		return err
	}
	if c.entities, err = ProvideEntityProvider(&c.config.Entities, c.logger); err != nil {
		return err
	}
	if c.sender, err = ProvideEmailSender(&c.config.Email, c.logger); err != nil {
		return err
	}
	return nil
}

func (c *Container) initRules() error {
	c.catalog = tag.DefaultCatalog()

	rules, err := ProvideRules(&c.config.Compliance, c.catalog, c.logger)
	if err != nil {
		return err
	}
	c.rules = rules
	return nil
}

func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(&c.config.Pipeline, c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	services, err := ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		TxManager: c.db,
		Storage:   c.storage,
		Renderer:  c.renderer.Renderer,
		Entities:  c.entities.Provider,
		Sender:    c.sender,
		Publisher: c.dispatcher,
		Catalog:   c.catalog,
		Rules:     c.rules,
		Clock:     c.clock,
		Config:    c.config,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services

	RegisterEventHandlers(c.dispatcher, c.services)
	return nil
}

func (c *Container) initWorkers() error {
	if !c.config.Worker.Enabled {
		c.logger.Info("Background workers disabled")
		return nil
	}

	workers, err := ProvideWorkers(&WorkerDeps{
		Generations: c.repositories.Generation,
		Pipeline:    c.services.Generation,
		WorkerCfg:   &c.config.Worker,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Storage returns the document storage.
func (c *Container) Storage() port.FileStorage {
	return c.storage
}

// EntityProvider returns the entity provider.
func (c *Container) EntityProvider() port.EntityProvider {
	if c.entities == nil {
		return nil
	}
	return c.entities.Provider
}

// Catalog returns the tag catalog.
func (c *Container) Catalog() *tag.Catalog {
	return c.catalog
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager, nil when workers are disabled.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Clock returns the clock used for timestamps and numbering years.
func (c *Container) Clock() port.Clock {
	return c.clock
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

func normalizeJurisdiction(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return compliance.DefaultJurisdiction
	}
	return code
}

// zapLoggerAdapter adapts zap.Logger to the service and dispatcher Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// Verify interface compliance
var (
	_ service.Logger    = (*zapLoggerAdapter)(nil)
	_ dispatcher.Logger = (*zapLoggerAdapter)(nil)
)
