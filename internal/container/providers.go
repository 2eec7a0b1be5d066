package container

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/dispatcher"
	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/application/service"
	"github.com/garyjia/legal-docgen/internal/domain/compliance"
	"github.com/garyjia/legal-docgen/internal/domain/event"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
	"github.com/garyjia/legal-docgen/internal/infrastructure/document"
	"github.com/garyjia/legal-docgen/internal/infrastructure/external/entitydb"
	"github.com/garyjia/legal-docgen/internal/infrastructure/external/mail"
	"github.com/garyjia/legal-docgen/internal/infrastructure/persistence/repository"
	"github.com/garyjia/legal-docgen/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/legal-docgen/internal/infrastructure/rulepack"
	"github.com/garyjia/legal-docgen/internal/infrastructure/storage"
	"github.com/garyjia/legal-docgen/internal/infrastructure/worker"
	"github.com/garyjia/legal-docgen/migrations"
	"github.com/garyjia/legal-docgen/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// RendererBundle holds the renderer and, in gotenberg mode, the engine client for health checks.
type RendererBundle struct {
	Renderer  port.Renderer
	Gotenberg *document.GotenbergRenderer
}

// EntityBundle holds the entity provider. Database is nil for the static provider.
type EntityBundle struct {
	Provider port.EntityProvider
	Database *entitydb.Provider
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		applied, err := database.NewMigrator(db, logger).RunMigrations(migrations.FS)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Migrations checked", zap.Int("applied", applied))
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Template:   repository.NewTemplateRepository(sqlDB, logger),
		Generation: repository.NewGenerationRepository(sqlDB, logger),
		Counter:    repository.NewCounterRepository(sqlDB, logger),
		Compliance: repository.NewComplianceReportRepository(sqlDB, logger),
		Delivery:   repository.NewDeliveryRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the configured document storage backend.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	return storage.New(ctx, storage.Config{
		Backend: cfg.Backend,
		BaseDir: cfg.BaseDir,
		Minio: storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Prefix:    cfg.MinioPrefix,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
		},
	}, logger)
}

// ProvideRenderer creates the merge renderer, wrapped by the PDF converter in gotenberg mode.
func ProvideRenderer(cfg *RendererConfig, logger *zap.Logger) (*RendererBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("renderer config is required")
	}

	merge := document.NewMergeRenderer(logger)
	if cfg.Mode != RendererGotenberg {
		return &RendererBundle{Renderer: merge}, nil
	}

	gotenberg := document.NewGotenbergRenderer(merge, document.GotenbergConfig{
		URL:     cfg.GotenbergURL,
		Timeout: cfg.Timeout,
	}, logger)
	return &RendererBundle{Renderer: gotenberg, Gotenberg: gotenberg}, nil
}

// ProvideEntityProvider connects to the entity database, or loads the static entities file.
func ProvideEntityProvider(cfg *EntitiesConfig, logger *zap.Logger) (*EntityBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("entities config is required")
	}

	if cfg.Driver == "static" {
		if cfg.StaticFile == "" {
			return &EntityBundle{Provider: entitydb.NewStaticProvider()}, nil
		}
		static, err := entitydb.LoadStaticProvider(cfg.StaticFile)
		if err != nil {
			return nil, err
		}
		return &EntityBundle{Provider: static}, nil
	}

	db, err := entitydb.Open(entitydb.Config{
		Driver:   cfg.Driver,
		DSN:      cfg.DSN,
		Tables:   cfg.Tables,
		IDColumn: cfg.IDColumn,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &EntityBundle{Provider: db, Database: db}, nil
}

// ProvideEmailSender creates the SMTP sender, or a logging sender when email is disabled.
func ProvideEmailSender(cfg *EmailConfig, logger *zap.Logger) (port.EmailSender, error) {
	if cfg == nil || !cfg.Enabled {
		return mail.NewLogSender(logger), nil
	}

	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}, logger)
}

// ProvideRules loads the compliance rules, overlaid with the configured rule pack.
func ProvideRules(cfg *ComplianceConfig, catalog *tag.Catalog, logger *zap.Logger) (compliance.RuleSet, error) {
	rules, err := rulepack.Load(cfg.RulesFile, catalog, logger)
	if err != nil {
		return nil, err
	}
	if _, ok := rules[normalizeJurisdiction(cfg.Jurisdiction)]; !ok {
		return nil, fmt.Errorf("no compliance rules for jurisdiction %s", cfg.Jurisdiction)
	}
	return rules, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *PipelineConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
	}
	if cfg != nil {
		opts = append(opts,
			dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
			dispatcher.WithMaxConcurrent(cfg.MaxConcurrentJobs))
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Storage   port.FileStorage
	Renderer  port.Renderer
	Entities  port.EntityProvider
	Sender    port.EmailSender
	Publisher port.EventPublisher
	Catalog   *tag.Catalog
	Rules     compliance.RuleSet
	Clock     port.Clock
	Config    *Config
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	cfg := deps.Config
	loc, err := time.LoadLocation(cfg.Pipeline.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone: %w", err)
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	scanner := tag.NewScanner(deps.Catalog)

	resolver := service.NewResolverService(
		deps.Entities,
		deps.Catalog,
		deps.Clock,
		service.ResolverConfig{
			Company:  cfg.Company,
			Legal:    cfg.Legal,
			Location: loc,
		},
		serviceLogger,
	)

	numbering := service.NewNumberingService(
		deps.Repos.Counter,
		deps.TxManager,
		deps.Clock,
		service.NumberingConfig{
			MaxAttempts: cfg.Pipeline.NumberingAttempts,
			Backoff:     cfg.Pipeline.NumberingBackoff,
			Location:    loc,
		},
		serviceLogger,
	)

	return &ServiceBundle{
		Template: service.NewTemplateService(
			deps.Repos.Template,
			deps.Repos.Generation,
			deps.Storage,
			document.NewExtractor(deps.Logger),
			scanner,
			deps.TxManager,
			deps.Publisher,
			deps.Clock,
			service.TemplateConfig{MaxFileSize: cfg.Pipeline.MaxTemplateSize},
			serviceLogger,
		),
		Resolver:  resolver,
		Numbering: numbering,
		Generation: service.NewGenerationService(
			deps.Repos.Template,
			deps.Repos.Generation,
			numbering,
			resolver,
			deps.Renderer,
			deps.Storage,
			deps.Publisher,
			deps.Clock,
			service.GenerationConfig{Location: loc},
			serviceLogger,
		),
		Integrity: service.NewIntegrityService(
			deps.Repos.Generation,
			deps.Storage,
			deps.Publisher,
			deps.Clock,
			serviceLogger,
		),
		Compliance: service.NewComplianceService(
			deps.Repos.Template,
			deps.Repos.Generation,
			deps.Repos.Compliance,
			deps.Rules,
			cfg.Compliance.Jurisdiction,
			deps.Publisher,
			deps.Clock,
			serviceLogger,
		),
		Delivery: service.NewDeliveryService(
			deps.Repos.Generation,
			deps.Repos.Template,
			deps.Repos.Delivery,
			deps.Storage,
			deps.Sender,
			resolver,
			scanner,
			deps.Publisher,
			deps.Clock,
			serviceLogger,
		),
	}, nil
}

// ComplianceCheckedBy is recorded on reports produced by the automatic upload check
const ComplianceCheckedBy = "system"

// RegisterEventHandlers subscribes the services to the pipeline events.
func RegisterEventHandlers(d dispatcher.Dispatcher, services *ServiceBundle) {
	d.SubscribeNamed(event.TypeGenerationRequested, "generation_pipeline", func(ctx context.Context, evt *event.Event) error {
		return services.Generation.Process(ctx, evt.SubjectID)
	})
	d.SubscribeNamed(event.TypeGenerationCompleted, "email_delivery", services.Delivery.HandleCompleted)
	d.SubscribeNamed(event.TypeTemplateUploaded, "compliance_check", func(ctx context.Context, evt *event.Event) error {
		_, err := services.Compliance.Check(ctx, evt.SubjectID, ComplianceCheckedBy)
		return err
	})
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Generations port.GenerationRepository
	Pipeline    service.GenerationService
	WorkerCfg   *WorkerConfig
	Logger      *zap.Logger
}

// ProvideWorkers creates the worker manager with all workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Generations == nil || deps.Pipeline == nil {
		return nil, fmt.Errorf("generation repository and pipeline are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(deps.Logger)

	manager.Register(worker.NewGenerationWorker(
		worker.GenerationWorkerConfig{
			PollInterval:   deps.WorkerCfg.PollInterval,
			BatchSize:      deps.WorkerCfg.BatchSize,
			ProcessTimeout: deps.WorkerCfg.ProcessTimeout,
		},
		deps.Generations,
		deps.Pipeline,
		deps.Logger,
	))

	manager.Register(worker.NewStaleGenerationSweeper(
		worker.StaleSweeperConfig{
			Interval:   deps.WorkerCfg.SweepInterval,
			StaleAfter: deps.WorkerCfg.StaleAfter,
			BatchSize:  deps.WorkerCfg.BatchSize,
		},
		deps.Pipeline,
		deps.Logger,
	))

	return manager, nil
}
