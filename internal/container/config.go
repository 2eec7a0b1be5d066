// Package container provides dependency injection and lifecycle management
// for the document generation service.
package container

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/garyjia/legal-docgen/internal/infrastructure/storage"
	"github.com/garyjia/legal-docgen/pkg/utils"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database   DatabaseConfig
	Storage    StorageConfig
	Renderer   RendererConfig
	Entities   EntitiesConfig
	Email      EmailConfig
	Compliance ComplianceConfig
	Pipeline   PipelineConfig
	Server     ServerConfig
	Worker     WorkerConfig

	// Company and Legal feed the company.* and legal.* tags
	Company map[string]string
	Legal   map[string]string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration

	// AutoMigrate applies the embedded migrations on start
	AutoMigrate bool
}

// StorageConfig holds document storage settings.
type StorageConfig struct {
	// Backend is "local" or "minio"
	Backend string
	BaseDir string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioPrefix    string
	MinioUseSSL    bool
	MinioRegion    string
}

// RendererConfig selects how templates become documents.
type RendererConfig struct {
	// Mode is "merge" (tag substitution only) or "gotenberg" (merge then convert to PDF)
	Mode         string
	GotenbergURL string
	Timeout      time.Duration
}

// EntitiesConfig points to the operational database holding clients, interventions, etc.
type EntitiesConfig struct {
	// Driver is "postgres", "sqlite3" or "static"
	Driver   string
	DSN      string
	Tables   map[string]string
	IDColumn string

	// StaticFile is a YAML file of entities used when Driver is "static"
	StaticFile string
}

// EmailConfig holds SMTP settings. When Enabled is false emails are only logged.
type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ComplianceConfig selects the rules templates are audited against.
type ComplianceConfig struct {
	Jurisdiction string
	RulesFile    string
}

// PipelineConfig holds generation pipeline settings.
type PipelineConfig struct {
	// TimeZone decides the calendar year of legal numbers
	TimeZone          string
	MaxTemplateSize   int64
	NumberingAttempts int
	NumberingBackoff  time.Duration
	HandlerTimeout    time.Duration
	MaxConcurrentJobs int64
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	Enabled bool

	PollInterval   time.Duration
	BatchSize      int
	ProcessTimeout time.Duration

	SweepInterval time.Duration
	StaleAfter    time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/docgen.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
			AutoMigrate:     true,
		},
		Storage: StorageConfig{
			Backend: storage.BackendLocal,
			BaseDir: "data/documents",
		},
		Renderer: RendererConfig{
			Mode:    RendererMerge,
			Timeout: 60 * time.Second,
		},
		Entities: EntitiesConfig{
			Driver:   "postgres",
			IDColumn: "id",
		},
		Email: EmailConfig{
			Port: 587,
		},
		Compliance: ComplianceConfig{
			Jurisdiction: "FR",
		},
		Pipeline: PipelineConfig{
			TimeZone:          "Europe/Paris",
			MaxTemplateSize:   20 << 20,
			NumberingAttempts: 5,
			NumberingBackoff:  20 * time.Millisecond,
			HandlerTimeout:    2 * time.Minute,
			MaxConcurrentJobs: 8,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Worker: WorkerConfig{
			Enabled:        true,
			PollInterval:   5 * time.Second,
			BatchSize:      10,
			ProcessTimeout: 2 * time.Minute,
			SweepInterval:  time.Minute,
			StaleAfter:     10 * time.Minute,
		},
		Company: map[string]string{},
		Legal:   map[string]string{},
	}
}

// Renderer modes
const (
	RendererMerge     = "merge"
	RendererGotenberg = "gotenberg"
)

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Storage.Backend {
	case storage.BackendLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required")
		}
	case storage.BackendMinio:
		if c.Storage.MinioEndpoint == "" || c.Storage.MinioBucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Renderer.Mode {
	case RendererMerge:
	case RendererGotenberg:
		if c.Renderer.GotenbergURL == "" {
			return fmt.Errorf("renderer.gotenberg_url is required in gotenberg mode")
		}
	default:
		return fmt.Errorf("unknown renderer mode %q", c.Renderer.Mode)
	}

	switch c.Entities.Driver {
	case "postgres", "sqlite3":
		if c.Entities.DSN == "" {
			return fmt.Errorf("entities.dsn is required")
		}
	case "static":
	default:
		return fmt.Errorf("unknown entities driver %q", c.Entities.Driver)
	}

	if c.Email.Enabled && (c.Email.Host == "" || c.Email.From == "") {
		return fmt.Errorf("email.host and email.from are required when email is enabled")
	}

	if _, err := time.LoadLocation(c.Pipeline.TimeZone); err != nil {
		return fmt.Errorf("invalid pipeline.time_zone: %w", err)
	}

	if siret := c.Company["siret"]; siret != "" {
		if err := utils.ValidateSIRET(siret); err != nil {
			return fmt.Errorf("invalid company.siret: %w", err)
		}
	}

	return nil
}
