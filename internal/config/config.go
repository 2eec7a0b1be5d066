// Package config loads the service configuration from YAML, environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Storage    StorageConfig     `mapstructure:"storage"`
	Renderer   RendererConfig    `mapstructure:"renderer"`
	Entities   EntitiesConfig    `mapstructure:"entities"`
	Email      EmailConfig       `mapstructure:"email"`
	Company    map[string]string `mapstructure:"company"`
	Legal      map[string]string `mapstructure:"legal"`
	Compliance ComplianceConfig  `mapstructure:"compliance"`
	Pipeline   PipelineConfig    `mapstructure:"pipeline"`
	Worker     WorkerConfig      `mapstructure:"worker"`
	Logger     LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	BaseDir string      `mapstructure:"base_dir"`
	Minio   MinioConfig `mapstructure:"minio"`
}

// MinioConfig holds object storage configuration
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// RendererConfig holds document rendering configuration
type RendererConfig struct {
	Mode         string        `mapstructure:"mode"`
	GotenbergURL string        `mapstructure:"gotenberg_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// EntitiesConfig holds the entity database configuration
type EntitiesConfig struct {
	Driver     string            `mapstructure:"driver"`
	DSN        string            `mapstructure:"dsn"`
	Tables     map[string]string `mapstructure:"tables"`
	IDColumn   string            `mapstructure:"id_column"`
	StaticFile string            `mapstructure:"static_file"`
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// ComplianceConfig holds compliance audit configuration
type ComplianceConfig struct {
	Jurisdiction string `mapstructure:"jurisdiction"`
	RulesFile    string `mapstructure:"rules_file"`
}

// PipelineConfig holds generation pipeline configuration
type PipelineConfig struct {
	TimeZone          string        `mapstructure:"time_zone"`
	MaxTemplateSize   int64         `mapstructure:"max_template_size"`
	NumberingAttempts int           `mapstructure:"numbering_attempts"`
	NumberingBackoff  time.Duration `mapstructure:"numbering_backoff"`
	HandlerTimeout    time.Duration `mapstructure:"handler_timeout"`
	MaxConcurrentJobs int64         `mapstructure:"max_concurrent_jobs"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// A .env file next to the working directory is read first; variables already set win.
// configPath may be empty, in which case defaults and the environment are used.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DOCGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/docgen.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.auto_migrate", true)

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", "data/documents")
	v.SetDefault("storage.minio.bucket", "documents")

	// Renderer defaults
	v.SetDefault("renderer.mode", "merge")
	v.SetDefault("renderer.timeout", 60*time.Second)

	// Entity database defaults
	v.SetDefault("entities.driver", "postgres")
	v.SetDefault("entities.id_column", "id")

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.port", 587)

	// Compliance defaults
	v.SetDefault("compliance.jurisdiction", "FR")

	// Pipeline defaults
	v.SetDefault("pipeline.time_zone", "Europe/Paris")
	v.SetDefault("pipeline.max_template_size", 20<<20)
	v.SetDefault("pipeline.numbering_attempts", 5)
	v.SetDefault("pipeline.numbering_backoff", 20*time.Millisecond)
	v.SetDefault("pipeline.handler_timeout", 2*time.Minute)
	v.SetDefault("pipeline.max_concurrent_jobs", 8)

	// Worker defaults
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.poll_interval", 5*time.Second)
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.process_timeout", 2*time.Minute)
	v.SetDefault("worker.sweep_interval", time.Minute)
	v.SetDefault("worker.stale_after", 10*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("entities.dsn", "ENTITIES_DSN")
	_ = v.BindEnv("storage.minio.access_key", "MINIO_ACCESS_KEY")
	_ = v.BindEnv("storage.minio.secret_key", "MINIO_SECRET_KEY")
	_ = v.BindEnv("email.username", "SMTP_USERNAME")
	_ = v.BindEnv("email.password", "SMTP_PASSWORD")
	_ = v.BindEnv("renderer.gotenberg_url", "GOTENBERG_URL")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Storage.Backend {
	case "local", "minio":
	default:
		return fmt.Errorf("storage.backend must be local or minio")
	}

	switch c.Renderer.Mode {
	case "merge", "gotenberg":
	default:
		return fmt.Errorf("renderer.mode must be merge or gotenberg")
	}

	switch c.Entities.Driver {
	case "postgres", "sqlite3":
		if c.Entities.DSN == "" {
			return fmt.Errorf("entities.dsn is required")
		}
	case "static":
	default:
		return fmt.Errorf("entities.driver must be postgres, sqlite3 or static")
	}

	if c.Email.Enabled && c.Email.From == "" {
		return fmt.Errorf("email.from is required when email is enabled")
	}

	if c.Worker.BatchSize < 0 {
		return fmt.Errorf("worker.batch_size cannot be negative")
	}

	return nil
}
