package config

import (
	"github.com/garyjia/legal-docgen/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			AutoMigrate:     c.Database.AutoMigrate,
		},
		Storage: container.StorageConfig{
			Backend:        c.Storage.Backend,
			BaseDir:        c.Storage.BaseDir,
			MinioEndpoint:  c.Storage.Minio.Endpoint,
			MinioAccessKey: c.Storage.Minio.AccessKey,
			MinioSecretKey: c.Storage.Minio.SecretKey,
			MinioBucket:    c.Storage.Minio.Bucket,
			MinioPrefix:    c.Storage.Minio.Prefix,
			MinioUseSSL:    c.Storage.Minio.UseSSL,
			MinioRegion:    c.Storage.Minio.Region,
		},
		Renderer: container.RendererConfig{
			Mode:         c.Renderer.Mode,
			GotenbergURL: c.Renderer.GotenbergURL,
			Timeout:      c.Renderer.Timeout,
		},
		Entities: container.EntitiesConfig{
			Driver:     c.Entities.Driver,
			DSN:        c.Entities.DSN,
			Tables:     c.Entities.Tables,
			IDColumn:   c.Entities.IDColumn,
			StaticFile: c.Entities.StaticFile,
		},
		Email: container.EmailConfig{
			Enabled:  c.Email.Enabled,
			Host:     c.Email.Host,
			Port:     c.Email.Port,
			Username: c.Email.Username,
			Password: c.Email.Password,
			From:     c.Email.From,
		},
		Compliance: container.ComplianceConfig{
			Jurisdiction: c.Compliance.Jurisdiction,
			RulesFile:    c.Compliance.RulesFile,
		},
		Pipeline: container.PipelineConfig{
			TimeZone:          c.Pipeline.TimeZone,
			MaxTemplateSize:   c.Pipeline.MaxTemplateSize,
			NumberingAttempts: c.Pipeline.NumberingAttempts,
			NumberingBackoff:  c.Pipeline.NumberingBackoff,
			HandlerTimeout:    c.Pipeline.HandlerTimeout,
			MaxConcurrentJobs: c.Pipeline.MaxConcurrentJobs,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Worker: container.WorkerConfig{
			Enabled:        c.Worker.Enabled,
			PollInterval:   c.Worker.PollInterval,
			BatchSize:      c.Worker.BatchSize,
			ProcessTimeout: c.Worker.ProcessTimeout,
			SweepInterval:  c.Worker.SweepInterval,
			StaleAfter:     c.Worker.StaleAfter,
		},
		Company: copyMap(c.Company),
		Legal:   copyMap(c.Legal),
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
