package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/config"
	"github.com/garyjia/legal-docgen/internal/container"
	httpapi "github.com/garyjia/legal-docgen/internal/interfaces/http"
	"github.com/garyjia/legal-docgen/pkg/utils"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "legal-docgen",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting legal document generation service",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service terminated", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	containerCfg := cfg.ToContainerConfig()
	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	services := c.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:          containerCfg.Server.Host,
		Port:          containerCfg.Server.Port,
		ReadTimeout:   containerCfg.Server.ReadTimeout,
		WriteTimeout:  containerCfg.Server.WriteTimeout,
		MaxUploadSize: containerCfg.Pipeline.MaxTemplateSize,
	}, httpapi.Services{
		Templates:   services.Template,
		Generations: services.Generation,
		Integrity:   services.Integrity,
		Compliance:  services.Compliance,
		Delivery:    services.Delivery,
	}, c, logger)

	// Start blocks until a signal cancels ctx
	return server.Start(ctx)
}
