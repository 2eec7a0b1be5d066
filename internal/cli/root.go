// Package cli implements docgenctl, the operator command line for the
// document generation service.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/config"
	"github.com/garyjia/legal-docgen/internal/container"
	"github.com/garyjia/legal-docgen/pkg/utils"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the docgenctl command tree
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "docgenctl",
		Short:         "Operate the legal document generation service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "configs/config.yaml", "Path to the configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	cmd.AddCommand(
		MigrateCommand(opts),
		GenerateCommand(opts),
		VerifyCommand(opts),
		VerifyAllCommand(opts),
		LookupCommand(opts),
		EntityCommand(opts),
		ComplianceCommand(opts),
		TemplatesCommand(opts),
		CountersCommand(opts),
	)

	return cmd
}

func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      o.logLevel,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// withContainer runs fn against a started container with background workers disabled
func (o *rootOptions) withContainer(ctx context.Context, fn func(ctx context.Context, c *container.Container) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	containerCfg := cfg.ToContainerConfig()
	containerCfg.Worker.Enabled = false

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
