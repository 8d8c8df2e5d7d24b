// Command cv-analyzer-admin performs operational tasks against the evaluation
// database: migrations, rubric ingestion, queue inspection and retention.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hanifsetyadi/cv-analyzer/config"
	"github.com/hanifsetyadi/cv-analyzer/internal/bootstrap"
)

// app carries state shared by every subcommand.
type app struct {
	logger *slog.Logger
	cfg    config.AppConfig
	// loadConfig is replaced in tests.
	loadConfig func() (config.AppConfig, error)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cv-analyzer-admin",
		Short:         "Administrative commands for cv-analyzer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(a),
		newDBResetCmd(a),
		newRubricCmd(a),
		newJobCmd(a),
		newReapCmd(a),
	)
	return root
}

func main() {
	a := &app{
		logger:     bootstrap.InitLogger(os.Getenv("LOG_LEVEL")),
		loadConfig: bootstrap.LoadConfig,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		a.logger.Error("command failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal failure to shell scripts
	}
}
