// Package main provides the virsorter-runner CLI, which runs VirSorter and
// publishes its results as an HTML report.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ochairo/virsorter-runner/internal/config"
	"github.com/ochairo/virsorter-runner/internal/domain/entities"
	"github.com/ochairo/virsorter-runner/internal/domain/interfaces"
	"github.com/ochairo/virsorter-runner/internal/external-adapters/zaplog"
	"github.com/ochairo/virsorter-runner/internal/telemetry"
)

var version = "dev"

// app carries what every subcommand needs once flags are parsed
type app struct {
	verbose bool
	envFile string

	cfg      config.Config
	logger   interfaces.Logger
	zap      *zaplog.Logger
	shutdown telemetry.Shutdown
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "virsorter-runner",
		Short: "Run VirSorter and publish its predictions as a report",
		Long: `virsorter-runner invokes the VirSorter wrapper on an assembly, parses the
global phage signal table, renders an interactive HTML summary, packages the
predicted viral sequences and registers the report with the platform.

Configuration is read from the environment (and an optional .env file).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Dotenv file to load before reading the environment")

	root.AddCommand(
		newRunCmd(a),
		newRenderCmd(a),
		newToolHelpCmd(a),
		newVerifyCmd(a),
		newPublicKeyCmd(a),
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	z, err := zaplog.NewProduction(level)
	if err != nil {
		return err
	}
	a.zap = z
	a.logger = z

	shutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version)
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) close() {
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Warn("Telemetry shutdown failed", interfaces.Err(err))
		}
		cancel()
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
}

// exitCode separates bad input from runtime failures
func exitCode(err error) int {
	var missing *entities.MissingParameterError
	var invalid *entities.InvalidParameterError
	if errors.As(err, &missing) || errors.As(err, &invalid) {
		return 2
	}
	return 1
}
