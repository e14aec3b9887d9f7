// Command shambuctl inspects and seeds the profile network directly against
// the configured backend. Configuration comes from the environment only.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/backend"
	"github.com/shambu-network/shambu/pkg/config"
	"github.com/shambu-network/shambu/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	backendFlag  string
	logLevelFlag string
	rootCmd      = &cobra.Command{
		Use:           "shambuctl",
		Short:         "CLI for the shambu profile network",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// env is what every command needs: a logger and an open backend.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	backend *backend.Backend
}

func (e *env) close() {
	e.backend.Close()
	_ = e.logger.Sync()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadFromEnv(Version)
	if err != nil {
		return nil, err
	}
	if backendFlag != "" {
		cfg.Backend.Type = backendFlag
	}
	level := logLevelFlag
	if level == "" {
		level = "warn"
	}
	logger, err := logging.NewLogger(cfg.Env, level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	be, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, backend: be}, nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&backendFlag, "backend", "b", "", "Backend type (postgres or supabase); overrides BACKEND")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (default warn)")

	rootCmd.AddCommand(newListCmd(), newCandidatesCmd(), newWatchCmd(), newImportCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
