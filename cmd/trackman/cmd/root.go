package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	fxmodules "trackman-importer/internal/fx"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	configPath string
	logLevel   string
	dataDir    string
)

var rootCmd = &cobra.Command{
	Use:           "trackman",
	Short:         "trackman imports Trackman report links into deduplicated shot tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// flags win over the environment
		for name, value := range map[string]string{
			"TRACKMAN_CONFIG":    configPath,
			"TRACKMAN_LOG_LEVEL": logLevel,
			"TRACKMAN_DATA_DIR":  dataDir,
		} {
			if value == "" {
				continue
			}
			if err := os.Setenv(name, value); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for raw reports and processed tables")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp builds the application graph, fills targets from it and runs fn
// between start and stop.
func withApp(ctx context.Context, fn func() error, targets ...any) error {
	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
