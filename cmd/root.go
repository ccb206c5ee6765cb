package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/imagedrop/internal/config"
	"github.com/andresmejia3/imagedrop/internal/pipeline"
	"github.com/andresmejia3/imagedrop/internal/store"
)

var (
	// DB is the optional run ledger shared by subcommands. Nil when no database is configured.
	DB *store.Store
	// cfg is the resolved configuration: defaults, file, environment, then flags.
	cfg *config.Config

	configPath string
	dbURL      string
	outputDir  string
	verbose    bool
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "imagedrop",
	Short:   "Drop an image, get it upscaled or dog-filtered",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine
		_ = godotenv.Load()

		slog.SetDefault(newLogger(verbose))

		c, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c

		if cfg.Database.URL == "" {
			if needsLedger(cmd) {
				return errors.New("no database configured: set --db, database.url or POSTGRES_HOST")
			}
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), cfg.Database.URL)
		if err != nil {
			if needsLedger(cmd) {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			slog.Warn("run ledger unavailable, continuing without it", "error", err)
			DB = nil
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// The main context might be cancelled already (Ctrl+C) and we still need to close.
			DB.Close(context.Background())
			DB = nil
		}
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.SilenceErrors = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Pipeline failures were already shown to the user by the presenter.
		var f *pipeline.Failure
		if !errors.As(err, &f) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for the run ledger (optional)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Directory artifacts are written to (default: output)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
}

// resolveConfig layers defaults, the config file, the environment and the persistent flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()

	if cmd.Flags().Changed("db") {
		c.Database.URL = dbURL
	}
	if cmd.Flags().Changed("output") {
		c.OutputDir = outputDir
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// needsLedger reports whether cmd cannot run without the database.
func needsLedger(cmd *cobra.Command) bool {
	return cmd.Name() == "history"
}
