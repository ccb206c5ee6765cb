package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/imagedrop/internal/presenter"
	"github.com/andresmejia3/imagedrop/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser drop page for both tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().IntVarP(&filterStrength, "strength", "s", 15, "Pixelation block size for the pixel style")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	logger := slog.Default()
	det := newDetector(cfg)

	tools := make(map[string]web.Tool)
	for _, name := range []string{toolUpscale, toolFilter} {
		proc, err := newProcessor(cfg, name, det, filterStrength)
		if err != nil {
			return err
		}
		defer closeProcessor(proc)

		view := &presenter.Snapshot{}
		tools[name] = web.Tool{Pipeline: newPipeline(cfg, proc, view, logger.With("tool", name)), View: view}
	}

	// Fetch the cascade in the background so the first filter run doesn't wait.
	// A failure here is retried on first use.
	go func() {
		if err := det.Warm(ctx); err != nil {
			logger.Warn("face cascade not loaded yet", "error", err)
		}
	}()

	srv := web.New(ctx, logger, tools)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Server.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down web surface")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
