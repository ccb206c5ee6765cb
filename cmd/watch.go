package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/imagedrop/internal/presenter"
	"github.com/andresmejia3/imagedrop/internal/watch"
)

var (
	watchMode     string
	watchDebounce string
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Process every image dropped into a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runWatch(cmd, args[0])
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchMode, "mode", "m", toolUpscale, "Tool to run on dropped files: upscale, filter")
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", watch.DefaultDebounce.String(), "How long a file must stop changing before it is processed")
	watchCmd.Flags().IntVarP(&filterStrength, "strength", "s", 15, "Pixelation block size for the pixel style")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("drop folder not found: %s", dir)
	}
	debounce, err := parseDuration("debounce", watchDebounce)
	if err != nil {
		return err
	}

	proc, err := newProcessor(cfg, watchMode, nil, filterStrength)
	if err != nil {
		return err
	}
	defer closeProcessor(proc)

	logger := slog.Default().With("tool", proc.Name())
	term := presenter.NewTerminal(cfg.OutputDir, false)
	p := newPipeline(cfg, proc, term, logger)

	w := watch.New(dir, p, logger, proc.ArtifactPrefix())
	w.Debounce = debounce
	return w.Run(cmd.Context())
}
