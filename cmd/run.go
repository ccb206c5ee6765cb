package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/imagedrop/internal/presenter"
)

var (
	upscaleInput   string
	filterInput    string
	filterStyle    string
	filterStrength int
)

var upscaleCmd = &cobra.Command{
	Use:   "upscale",
	Short: "Upscale one image and save it as upscaled_<name>.png",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSingle(cmd.Context(), toolUpscale, upscaleInput)
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Put a dog face on the main face of one image and save it as dog-filter-<name>.png",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if cmd.Flags().Changed("style") {
			cfg.Face.Style = filterStyle
		}
		return runSingle(cmd.Context(), toolFilter, filterInput)
	},
}

func init() {
	upscaleCmd.Flags().StringVarP(&upscaleInput, "input", "i", "", "Path to input image")
	upscaleCmd.MarkFlagRequired("input")

	filterCmd.Flags().StringVarP(&filterInput, "input", "i", "", "Path to input image")
	filterCmd.Flags().StringVar(&filterStyle, "style", "dog", "Overlay style: dog, pixel, black")
	filterCmd.Flags().IntVarP(&filterStrength, "strength", "s", 15, "Pixelation block size for the pixel style")
	filterCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(upscaleCmd, filterCmd)
}

// runSingle pushes one file through a fresh pipeline and writes the artifact to the output dir.
func runSingle(ctx context.Context, tool, input string) error {
	if err := validateInput(input); err != nil {
		return err
	}

	proc, err := newProcessor(cfg, tool, nil, filterStrength)
	if err != nil {
		return err
	}
	defer closeProcessor(proc)

	file, err := readSource(input)
	if err != nil {
		return err
	}

	term := presenter.NewTerminal(cfg.OutputDir, !verbose)
	p := newPipeline(cfg, proc, term, slog.Default())
	return p.OnFileSubmitted(ctx, file)
}
