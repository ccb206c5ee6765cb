package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/imagedrop/internal/config"
	"github.com/andresmejia3/imagedrop/internal/utils"
)

var doctorOnline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that external tools and resources are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runDoctor(cmd.Context(), os.Stdout, cfg, doctorOnline)
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOnline, "online", false, "Also download the face cascade")
	rootCmd.AddCommand(doctorCmd)
}

var errDoctor = errors.New("some checks failed")

func runDoctor(ctx context.Context, out io.Writer, c *config.Config, online bool) error {
	failed := false
	check := func(what string, err error) {
		if err != nil {
			failed = true
			fmt.Fprintf(out, "❌ %s: %v\n", what, err)
			return
		}
		fmt.Fprintf(out, "✅ %s\n", what)
	}

	check("HEIC transcoder ("+c.HEIC.Command+")", utils.CheckTool(c.HEIC.Command))
	if c.Upscale.Engine == "worker" {
		check("Model runner ("+c.Upscale.Command+")", utils.CheckTool(c.Upscale.Command))
	} else {
		fmt.Fprintln(out, "ℹ️  Upscale engine is 'resample', no model runner needed")
	}
	if online {
		check("Face cascade ("+c.Face.CascadeURL+")", newDetector(c).Warm(ctx))
	}
	if DB != nil {
		fmt.Fprintln(out, "✅ Run ledger connected")
	} else {
		fmt.Fprintln(out, "ℹ️  No run ledger configured")
	}

	if failed {
		return errDoctor
	}
	return nil
}
