package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/imagedrop/internal/pipeline"
	"github.com/andresmejia3/imagedrop/internal/types"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded pipeline runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		runs, err := DB.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		printRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func printRuns(out io.Writer, runs []pipeline.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTOOL\tFILE\tSTATE\tRESULT\tSIZE\tSTARTED\tDURATION")
	fmt.Fprintln(w, "--\t----\t----\t-----\t------\t----\t-------\t--------")

	for _, r := range runs {
		result, size := r.Artifact, fmt.Sprintf("%dx%d", r.Width, r.Height)
		if r.State == types.StateError {
			result, size = "failed at "+r.FailureStage, "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID.String()[:8], r.Tool, r.Filename, r.State, result, size,
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Duration.Round(time.Millisecond))
	}
	w.Flush()
}
