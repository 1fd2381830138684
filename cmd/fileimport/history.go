// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/fileimport/internal/history"
	"github.com/pdiddy/fileimport/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past exports",
	Long: `History lists finished exports, newest first, including aborted and
failed runs with the kind of failure.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("source", "", "filter by file name")
	historyCmd.Flags().String("format", "", "filter by export format")
	historyCmd.Flags().String("status", "", "filter by status: done, failed, aborted")
	historyCmd.Flags().Int("limit", 0, "maximum runs to show (0 = default)")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	opts, err := historyOptsFromFlags(cmd)
	if err != nil {
		return err
	}

	store, err := history.NewStore(appConfig.History)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return writeJSON(os.Stdout, runs)
	}
	return formatHistory(os.Stdout, runs)
}

func historyOptsFromFlags(cmd *cobra.Command) (history.ListOptions, error) {
	source, _ := cmd.Flags().GetString("source")
	formatName, _ := cmd.Flags().GetString("format")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := history.ListOptions{
		Source: source,
		Status: types.ExportStatus(status),
		Limit:  limit,
	}
	if formatName != "" {
		f, err := types.ParseFormat(formatName)
		if err != nil {
			return opts, err
		}
		opts.Format = f
	}
	return opts, nil
}

func formatHistory(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No exports recorded.")
		return nil
	}

	header := fmt.Sprintf("%-20s  %-24s  %-6s  %-11s  %-8s  %s", "Finished", "File", "Format", "Status", "Elapsed", "Error")
	fmt.Fprintln(w, styleHeader.Render(header))
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, r := range runs {
		name := r.Source
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Fprintf(w, "%-20s  %-24s  %-6s  %s  %-8s  %s\n",
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			name, r.Format.Label(), renderStatus(r.Status, 11),
			r.Duration().Round(10*time.Millisecond), r.ErrorKind)
	}

	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}
