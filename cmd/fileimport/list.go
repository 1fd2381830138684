// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/fileimport/internal/library"
	"github.com/pdiddy/fileimport/pkg/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported files and their export status",
	RunE:  runList,
}

func init() {
	listCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(listCmd)
}

// listEntry is the JSON shape of one listed file.
type listEntry struct {
	library.File
	Exports map[types.ExportFormat]types.ExportStatus `json:"exports"`
}

func runList(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(appConfig)
	if err != nil {
		return err
	}
	defer ws.Close()

	files, err := ws.lib.List()
	if err != nil {
		return err
	}

	entries := make([]listEntry, len(files))
	for i, f := range files {
		entries[i] = listEntry{File: f, Exports: ws.manager.Statuses(cmd.Context(), f)}
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return writeJSON(os.Stdout, entries)
	}
	return formatList(os.Stdout, entries)
}

func formatList(w io.Writer, entries []listEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No files imported.")
		return nil
	}

	header := fmt.Sprintf("%-24s  %-8s  %-14s", "Name", "Size", "Imported")
	for _, format := range types.SupportedFormats {
		header += fmt.Sprintf("  %-11s", format.Label())
	}
	fmt.Fprintln(w, styleHeader.Render(header))
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, e := range entries {
		name := e.Name
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Fprintf(w, "%-24s  %-8s  %-14s", name, humanize.Bytes(uint64(e.Size)), humanize.Time(e.ImportedAt))
		for _, format := range types.SupportedFormats {
			fmt.Fprintf(w, "  %s", renderStatus(e.Exports[format], 11))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n%d files\n", len(entries))
	return nil
}
