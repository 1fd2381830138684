// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/fileimport/internal/convert"
	"github.com/pdiddy/fileimport/internal/export"
	"github.com/pdiddy/fileimport/internal/library"
	"github.com/pdiddy/fileimport/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export [names...]",
	Short: "Convert imported files to STEP, STL, or OBJ",
	Long: `Export converts imported files to one or more export formats. A single
file and format shows a live progress bar; anything larger runs as a batch
with --parallel conversions at a time.

Exports that already exist are not redone unless --force is given. Press
Ctrl-C to abort; an aborted export is not treated as an error, but its
partially written output is left in place.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringSlice("format", nil, "export formats: step, stl, obj (default all)")
	exportCmd.Flags().Bool("all", false, "export every file in the library")
	exportCmd.Flags().Int("parallel", 0, "concurrent conversions in a batch (default from config)")
	exportCmd.Flags().Bool("force", false, "re-export even if the export already exists")
	exportCmd.Flags().Duration("timeout", 0, "abort exports still running after this long (0 = no limit)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if len(args) == 0 && !all {
		return fmt.Errorf("provide one or more file names, or --all")
	}

	formats, err := formatsFromFlags(cmd)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(appConfig)
	if err != nil {
		return err
	}
	defer ws.Close()

	files, err := selectFiles(ws.lib, args, all)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	force, _ := cmd.Flags().GetBool("force")
	if len(files) == 1 && len(formats) == 1 {
		return exportOne(ctx, ws.manager, files[0], formats[0], force)
	}

	parallel, _ := cmd.Flags().GetInt("parallel")
	if parallel <= 0 {
		parallel = appConfig.Export.Parallel
	}
	result := ws.manager.ExportBatch(ctx, files, formats, export.BatchOptions{Parallel: parallel, Force: force}, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d export(s) failed", result.Failed)
	}
	return nil
}

// exportOne runs a single export with a progress bar. Without --force an
// existing export is reported rather than redone.
func exportOne(ctx context.Context, m *export.Manager, f library.File, format types.ExportFormat, force bool) error {
	var job *export.Job
	if force {
		j, err := m.Start(ctx, f, format)
		if err != nil {
			return err
		}
		job = j
	} else {
		action, j, path, err := m.Act(ctx, f, format)
		if err != nil {
			return err
		}
		if action == export.ActionShare {
			fmt.Printf("already exported: %s\n", path)
			return nil
		}
		job = j
	}

	err := followJob(os.Stdout, job)
	switch {
	case err == nil:
		fmt.Printf("exported: %s\n", job.Destination)
		return nil
	case convert.IsAborted(err):
		fmt.Printf("aborted:  %s%s at %.0f%%\n", f.Name, format.Extension(), job.Fraction()*100)
		return nil
	default:
		return fmt.Errorf("exporting %s to %s: %w", f.Name, format.Label(), err)
	}
}

func formatsFromFlags(cmd *cobra.Command) ([]types.ExportFormat, error) {
	names, _ := cmd.Flags().GetStringSlice("format")
	if len(names) == 0 {
		return types.SupportedFormats, nil
	}
	formats := make([]types.ExportFormat, 0, len(names))
	seen := make(map[types.ExportFormat]bool)
	for _, n := range names {
		f, err := types.ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

func selectFiles(lib *library.Library, names []string, all bool) ([]library.File, error) {
	if all {
		files, err := lib.List()
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("library %s is empty", lib.Dir())
		}
		return files, nil
	}
	files := make([]library.File, 0, len(names))
	for _, n := range names {
		f, err := lib.Find(n)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
