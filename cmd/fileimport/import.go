// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/fileimport/internal/library"
)

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Copy .shapr files into the library",
	Long: `Import copies .shapr files into the library directory and records
where each one came from. Importing a file whose name is already in the
library replaces it. Files with other extensions are skipped.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more .shapr files to import")
	}

	lib, err := library.Open(appConfig.Library)
	if err != nil {
		return err
	}

	result := lib.Import(args, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed to import", result.Failed)
	}
	return nil
}
