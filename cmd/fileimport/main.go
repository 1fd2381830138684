// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the fileimport CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/fileimport/internal/logging"
	"github.com/pdiddy/fileimport/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// appConfig holds the configuration resolved in PersistentPreRunE.
var appConfig types.Config

// rootCmd is the base command for the fileimport CLI.
var rootCmd = &cobra.Command{
	Use:   "fileimport",
	Short: "Import .shapr files and convert them to STEP, STL, and OBJ",
	Long: `fileimport keeps a local library of imported .shapr files and converts
them to export formats (STEP, STL, OBJ) with live progress.

Use import to add files, list to see them with their export status, export
to convert, and history to review past conversions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appConfig = cfg
		logging.Init(cfg.Log.Format, cfg.Log.Level, os.Stderr)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./fileimport.yaml or ~/.config/fileimport/config.yaml)")
	flags.String("library-dir", "", "library directory (default \"library\")")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")

	viper.BindPFlag("library.dir", flags.Lookup("library-dir"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func initConfig() {
	setDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fileimport")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "fileimport"))
		}
	}

	viper.SetEnvPrefix("FILEIMPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaults() {
	d := types.DefaultConfig()
	viper.SetDefault("converter.chunk_size", d.Converter.ChunkSize)
	viper.SetDefault("converter.min_delay", d.Converter.MinDelay)
	viper.SetDefault("converter.max_delay", d.Converter.MaxDelay)
	viper.SetDefault("converter.fault_one_in", d.Converter.FaultOneIn)
	viper.SetDefault("converter.seed", d.Converter.Seed)
	viper.SetDefault("library.dir", d.Library.Dir)
	viper.SetDefault("history.path", d.History.Path)
	viper.SetDefault("export.parallel", d.Export.Parallel)
	viper.SetDefault("log.format", d.Log.Format)
	viper.SetDefault("log.level", d.Log.Level)
}

// loadConfig decodes the merged viper settings. The history database
// defaults to a file inside the library directory.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Library.Dir == "" {
		cfg.Library.Dir = types.DefaultConfig().Library.Dir
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.Library.Dir, "history.db")
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
