// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConverterConfig holds settings for the file converter.
type ConverterConfig struct {
	// ChunkSize is the number of bytes read, transformed, and written per
	// iteration (default 1024). Cancellation is only observed between chunks.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size"`

	// MinDelay and MaxDelay bound the artificial per-chunk latency
	// (default 5ms-100ms). Setting both to zero disables the delay.
	MinDelay time.Duration `json:"min_delay" yaml:"min_delay" mapstructure:"min_delay"`
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`

	// FaultOneIn is the inverse probability of a simulated data fault per
	// chunk (default 10000). Zero disables fault injection.
	FaultOneIn uint64 `json:"fault_one_in" yaml:"fault_one_in" mapstructure:"fault_one_in"`

	// Seed seeds the random source used by the delay and fault policies.
	// Zero means seed from the clock.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty" mapstructure:"seed"`
}

// LibraryConfig holds settings for the import library.
type LibraryConfig struct {
	// Dir is the base directory for imported files. It contains the imported
	// files themselves plus metadata/ and exports/.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// HistoryConfig holds settings for the export history database.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty means <library dir>/history.db.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig selects the slog handler and minimum level.
type LogConfig struct {
	// Format is "text" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// ExportConfig holds settings for running exports.
type ExportConfig struct {
	// Parallel is the maximum number of concurrent conversions in a batch
	// export (default 2).
	Parallel int `json:"parallel" yaml:"parallel" mapstructure:"parallel"`
}

// Config groups all settings for the tool.
type Config struct {
	Converter ConverterConfig `json:"converter" yaml:"converter" mapstructure:"converter"`
	Library   LibraryConfig   `json:"library" yaml:"library" mapstructure:"library"`
	History   HistoryConfig   `json:"history" yaml:"history" mapstructure:"history"`
	Export    ExportConfig    `json:"export" yaml:"export" mapstructure:"export"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the settings used when no config file or flag
// overrides them.
func DefaultConfig() Config {
	return Config{
		Converter: ConverterConfig{
			ChunkSize:  1024,
			MinDelay:   5 * time.Millisecond,
			MaxDelay:   100 * time.Millisecond,
			FaultOneIn: 10000,
		},
		Library: LibraryConfig{
			Dir: "library",
		},
		Export: ExportConfig{
			Parallel: 2,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}
