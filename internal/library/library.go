// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library manages the directory of imported .shapr files, their
// YAML metadata sidecars, and the location of their exports.
package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fileimport/pkg/types"
)

const (
	// Extension is the only file type the library accepts.
	Extension = ".shapr"

	metadataDir = "metadata"
	exportsDir  = "exports"
)

var (
	// ErrNotFound is returned by Find when no imported file has the name.
	ErrNotFound = errors.New("file not found in library")
	// ErrUnsupported is returned for files without the .shapr extension.
	ErrUnsupported = errors.New("unsupported file type")
)

// File describes one imported file.
type File struct {
	// Name is the file name without directory or extension.
	Name string `json:"name" yaml:"name"`

	// Path is the location of the imported copy inside the library.
	Path string `json:"path" yaml:"path"`

	// Source is where the file was imported from, if known.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Size is the byte size at import time.
	Size int64 `json:"size" yaml:"size"`

	// ImportedAt is when the file was last imported.
	ImportedAt time.Time `json:"imported_at" yaml:"imported_at"`
}

// ImportResult holds the outcome of an import run.
type ImportResult struct {
	Imported int
	Updated  int
	Skipped  int
	Failed   int
}

// Total returns the number of paths processed.
func (r ImportResult) Total() int {
	return r.Imported + r.Updated + r.Skipped + r.Failed
}

// HasFailures reports whether any path failed to import.
func (r ImportResult) HasFailures() bool {
	return r.Failed > 0
}

// Library is a directory of imported files. Layout:
//
//	<dir>/<name>.shapr
//	<dir>/metadata/<name>.yaml
//	<dir>/exports/<name>.<format>
type Library struct {
	dir string
}

// Open creates the library directories under cfg.Dir if needed.
func Open(cfg types.LibraryConfig) (*Library, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("library directory not configured")
	}
	for _, d := range []string{cfg.Dir, filepath.Join(cfg.Dir, metadataDir), filepath.Join(cfg.Dir, exportsDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return &Library{dir: cfg.Dir}, nil
}

// Dir returns the library base directory.
func (l *Library) Dir() string {
	return l.dir
}

// Import copies each path into the library, writing a metadata sidecar per
// file and printing per-file status to w. A file whose name is already in
// the library is overwritten and counted as updated.
func (l *Library) Import(paths []string, w io.Writer) ImportResult {
	var result ImportResult
	for _, p := range paths {
		name := nameOf(p)
		if !isSupported(p) {
			fmt.Fprintf(w, "skipped:  %s (%v)\n", p, ErrUnsupported)
			result.Skipped++
			continue
		}

		updated, err := l.importFile(p)
		switch {
		case err != nil:
			fmt.Fprintf(w, "failed:   %s (%v)\n", name, err)
			result.Failed++
		case updated:
			fmt.Fprintf(w, "updated:  %s\n", name)
			result.Updated++
		default:
			fmt.Fprintf(w, "imported: %s\n", name)
			result.Imported++
		}
	}
	fmt.Fprintf(w, "\nImport summary: %d imported, %d updated, %d skipped, %d failed (total: %d)\n",
		result.Imported, result.Updated, result.Skipped, result.Failed, result.Total())
	return result
}

func (l *Library) importFile(src string) (updated bool, err error) {
	name := nameOf(src)
	dst := filepath.Join(l.dir, name+Extension)

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", src, err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", dst, err)
	}
	if absSrc == absDst {
		return true, l.writeMetadata(name, absSrc)
	}

	if _, err := os.Stat(dst); err == nil {
		updated = true
	}

	if err := copyFile(src, dst); err != nil {
		return false, err
	}
	return updated, l.writeMetadata(name, absSrc)
}

func (l *Library) writeMetadata(name, source string) error {
	path := filepath.Join(l.dir, name+Extension)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat imported file: %w", err)
	}
	f := File{
		Name:       name,
		Path:       path,
		Source:     source,
		Size:       info.Size(),
		ImportedAt: time.Now().UTC().Truncate(time.Second),
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(l.metadataPath(name), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// List returns every imported file sorted by name. Files without a readable
// sidecar are listed with fields derived from the file itself.
func (l *Library) List() ([]File, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading library directory %s: %w", l.dir, err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !isSupported(entry.Name()) {
			continue
		}
		f, err := l.load(nameOf(entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Find returns the imported file with the given name. name may include the
// .shapr extension.
func (l *Library) Find(name string) (File, error) {
	name = nameOf(name)
	if _, err := os.Stat(filepath.Join(l.dir, name+Extension)); err != nil {
		if os.IsNotExist(err) {
			return File{}, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return File{}, err
	}
	return l.load(name)
}

func (l *Library) load(name string) (File, error) {
	path := filepath.Join(l.dir, name+Extension)
	f := File{Name: name, Path: path}

	if data, err := os.ReadFile(l.metadataPath(name)); err == nil {
		var meta File
		if err := yaml.Unmarshal(data, &meta); err == nil {
			f.Source = meta.Source
			f.Size = meta.Size
			f.ImportedAt = meta.ImportedAt
		}
	}

	if f.ImportedAt.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return File{}, fmt.Errorf("stat %s: %w", path, err)
		}
		f.Size = info.Size()
		f.ImportedAt = info.ModTime().UTC()
	}
	return f, nil
}

// ExportPath returns where the export of f in format lives.
func (l *Library) ExportPath(f File, format types.ExportFormat) string {
	return filepath.Join(l.dir, exportsDir, f.Name+format.Extension())
}

func (l *Library) metadataPath(name string) string {
	return filepath.Join(l.dir, metadataDir, name+".yaml")
}

func nameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isSupported(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}

// copyFile copies src to dst through a temporary file in dst's directory so
// a failed copy never leaves a truncated import behind.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".import-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("moving into library: %w", err)
	}
	return nil
}
