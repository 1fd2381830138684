// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fileimport/internal/convert"
	"github.com/pdiddy/fileimport/internal/history"
	"github.com/pdiddy/fileimport/internal/library"
	"github.com/pdiddy/fileimport/internal/logging"
	"github.com/pdiddy/fileimport/pkg/types"
)

// fakeRecorder implements Recorder in memory.
type fakeRecorder struct {
	mu   sync.Mutex
	runs []history.Run
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, run history.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.err
}

// Latest returns the last recorded run in insertion order.
func (f *fakeRecorder) Latest(_ context.Context, source string, format types.ExportFormat) (history.Run, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.runs) - 1; i >= 0; i-- {
		if r := f.runs[i]; r.Source == source && r.Format == format {
			return r, true, nil
		}
	}
	return history.Run{}, false, nil
}

func (f *fakeRecorder) all() []history.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]history.Run(nil), f.runs...)
}

// steppingConverter reports progress every millisecond until released,
// aborted through the progress callback, or cancelled.
type steppingConverter struct {
	release chan struct{}
}

func newSteppingConverter() *steppingConverter {
	return &steppingConverter{release: make(chan struct{})}
}

func (s *steppingConverter) Convert(ctx context.Context, source, _ string, progress convert.ProgressFunc) error {
	for i := 1; ; i++ {
		select {
		case <-s.release:
			return nil
		case <-ctx.Done():
			return &convert.Error{Kind: convert.KindAborted, Path: source, Err: ctx.Err()}
		case <-time.After(time.Millisecond):
		}
		if progress != nil && progress(min(float64(i)/1000, 1)) == convert.Abort {
			return &convert.Error{Kind: convert.KindAborted, Path: source}
		}
	}
}

// selectiveConverter fails for the listed source names and delegates the
// rest to a real converter.
type selectiveConverter struct {
	next  convert.Converter
	fails map[string]error
}

func (s *selectiveConverter) Convert(ctx context.Context, source, dest string, progress convert.ProgressFunc) error {
	if err, ok := s.fails[filepath.Base(source)]; ok {
		return err
	}
	return s.next.Convert(ctx, source, dest, progress)
}

func realConverter(opts convert.Options) *convert.FileConverter {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = 8
	}
	if opts.Fault == nil {
		opts.Fault = convert.NoFault
	}
	if opts.Delay == nil {
		opts.Delay = convert.NoDelay
	}
	opts.Logger = logging.Discard()
	return convert.New(opts)
}

// setupLibrary imports the named files (each with size bytes) into a fresh
// library and returns it with the imported files.
func setupLibrary(t *testing.T, size int, names ...string) (*library.Library, []library.File) {
	t.Helper()
	lib, err := library.Open(types.LibraryConfig{Dir: filepath.Join(t.TempDir(), "library")})
	require.NoError(t, err)

	src := t.TempDir()
	var paths []string
	for _, name := range names {
		p := filepath.Join(src, name+library.Extension)
		require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{0x0f}, size), 0o644))
		paths = append(paths, p)
	}
	lib.Import(paths, &bytes.Buffer{})

	files, err := lib.List()
	require.NoError(t, err)
	require.Len(t, files, len(names))
	return lib, files
}

func drain(ch <-chan float64) []float64 {
	var got []float64
	for f := range ch {
		got = append(got, f)
	}
	return got
}

func TestStart_Success(t *testing.T) {
	lib, files := setupLibrary(t, 64, "bracket")
	rec := &fakeRecorder{}
	m := NewManager(realConverter(convert.Options{}), lib, rec, logging.Discard())

	job, err := m.Start(context.Background(), files[0], types.FormatSTEP)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, lib.ExportPath(files[0], types.FormatSTEP), job.Destination)

	fractions := drain(job.Progress())
	require.NoError(t, job.Wait())

	if assert.NotEmpty(t, fractions) {
		assert.Equal(t, 1.0, fractions[len(fractions)-1])
	}
	assert.Equal(t, types.ExportDone, job.Status())
	assert.Equal(t, 1.0, job.Fraction())
	assert.Equal(t, types.ExportDone, m.Status(context.Background(), files[0], types.FormatSTEP))

	data, err := os.ReadFile(job.Destination)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xf0}, 64), data)

	runs := rec.all()
	require.Len(t, runs, 1)
	assert.Equal(t, job.ID, runs[0].ID)
	assert.Equal(t, "bracket", runs[0].Source)
	assert.Equal(t, types.ExportDone, runs[0].Status)
	assert.Equal(t, int64(64), runs[0].Bytes)
	assert.Empty(t, runs[0].ErrorKind)
}

func TestStart_InProgress(t *testing.T) {
	lib, files := setupLibrary(t, 8, "gear")
	conv := newSteppingConverter()
	m := NewManager(conv, lib, nil, logging.Discard())

	first, err := m.Start(context.Background(), files[0], types.FormatSTL)
	require.NoError(t, err)

	second, err := m.Start(context.Background(), files[0], types.FormatSTL)
	assert.ErrorIs(t, err, ErrInProgress)
	assert.Same(t, first, second)

	// A different format is independent.
	other, err := m.Start(context.Background(), files[0], types.FormatOBJ)
	require.NoError(t, err)
	assert.NotSame(t, first, other)

	close(conv.release)
	require.NoError(t, first.Wait())
	require.NoError(t, other.Wait())

	// Once finished the export can be started again.
	again, err := m.Start(context.Background(), files[0], types.FormatSTL)
	require.NoError(t, err)
	require.NoError(t, again.Wait())
}

func TestJob_Abort(t *testing.T) {
	lib, files := setupLibrary(t, 8, "housing")
	rec := &fakeRecorder{}
	m := NewManager(newSteppingConverter(), lib, rec, logging.Discard())

	job, err := m.Start(context.Background(), files[0], types.FormatOBJ)
	require.NoError(t, err)

	<-job.Progress()
	job.Abort()
	job.Abort()

	err = job.Wait()
	assert.ErrorIs(t, err, convert.ErrAborted)
	assert.Equal(t, types.ExportNone, job.Status())
	assert.Equal(t, types.ExportNone, m.Status(context.Background(), files[0], types.FormatOBJ))

	runs := rec.all()
	require.Len(t, runs, 1)
	assert.Equal(t, types.ExportAborted, runs[0].Status)
	assert.Equal(t, "aborted", runs[0].ErrorKind)
}

func TestJob_ContextCancel(t *testing.T) {
	lib, files := setupLibrary(t, 8, "housing")
	rec := &fakeRecorder{}
	m := NewManager(newSteppingConverter(), lib, rec, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	job, err := m.Start(ctx, files[0], types.FormatSTEP)
	require.NoError(t, err)
	cancel()

	assert.ErrorIs(t, job.Wait(), context.Canceled)
	assert.Equal(t, types.ExportNone, job.Status())
	require.Len(t, rec.all(), 1, "cancelled runs are still recorded")
}

func TestJob_Failure(t *testing.T) {
	lib, files := setupLibrary(t, 64, "cube")
	rec := &fakeRecorder{err: errors.New("database locked")}
	m := NewManager(realConverter(convert.Options{Fault: convert.FaultAt(2)}), lib, rec, logging.Discard())

	job, err := m.Start(context.Background(), files[0], types.FormatSTL)
	require.NoError(t, err)

	err = job.Wait()
	assert.ErrorIs(t, err, convert.ErrData)
	assert.Equal(t, types.ExportFailed, job.Status())
	assert.Equal(t, types.ExportFailed, m.Status(context.Background(), files[0], types.FormatSTL),
		"a partial destination does not count as done")

	runs := rec.all()
	require.Len(t, runs, 1)
	assert.Equal(t, types.ExportFailed, runs[0].Status)
	assert.Equal(t, "data", runs[0].ErrorKind)
	assert.Equal(t, int64(16), runs[0].Bytes)
}

func TestAct(t *testing.T) {
	lib, files := setupLibrary(t, 8, "widget")
	f := files[0]
	conv := newSteppingConverter()
	m := NewManager(conv, lib, nil, logging.Discard())
	ctx := context.Background()

	assert.Equal(t, types.ExportNone, m.Status(context.Background(), f, types.FormatSTEP))

	action, job, _, err := m.Act(ctx, f, types.FormatSTEP)
	require.NoError(t, err)
	assert.Equal(t, ActionStart, action)
	<-job.Progress()

	action, aborted, _, err := m.Act(ctx, f, types.FormatSTEP)
	require.NoError(t, err)
	assert.Equal(t, ActionAbort, action)
	assert.Same(t, job, aborted)
	assert.ErrorIs(t, job.Wait(), convert.ErrAborted)

	action, job, _, err = m.Act(ctx, f, types.FormatSTEP)
	require.NoError(t, err)
	assert.Equal(t, ActionStart, action)
	close(conv.release)
	require.NoError(t, job.Wait())

	action, job, path, err := m.Act(ctx, f, types.FormatSTEP)
	require.NoError(t, err)
	assert.Equal(t, ActionShare, action)
	assert.Nil(t, job)
	assert.Equal(t, lib.ExportPath(f, types.FormatSTEP), path)
}

func TestStatus_ExistingExportOnDisk(t *testing.T) {
	lib, files := setupLibrary(t, 8, "plate")
	m := NewManager(realConverter(convert.Options{}), lib, nil, logging.Discard())

	require.NoError(t, os.WriteFile(lib.ExportPath(files[0], types.FormatOBJ), []byte("x"), 0o644))
	assert.Equal(t, types.ExportDone, m.Status(context.Background(), files[0], types.FormatOBJ))
	assert.Equal(t, types.ExportNone, m.Status(context.Background(), files[0], types.FormatSTL))
}

func TestExportBatch(t *testing.T) {
	lib, files := setupLibrary(t, 32, "alpha", "beta")
	conv := &selectiveConverter{
		next:  realConverter(convert.Options{}),
		fails: map[string]error{"beta.shapr": &convert.Error{Kind: convert.KindInput, Path: "beta.shapr"}},
	}
	rec := &fakeRecorder{}
	m := NewManager(conv, lib, rec, logging.Discard())

	// alpha.stl already exported.
	require.NoError(t, os.WriteFile(lib.ExportPath(files[0], types.FormatSTL), []byte("old"), 0o644))

	var log bytes.Buffer
	result := m.ExportBatch(context.Background(), files, types.SupportedFormats, BatchOptions{Parallel: 3}, &log)

	assert.Equal(t, 2, result.Exported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, 0, result.Aborted)
	assert.Equal(t, 6, result.Total())
	assert.True(t, result.HasFailures())

	out := log.String()
	assert.Contains(t, out, "skipped:  alpha.stl (already exists)")
	assert.Contains(t, out, "exported: alpha.step")
	assert.Contains(t, out, "failed:   beta.obj")
	assert.Contains(t, out, "Batch summary: 2 exported, 1 skipped, 3 failed, 0 aborted (total: 6)")
	assert.Len(t, rec.all(), 5)

	old, err := os.ReadFile(lib.ExportPath(files[0], types.FormatSTL))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestExportBatch_Force(t *testing.T) {
	lib, files := setupLibrary(t, 16, "alpha")
	m := NewManager(realConverter(convert.Options{}), lib, nil, logging.Discard())
	require.NoError(t, os.WriteFile(lib.ExportPath(files[0], types.FormatSTL), []byte("old"), 0o644))

	var log bytes.Buffer
	result := m.ExportBatch(context.Background(), files, []types.ExportFormat{types.FormatSTL}, BatchOptions{Force: true}, &log)

	assert.Equal(t, 1, result.Exported)
	assert.False(t, result.HasFailures())

	data, err := os.ReadFile(lib.ExportPath(files[0], types.FormatSTL))
	require.NoError(t, err)
	assert.Len(t, data, 16)
}

func TestExportBatch_Cancelled(t *testing.T) {
	lib, files := setupLibrary(t, 16, "alpha", "beta")
	m := NewManager(newSteppingConverter(), lib, nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var log bytes.Buffer
	result := m.ExportBatch(ctx, files, []types.ExportFormat{types.FormatSTEP}, BatchOptions{Parallel: 2}, &log)

	assert.Equal(t, 2, result.Aborted)
	assert.False(t, result.HasFailures())
	assert.Equal(t, 2, strings.Count(log.String(), "aborted:"))
}

func TestManager_RecordsToHistory(t *testing.T) {
	lib, files := setupLibrary(t, 24, "bolt")
	store, err := history.NewStore(types.HistoryConfig{Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	defer store.Close()

	m := NewManager(realConverter(convert.Options{}), lib, store, logging.Discard())
	job, err := m.Start(context.Background(), files[0], types.FormatOBJ)
	require.NoError(t, err)
	require.NoError(t, job.Wait())

	runs, err := store.List(context.Background(), history.ListOptions{Source: "bolt"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, job.ID, runs[0].ID)
	assert.Equal(t, types.FormatOBJ, runs[0].Format)
	assert.Equal(t, types.ExportDone, runs[0].Status)
	assert.Equal(t, int64(24), runs[0].Bytes)
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "start", ActionStart.String())
	assert.Equal(t, "abort", ActionAbort.String())
	assert.Equal(t, "share", ActionShare.String())
}

func TestStatus_FromHistory(t *testing.T) {
	lib, files := setupLibrary(t, 64, "cube")
	store, err := history.NewStore(types.HistoryConfig{Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	failing := NewManager(realConverter(convert.Options{Fault: convert.FaultAt(2)}), lib, store, logging.Discard())
	job, err := failing.Start(ctx, files[0], types.FormatSTL)
	require.NoError(t, err)
	assert.ErrorIs(t, job.Wait(), convert.ErrData)
	require.FileExists(t, job.Destination, "a failed run leaves a partial destination")

	// A fresh manager has no tracked job and must consult history.
	m := NewManager(realConverter(convert.Options{}), lib, store, logging.Discard())
	assert.Equal(t, types.ExportFailed, m.Status(ctx, files[0], types.FormatSTL))
	assert.Equal(t, types.ExportFailed, m.Statuses(ctx, files[0])[types.FormatSTL])

	var log bytes.Buffer
	result := m.ExportBatch(ctx, files, []types.ExportFormat{types.FormatSTL}, BatchOptions{}, &log)
	assert.Equal(t, 1, result.Exported)
	assert.Zero(t, result.Skipped)
	assert.Contains(t, log.String(), "exported: cube.stl")

	m = NewManager(realConverter(convert.Options{}), lib, store, logging.Discard())
	assert.Equal(t, types.ExportDone, m.Status(ctx, files[0], types.FormatSTL))
}

func TestStatus_RecordedRuns(t *testing.T) {
	tests := []struct {
		name   string
		status types.ExportStatus
		onDisk bool
		want   types.ExportStatus
	}{
		{name: "failed with partial file", status: types.ExportFailed, onDisk: true, want: types.ExportFailed},
		{name: "aborted with partial file", status: types.ExportAborted, onDisk: true, want: types.ExportNone},
		{name: "done", status: types.ExportDone, onDisk: true, want: types.ExportDone},
		{name: "done then removed", status: types.ExportDone, onDisk: false, want: types.ExportNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib, files := setupLibrary(t, 8, "plate")
			dest := lib.ExportPath(files[0], types.FormatOBJ)
			if tt.onDisk {
				require.NoError(t, os.WriteFile(dest, []byte("x"), 0o644))
			}
			rec := &fakeRecorder{runs: []history.Run{{
				ID: "1", Source: "plate", Destination: dest, Format: types.FormatOBJ, Status: tt.status,
			}}}
			m := NewManager(realConverter(convert.Options{}), lib, rec, logging.Discard())
			assert.Equal(t, tt.want, m.Status(context.Background(), files[0], types.FormatOBJ))
		})
	}
}
