// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export runs conversions of imported files in the background. It
// owns the caller side of the converter contract: running each conversion on
// its own goroutine, forwarding progress over a channel, turning user abort
// requests into a progress decision, and recording outcomes.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/fileimport/internal/convert"
	"github.com/pdiddy/fileimport/internal/history"
	"github.com/pdiddy/fileimport/internal/library"
	"github.com/pdiddy/fileimport/internal/logging"
	"github.com/pdiddy/fileimport/pkg/types"
)

// ErrInProgress is returned by Start when the same file is already being
// exported to the same format.
var ErrInProgress = errors.New("export already in progress")

// Locator maps an imported file and format to the export destination.
// *library.Library implements it.
type Locator interface {
	ExportPath(f library.File, format types.ExportFormat) string
}

// Recorder persists finished runs and looks up the last one for an export.
// *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
	Latest(ctx context.Context, source string, format types.ExportFormat) (history.Run, bool, error)
}

// Action is what Act did for the current export state.
type Action int

const (
	// ActionStart means a new export was started.
	ActionStart Action = iota
	// ActionAbort means the running export was asked to stop.
	ActionAbort
	// ActionShare means the export already exists and is ready to hand off.
	ActionShare
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionAbort:
		return "abort"
	case ActionShare:
		return "share"
	default:
		return "unknown"
	}
}

type jobKey struct {
	name   string
	format types.ExportFormat
}

// Manager starts and tracks export jobs. It is safe for concurrent use.
type Manager struct {
	conv     convert.Converter
	locator  Locator
	recorder Recorder
	logger   *slog.Logger

	mu   sync.Mutex
	jobs map[jobKey]*Job
}

// NewManager creates a Manager. recorder may be nil to skip history. A nil
// logger defaults to the "export" component logger.
func NewManager(conv convert.Converter, locator Locator, recorder Recorder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.L("export")
	}
	return &Manager{
		conv:     conv,
		locator:  locator,
		recorder: recorder,
		logger:   logger,
		jobs:     make(map[jobKey]*Job),
	}
}

// Start launches an export of f to format on a new goroutine. If the same
// export is already running it returns that job and ErrInProgress.
// Cancelling ctx aborts the conversion.
func (m *Manager) Start(ctx context.Context, f library.File, format types.ExportFormat) (*Job, error) {
	key := jobKey{name: f.Name, format: format}

	m.mu.Lock()
	if existing, ok := m.jobs[key]; ok && existing.Status() == types.ExportInProgress {
		m.mu.Unlock()
		return existing, fmt.Errorf("%s to %s: %w", f.Name, format.Label(), ErrInProgress)
	}
	job := newJob(uuid.NewString(), f, format, m.locator.ExportPath(f, format))
	m.jobs[key] = job
	m.mu.Unlock()

	go m.run(ctx, job)
	return job, nil
}

func (m *Manager) run(ctx context.Context, j *Job) {
	logger := m.logger.With(
		slog.String(logging.KeyJobID, j.ID),
		slog.String("file", j.File.Name),
		slog.String(logging.KeyFormat, string(j.Format)),
	)
	logger.Info("export started", slog.String("destination", j.Destination))

	progress := convert.Chain(j.setFraction, convert.Notify(j.progress), j.abort.Progress())
	err := m.conv.Convert(ctx, j.File.Path, j.Destination, progress)
	j.finish(err)

	switch {
	case err == nil:
		logger.Info("export finished", slog.Duration("elapsed", j.FinishedAt().Sub(j.StartedAt)))
	case convert.IsAborted(err):
		logger.Info("export aborted", slog.Float64("progress", j.Fraction()))
	default:
		logger.Warn("export failed", slog.String("kind", convert.KindOf(err).String()), slog.Any(logging.KeyError, err))
	}

	m.record(context.WithoutCancel(ctx), j, logger)
	close(j.done)
}

func (m *Manager) record(ctx context.Context, j *Job, logger *slog.Logger) {
	if m.recorder == nil {
		return
	}
	run := history.Run{
		ID:          j.ID,
		Source:      j.File.Name,
		Destination: j.Destination,
		Format:      j.Format,
		Status:      j.historyStatus(),
		StartedAt:   j.StartedAt,
		FinishedAt:  j.FinishedAt(),
	}
	if err := j.Err(); err != nil {
		run.ErrorKind = convert.KindOf(err).String()
		run.Error = err.Error()
	}
	if info, err := os.Stat(j.Destination); err == nil {
		run.Bytes = info.Size()
	}
	if err := m.recorder.Record(ctx, run); err != nil {
		logger.Error("recording export history", slog.Any(logging.KeyError, err))
	}
}

// Job returns the most recent job for f and format, if any.
func (m *Manager) Job(f library.File, format types.ExportFormat) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobKey{name: f.Name, format: format}]
	return j, ok
}

// Status returns the export status of f in format. Failed and aborted runs
// leave a partial destination behind, so the file on disk only decides the
// status when neither a job tracked by this manager nor a recorded run
// exists. A recorded done run whose destination was removed reads as none.
func (m *Manager) Status(ctx context.Context, f library.File, format types.ExportFormat) types.ExportStatus {
	if j, ok := m.Job(f, format); ok {
		return j.Status()
	}
	exists := m.exportExists(f, format)
	if m.recorder != nil {
		run, ok, err := m.recorder.Latest(ctx, f.Name, format)
		switch {
		case err != nil:
			m.logger.Warn("reading export history", slog.String("file", f.Name),
				slog.String(logging.KeyFormat, string(format)), slog.Any(logging.KeyError, err))
		case ok && run.Status == types.ExportFailed:
			return types.ExportFailed
		case ok && run.Status != types.ExportDone:
			return types.ExportNone
		case ok && !exists:
			return types.ExportNone
		}
	}
	if exists {
		return types.ExportDone
	}
	return types.ExportNone
}

// Statuses returns the Status of f in every supported format.
func (m *Manager) Statuses(ctx context.Context, f library.File) map[types.ExportFormat]types.ExportStatus {
	statuses := make(map[types.ExportFormat]types.ExportStatus, len(types.SupportedFormats))
	for _, format := range types.SupportedFormats {
		statuses[format] = m.Status(ctx, f, format)
	}
	return statuses
}

func (m *Manager) exportExists(f library.File, format types.ExportFormat) bool {
	_, err := os.Stat(m.locator.ExportPath(f, format))
	return err == nil
}

// Act performs the action for the current state of an export: start it when
// there is none (or the last one failed), abort it while it runs, and hand
// back the destination path once it is done.
func (m *Manager) Act(ctx context.Context, f library.File, format types.ExportFormat) (Action, *Job, string, error) {
	switch m.Status(ctx, f, format) {
	case types.ExportInProgress:
		j, _ := m.Job(f, format)
		j.Abort()
		return ActionAbort, j, j.Destination, nil
	case types.ExportDone:
		return ActionShare, nil, m.locator.ExportPath(f, format), nil
	default:
		j, err := m.Start(ctx, f, format)
		if err != nil {
			return ActionStart, j, "", err
		}
		return ActionStart, j, j.Destination, nil
	}
}

// BatchOptions controls ExportBatch.
type BatchOptions struct {
	// Parallel caps concurrent conversions. Values below 1 mean 1.
	Parallel int
	// Force re-exports files whose export already exists.
	Force bool
}

// BatchResult holds the outcome of a batch export.
type BatchResult struct {
	Exported int
	Skipped  int
	Failed   int
	Aborted  int
}

// Total returns the number of exports processed.
func (r BatchResult) Total() int {
	return r.Exported + r.Skipped + r.Failed + r.Aborted
}

// HasFailures reports whether any export failed. Aborted exports are not
// failures.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ExportBatch exports every file to every format, printing per-export status
// to w and returning a summary. Cancelling ctx aborts the running exports
// and the queued ones finish as aborted.
func (m *Manager) ExportBatch(ctx context.Context, files []library.File, formats []types.ExportFormat, opts BatchOptions, w io.Writer) BatchResult {
	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}

	var (
		mu     sync.Mutex
		result BatchResult
	)
	report := func(apply func(*BatchResult), format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		apply(&result)
		fmt.Fprintf(w, format, args...)
	}

	var g errgroup.Group
	g.SetLimit(parallel)
	for _, f := range files {
		for _, format := range formats {
			label := f.Name + format.Extension()

			if !opts.Force && m.Status(ctx, f, format) == types.ExportDone {
				report(func(r *BatchResult) { r.Skipped++ }, "skipped:  %s (already exists)\n", label)
				continue
			}

			g.Go(func() error {
				j, err := m.Start(ctx, f, format)
				if errors.Is(err, ErrInProgress) {
					report(func(r *BatchResult) { r.Skipped++ }, "skipped:  %s (in progress)\n", label)
					return nil
				}
				err = j.Wait()
				switch {
				case err == nil:
					report(func(r *BatchResult) { r.Exported++ }, "exported: %s\n", label)
				case convert.IsAborted(err):
					report(func(r *BatchResult) { r.Aborted++ }, "aborted:  %s\n", label)
				default:
					report(func(r *BatchResult) { r.Failed++ }, "failed:   %s (%v)\n", label, err)
				}
				return nil
			})
		}
	}
	g.Wait()

	fmt.Fprintf(w, "\nBatch summary: %d exported, %d skipped, %d failed, %d aborted (total: %d)\n",
		result.Exported, result.Skipped, result.Failed, result.Aborted, result.Total())
	return result
}
