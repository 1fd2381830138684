// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"sync"
	"time"

	"github.com/pdiddy/fileimport/internal/convert"
	"github.com/pdiddy/fileimport/internal/library"
	"github.com/pdiddy/fileimport/pkg/types"
)

// progressBuffer bounds the progress channel. Slow consumers see the latest
// value rather than every value.
const progressBuffer = 1

// Job is one running or finished export of one file to one format.
type Job struct {
	ID          string
	File        library.File
	Format      types.ExportFormat
	Destination string
	StartedAt   time.Time

	progress chan float64
	abort    convert.AbortFlag
	done     chan struct{}

	mu         sync.Mutex
	status     types.ExportStatus
	fraction   float64
	err        error
	finishedAt time.Time
}

func newJob(id string, f library.File, format types.ExportFormat, dest string) *Job {
	return &Job{
		ID:          id,
		File:        f,
		Format:      format,
		Destination: dest,
		StartedAt:   time.Now(),
		progress:    make(chan float64, progressBuffer),
		done:        make(chan struct{}),
		status:      types.ExportInProgress,
	}
}

// Progress returns a channel of progress fractions. It is closed when the
// job finishes.
func (j *Job) Progress() <-chan float64 {
	return j.progress
}

// Done is closed once the job has finished and been recorded.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Abort asks the conversion to stop at the next chunk boundary. It is safe
// to call from any goroutine and more than once.
func (j *Job) Abort() {
	j.abort.Abort()
}

// Wait blocks until the job finishes and returns the conversion error.
func (j *Job) Wait() error {
	<-j.done
	return j.Err()
}

// Err returns the conversion error of a finished job, or nil.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Status returns the current export status.
func (j *Job) Status() types.ExportStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Fraction returns the last reported progress.
func (j *Job) Fraction() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fraction
}

// FinishedAt returns when the job finished, or the zero time.
func (j *Job) FinishedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishedAt
}

func (j *Job) setFraction(f float64) convert.Action {
	j.mu.Lock()
	j.fraction = f
	j.mu.Unlock()
	return convert.Continue
}

// finish stores the outcome and closes the progress channel. An aborted
// export reverts to ExportNone: it is not a failure the user must act on.
func (j *Job) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
	j.finishedAt = time.Now()
	switch {
	case err == nil:
		j.status = types.ExportDone
		j.fraction = 1
	case convert.IsAborted(err):
		j.status = types.ExportNone
	default:
		j.status = types.ExportFailed
	}
	close(j.progress)
}

// historyStatus is the status written to history. Unlike the live status it
// distinguishes an aborted run from one that never started.
func (j *Job) historyStatus() types.ExportStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == types.ExportNone && convert.IsAborted(j.err) {
		return types.ExportAborted
	}
	return j.status
}
