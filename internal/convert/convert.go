// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements the streaming file converter: it reads a source
// file in fixed-size chunks, transforms each chunk, writes it to a
// destination, and reports fractional progress after every chunk. A
// conversion is synchronous and can be aborted cooperatively, either through
// the progress callback or through its context.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pdiddy/fileimport/internal/logging"
	"github.com/pdiddy/fileimport/pkg/types"
)

// DefaultChunkSize is the number of bytes processed per iteration.
const DefaultChunkSize = 1024

// Converter transforms a source file into a destination file. Implementations
// must be safe for concurrent use on independent source/destination pairs.
type Converter interface {
	// Convert streams source into destination. progress may be nil. The
	// returned error, if any, is a *Error.
	Convert(ctx context.Context, source, destination string, progress ProgressFunc) error
}

// Options configures a FileConverter. Zero fields take defaults.
type Options struct {
	// ChunkSize defaults to DefaultChunkSize.
	ChunkSize int
	// Fault defaults to a 1-in-10000 random fault per chunk.
	Fault FaultFunc
	// Delay defaults to a random 5ms-100ms wait per chunk.
	Delay DelayFunc
	// Transform defaults to Complement.
	Transform TransformFunc
	// Logger defaults to the "convert" component logger.
	Logger *slog.Logger
}

// FileConverter is the mock codec: a byte-wise transform with artificial
// latency and injected faults. It holds no per-run state.
type FileConverter struct {
	chunkSize int
	fault     FaultFunc
	delay     DelayFunc
	transform TransformFunc
	logger    *slog.Logger
}

// New creates a FileConverter from opts.
func New(opts Options) *FileConverter {
	c := &FileConverter{
		chunkSize: opts.ChunkSize,
		fault:     opts.Fault,
		delay:     opts.Delay,
		transform: opts.Transform,
		logger:    opts.Logger,
	}
	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	if c.fault == nil || c.delay == nil {
		r := NewRand(0)
		if c.fault == nil {
			c.fault = RandomFault(r, 10000)
		}
		if c.delay == nil {
			c.delay = RandomDelay(r, 5*time.Millisecond, 100*time.Millisecond)
		}
	}
	if c.transform == nil {
		c.transform = Complement
	}
	return c
}

// NewFromConfig creates a FileConverter whose random policies are driven by
// cfg. Both policies share one seeded source.
func NewFromConfig(cfg types.ConverterConfig) *FileConverter {
	r := NewRand(cfg.Seed)
	return New(Options{
		ChunkSize: cfg.ChunkSize,
		Fault:     RandomFault(r, cfg.FaultOneIn),
		Delay:     RandomDelay(r, cfg.MinDelay, cfg.MaxDelay),
	})
}

// Convert implements Converter.
//
// A missing, unreadable, or non-regular source fails with KindInput before
// the destination is touched, and a destination that is the source file
// fails with KindOutput. Once the destination has been created, any failure
// leaves it partially written; callers that need atomic output must write to
// a temporary path and rename on success. An empty source succeeds at once
// and reports progress 1.0 exactly once. A source that ends before its
// stat'ed size fails with KindInput wrapping io.ErrUnexpectedEOF.
func (c *FileConverter) Convert(ctx context.Context, source, destination string, progress ProgressFunc) (err error) {
	logger := c.logger
	if logger == nil {
		logger = logging.L("convert")
	}
	logger = logger.With(slog.String("source", source), slog.String("destination", destination))

	info, err := os.Stat(source)
	if err != nil {
		return inputErr(source, err)
	}
	if info.IsDir() {
		return inputErr(source, errors.New("is a directory"))
	}
	if !info.Mode().IsRegular() {
		return inputErr(source, errors.New("not a regular file"))
	}
	total := info.Size()

	in, err := os.Open(source)
	if err != nil {
		return inputErr(source, err)
	}
	defer in.Close()

	// os.Create truncates, so the destination must not be the open source.
	if sinfo, err := in.Stat(); err == nil {
		if dinfo, err := os.Stat(destination); err == nil && os.SameFile(sinfo, dinfo) {
			return outputErr(destination, errors.New("destination is the source file"))
		}
	}

	out, err := os.Create(destination)
	if err != nil {
		return outputErr(destination, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = outputErr(destination, cerr)
		}
	}()

	start := time.Now()
	logger.Debug("conversion started", slog.Int64("bytes", total))
	defer func() {
		if err != nil {
			logger.Debug("conversion stopped", slog.String("kind", KindOf(err).String()), slog.Any("error", err))
			return
		}
		logger.Debug("conversion finished", slog.Duration("elapsed", time.Since(start)))
	}()

	if total == 0 {
		if progress != nil {
			progress(1)
		}
		return nil
	}

	buf := make([]byte, c.chunkSize)
	var written int64
	for chunk := 0; ; chunk++ {
		if c.fault(chunk) {
			return &Error{Kind: KindData, Path: source, Err: fmt.Errorf("simulated fault at chunk %d", chunk)}
		}
		if err := sleep(ctx, c.delay(chunk)); err != nil {
			return &Error{Kind: KindAborted, Path: source, Err: err}
		}

		n, rerr := in.Read(buf)
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return inputErr(source, rerr)
		}
		if n == 0 {
			if written < total {
				return inputErr(source, io.ErrUnexpectedEOF)
			}
			return nil
		}

		data := buf[:n]
		c.transform(data)
		if _, err := out.Write(data); err != nil {
			return outputErr(destination, err)
		}

		written += int64(n)
		fraction := float64(written) / float64(total)
		if fraction > 1 {
			fraction = 1
		}
		if progress != nil && progress(fraction) == Abort {
			return &Error{Kind: KindAborted, Path: source}
		}
		if err := ctx.Err(); err != nil {
			return &Error{Kind: KindAborted, Path: source, Err: err}
		}
	}
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
