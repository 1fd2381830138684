// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
)

// Kind classifies why a conversion failed.
type Kind int

const (
	// KindNone is returned by KindOf for nil or foreign errors.
	KindNone Kind = iota
	// KindAborted means the caller asked the conversion to stop.
	KindAborted
	// KindInput means the source could not be stat'ed, opened, or read.
	KindInput
	// KindOutput means the destination could not be created, written, or closed.
	KindOutput
	// KindData is a simulated transient codec fault.
	KindData
)

// Sentinels for errors.Is. Every *Error matches exactly one of them.
var (
	ErrAborted = errors.New("conversion aborted")
	ErrInput   = errors.New("input error")
	ErrOutput  = errors.New("output error")
	ErrData    = errors.New("data error")
)

func (k Kind) String() string {
	switch k {
	case KindAborted:
		return "aborted"
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindData:
		return "data"
	default:
		return "none"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindAborted:
		return ErrAborted
	case KindInput:
		return ErrInput
	case KindOutput:
		return ErrOutput
	case KindData:
		return ErrData
	default:
		return nil
	}
}

// Error is the error type returned by Convert. Err carries the underlying
// system error when one exists; it may be nil.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := "conversion error"
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause, so
// errors.Is(err, ErrInput) and errors.Is(err, fs.ErrNotExist) both work.
func (e *Error) Unwrap() []error {
	var errs []error
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of the first *Error in err's chain, or KindNone.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNone
}

// IsAborted reports whether err is a cancellation rather than a genuine
// failure. Aborted conversions should not be surfaced as errors to the user.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

func inputErr(path string, err error) error {
	return &Error{Kind: KindInput, Path: path, Err: err}
}

func outputErr(path string, err error) error {
	return &Error{Kind: KindOutput, Path: path, Err: err}
}
