// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import "sync/atomic"

// Action is the progress callback's decision after each chunk.
type Action int

const (
	Continue Action = iota
	Abort
)

// ProgressFunc receives the fraction of source bytes processed so far, in
// [0, 1], after every chunk. It runs on the converting goroutine and is
// never called concurrently with itself.
type ProgressFunc func(fraction float64) Action

// AbortFlag lets another goroutine request that a running conversion stop.
// The zero value is ready to use.
type AbortFlag struct {
	aborted atomic.Bool
}

// Abort requests that the conversion stop at the next chunk boundary.
func (a *AbortFlag) Abort() { a.aborted.Store(true) }

// Aborted reports whether Abort has been called.
func (a *AbortFlag) Aborted() bool { return a.aborted.Load() }

// Progress returns a ProgressFunc that aborts once the flag is set.
func (a *AbortFlag) Progress() ProgressFunc {
	return func(float64) Action {
		if a.Aborted() {
			return Abort
		}
		return Continue
	}
}

// Notify returns a ProgressFunc that forwards every fraction to ch without
// blocking. When ch is full the oldest pending value is dropped so the
// consumer always sees the latest one. Notify must be the only sender on ch.
func Notify(ch chan float64) ProgressFunc {
	return func(fraction float64) Action {
		for {
			select {
			case ch <- fraction:
				return Continue
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Chain calls each non-nil fn in order and aborts if any of them does.
// Every fn sees every update, even after an earlier one asked to abort.
func Chain(fns ...ProgressFunc) ProgressFunc {
	return func(fraction float64) Action {
		action := Continue
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if fn(fraction) == Abort {
				action = Abort
			}
		}
		return action
	}
}
