// Copyright 2025 SnapEvent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fusion

import (
	"context"
	"time"
)

// Status records how a raced track finished.
type Status int

const (
	StatusCompleted Status = iota
	StatusTimedOut
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusTimedOut:
		return "timed_out"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of racing a function against a deadline.
type Outcome[T any] struct {
	Status Status
	Value  T
	Err    error
}

// Race runs fn with a deadline-bounded context and waits for either the
// result or the deadline, whichever comes first. On timeout the loser
// keeps running until its context cancellation takes effect, but its
// eventual result is discarded; the buffered channel lets the goroutine
// exit without a receiver. On failure the partial value fn returned is
// preserved alongside the error.
func Race[T any](ctx context.Context, deadline time.Duration, fn func(context.Context) (T, error)) Outcome[T] {
	return RaceCleanup(ctx, deadline, fn, nil)
}

// RaceCleanup is Race with a disposer for the loser's value. When the
// deadline wins but fn later completes successfully anyway, its value is
// handed to cleanup so resources it holds (temp files, handles) are
// released instead of vanishing behind the discarded channel.
func RaceCleanup[T any](ctx context.Context, deadline time.Duration, fn func(context.Context) (T, error), cleanup func(T)) Outcome[T] {
	raceCtx, cancel := context.WithTimeout(ctx, deadline)

	done := make(chan Outcome[T], 1)
	go func() {
		value, err := fn(raceCtx)
		if err != nil {
			done <- Outcome[T]{Status: StatusFailed, Value: value, Err: err}
			return
		}
		done <- Outcome[T]{Status: StatusCompleted, Value: value}
	}()

	select {
	case out := <-done:
		cancel()
		return out
	case <-raceCtx.Done():
		// Drain the loser in the background; a late success is disposed
		// of even when fn returned just as the deadline fired.
		go func() {
			defer cancel()
			out := <-done
			if cleanup != nil && out.Status == StatusCompleted {
				cleanup(out.Value)
			}
		}()
		return Outcome[T]{Status: StatusTimedOut, Err: raceCtx.Err()}
	}
}
