// Package execute bounds the wall-clock time of opaque synchronous work.
//
// Bundle capabilities are plain blocking calls that cannot be cancelled or
// force-terminated safely. Bounded runs the call on its own goroutine and
// races its completion against a timer: the caller gets an answer within
// the timeout regardless of what the work does. On timeout the goroutine is
// abandoned, not killed; it keeps its worker slot until it finishes on its
// own or the process exits.
package execute

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout reports that the work did not complete within the deadline.
var ErrTimeout = errors.New("execution timed out")

// Contract violations, returned synchronously before any work is scheduled.
var (
	ErrNilWork        = errors.New("work is nil")
	ErrInvalidTimeout = errors.New("timeout must be positive")
)

// Fault wraps an error raised by the work itself (returned or panicked),
// distinguishing plugin misbehavior from host-side timeouts.
type Fault struct {
	Err      error
	Panicked bool
}

func (f *Fault) Error() string {
	if f.Panicked {
		return fmt.Sprintf("work panicked: %v", f.Err)
	}
	return fmt.Sprintf("work faulted: %v", f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

type outcome[T any] struct {
	value T
	err   error
}

// Bounded runs work with a wall-clock timeout. On success it returns the
// work's value. On timeout it returns ErrTimeout; the goroutine running the
// work is left to finish in the background and its eventual result is
// discarded. An error or panic from the work is returned as a *Fault.
//
// The result channel is buffered so the abandoned goroutine's late send
// never blocks; first writer wins, the loser's write lands in a buffer
// nobody reads.
func Bounded[T any](work func() (T, error), timeout time.Duration) (T, error) {
	var zero T
	if work == nil {
		return zero, ErrNilWork
	}
	if timeout <= 0 {
		return zero, fmt.Errorf("%w, got %v", ErrInvalidTimeout, timeout)
	}

	done := make(chan outcome[T], 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
				done <- outcome[T]{err: &Fault{Err: err, Panicked: true}}
			}
		}()

		value, err := work()
		if err != nil {
			done <- outcome[T]{err: &Fault{Err: err}}
			return
		}
		done <- outcome[T]{value: value}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.value, o.err
	case <-timer.C:
		return zero, ErrTimeout
	}
}

// IsTimeout reports whether err is the bounded-execution timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// AsFault extracts the Fault from err, if any.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
