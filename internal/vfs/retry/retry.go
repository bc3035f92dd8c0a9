// Package retry wraps a vfs.FS so that failed operations are repeated
// with an exponential backoff.
package retry

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

// FS retries operations of the wrapped file system in case of an error
// with a backoff.
type FS struct {
	vfs.FS
	MaxElapsedTime time.Duration
	Report         func(string, error, time.Duration)
	Success        func(string, int)
}

// statically ensure that *FS implements vfs.FS.
var _ vfs.FS = &FS{}

// New wraps fs with a file system that retries operations after a
// backoff. report is called with a description and the error, if one
// occurred. success is called with the number of retries before a
// successful operation (it is not called if it succeeded on the first
// try).
func New(fs vfs.FS, maxElapsedTime time.Duration, report func(string, error, time.Duration), success func(string, int)) *FS {
	return &FS{
		FS:             fs,
		MaxElapsedTime: maxElapsedTime,
		Report:         report,
		Success:        success,
	}
}

// retryNotifyErrorWithSuccess is an extension of backoff.RetryNotify with notification of success after an error.
// success is NOT notified on the first run of operation (only after an error).
func retryNotifyErrorWithSuccess(operation backoff.Operation, b backoff.BackOffContext, notify backoff.Notify, success func(retries int)) error {
	var operationWrapper backoff.Operation
	if success == nil {
		operationWrapper = operation
	} else {
		retries := 0
		operationWrapper = func() error {
			err := operation()
			if err != nil {
				retries++
			} else if retries > 0 {
				success(retries)
			}
			return err
		}
	}
	err := backoff.RetryNotify(operationWrapper, b, notify)

	if err != nil && notify != nil && b.Context().Err() == nil {
		// log final error, unless the context was canceled
		notify(err, -1)
	}
	return err
}

var fastRetries = false

func (be *FS) retry(ctx context.Context, msg string, f func() error) error {
	// Don't do anything when called with an already cancelled context.
	// There would be no retries in that case either, so be consistent
	// and abort always.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = be.MaxElapsedTime
	bo.InitialInterval = 1 * time.Second
	bo.Multiplier = 2

	if fastRetries {
		// speed up tests
		bo.InitialInterval = 1 * time.Millisecond
		maxElapsedTime := 200 * time.Millisecond
		if bo.MaxElapsedTime > maxElapsedTime {
			bo.MaxElapsedTime = maxElapsedTime
		}
	}

	return retryNotifyErrorWithSuccess(
		func() error {
			err := f()
			// don't retry permanent conditions as those very likely
			// cannot be fixed by retrying
			if err != nil && !errors.Is(err, &backoff.PermanentError{}) && !vfs.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(bo, ctx),
		func(err error, d time.Duration) {
			if be.Report != nil {
				be.Report(msg, err, d)
			}
		},
		func(retries int) {
			if be.Success != nil {
				be.Success(msg, retries)
			}
		},
	)
}

// Open returns a reader for the file at loc. Only obtaining the handle
// is retried; read errors surface to the caller.
func (be *FS) Open(ctx context.Context, loc vfs.Location) (rd io.ReadCloser, err error) {
	err = be.retry(ctx, "Open("+loc.String()+")", func() error {
		var innerError error
		rd, innerError = be.FS.Open(ctx, loc)
		return innerError
	})
	return rd, err
}

// Create passes through unretried: a partially written stream cannot be
// replayed from here. Callers redo the whole artifact instead.

func (be *FS) Stat(ctx context.Context, loc vfs.Location) (fi vfs.Info, err error) {
	err = be.retry(ctx, "Stat("+loc.String()+")", func() error {
		var innerError error
		fi, innerError = be.FS.Stat(ctx, loc)
		return innerError
	})
	return fi, err
}

func (be *FS) Remove(ctx context.Context, loc vfs.Location) error {
	return be.retry(ctx, "Remove("+loc.String()+")", func() error {
		return be.FS.Remove(ctx, loc)
	})
}

func (be *FS) MkdirAll(ctx context.Context, loc vfs.Location) error {
	return be.retry(ctx, "MkdirAll("+loc.String()+")", func() error {
		return be.FS.MkdirAll(ctx, loc)
	})
}

// Walk runs fn for each file below loc. When an error is returned by the
// underlying file system, the walk is retried; files already reported
// are not reported again. When fn returns an error, the walk is aborted
// and the error is returned to the caller.
func (be *FS) Walk(ctx context.Context, loc vfs.Location, fn vfs.WalkFunc) error {
	// create a new context that we can cancel when fn returns an error,
	// so that walking is aborted
	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	walked := make(map[string]struct{}) // remember for which files we already ran fn
	var innerErr error                  // remember when fn returned an error, so we can return that to the caller

	err := be.retry(walkCtx, "Walk("+loc.String()+")", func() error {
		return be.FS.Walk(ctx, loc, func(file vfs.Location, size int64) error {
			if _, ok := walked[file.String()]; ok {
				return nil
			}
			walked[file.String()] = struct{}{}

			innerErr = fn(file, size)
			if innerErr != nil {
				// if fn returned an error, walking is aborted, so we cancel the context
				cancel()
			}
			return innerErr
		})
	})

	// the error fn returned takes precedence
	if innerErr != nil {
		return innerErr
	}

	return err
}

// Unwrap returns the underlying file system.
func (be *FS) Unwrap() vfs.FS {
	return be.FS
}
