// Package errs collects the sentinel errors shared across the pipeline's
// packages and the wrapping convention used to add context to them.
package errs

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned by lookups (module, symbol, line) that
	// completed without finding a match. It is not itself fatal.
	ErrNotFound = errors.New("not found")

	// ErrExcluded marks a resolved symbol whose source file was rejected
	// by the configured source-path regex.
	ErrExcluded = errors.New("excluded by source regex")

	// ErrClosed is returned by operations attempted after the owning
	// object has been closed or torn down.
	ErrClosed = errors.New("already closed")

	// ErrInvalidArgs marks a setup error caused by bad CLI/config input;
	// cmd.Execute maps it to the EX_USAGE exit code.
	ErrInvalidArgs = errors.New("invalid arguments")
)

// Wrap adds context to err, or returns nil if err is nil.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf adds formatted context to err, or returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Cause unwraps err to the deepest wrapped cause, the way callers decide
// whether a setup error should abort the process.
func Cause(err error) error {
	return errors.Cause(err)
}
