// Package voice materializes a reference voice sample as a temporary file for
// the lifetime of one synthesis call or one batch.
package voice

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// AcquisitionError reports that the voice sample could not be materialized.
// It is fatal for the request that needed the sample.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("voice reference unavailable: %v", e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// ErrEmptySample is wrapped by AcquisitionError when no sample bytes were given.
var ErrEmptySample = errors.New("voice sample is empty")

// Reference is a voice sample written to a temporary file. Release must be
// called exactly once the synthesis work is done; it is safe to call twice.
type Reference struct {
	path   string
	logger *slog.Logger
	once   sync.Once
}

// Acquire writes sample into a new temporary file under dir (os.TempDir when
// empty). Any partially written file is removed before returning an error.
func Acquire(dir string, sample []byte, logger *slog.Logger) (*Reference, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(sample) == 0 {
		return nil, &AcquisitionError{Err: ErrEmptySample}
	}

	file, err := os.CreateTemp(dir, "loqa-voice-*.wav")
	if err != nil {
		return nil, &AcquisitionError{Err: fmt.Errorf("create temp voice file: %w", err)}
	}
	path := file.Name()

	if _, err := file.Write(sample); err != nil {
		file.Close()
		removeQuietly(path, logger)
		return nil, &AcquisitionError{Err: fmt.Errorf("write temp voice file: %w", err)}
	}
	if err := file.Close(); err != nil {
		removeQuietly(path, logger)
		return nil, &AcquisitionError{Err: fmt.Errorf("close temp voice file: %w", err)}
	}
	if err := os.Chmod(path, 0o644); err != nil {
		removeQuietly(path, logger)
		return nil, &AcquisitionError{Err: fmt.Errorf("set temp voice file permissions: %w", err)}
	}

	return &Reference{path: path, logger: logger}, nil
}

// Path is where the synthesizer can read the sample.
func (r *Reference) Path() string { return r.path }

// Release deletes the temporary file. Failures are logged, never returned, so
// they cannot mask an error already in flight.
func (r *Reference) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		removeQuietly(r.path, r.logger)
	})
}

// With acquires a reference, runs fn with it, and releases it on every exit
// path including a panic in fn.
func With(dir string, sample []byte, logger *slog.Logger, fn func(*Reference) error) error {
	ref, err := Acquire(dir, sample, logger)
	if err != nil {
		return err
	}
	defer ref.Release()
	return fn(ref)
}

func removeQuietly(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to remove temp voice file", slog.String("path", path), slog.String("error", err.Error()))
	}
}
