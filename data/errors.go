package data

import (
	"errors"
	"fmt"
	"sync"
)

// Error kinds. Every failure surfaced by a backend or a tree operation
// wraps exactly one of these.
var (
	ErrInvalidPath        = errors.New("treefs: invalid path")
	ErrResourceNotFound   = errors.New("treefs: resource not found")
	ErrDirectoryExists    = errors.New("treefs: directory exists")
	ErrDirectoryNotEmpty  = errors.New("treefs: directory not empty")
	ErrFileExpected       = errors.New("treefs: file expected")
	ErrDirectoryExpected  = errors.New("treefs: directory expected")
	ErrNotADirectory      = errors.New("treefs: not a directory")
	ErrPermissionDenied   = errors.New("treefs: permission denied")
	ErrDestinationExists  = errors.New("treefs: destination exists")
	ErrOperationAborted   = errors.New("treefs: operation aborted")
	ErrFileExists         = errors.New("treefs: file exists")
	ErrResourceReadOnly   = errors.New("treefs: resource is read-only")
	ErrRemoveRoot         = errors.New("treefs: root directory may not be removed")
	ErrUnsupported        = errors.New("treefs: operation unsupported")
	ErrIllegalDestination = errors.New("treefs: destination is inside source")
	ErrMountExists        = errors.New("treefs: path already mounted")
	ErrMountBusy          = errors.New("treefs: mount is busy")
	ErrMissingInfo        = errors.New("treefs: missing required info field")
	ErrOperationFailed    = errors.New("treefs: operation failed")
)

var kinds = []error{
	ErrInvalidPath,
	ErrResourceNotFound,
	ErrDirectoryExists,
	ErrDirectoryNotEmpty,
	ErrFileExpected,
	ErrDirectoryExpected,
	ErrNotADirectory,
	ErrPermissionDenied,
	ErrDestinationExists,
	ErrOperationAborted,
	ErrFileExists,
	ErrResourceReadOnly,
	ErrRemoveRoot,
	ErrUnsupported,
	ErrIllegalDestination,
	ErrMountExists,
	ErrMountBusy,
	ErrMissingInfo,
}

// ResourceError describes a failed operation on a single path.
type ResourceError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

// NewError builds a ResourceError of the given kind. cause may be nil.
func NewError(kind error, op, path string, cause error) error {
	return &ResourceError{
		Op:   op,
		Path: path,
		Kind: kind,
		Err:  cause,
	}
}

func (e *ResourceError) Error() string {
	text := fmt.Sprintf("%s '%s': %v", e.Op, e.Path, e.Kind)
	if e.Err != nil {
		text = fmt.Sprintf("%s: %v", text, e.Err)
	}
	return text
}

func (e *ResourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf classifies err into one of the error kinds.
// Context cancellation maps to ErrOperationAborted, anything unknown to ErrOperationFailed.
func KindOf(err error) error {
	if err == nil {
		return nil
	}

	var rerr *ResourceError
	if errors.As(err, &rerr) && rerr.Kind != nil {
		return rerr.Kind
	}

	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}

	if IsCanceled(err) {
		return ErrOperationAborted
	}

	return ErrOperationFailed
}

// Errors collects errors from concurrent or fan-out work.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = nil
}

func (e *Errors) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.errors)
}

// Errors returns all collected errors joined, or nil.
func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
