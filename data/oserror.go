package data

import (
	"context"
	"errors"
	"io/fs"
	"syscall"
)

// FromOSError translates an error returned by the os package (or anything
// producing io/fs and errno errors) into a ResourceError of the matching kind.
// Errors that already carry a kind are returned unchanged.
func FromOSError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var rerr *ResourceError
	if errors.As(err, &rerr) {
		return err
	}

	return NewError(osErrorKind(err), op, path, err)
}

func osErrorKind(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return ErrResourceNotFound
		case syscall.EACCES, syscall.EPERM:
			return ErrPermissionDenied
		case syscall.ENOTEMPTY:
			return ErrDirectoryNotEmpty
		case syscall.EEXIST:
			return ErrFileExists
		case syscall.EISDIR:
			return ErrFileExpected
		case syscall.ENOTDIR:
			return ErrDirectoryExpected
		case syscall.EROFS:
			return ErrResourceReadOnly
		case syscall.EINVAL, syscall.ENAMETOOLONG:
			return ErrInvalidPath
		}
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrResourceNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return ErrFileExists
	case errors.Is(err, fs.ErrInvalid):
		return ErrInvalidPath
	case IsCanceled(err):
		return ErrOperationAborted
	}

	return ErrOperationFailed
}

// IsCanceled reports whether err stems from a cancelled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
