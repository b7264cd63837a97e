// Package backend defines the capability contract every storage backend
// implements, the optional accelerators the tree engine probes for and the
// per-instance concurrency guard.
package backend

import (
	"context"
	"io"

	"github.com/mwantia/treefs/data"
)

// Backend is the contract every storage provider implements.
// All paths are normalized before they reach a backend.
type Backend interface {
	// Name returns the identifier name defined for this backend.
	Name() string
	// Open is part of the lifecycle behaviour and gets called before first use.
	Open(ctx context.Context) error
	// Close is part of the lifecycle behaviour and releases held resources.
	Close(ctx context.Context) error
	// GetCapabilities describes optional operations and traits.
	GetCapabilities() *Capabilities

	// GetInfo returns the info record of path with at least the basic namespace.
	// Fails with ErrResourceNotFound.
	GetInfo(ctx context.Context, path data.Path, namespaces ...string) (data.Info, error)
	// ListDir returns the entry names of a directory in no guaranteed order.
	// Fails with ErrResourceNotFound or ErrNotADirectory.
	ListDir(ctx context.Context, path data.Path) ([]string, error)
	// MakeDir creates a single directory. Fails with ErrDirectoryExists unless
	// recreate is set and ErrResourceNotFound when the parent is missing.
	MakeDir(ctx context.Context, path data.Path, perm data.FileMode, recreate bool) error
	// OpenBinary opens a byte stream. Fails with ErrResourceNotFound,
	// ErrFileExpected or ErrPermissionDenied.
	OpenBinary(ctx context.Context, path data.Path, mode data.AccessMode) (File, error)
	// Remove deletes a file. Fails with ErrResourceNotFound or ErrFileExpected.
	Remove(ctx context.Context, path data.Path) error
	// RemoveDir deletes an empty directory. Fails with ErrResourceNotFound,
	// ErrDirectoryNotEmpty or ErrDirectoryExpected.
	RemoveDir(ctx context.Context, path data.Path) error
	// SetInfo applies the given changes. Fails with ErrResourceNotFound.
	SetInfo(ctx context.Context, path data.Path, changes data.RawInfo) error
}

// File is an open byte stream returned by OpenBinary.
// Read-mode handles fail writes and the other way round.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// Entry is one directory entry produced by a scan.
type Entry struct {
	Name string
	Info data.Info
}

// Scanner is the optional accelerator combining ListDir and GetInfo.
// Backends advertise it with CapabilityScanDir.
type Scanner interface {
	ScanDir(ctx context.Context, path data.Path, namespaces ...string) (EntryIterator, error)
}

// AsScanner probes b for the scan accelerator.
func AsScanner(b Backend) (Scanner, bool) {
	caps := b.GetCapabilities()
	if caps == nil || !caps.Contains(CapabilityScanDir) {
		return nil, false
	}
	scanner, ok := b.(Scanner)
	return scanner, ok
}
