// Package local provides a backend rooted in a directory of the host filesystem.
package local

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// ScanBatchSize is the number of directory entries read per ScanDir batch.
const ScanBatchSize = 256

type LocalBackend struct {
	mu    sync.RWMutex
	guard *backend.Guard
	path  string
	// create makes Open create a missing root directory.
	create bool
	// temporary roots are created by Open and removed by Close.
	temporary bool
	pattern   string
}

type LocalOption func(*LocalBackend)

// WithCreate makes Open create the root directory and its parents.
func WithCreate(create bool) LocalOption {
	return func(lb *LocalBackend) {
		lb.create = create
	}
}

// NewTempBackend returns a backend rooted in a fresh directory below the
// system temp directory. The directory and its content are removed on Close.
func NewTempBackend(pattern string) *LocalBackend {
	if pattern == "" {
		pattern = "treefs-*"
	}
	return &LocalBackend{
		guard:     backend.NewGuard(),
		temporary: true,
		pattern:   pattern,
	}
}

func NewLocalBackend(path string, opts ...LocalOption) *LocalBackend {
	lb := &LocalBackend{
		guard: backend.NewGuard(),
		path:  filepath.Clean(path),
	}
	for _, opt := range opts {
		opt(lb)
	}
	return lb
}

// Name returns the identifier name defined for this backend.
func (*LocalBackend) Name() string {
	return "local"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (lb *LocalBackend) Open(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.temporary {
		dir, err := os.MkdirTemp("", lb.pattern)
		if err != nil {
			return data.FromOSError("open", lb.pattern, err)
		}
		lb.path = dir
		return nil
	}

	if lb.create {
		if err := os.MkdirAll(lb.path, fs.FileMode(data.DefaultDirMode)); err != nil {
			return data.FromOSError("open", lb.path, err)
		}
	}

	// Verify the root directory exists
	info, err := os.Stat(lb.path)
	if err != nil {
		return data.FromOSError("open", lb.path, err)
	}

	// Ensure the root is a directory
	if !info.IsDir() {
		return data.NewError(data.ErrDirectoryExpected, "open", lb.path, nil)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (lb *LocalBackend) Close(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	// The underlying filesystem persists independently
	if !lb.temporary || lb.path == "" {
		return nil
	}

	err := os.RemoveAll(lb.path)
	lb.path = ""
	return data.FromOSError("close", lb.pattern, err)
}

// Path returns the host directory the backend is rooted in.
func (lb *LocalBackend) Path() string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.path
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (lb *LocalBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityScanDir,
			backend.CapabilitySetInfo,
			backend.CapabilityAppend,
			backend.CapabilityStreaming,
		},
		CaseInsensitive: runtime.GOOS == "darwin" || runtime.GOOS == "windows",
		// Local filesystem limits vary by OS/filesystem, but we set a practical limit
		// of 10GB for typical use cases.
		MaxObjectSize: 10737418240, // 10 GB
	}
}

// resolvePath joins the backend root with the virtual path.
func (lb *LocalBackend) resolvePath(path data.Path) string {
	return filepath.Join(lb.path, filepath.FromSlash(path.Key()))
}

// toInfo converts os.FileInfo into an info record with the requested namespaces.
func toInfo(path data.Path, fileInfo fs.FileInfo, namespaces ...string) data.Info {
	raw := data.NewRawInfo(path.Name(), fileInfo.IsDir())
	for _, namespace := range namespaces {
		switch namespace {
		case data.NamespaceDetails:
			// Symlinks keep their type bits and are never reported as directories.
			mode := data.FileMode(fileInfo.Mode() & (fs.ModeType | fs.ModePerm))
			raw.Set(namespace, data.FieldType, mode.Type()).
				Set(namespace, data.FieldSize, fileInfo.Size()).
				Set(namespace, data.FieldModified, fileInfo.ModTime())
			if contentType, ok := data.ContentTypeByName(fileInfo.Name()); ok && fileInfo.Mode().IsRegular() {
				raw.Set(namespace, data.FieldContentType, contentType)
			}
		case data.NamespaceAccess:
			raw.Set(namespace, data.FieldPermissions, data.FileMode(fileInfo.Mode().Perm()))
		}
	}
	return raw.Info()
}
