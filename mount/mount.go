// Package mount combines several backends into one tree. Every call is
// delegated to the backend mounted at the longest matching path prefix.
package mount

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/backend/memory"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/log"
	"github.com/mwantia/treefs/wrap"
)

// Mount holds configuration and metadata of a single mount point.
type Mount struct {
	Path      data.Path
	Backend   backend.Backend
	Options   *MountOptions
	MountTime time.Time

	// open counts file handles that have not been closed yet.
	open atomic.Int64
}

// IsBusy reports whether file handles of this mount are still open.
func (m *Mount) IsBusy() bool {
	return m.open.Load() > 0
}

type MountFS struct {
	mu     sync.RWMutex
	log    *log.Logger
	root   *Mount
	mounts map[string]*Mount
}

// New creates a mount table whose root is served by root.
// A nil root is replaced by an empty memory backend.
func New(root backend.Backend, logger *log.Logger) *MountFS {
	if root == nil {
		root = memory.NewMemoryBackend()
	}
	if logger == nil {
		logger = log.Discard()
	}

	return &MountFS{
		log: logger.Named("mount"),
		root: &Mount{
			Path:      data.Root(),
			Backend:   root,
			Options:   newDefaultMountOptions(),
			MountTime: time.Now(),
		},
		mounts: make(map[string]*Mount),
	}
}

// Mount opens b and attaches it at path. The mount point directory is
// created in the parent backend so it shows up in listings.
func (mfs *MountFS) Mount(ctx context.Context, path data.Path, b backend.Backend, opts ...MountOption) error {
	options := newDefaultMountOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return err
		}
	}

	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	if _, exists := mfs.mounts[path.String()]; exists || path.IsRoot() {
		return data.NewError(data.ErrMountExists, "mount", path.String(), nil)
	}

	parent, inner := mfs.resolveUnsafe(path)
	if !parent.Options.Nesting {
		return data.NewError(data.ErrUnsupported, "mount", path.String(), nil)
	}
	if err := mfs.makeDirs(ctx, parent, inner); err != nil {
		return err
	}

	if err := b.Open(ctx); err != nil {
		return err
	}
	if options.ReadOnly {
		b = wrap.ReadOnly(b)
	}

	mfs.mounts[path.String()] = &Mount{
		Path:      path,
		Backend:   b,
		Options:   options,
		MountTime: time.Now(),
	}
	mfs.log.Info("mounted %s at %s", b.Name(), path)
	return nil
}

// makeDirs creates inner and its missing ancestors on the parent mount.
func (mfs *MountFS) makeDirs(ctx context.Context, parent *Mount, inner data.Path) error {
	current := data.Root()
	for _, segment := range inner.Segments() {
		current = current.Child(segment)

		info, err := parent.Backend.GetInfo(ctx, current)
		if err == nil && info.IsDir() {
			continue
		}
		if err == nil {
			return data.NewError(data.ErrDirectoryExpected, "mount", parent.Path.String(), nil)
		}

		err = parent.Backend.MakeDir(ctx, current, data.DefaultDirMode, true)
		if err != nil {
			return wrap.RebaseError(err, data.Root(), parent.Path)
		}
	}
	return nil
}

// Unmount detaches and closes the backend at path. Mounts with open file
// handles or nested mounts are rejected with ErrMountBusy unless force is set
// for the handles.
func (mfs *MountFS) Unmount(ctx context.Context, path data.Path, force bool) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mnt, exists := mfs.mounts[path.String()]
	if !exists {
		return data.NewError(data.ErrResourceNotFound, "unmount", path.String(), nil)
	}

	for key, other := range mfs.mounts {
		if key != path.String() && other.Path.HasPrefix(path) {
			return data.NewError(data.ErrMountBusy, "unmount", path.String(), nil)
		}
	}
	if mnt.IsBusy() && !force {
		return data.NewError(data.ErrMountBusy, "unmount", path.String(), nil)
	}

	delete(mfs.mounts, path.String())
	mfs.log.Info("unmounted %s", path)
	return mnt.Backend.Close(ctx)
}

// Mounts returns all mount points sorted by path, excluding the root.
func (mfs *MountFS) Mounts() []*Mount {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	mounts := make([]*Mount, 0, len(mfs.mounts))
	for _, mnt := range mfs.mounts {
		mounts = append(mounts, mnt)
	}
	slices.SortFunc(mounts, func(a, b *Mount) int {
		return cmp.Compare(a.Path.String(), b.Path.String())
	})
	return mounts
}

// Root returns the backend serving "/".
func (mfs *MountFS) Root() backend.Backend {
	return mfs.root.Backend
}

// resolve finds the mount serving path and the path inside its backend.
func (mfs *MountFS) resolve(path data.Path) (*Mount, data.Path) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return mfs.resolveUnsafe(path)
}

// resolveUnsafe requires at least the read lock.
func (mfs *MountFS) resolveUnsafe(path data.Path) (*Mount, data.Path) {
	best := mfs.root
	for _, mnt := range mfs.mounts {
		if path.HasPrefix(mnt.Path) && mnt.Path.Depth() > best.Path.Depth() {
			best = mnt
		}
	}

	inner, _ := path.Rebase(best.Path, data.Root())
	return best, inner
}

// mountAt returns the mount whose mount point is exactly path.
func (mfs *MountFS) mountAt(path data.Path) (*Mount, bool) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	mnt, ok := mfs.mounts[path.String()]
	return mnt, ok
}

// Name returns the identifier name defined for this backend.
func (*MountFS) Name() string {
	return "mount"
}

// Open opens the root backend. Mounted backends are opened by Mount.
func (mfs *MountFS) Open(ctx context.Context) error {
	return mfs.root.Backend.Open(ctx)
}

// Close closes every mounted backend and the root, collecting all errors.
func (mfs *MountFS) Close(ctx context.Context) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	errs := data.Errors{}
	for key, mnt := range mfs.mounts {
		errs.Add(mnt.Backend.Close(ctx))
		delete(mfs.mounts, key)
	}
	errs.Add(mfs.root.Backend.Close(ctx))

	return errs.Errors()
}

// GetCapabilities reports the optional operations every mounted backend
// supports. ScanDir is always available through the listing fallback.
func (mfs *MountFS) GetCapabilities() *backend.Capabilities {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	backends := []backend.Backend{mfs.root.Backend}
	for _, mnt := range mfs.mounts {
		backends = append(backends, mnt.Backend)
	}

	caps := &backend.Capabilities{
		Capabilities: []backend.Capability{backend.CapabilityScanDir},
		ReadOnly:     true,
	}
	for _, capability := range []backend.Capability{backend.CapabilitySetInfo, backend.CapabilityAppend, backend.CapabilityStreaming} {
		shared := true
		for _, b := range backends {
			if !b.GetCapabilities().Contains(capability) {
				shared = false
				break
			}
		}
		if shared {
			caps.Capabilities = append(caps.Capabilities, capability)
		}
	}
	for _, b := range backends {
		c := b.GetCapabilities()
		caps.ReadOnly = caps.ReadOnly && c.ReadOnly
		caps.CaseInsensitive = caps.CaseInsensitive || c.CaseInsensitive
	}
	return caps
}
