package memory

import (
	"context"
	"time"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

func (mb *MemoryBackend) GetInfo(ctx context.Context, path data.Path, namespaces ...string) (data.Info, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	n, ok := mb.lookupUnsafe(path)
	if !ok {
		return data.Info{}, data.NewError(data.ErrResourceNotFound, "get_info", path.String(), nil)
	}
	return infoUnsafe(n, namespaces...), nil
}

func (mb *MemoryBackend) ListDir(ctx context.Context, path data.Path) ([]string, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	n, err := mb.directoryUnsafe("list_dir", path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, n.children.Len())
	n.children.Scan(func(name string) bool {
		names = append(names, name)
		return true
	})
	return names, nil
}

// ScanDir snapshots one directory level with the requested namespaces.
func (mb *MemoryBackend) ScanDir(ctx context.Context, path data.Path, namespaces ...string) (backend.EntryIterator, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	n, err := mb.directoryUnsafe("scan_dir", path)
	if err != nil {
		return nil, err
	}

	entries := make([]backend.Entry, 0, n.children.Len())
	n.children.Scan(func(name string) bool {
		if child, ok := mb.lookupUnsafe(path.Child(name)); ok {
			entries = append(entries, backend.Entry{
				Name: name,
				Info: infoUnsafe(child, namespaces...),
			})
		}
		return true
	})
	return backend.NewSliceIterator(entries), nil
}

func (mb *MemoryBackend) directoryUnsafe(op string, path data.Path) (*node, error) {
	n, ok := mb.lookupUnsafe(path)
	if !ok {
		return nil, data.NewError(data.ErrResourceNotFound, op, path.String(), nil)
	}
	if !n.isDir {
		return nil, data.NewError(data.ErrNotADirectory, op, path.String(), nil)
	}
	return n, nil
}

func (mb *MemoryBackend) MakeDir(ctx context.Context, path data.Path, perm data.FileMode, recreate bool) error {
	return mb.guard.Do(ctx, func(ctx context.Context) error {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		if existing, ok := mb.lookupUnsafe(path); ok {
			if existing.isDir && recreate {
				return nil
			}
			return data.NewError(data.ErrDirectoryExists, "make_dir", path.String(), nil)
		}

		parent, err := mb.parentUnsafe("make_dir", path)
		if err != nil {
			return err
		}

		mb.insertUnsafe(parent, path, newNode(path.Name(), true, perm))
		return nil
	})
}

func (mb *MemoryBackend) OpenBinary(ctx context.Context, path data.Path, mode data.AccessMode) (backend.File, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	if !mode.IsWriting() {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		n, ok := mb.lookupUnsafe(path)
		if !ok {
			return nil, data.NewError(data.ErrResourceNotFound, "open_binary", path.String(), nil)
		}
		if n.isDir {
			return nil, data.NewError(data.ErrFileExpected, "open_binary", path.String(), nil)
		}
		n.accessed = time.Now()

		return newMemoryFile(mb, n, mode, 0), nil
	}

	var file *memoryFile
	err := mb.guard.Do(ctx, func(ctx context.Context) error {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		n, ok := mb.lookupUnsafe(path)
		switch {
		case ok && n.isDir:
			return data.NewError(data.ErrFileExpected, "open_binary", path.String(), nil)
		case ok && mode.HasExcl():
			return data.NewError(data.ErrFileExists, "open_binary", path.String(), nil)
		case !ok && !mode.HasCreate():
			return data.NewError(data.ErrResourceNotFound, "open_binary", path.String(), nil)
		case !ok:
			parent, err := mb.parentUnsafe("open_binary", path)
			if err != nil {
				return err
			}
			n = newNode(path.Name(), false, data.DefaultFileMode)
			mb.insertUnsafe(parent, path, n)
		}

		if mode.HasTrunc() {
			n.content = nil
			n.modified = time.Now()
		}

		file = newMemoryFile(mb, n, mode, 0)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (mb *MemoryBackend) Remove(ctx context.Context, path data.Path) error {
	return mb.guard.Do(ctx, func(ctx context.Context) error {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		n, ok := mb.lookupUnsafe(path)
		if !ok {
			return data.NewError(data.ErrResourceNotFound, "remove", path.String(), nil)
		}
		if n.isDir {
			return data.NewError(data.ErrFileExpected, "remove", path.String(), nil)
		}

		mb.deleteUnsafe(path, n)
		return nil
	})
}

func (mb *MemoryBackend) RemoveDir(ctx context.Context, path data.Path) error {
	if path.IsRoot() {
		return data.NewError(data.ErrRemoveRoot, "remove_dir", path.String(), nil)
	}

	return mb.guard.Do(ctx, func(ctx context.Context) error {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		n, ok := mb.lookupUnsafe(path)
		if !ok {
			return data.NewError(data.ErrResourceNotFound, "remove_dir", path.String(), nil)
		}
		if !n.isDir {
			return data.NewError(data.ErrDirectoryExpected, "remove_dir", path.String(), nil)
		}
		if n.children.Len() > 0 {
			return data.NewError(data.ErrDirectoryNotEmpty, "remove_dir", path.String(), nil)
		}

		mb.deleteUnsafe(path, n)
		return nil
	})
}

func (mb *MemoryBackend) SetInfo(ctx context.Context, path data.Path, changes data.RawInfo) error {
	return mb.guard.Do(ctx, func(ctx context.Context) error {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		n, ok := mb.lookupUnsafe(path)
		if !ok {
			return data.NewError(data.ErrResourceNotFound, "set_info", path.String(), nil)
		}

		if details, ok := changes[data.NamespaceDetails]; ok {
			if t, ok := details[data.FieldModified].(time.Time); ok {
				n.modified = t
			}
			if t, ok := details[data.FieldAccessed].(time.Time); ok {
				n.accessed = t
			}
			if t, ok := details[data.FieldCreated].(time.Time); ok {
				n.created = t
			}
		}
		if access, ok := changes[data.NamespaceAccess]; ok {
			if perm, ok := access[data.FieldPermissions].(data.FileMode); ok {
				n.perm = perm.Perm()
			}
		}

		n.changed = time.Now()
		return nil
	})
}
