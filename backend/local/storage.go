package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

func (lb *LocalBackend) GetInfo(ctx context.Context, path data.Path, namespaces ...string) (data.Info, error) {
	stat := os.Lstat
	if path.IsRoot() {
		stat = os.Stat
	}
	fileInfo, err := stat(lb.resolvePath(path))
	if err != nil {
		return data.Info{}, data.FromOSError("get_info", path.String(), err)
	}
	return toInfo(path, fileInfo, namespaces...), nil
}

func (lb *LocalBackend) ListDir(ctx context.Context, path data.Path) ([]string, error) {
	entries, err := os.ReadDir(lb.resolvePath(path))
	if err != nil {
		return nil, listError("list_dir", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// ScanDir reads the directory in batches of ScanBatchSize entries.
func (lb *LocalBackend) ScanDir(ctx context.Context, path data.Path, namespaces ...string) (backend.EntryIterator, error) {
	dir, err := os.Open(lb.resolvePath(path))
	if err != nil {
		return nil, listError("scan_dir", path, err)
	}

	var batch []fs.DirEntry
	exhausted := false

	next := func(ctx context.Context) (backend.Entry, bool, error) {
		for {
			if len(batch) == 0 {
				if exhausted {
					return backend.Entry{}, false, nil
				}

				batch, err = dir.ReadDir(ScanBatchSize)
				if errors.Is(err, io.EOF) {
					exhausted = true
					continue
				}
				if err != nil {
					return backend.Entry{}, false, listError("scan_dir", path, err)
				}
			}

			entry := batch[0]
			batch = batch[1:]

			child := path.Child(entry.Name())
			fileInfo, err := entry.Info()
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return backend.Entry{}, false, data.FromOSError("scan_dir", child.String(), err)
			}
			return backend.Entry{Name: entry.Name(), Info: toInfo(child, fileInfo, namespaces...)}, true, nil
		}
	}

	return backend.NewFuncIterator(ctx, next, dir.Close), nil
}

func (lb *LocalBackend) MakeDir(ctx context.Context, path data.Path, perm data.FileMode, recreate bool) error {
	return lb.guard.Do(ctx, func(ctx context.Context) error {
		fullPath := lb.resolvePath(path)

		err := os.Mkdir(fullPath, fs.FileMode(perm.Perm()))
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return data.FromOSError("make_dir", path.String(), err)
		}

		if fileInfo, serr := os.Stat(fullPath); serr == nil && fileInfo.IsDir() && recreate {
			return nil
		}
		return data.NewError(data.ErrDirectoryExists, "make_dir", path.String(), err)
	})
}

func (lb *LocalBackend) OpenBinary(ctx context.Context, path data.Path, mode data.AccessMode) (backend.File, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	fullPath := lb.resolvePath(path)
	if fileInfo, err := os.Stat(fullPath); err == nil && fileInfo.IsDir() {
		return nil, data.NewError(data.ErrFileExpected, "open_binary", path.String(), nil)
	}

	if !mode.IsWriting() {
		file, err := os.Open(fullPath)
		if err != nil {
			return nil, data.FromOSError("open_binary", path.String(), err)
		}
		return file, nil
	}

	var file *os.File
	err := lb.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		file, err = os.OpenFile(fullPath, openFlags(mode), fs.FileMode(data.DefaultFileMode))
		return err
	})
	if err != nil {
		return nil, data.FromOSError("open_binary", path.String(), err)
	}
	return file, nil
}

func openFlags(mode data.AccessMode) int {
	flags := os.O_WRONLY
	if mode.CanRead() {
		flags = os.O_RDWR
	}
	if mode.HasCreate() {
		flags |= os.O_CREATE
	}
	if mode.HasTrunc() {
		flags |= os.O_TRUNC
	}
	if mode.HasExcl() {
		flags |= os.O_EXCL
	}
	if mode.HasAppend() {
		flags |= os.O_APPEND
	}
	return flags
}

func (lb *LocalBackend) Remove(ctx context.Context, path data.Path) error {
	return lb.guard.Do(ctx, func(ctx context.Context) error {
		fullPath := lb.resolvePath(path)

		fileInfo, err := os.Lstat(fullPath)
		if err != nil {
			return data.FromOSError("remove", path.String(), err)
		}
		if fileInfo.IsDir() {
			return data.NewError(data.ErrFileExpected, "remove", path.String(), nil)
		}

		return data.FromOSError("remove", path.String(), os.Remove(fullPath))
	})
}

func (lb *LocalBackend) RemoveDir(ctx context.Context, path data.Path) error {
	if path.IsRoot() {
		return data.NewError(data.ErrRemoveRoot, "remove_dir", path.String(), nil)
	}

	return lb.guard.Do(ctx, func(ctx context.Context) error {
		fullPath := lb.resolvePath(path)

		fileInfo, err := os.Lstat(fullPath)
		if err != nil {
			return data.FromOSError("remove_dir", path.String(), err)
		}
		if !fileInfo.IsDir() {
			return data.NewError(data.ErrDirectoryExpected, "remove_dir", path.String(), nil)
		}

		err = os.Remove(fullPath)
		// Some systems report a non-empty directory with EEXIST.
		if errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST) {
			return data.NewError(data.ErrDirectoryNotEmpty, "remove_dir", path.String(), err)
		}
		return data.FromOSError("remove_dir", path.String(), err)
	})
}

func (lb *LocalBackend) SetInfo(ctx context.Context, path data.Path, changes data.RawInfo) error {
	return lb.guard.Do(ctx, func(ctx context.Context) error {
		fullPath := lb.resolvePath(path)

		if _, err := os.Stat(fullPath); err != nil {
			return data.FromOSError("set_info", path.String(), err)
		}

		if details, ok := changes[data.NamespaceDetails]; ok {
			modified, _ := details[data.FieldModified].(time.Time)
			accessed, _ := details[data.FieldAccessed].(time.Time)
			if !modified.IsZero() || !accessed.IsZero() {
				if err := os.Chtimes(fullPath, accessed, modified); err != nil {
					return data.FromOSError("set_info", path.String(), err)
				}
			}
		}

		if access, ok := changes[data.NamespaceAccess]; ok {
			if perm, ok := access[data.FieldPermissions].(data.FileMode); ok {
				if err := os.Chmod(fullPath, fs.FileMode(perm.Perm())); err != nil {
					return data.FromOSError("set_info", path.String(), err)
				}
			}
		}

		return nil
	})
}

// listError reports files as ErrNotADirectory, matching the listing contract.
func listError(op string, path data.Path, err error) error {
	err = data.FromOSError(op, path.String(), err)
	if errors.Is(err, data.ErrDirectoryExpected) {
		return data.NewError(data.ErrNotADirectory, op, path.String(), err)
	}
	return err
}
