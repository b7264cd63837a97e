package mount

import (
	"context"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
	"github.com/mwantia/treefs/wrap"
)

func (m *Mount) translate(err error) error {
	return wrap.RebaseError(err, data.Root(), m.Path)
}

func (mfs *MountFS) GetInfo(ctx context.Context, path data.Path, namespaces ...string) (data.Info, error) {
	mnt, inner := mfs.resolve(path)

	info, err := mnt.Backend.GetInfo(ctx, inner, namespaces...)
	if err != nil {
		return data.Info{}, mnt.translate(err)
	}
	if inner.IsRoot() {
		info = info.WithName(path.Name())
	}
	return info, nil
}

func (mfs *MountFS) ListDir(ctx context.Context, path data.Path) ([]string, error) {
	mnt, inner := mfs.resolve(path)

	names, err := mnt.Backend.ListDir(ctx, inner)
	return names, mnt.translate(err)
}

// ScanDir reports mount points with the info of the mounted root.
func (mfs *MountFS) ScanDir(ctx context.Context, path data.Path, namespaces ...string) (backend.EntryIterator, error) {
	mnt, inner := mfs.resolve(path)

	it, err := tree.ScanDir(ctx, mnt.Backend, inner, namespaces...)
	if err != nil {
		return nil, mnt.translate(err)
	}

	next := func(ctx context.Context) (backend.Entry, bool, error) {
		if !it.Next() {
			return backend.Entry{}, false, mnt.translate(it.Err())
		}

		entry := it.Entry()
		if child, ok := mfs.mountAt(path.Child(entry.Name)); ok {
			if info, err := child.Backend.GetInfo(ctx, data.Root(), namespaces...); err == nil {
				entry.Info = info.WithName(entry.Name)
			}
		}
		return entry, true, nil
	}

	return backend.NewFuncIterator(ctx, next, it.Close), nil
}

func (mfs *MountFS) MakeDir(ctx context.Context, path data.Path, perm data.FileMode, recreate bool) error {
	mnt, inner := mfs.resolve(path)
	return mnt.translate(mnt.Backend.MakeDir(ctx, inner, perm, recreate))
}

func (mfs *MountFS) OpenBinary(ctx context.Context, path data.Path, mode data.AccessMode) (backend.File, error) {
	mnt, inner := mfs.resolve(path)

	file, err := mnt.Backend.OpenBinary(ctx, inner, mode)
	if err != nil {
		return nil, mnt.translate(err)
	}

	mnt.open.Add(1)
	return &mountFile{File: file, mnt: mnt}, nil
}

// RemoveDir refuses mount points; they disappear with Unmount.
func (mfs *MountFS) RemoveDir(ctx context.Context, path data.Path) error {
	if path.IsRoot() {
		return data.NewError(data.ErrRemoveRoot, "remove_dir", path.String(), nil)
	}
	if _, ok := mfs.mountAt(path); ok {
		return data.NewError(data.ErrMountBusy, "remove_dir", path.String(), nil)
	}

	mnt, inner := mfs.resolve(path)
	return mnt.translate(mnt.Backend.RemoveDir(ctx, inner))
}

func (mfs *MountFS) Remove(ctx context.Context, path data.Path) error {
	mnt, inner := mfs.resolve(path)
	return mnt.translate(mnt.Backend.Remove(ctx, inner))
}

func (mfs *MountFS) SetInfo(ctx context.Context, path data.Path, changes data.RawInfo) error {
	mnt, inner := mfs.resolve(path)
	return mnt.translate(mnt.Backend.SetInfo(ctx, inner, changes))
}

// mountFile keeps the mount busy until the handle is closed.
type mountFile struct {
	backend.File
	mnt    *Mount
	closed bool
}

func (f *mountFile) Close() error {
	if !f.closed {
		f.closed = true
		f.mnt.open.Add(-1)
	}
	return f.File.Close()
}
