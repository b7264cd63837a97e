package wrap

import (
	"context"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// SubBackend exposes the directory root of another backend as "/".
type SubBackend struct {
	inner backend.Backend
	root  data.Path
}

func Sub(b backend.Backend, root data.Path) *SubBackend {
	return &SubBackend{inner: b, root: root}
}

// Unwrap returns the wrapped backend.
func (sb *SubBackend) Unwrap() backend.Backend {
	return sb.inner
}

func (sb *SubBackend) Name() string {
	return sb.inner.Name()
}

// Open opens the wrapped backend and checks that the root is a directory.
func (sb *SubBackend) Open(ctx context.Context) error {
	if err := sb.inner.Open(ctx); err != nil {
		return err
	}

	info, err := sb.inner.GetInfo(ctx, sb.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return data.NewError(data.ErrDirectoryExpected, "open", sb.root.String(), nil)
	}
	return nil
}

func (sb *SubBackend) Close(ctx context.Context) error {
	return sb.inner.Close(ctx)
}

func (sb *SubBackend) GetCapabilities() *backend.Capabilities {
	return sb.inner.GetCapabilities()
}

// resolve maps p into the wrapped backend.
func (sb *SubBackend) resolve(p data.Path) data.Path {
	inner, _ := p.Rebase(data.Root(), sb.root)
	return inner
}

func (sb *SubBackend) translate(err error) error {
	return RebaseError(err, sb.root, data.Root())
}

func (sb *SubBackend) GetInfo(ctx context.Context, p data.Path, namespaces ...string) (data.Info, error) {
	info, err := sb.inner.GetInfo(ctx, sb.resolve(p), namespaces...)
	if err != nil {
		return data.Info{}, sb.translate(err)
	}
	if p.IsRoot() {
		info = info.WithName("")
	}
	return info, nil
}

func (sb *SubBackend) ListDir(ctx context.Context, p data.Path) ([]string, error) {
	names, err := sb.inner.ListDir(ctx, sb.resolve(p))
	return names, sb.translate(err)
}

func (sb *SubBackend) ScanDir(ctx context.Context, p data.Path, namespaces ...string) (backend.EntryIterator, error) {
	scanner, ok := backend.AsScanner(sb.inner)
	if !ok {
		return nil, data.NewError(data.ErrUnsupported, "scan_dir", p.String(), nil)
	}

	it, err := scanner.ScanDir(ctx, sb.resolve(p), namespaces...)
	if err != nil {
		return nil, sb.translate(err)
	}

	next := func(ctx context.Context) (backend.Entry, bool, error) {
		if !it.Next() {
			return backend.Entry{}, false, sb.translate(it.Err())
		}
		return it.Entry(), true, nil
	}
	return backend.NewFuncIterator(ctx, next, it.Close), nil
}

func (sb *SubBackend) MakeDir(ctx context.Context, p data.Path, perm data.FileMode, recreate bool) error {
	return sb.translate(sb.inner.MakeDir(ctx, sb.resolve(p), perm, recreate))
}

func (sb *SubBackend) OpenBinary(ctx context.Context, p data.Path, mode data.AccessMode) (backend.File, error) {
	file, err := sb.inner.OpenBinary(ctx, sb.resolve(p), mode)
	if err != nil {
		return nil, sb.translate(err)
	}
	return file, nil
}

func (sb *SubBackend) Remove(ctx context.Context, p data.Path) error {
	return sb.translate(sb.inner.Remove(ctx, sb.resolve(p)))
}

// RemoveDir refuses the sub root, which is "/" of this view.
func (sb *SubBackend) RemoveDir(ctx context.Context, p data.Path) error {
	if p.IsRoot() {
		return data.NewError(data.ErrRemoveRoot, "remove_dir", p.String(), nil)
	}
	return sb.translate(sb.inner.RemoveDir(ctx, sb.resolve(p)))
}

func (sb *SubBackend) SetInfo(ctx context.Context, p data.Path, changes data.RawInfo) error {
	return sb.translate(sb.inner.SetInfo(ctx, sb.resolve(p), changes))
}
