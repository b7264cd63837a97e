package archive

import (
	"context"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// lookup requires at least the read lock.
func (ab *ArchiveBackend) lookup(op string, p data.Path) (*member, error) {
	m, ok := ab.members.Get(p.String())
	if !ok {
		return nil, data.NewError(data.ErrResourceNotFound, op, p.String(), nil)
	}
	return m, nil
}

func (ab *ArchiveBackend) GetInfo(ctx context.Context, p data.Path, namespaces ...string) (data.Info, error) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	m, err := ab.lookup("get_info", p)
	if err != nil {
		return data.Info{}, err
	}
	return m.info(namespaces...), nil
}

func (ab *ArchiveBackend) ListDir(ctx context.Context, p data.Path) ([]string, error) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	m, err := ab.lookup("list_dir", p)
	if err != nil {
		return nil, err
	}
	if !m.isDir {
		return nil, data.NewError(data.ErrNotADirectory, "list_dir", p.String(), nil)
	}
	return append([]string(nil), m.children...), nil
}

func (ab *ArchiveBackend) ScanDir(ctx context.Context, p data.Path, namespaces ...string) (backend.EntryIterator, error) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	m, err := ab.lookup("scan_dir", p)
	if err != nil {
		return nil, err
	}
	if !m.isDir {
		return nil, data.NewError(data.ErrNotADirectory, "scan_dir", p.String(), nil)
	}

	entries := make([]backend.Entry, 0, len(m.children))
	for _, name := range m.children {
		child, ok := ab.members.Get(p.Child(name).String())
		if !ok {
			continue
		}
		entries = append(entries, backend.Entry{Name: name, Info: child.info(namespaces...)})
	}
	return backend.NewSliceIterator(entries), nil
}

func (ab *ArchiveBackend) OpenBinary(ctx context.Context, p data.Path, mode data.AccessMode) (backend.File, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if mode.IsWriting() {
		return nil, data.NewError(data.ErrResourceReadOnly, "open_binary", p.String(), nil)
	}

	ab.mu.RLock()
	m, err := ab.lookup("open_binary", p)
	compression := ab.detected
	ab.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if m.isDir {
		return nil, data.NewError(data.ErrFileExpected, "open_binary", p.String(), nil)
	}

	if compression == CompressionNone {
		return ab.openSection(p, m)
	}
	return ab.openStream(ctx, p, m, compression)
}

func (ab *ArchiveBackend) MakeDir(ctx context.Context, p data.Path, perm data.FileMode, recreate bool) error {
	return data.NewError(data.ErrResourceReadOnly, "make_dir", p.String(), nil)
}

func (ab *ArchiveBackend) Remove(ctx context.Context, p data.Path) error {
	return data.NewError(data.ErrResourceReadOnly, "remove", p.String(), nil)
}

func (ab *ArchiveBackend) RemoveDir(ctx context.Context, p data.Path) error {
	return data.NewError(data.ErrResourceReadOnly, "remove_dir", p.String(), nil)
}

func (ab *ArchiveBackend) SetInfo(ctx context.Context, p data.Path, changes data.RawInfo) error {
	return data.NewError(data.ErrResourceReadOnly, "set_info", p.String(), nil)
}
