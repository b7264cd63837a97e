package sqldb

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

func (sb *SQLBackend) GetInfo(ctx context.Context, path data.Path, namespaces ...string) (data.Info, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	r, err := sb.lookupUnsafe(ctx, "get_info", path)
	if err != nil {
		return data.Info{}, err
	}
	return r.info(namespaces...), nil
}

func (sb *SQLBackend) ListDir(ctx context.Context, path data.Path) ([]string, error) {
	rows, err := sb.children(ctx, "list_dir", path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.name)
	}
	return names, nil
}

// ScanDir reads one directory level with a single query.
func (sb *SQLBackend) ScanDir(ctx context.Context, path data.Path, namespaces ...string) (backend.EntryIterator, error) {
	rows, err := sb.children(ctx, "scan_dir", path)
	if err != nil {
		return nil, err
	}

	entries := make([]backend.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, backend.Entry{Name: r.name, Info: r.info(namespaces...)})
	}
	return backend.NewSliceIterator(entries), nil
}

// children materializes all rows below path before returning, so no result
// set stays open while the caller issues further queries.
func (sb *SQLBackend) children(ctx context.Context, op string, path data.Path) ([]*row, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	dir, err := sb.lookupUnsafe(ctx, op, path)
	if err != nil {
		return nil, err
	}
	if !dir.isDir {
		return nil, data.NewError(data.ErrNotADirectory, op, path.String(), nil)
	}

	query, args, err := sb.builder.Select(nodeColumns...).From(nodesTable).
		Where(sq.Eq{"parent": dir.path}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := sb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, data.NewError(data.KindOf(err), op, path.String(), err)
	}
	defer rows.Close()

	var result []*row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, data.NewError(data.KindOf(err), op, path.String(), err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (sb *SQLBackend) MakeDir(ctx context.Context, path data.Path, perm data.FileMode, recreate bool) error {
	return sb.guard.Do(ctx, func(ctx context.Context) error {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		if existing, err := sb.lookupUnsafe(ctx, "make_dir", path); err == nil {
			if existing.isDir && recreate {
				return nil
			}
			return data.NewError(data.ErrDirectoryExists, "make_dir", path.String(), nil)
		}

		if _, err := sb.parentUnsafe(ctx, "make_dir", path); err != nil {
			return err
		}

		return sb.insertUnsafe(ctx, newRow(path, true, perm))
	})
}

func (sb *SQLBackend) OpenBinary(ctx context.Context, path data.Path, mode data.AccessMode) (backend.File, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	if !mode.IsWriting() {
		sb.mu.RLock()
		defer sb.mu.RUnlock()

		r, err := sb.lookupUnsafe(ctx, "open_binary", path)
		if err != nil {
			return nil, err
		}
		if r.isDir {
			return nil, data.NewError(data.ErrFileExpected, "open_binary", path.String(), nil)
		}
		return newSQLFile(ctx, sb, r, path, mode), nil
	}

	var file *sqlFile
	err := sb.guard.Do(ctx, func(ctx context.Context) error {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		r, err := sb.lookupUnsafe(ctx, "open_binary", path)
		switch {
		case err == nil && r.isDir:
			return data.NewError(data.ErrFileExpected, "open_binary", path.String(), nil)
		case err == nil && mode.HasExcl():
			return data.NewError(data.ErrFileExists, "open_binary", path.String(), nil)
		case err != nil && !mode.HasCreate():
			return err
		case err != nil:
			if _, err := sb.parentUnsafe(ctx, "open_binary", path); err != nil {
				return err
			}
			r = newRow(path, false, data.DefaultFileMode)
			if err := sb.insertUnsafe(ctx, r); err != nil {
				return err
			}
		}

		// Content is stored as an append-only chunk sequence.
		if !mode.HasTrunc() && !mode.HasAppend() && r.size > 0 {
			return data.NewError(data.ErrUnsupported, "open_binary", path.String(), nil)
		}

		if mode.HasTrunc() {
			if err := sb.truncateUnsafe(ctx, r.id); err != nil {
				return data.NewError(data.KindOf(err), "open_binary", path.String(), err)
			}
			r.size = 0
		}

		file = newSQLFile(ctx, sb, r, path, mode)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (sb *SQLBackend) Remove(ctx context.Context, path data.Path) error {
	return sb.guard.Do(ctx, func(ctx context.Context) error {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		r, err := sb.lookupUnsafe(ctx, "remove", path)
		if err != nil {
			return err
		}
		if r.isDir {
			return data.NewError(data.ErrFileExpected, "remove", path.String(), nil)
		}

		if err := sb.deleteUnsafe(ctx, r); err != nil {
			return data.NewError(data.KindOf(err), "remove", path.String(), err)
		}
		return nil
	})
}

func (sb *SQLBackend) RemoveDir(ctx context.Context, path data.Path) error {
	if path.IsRoot() {
		return data.NewError(data.ErrRemoveRoot, "remove_dir", path.String(), nil)
	}

	return sb.guard.Do(ctx, func(ctx context.Context) error {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		r, err := sb.lookupUnsafe(ctx, "remove_dir", path)
		if err != nil {
			return err
		}
		if !r.isDir {
			return data.NewError(data.ErrDirectoryExpected, "remove_dir", path.String(), nil)
		}
		if sb.hasChildrenUnsafe(path) {
			return data.NewError(data.ErrDirectoryNotEmpty, "remove_dir", path.String(), nil)
		}

		if err := sb.deleteUnsafe(ctx, r); err != nil {
			return data.NewError(data.KindOf(err), "remove_dir", path.String(), err)
		}
		return nil
	})
}

func (sb *SQLBackend) SetInfo(ctx context.Context, path data.Path, changes data.RawInfo) error {
	return sb.guard.Do(ctx, func(ctx context.Context) error {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		r, err := sb.lookupUnsafe(ctx, "set_info", path)
		if err != nil {
			return err
		}

		columns := map[string]any{
			"change_time": time.Now().UnixNano(),
		}
		if details, ok := changes[data.NamespaceDetails]; ok {
			for field, column := range map[string]string{
				data.FieldModified: "modify_time",
				data.FieldAccessed: "access_time",
				data.FieldCreated:  "create_time",
			} {
				if t, ok := details[field].(time.Time); ok {
					columns[column] = t.UnixNano()
				}
			}
		}
		if access, ok := changes[data.NamespaceAccess]; ok {
			if perm, ok := access[data.FieldPermissions].(data.FileMode); ok {
				columns["mode"] = int64(perm.Perm())
			}
		}

		if err := sb.updateUnsafe(ctx, r.id, columns); err != nil {
			return data.NewError(data.KindOf(err), "set_info", path.String(), err)
		}
		return nil
	})
}
