package consul

import (
	"context"
	"errors"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// stat resolves p to a file pair, a directory marker or an implicit
// directory prefix. The returned pair is nil for directories.
func (cb *ConsulBackend) stat(ctx context.Context, op string, p data.Path) (*api.KVPair, bool, error) {
	if p.IsRoot() {
		return nil, true, nil
	}

	pair, _, err := cb.kv.Get(cb.fileKey(p), cb.queryOptions(ctx))
	if err != nil {
		return nil, false, data.NewError(data.KindOf(err), op, p.String(), err)
	}
	if pair != nil {
		return pair, false, nil
	}

	// Check if it's a directory, either as marker or as a prefix of other keys
	keys, _, err := cb.kv.Keys(cb.dirKey(p), "", cb.queryOptions(ctx))
	if err != nil {
		return nil, false, data.NewError(data.KindOf(err), op, p.String(), err)
	}
	if len(keys) > 0 {
		return nil, true, nil
	}

	return nil, false, data.NewError(data.ErrResourceNotFound, op, p.String(), nil)
}

func (cb *ConsulBackend) info(p data.Path, pair *api.KVPair, isDir bool, namespaces ...string) data.Info {
	raw := data.NewRawInfo(p.Name(), isDir)
	for _, namespace := range namespaces {
		switch namespace {
		case data.NamespaceDetails:
			resourceType := data.ResourceTypeFile
			if isDir {
				resourceType = data.ResourceTypeDirectory
			}
			raw.Set(namespace, data.FieldType, resourceType)
			if pair != nil {
				raw.Set(namespace, data.FieldSize, int64(len(pair.Value)))
				if contentType, ok := data.ContentTypeByName(p.Name()); ok {
					raw.Set(namespace, data.FieldContentType, contentType)
				}
			}
		case data.NamespaceAccess:
			if pair != nil && pair.Flags != 0 {
				raw.Set(namespace, data.FieldPermissions, data.FileMode(pair.Flags).Perm())
			}
		}
	}
	return raw.Info()
}

func (cb *ConsulBackend) GetInfo(ctx context.Context, p data.Path, namespaces ...string) (data.Info, error) {
	pair, isDir, err := cb.stat(ctx, "get_info", p)
	if err != nil {
		return data.Info{}, err
	}
	return cb.info(p, pair, isDir, namespaces...), nil
}

func (cb *ConsulBackend) ListDir(ctx context.Context, p data.Path) ([]string, error) {
	_, isDir, err := cb.stat(ctx, "list_dir", p)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, data.NewError(data.ErrNotADirectory, "list_dir", p.String(), nil)
	}

	prefix := cb.dirKey(p)
	keys, _, err := cb.kv.Keys(prefix, "/", cb.queryOptions(ctx))
	if err != nil {
		return nil, data.NewError(data.KindOf(err), "list_dir", p.String(), err)
	}

	seen := make(map[string]struct{}, len(keys))
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), "/")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

func (cb *ConsulBackend) MakeDir(ctx context.Context, p data.Path, perm data.FileMode, recreate bool) error {
	return cb.guard.Do(ctx, func(ctx context.Context) error {
		_, isDir, err := cb.stat(ctx, "make_dir", p)
		if err == nil {
			if isDir && recreate {
				return nil
			}
			return data.NewError(data.ErrDirectoryExists, "make_dir", p.String(), nil)
		}
		if !errors.Is(err, data.ErrResourceNotFound) {
			return err
		}

		if err := cb.requireParent(ctx, "make_dir", p); err != nil {
			return err
		}

		pair := &api.KVPair{
			Key:   cb.dirKey(p),
			Flags: uint64(perm.Perm()),
		}
		if _, err := cb.kv.Put(pair, cb.writeOptions(ctx)); err != nil {
			return data.NewError(data.KindOf(err), "make_dir", p.String(), err)
		}
		return nil
	})
}

func (cb *ConsulBackend) requireParent(ctx context.Context, op string, p data.Path) error {
	_, isDir, err := cb.stat(ctx, op, p.Parent())
	if err != nil {
		return err
	}
	if !isDir {
		return data.NewError(data.ErrDirectoryExpected, op, p.Parent().String(), nil)
	}
	return nil
}

func (cb *ConsulBackend) OpenBinary(ctx context.Context, p data.Path, mode data.AccessMode) (backend.File, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	if !mode.IsWriting() {
		pair, isDir, err := cb.stat(ctx, "open_binary", p)
		if err != nil {
			return nil, err
		}
		if isDir {
			return nil, data.NewError(data.ErrFileExpected, "open_binary", p.String(), nil)
		}
		return newConsulFile(ctx, cb, p, mode, pair), nil
	}

	var file *consulFile
	err := cb.guard.Do(ctx, func(ctx context.Context) error {
		pair, isDir, err := cb.stat(ctx, "open_binary", p)
		switch {
		case err == nil && isDir:
			return data.NewError(data.ErrFileExpected, "open_binary", p.String(), nil)
		case err == nil && mode.HasExcl():
			return data.NewError(data.ErrFileExists, "open_binary", p.String(), nil)
		case err != nil && !errors.Is(err, data.ErrResourceNotFound):
			return err
		case err != nil && !mode.HasCreate():
			return err
		case err != nil:
			if err := cb.requireParent(ctx, "open_binary", p); err != nil {
				return err
			}
			pair = &api.KVPair{Key: cb.fileKey(p), Flags: uint64(data.DefaultFileMode)}
		}

		if mode.HasTrunc() {
			pair.Value = nil
		}

		file = newConsulFile(ctx, cb, p, mode, pair)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (cb *ConsulBackend) Remove(ctx context.Context, p data.Path) error {
	return cb.guard.Do(ctx, func(ctx context.Context) error {
		_, isDir, err := cb.stat(ctx, "remove", p)
		if err != nil {
			return err
		}
		if isDir {
			return data.NewError(data.ErrFileExpected, "remove", p.String(), nil)
		}

		if _, err := cb.kv.Delete(cb.fileKey(p), cb.writeOptions(ctx)); err != nil {
			return data.NewError(data.KindOf(err), "remove", p.String(), err)
		}
		return nil
	})
}

func (cb *ConsulBackend) RemoveDir(ctx context.Context, p data.Path) error {
	if p.IsRoot() {
		return data.NewError(data.ErrRemoveRoot, "remove_dir", p.String(), nil)
	}

	return cb.guard.Do(ctx, func(ctx context.Context) error {
		_, isDir, err := cb.stat(ctx, "remove_dir", p)
		if err != nil {
			return err
		}
		if !isDir {
			return data.NewError(data.ErrDirectoryExpected, "remove_dir", p.String(), nil)
		}

		prefix := cb.dirKey(p)
		keys, _, err := cb.kv.Keys(prefix, "", cb.queryOptions(ctx))
		if err != nil {
			return data.NewError(data.KindOf(err), "remove_dir", p.String(), err)
		}
		for _, key := range keys {
			if key != prefix {
				return data.NewError(data.ErrDirectoryNotEmpty, "remove_dir", p.String(), nil)
			}
		}

		if _, err := cb.kv.Delete(prefix, cb.writeOptions(ctx)); err != nil {
			return data.NewError(data.KindOf(err), "remove_dir", p.String(), err)
		}
		return nil
	})
}

// SetInfo stores permissions in the KV flags. Consul keeps no timestamps,
// so time fields are ignored.
func (cb *ConsulBackend) SetInfo(ctx context.Context, p data.Path, changes data.RawInfo) error {
	return cb.guard.Do(ctx, func(ctx context.Context) error {
		pair, isDir, err := cb.stat(ctx, "set_info", p)
		if err != nil {
			return err
		}

		perm, ok := changes[data.NamespaceAccess][data.FieldPermissions].(data.FileMode)
		if !ok {
			return nil
		}

		if isDir {
			pair = &api.KVPair{Key: cb.dirKey(p)}
		}
		pair.Flags = uint64(perm.Perm())

		if _, err := cb.kv.Put(pair, cb.writeOptions(ctx)); err != nil {
			return data.NewError(data.KindOf(err), "set_info", p.String(), err)
		}
		return nil
	})
}
