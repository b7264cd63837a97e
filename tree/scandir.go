package tree

import (
	"context"
	"errors"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/glob"
)

// ScanDir lists one directory level together with info records.
// It prefers the backend's scan accelerator and otherwise combines
// ListDir with one GetInfo per entry, lazily.
func ScanDir(ctx context.Context, b backend.Backend, path data.Path, namespaces ...string) (backend.EntryIterator, error) {
	if scanner, ok := backend.AsScanner(b); ok {
		return scanner.ScanDir(ctx, path, namespaces...)
	}

	names, err := b.ListDir(ctx, path)
	if err != nil {
		return nil, err
	}

	index := 0
	next := func(ctx context.Context) (backend.Entry, bool, error) {
		for index < len(names) {
			name := names[index]
			index++

			info, err := b.GetInfo(ctx, path.Child(name), namespaces...)
			if err != nil {
				// Entries removed between listing and lookup are skipped.
				if errors.Is(err, data.ErrResourceNotFound) {
					continue
				}
				return backend.Entry{}, false, err
			}
			return backend.Entry{Name: name, Info: info}, true, nil
		}
		return backend.Entry{}, false, nil
	}

	return backend.NewFuncIterator(ctx, next, nil), nil
}

// FilterDir is ScanDir restricted by include and exclude patterns that are
// matched against the entry name only. An empty include list accepts all.
func FilterDir(ctx context.Context, b backend.Backend, path data.Path, include, exclude []string, opts ...Option) (backend.EntryIterator, error) {
	options := newDefaultOptions(RaiseOnError)
	if err := options.apply(opts); err != nil {
		return nil, err
	}

	globOpts := patternOptions(b, options)
	includes, err := glob.CompileSet(include, globOpts...)
	if err != nil {
		return nil, err
	}
	excludes, err := glob.CompileSet(exclude, globOpts...)
	if err != nil {
		return nil, err
	}

	it, err := ScanDir(ctx, b, path, options.Namespaces...)
	if err != nil {
		return nil, err
	}

	next := func(ctx context.Context) (backend.Entry, bool, error) {
		for it.Next() {
			entry := it.Entry()
			if excludes.MatchName(entry.Name) {
				continue
			}
			if len(includes) > 0 && !includes.MatchName(entry.Name) {
				continue
			}
			return entry, true, nil
		}
		return backend.Entry{}, false, it.Err()
	}

	return backend.NewFuncIterator(ctx, next, it.Close), nil
}

// CollectEntries drains it and closes it.
func CollectEntries(it backend.EntryIterator) ([]backend.Entry, error) {
	defer it.Close()

	var entries []backend.Entry
	for it.Next() {
		entries = append(entries, it.Entry())
	}
	return entries, it.Err()
}

func patternOptions(b backend.Backend, options *Options) []glob.Option {
	fold := false
	if options.CaseInsensitive != nil {
		fold = *options.CaseInsensitive
	} else if caps := b.GetCapabilities(); caps != nil {
		fold = caps.CaseInsensitive
	}
	return []glob.Option{glob.WithCaseInsensitive(fold)}
}
