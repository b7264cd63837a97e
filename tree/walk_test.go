package tree

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

func TestWalkOrders(t *testing.T) {
	tests := map[string]struct {
		order SearchOrder
		want  []string
	}{
		"BreadthFirst": {
			order: BreadthFirst,
			want:  []string{"/a", "/c.txt", "/d", "/a/b", "/a/x.txt", "/a/b/y.log"},
		},
		"DepthFirst": {
			order: DepthFirst,
			want:  []string{"/a", "/a/b", "/a/b/y.log", "/a/x.txt", "/c.txt", "/d"},
		},
		"PostOrder": {
			order: PostOrder,
			want:  []string{"/a/b/y.log", "/a/b", "/a/x.txt", "/a", "/c.txt", "/d"},
		},
	}

	backends := map[string]func(b backend.Backend) backend.Backend{
		"scan":  func(b backend.Backend) backend.Backend { return b },
		"plain": func(b backend.Backend) backend.Backend { return &plainBackend{Backend: b} },
	}

	for name, test := range tests {
		for kind, wrap := range backends {
			t.Run(name+"/"+kind, func(tst *testing.T) {
				ctx := tst.Context()
				b := newMemory(tst)
				sample(tst, b)

				steps, err := WalkAll(ctx, wrap(b), data.Root(), WithSearchOrder(test.order))
				if err != nil {
					tst.Fatalf("WalkAll failed: %v", err)
				}
				if got := stepPaths(steps); !slices.Equal(got, test.want) {
					tst.Errorf("Expected %v, got %v", test.want, got)
				}
			})
		}
	}
}

func TestWalkDepth(t *testing.T) {
	ctx := t.Context()
	b := newMemory(t)
	sample(t, b)

	steps, err := WalkAll(ctx, b, data.Root(), WithMaxDepth(1))
	if err != nil {
		t.Fatalf("WalkAll failed: %v", err)
	}
	want := []string{"/a", "/c.txt", "/d"}
	if got := stepPaths(steps); !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	steps, err = WalkAll(ctx, b, data.Root(), WithMaxDepth(0))
	if err != nil {
		t.Fatalf("WalkAll failed: %v", err)
	}
	if len(steps) != 0 {
		t.Errorf("Expected no steps with depth 0, got %v", stepPaths(steps))
	}

	steps, err = WalkAll(ctx, b, data.MustNormalize("/a"))
	if err != nil {
		t.Fatalf("WalkAll failed: %v", err)
	}
	for _, step := range steps {
		if step.Path.String() == "/a/b/y.log" && step.Depth != 2 {
			t.Errorf("Expected depth 2 for %s, got %d", step.Path, step.Depth)
		}
		if step.Path.String() == "/a" {
			t.Errorf("Walk must not yield its start path")
		}
	}
}

func TestWalkFilters(t *testing.T) {
	tests := map[string]struct {
		opts []Option
		want []string
	}{
		"Files": {
			opts: []Option{WithFilter("*.txt")},
			want: []string{"/a", "/c.txt", "/d", "/a/b", "/a/x.txt"},
		},
		"Dirs": {
			opts: []Option{WithDirFilter("a")},
			want: []string{"/a", "/c.txt", "/a/x.txt"},
		},
		"Exclude": {
			opts: []Option{WithExclude("b", "*.txt")},
			want: []string{"/a", "/d"},
		},
		"ExcludeRelative": {
			opts: []Option{WithExclude("a/b/*")},
			want: []string{"/a", "/c.txt", "/d", "/a/b", "/a/x.txt"},
		},
		"CaseInsensitive": {
			opts: []Option{WithFilter("*.TXT"), WithCaseInsensitive(true), WithDirFilter("none")},
			want: []string{"/c.txt"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			b := newMemory(tst)
			sample(tst, b)

			steps, err := WalkAll(ctx, b, data.Root(), test.opts...)
			if err != nil {
				tst.Fatalf("WalkAll failed: %v", err)
			}
			if got := stepPaths(steps); !slices.Equal(got, test.want) {
				tst.Errorf("Expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestWalkErrors(t *testing.T) {
	denied := data.NewError(data.ErrPermissionDenied, "list_dir", "/a", nil)

	t.Run("Raise", func(tst *testing.T) {
		ctx := tst.Context()
		b := newFaultyBackend(newMemory(tst))
		sample(tst, b)
		b.listDir["/a"] = denied

		steps, err := WalkAll(ctx, b, data.Root())
		if !errors.Is(err, data.ErrPermissionDenied) {
			tst.Fatalf("Expected permission denied, got %v", err)
		}
		if got := stepPaths(steps); !slices.Equal(got, []string{"/a", "/c.txt", "/d"}) {
			tst.Errorf("Unexpected steps before failure: %v", got)
		}
	})

	t.Run("Ignore", func(tst *testing.T) {
		ctx := tst.Context()
		b := newFaultyBackend(newMemory(tst))
		sample(tst, b)
		b.listDir["/a"] = denied

		steps, err := WalkAll(ctx, b, data.Root(), WithOnError(IgnoreOnError))
		if err != nil {
			tst.Fatalf("WalkAll failed: %v", err)
		}
		if got := stepPaths(steps); !slices.Equal(got, []string{"/a", "/c.txt", "/d"}) {
			tst.Errorf("Unexpected steps: %v", got)
		}
	})

	t.Run("Abort", func(tst *testing.T) {
		ctx := tst.Context()
		b := newFaultyBackend(newMemory(tst))
		sample(tst, b)
		b.listDir["/"] = denied

		w, err := Walk(ctx, b, data.Root(), WithOnError(AbortOnError))
		if err != nil {
			tst.Fatalf("Walk failed: %v", err)
		}
		steps, err := w.Collect()
		if err != nil {
			tst.Fatalf("Expected no error on abort, got %v", err)
		}
		if len(steps) != 0 || !w.Aborted() {
			tst.Errorf("Expected aborted walk without steps, got %v aborted=%v", stepPaths(steps), w.Aborted())
		}
	})

	t.Run("Callback", func(tst *testing.T) {
		ctx := tst.Context()
		b := newFaultyBackend(newMemory(tst))
		sample(tst, b)
		b.listDir["/a"] = denied
		b.listDir["/d"] = denied

		var failed []string
		handler := func(path data.Path, err error) ErrorAction {
			failed = append(failed, path.String())
			return ActionContinue
		}

		if _, err := WalkAll(ctx, b, data.Root(), WithOnError(handler)); err != nil {
			tst.Fatalf("WalkAll failed: %v", err)
		}
		if !slices.Equal(failed, []string{"/a", "/d"}) {
			tst.Errorf("Expected callbacks for /a and /d, got %v", failed)
		}
	})

	t.Run("NotADirectory", func(tst *testing.T) {
		ctx := tst.Context()
		b := newMemory(tst)
		sample(tst, b)

		if _, err := Walk(ctx, b, data.MustNormalize("/c.txt")); !errors.Is(err, data.ErrDirectoryExpected) {
			tst.Errorf("Expected directory expected, got %v", err)
		}
		if _, err := Walk(ctx, b, data.MustNormalize("/missing")); !errors.Is(err, data.ErrResourceNotFound) {
			tst.Errorf("Expected not found, got %v", err)
		}
	})
}

func TestWalkCancel(t *testing.T) {
	b := newMemory(t)
	sample(t, b)

	ctx, cancel := context.WithCancel(t.Context())
	w, err := Walk(ctx, b, data.Root())
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if !w.Next() {
		t.Fatalf("Expected a first step, got %v", w.Err())
	}
	cancel()

	if w.Next() {
		t.Errorf("Expected walk to stop after cancel")
	}
	if !errors.Is(w.Err(), context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", w.Err())
	}
}

func TestScanDirFallback(t *testing.T) {
	ctx := t.Context()
	b := newMemory(t)
	sample(t, b)

	fast, err := CollectEntries(must(ScanDir(ctx, b, data.MustNormalize("/a"), data.NamespaceDetails)))
	if err != nil {
		t.Fatalf("ScanDir failed: %v", err)
	}
	slow, err := CollectEntries(must(ScanDir(ctx, &plainBackend{Backend: b}, data.MustNormalize("/a"), data.NamespaceDetails)))
	if err != nil {
		t.Fatalf("ScanDir fallback failed: %v", err)
	}

	if len(fast) != 2 || len(fast) != len(slow) {
		t.Fatalf("Expected 2 entries from both, got %d and %d", len(fast), len(slow))
	}
	for i := range fast {
		if fast[i].Name != slow[i].Name || fast[i].Info.IsDir() != slow[i].Info.IsDir() {
			t.Errorf("Entry %d differs: %s vs %s", i, fast[i].Name, slow[i].Name)
		}
		if !slow[i].Info.HasNamespace(data.NamespaceDetails) {
			t.Errorf("Fallback entry %s lacks the details namespace", slow[i].Name)
		}
	}

	if _, err := ScanDir(ctx, &plainBackend{Backend: b}, data.MustNormalize("/c.txt")); !errors.Is(err, data.ErrNotADirectory) {
		t.Errorf("Expected not a directory, got %v", err)
	}
}

func TestFilterDir(t *testing.T) {
	ctx := t.Context()
	b := newMemory(t)
	populate(t, b, map[string]string{
		"/docs/readme.md": "",
		"/docs/notes.txt": "",
		"/docs/todo.txt":  "",
		"/docs/img/":      "",
	})

	it, err := FilterDir(ctx, b, data.MustNormalize("/docs"), []string{"*.txt", "*.md"}, []string{"todo*"})
	if err != nil {
		t.Fatalf("FilterDir failed: %v", err)
	}
	entries, err := CollectEntries(it)
	if err != nil {
		t.Fatalf("CollectEntries failed: %v", err)
	}

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	if want := []string{"notes.txt", "readme.md"}; !slices.Equal(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}
}

func must(it backend.EntryIterator, err error) backend.EntryIterator {
	if err != nil {
		panic(err)
	}
	return it
}
