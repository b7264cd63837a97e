package wrap

import (
	"context"
	"errors"
	"testing"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/backend/backendtest"
	"github.com/mwantia/treefs/backend/memory"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
)

func TestSubBackend(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) (backend.Backend, error) {
		mb := memory.NewMemoryBackend()
		if err := mb.MakeDir(t.Context(), data.MustNormalize("/jail"), data.DefaultDirMode, false); err != nil {
			return nil, err
		}

		sb := Sub(mb, data.MustNormalize("/jail"))
		return sb, sb.Open(t.Context())
	})
}

func TestSubBackend_View(t *testing.T) {
	ctx := t.Context()

	mb := memory.NewMemoryBackend()
	for _, dir := range []string{"/srv", "/srv/www"} {
		if err := mb.MakeDir(ctx, data.MustNormalize(dir), data.DefaultDirMode, false); err != nil {
			t.Fatalf("MakeDir failed: %v", err)
		}
	}
	if err := backendtest.WriteFile(ctx, mb, data.MustNormalize("/srv/www/index.html"), []byte("<html>")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := backendtest.WriteFile(ctx, mb, data.MustNormalize("/secret.txt"), []byte("hidden")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	sb := Sub(mb, data.MustNormalize("/srv"))
	if err := sb.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	t.Run("Root", func(tst *testing.T) {
		info, err := sb.GetInfo(tst.Context(), data.Root())
		if err != nil {
			tst.Fatalf("GetInfo failed: %v", err)
		}
		if info.Name() != "" || !info.IsDir() {
			tst.Errorf("root info: name=%q dir=%v", info.Name(), info.IsDir())
		}
	})

	t.Run("Read", func(tst *testing.T) {
		got, err := backendtest.ReadFile(tst.Context(), sb, data.MustNormalize("/www/index.html"))
		if err != nil || string(got) != "<html>" {
			tst.Errorf("ReadFile = %q, %v", got, err)
		}
	})

	t.Run("Confined", func(tst *testing.T) {
		_, err := sb.GetInfo(tst.Context(), data.MustNormalize("/secret.txt"))
		if !errors.Is(err, data.ErrResourceNotFound) {
			tst.Fatalf("expected %v, got %v", data.ErrResourceNotFound, err)
		}

		var rerr *data.ResourceError
		if !errors.As(err, &rerr) || rerr.Path != "/secret.txt" {
			tst.Errorf("error path = %v", err)
		}
	})

	t.Run("Walk", func(tst *testing.T) {
		steps, err := tree.WalkAll(tst.Context(), sb, data.Root())
		if err != nil {
			tst.Fatalf("WalkAll failed: %v", err)
		}
		if len(steps) != 2 || steps[1].Path.String() != "/www/index.html" {
			tst.Errorf("WalkAll = %v", steps)
		}
	})

	t.Run("NotADirectory", func(tst *testing.T) {
		fb := Sub(mb, data.MustNormalize("/secret.txt"))
		if err := fb.Open(tst.Context()); !errors.Is(err, data.ErrDirectoryExpected) {
			tst.Errorf("expected %v, got %v", data.ErrDirectoryExpected, err)
		}
	})
}

// brokenScanner fails every scan after the first entry.
type brokenScanner struct {
	backend.Backend
}

func (bs *brokenScanner) ScanDir(ctx context.Context, p data.Path, namespaces ...string) (backend.EntryIterator, error) {
	served := false
	next := func(ctx context.Context) (backend.Entry, bool, error) {
		if served {
			return backend.Entry{}, false, data.NewError(data.ErrPermissionDenied, "scan_dir", p.Child("locked").String(), nil)
		}
		served = true
		return backend.Entry{Name: "first", Info: data.NewRawInfo("first", false).Info()}, true, nil
	}
	return backend.NewFuncIterator(ctx, next, nil), nil
}

func TestSubBackend_ScanError(t *testing.T) {
	ctx := t.Context()

	mb := memory.NewMemoryBackend()
	if err := mb.MakeDir(ctx, data.MustNormalize("/srv"), data.DefaultDirMode, false); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}

	sb := Sub(&brokenScanner{Backend: mb}, data.MustNormalize("/srv"))
	if err := sb.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	it, err := sb.ScanDir(ctx, data.Root())
	if err != nil {
		t.Fatalf("ScanDir failed: %v", err)
	}
	entries, err := tree.CollectEntries(it)
	if len(entries) != 1 {
		t.Errorf("Expected one entry before the failure, got %v", entries)
	}
	if !errors.Is(err, data.ErrPermissionDenied) {
		t.Fatalf("Expected %v, got %v", data.ErrPermissionDenied, err)
	}

	var rerr *data.ResourceError
	if !errors.As(err, &rerr) || rerr.Path != "/locked" {
		t.Errorf("Expected the error path inside the view, got %v", err)
	}
}

func TestReadOnlyBackend(t *testing.T) {
	ctx := t.Context()

	mb := memory.NewMemoryBackend()
	if err := mb.MakeDir(ctx, data.MustNormalize("/dir"), data.DefaultDirMode, false); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	if err := backendtest.WriteFile(ctx, mb, data.MustNormalize("/dir/file.txt"), []byte("content")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rb := ReadOnly(mb)
	file := data.MustNormalize("/dir/file.txt")

	t.Run("Capabilities", func(tst *testing.T) {
		caps := rb.GetCapabilities()
		if !caps.ReadOnly {
			tst.Errorf("expected read-only capabilities")
		}
		if caps.Contains(backend.CapabilitySetInfo) || caps.Contains(backend.CapabilityAppend) {
			tst.Errorf("unexpected write capabilities: %v", caps.Capabilities)
		}
		if _, ok := backend.AsScanner(rb); !ok {
			tst.Errorf("expected scan accelerator to pass through")
		}
	})

	t.Run("Mutations", func(tst *testing.T) {
		ctx := tst.Context()

		checks := map[string]error{
			"MakeDir":   rb.MakeDir(ctx, data.MustNormalize("/new"), data.DefaultDirMode, false),
			"Remove":    rb.Remove(ctx, file),
			"RemoveDir": rb.RemoveDir(ctx, data.MustNormalize("/dir")),
			"SetInfo":   rb.SetInfo(ctx, file, data.RawInfo{}),
		}
		for _, mode := range []data.AccessMode{data.ModeWrite, data.ModeAppend, data.ModeCreateNew} {
			_, err := rb.OpenBinary(ctx, file, mode)
			checks["OpenBinary "+mode.String()] = err
		}

		for name, err := range checks {
			if !errors.Is(err, data.ErrResourceReadOnly) {
				tst.Errorf("%s: expected %v, got %v", name, data.ErrResourceReadOnly, err)
			}
		}
	})

	t.Run("Read", func(tst *testing.T) {
		got, err := backendtest.ReadFile(tst.Context(), rb, file)
		if err != nil || string(got) != "content" {
			tst.Errorf("ReadFile = %q, %v", got, err)
		}
	})

	t.Run("RemoveTree", func(tst *testing.T) {
		outcome, err := tree.RemoveTree(tst.Context(), rb, data.MustNormalize("/dir"))
		if err != nil {
			tst.Fatalf("RemoveTree failed: %v", err)
		}
		if outcome.OK() || len(outcome.Failures) == 0 {
			tst.Errorf("expected failures, got %s", outcome)
		}
		if !errors.Is(outcome.Failures[0].Kind, data.ErrResourceReadOnly) {
			tst.Errorf("failure kind = %v", outcome.Failures[0].Kind)
		}
	})
}
