package memory

import (
	"context"
	"testing"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/backend/backendtest"
	"github.com/mwantia/treefs/data"
)

func TestMemoryBackend(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) (backend.Backend, error) {
		return NewMemoryBackend(), nil
	})
}

func TestMemoryBackend_ContentType(t *testing.T) {
	ctx := t.Context()
	mb := NewMemoryBackend()

	if err := backendtest.WriteFile(ctx, mb, data.MustNormalize("/page.html"), []byte("<html></html>")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := backendtest.WriteFile(ctx, mb, data.MustNormalize("/blob"), []byte("%PDF-1.4\n")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	for p, expected := range map[string]data.ContentType{
		"/page.html": data.ContentTypeTextHTML,
		"/blob":      data.ContentTypeApplicationPDF,
	} {
		info, err := mb.GetInfo(ctx, data.MustNormalize(p), data.NamespaceDetails)
		if err != nil {
			t.Fatalf("GetInfo failed: %v", err)
		}
		if ct, ok := info.ContentType(); !ok || ct != expected {
			t.Fatalf("ContentType(%s) = %q, expected %q", p, ct, expected)
		}
	}
}

func TestMemoryBackend_CloseResets(t *testing.T) {
	ctx := t.Context()
	mb := NewMemoryBackend()

	if err := mb.MakeDir(ctx, data.MustNormalize("/a"), data.DefaultDirMode, false); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	if err := mb.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	names, err := mb.ListDir(ctx, data.Root())
	if err != nil || len(names) != 0 {
		t.Fatalf("ListDir after Close = %v, %v", names, err)
	}
}
