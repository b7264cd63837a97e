package sqlite

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/backend/backendtest"
	"github.com/mwantia/treefs/backend/sqldb"
	"github.com/mwantia/treefs/data"
)

func TestSQLiteBackend(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) (backend.Backend, error) {
		sb, err := NewSQLiteBackend(":memory:", sqldb.WithChunkSize(1024))
		if err != nil {
			return nil, err
		}
		return sb, sb.Open(t.Context())
	})
}

func TestSQLiteBackend_Persistence(t *testing.T) {
	ctx := t.Context()
	dbPath := filepath.Join(t.TempDir(), "tree.db")
	content := bytes.Repeat([]byte("chunked content "), 512)

	sb, err := NewSQLiteBackend(dbPath, sqldb.WithChunkSize(1000))
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	if err := sb.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sb.MakeDir(ctx, data.MustNormalize("/docs"), data.DefaultDirMode, false); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	if err := backendtest.WriteFile(ctx, sb, data.MustNormalize("/docs/file.txt"), content); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := sb.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLiteBackend(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	if err := reopened.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reopened.Close(ctx)

	got, err := backendtest.ReadFile(ctx, reopened, data.MustNormalize("/docs/file.txt"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("Content mismatch: %d bytes, expected %d", len(got), len(content))
	}

	info, err := reopened.GetInfo(ctx, data.MustNormalize("/docs/file.txt"), data.NamespaceDetails)
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if ct, ok := info.ContentType(); !ok || ct != data.ContentTypeTextPlain {
		t.Errorf("Expected text/plain, got %q", ct)
	}
}
