package opener

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/backend/backendtest"
	"github.com/mwantia/treefs/backend/local"
	"github.com/mwantia/treefs/backend/memory"
	"github.com/mwantia/treefs/data"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		raw      string
		scheme   string
		resource string
		user     string
		pass     string
		readOnly bool
		sub      string
	}{
		"Memory":      {raw: "mem://", scheme: "mem", sub: "/"},
		"LocalAbs":    {raw: "file:///srv/data", scheme: "file", resource: "/srv/data", sub: "/"},
		"LocalRel":    {raw: "local://./data?create=true", scheme: "local", resource: "./data", sub: "/"},
		"SQLiteMem":   {raw: "sqlite://:memory:", scheme: "sqlite", resource: ":memory:", sub: "/"},
		"S3":          {raw: "S3://key:se%40cret@minio:9000/bucket/prefix", scheme: "s3", resource: "minio:9000/bucket/prefix", user: "key", pass: "se@cret", sub: "/"},
		"ReadOnlySub": {raw: "sftp://alice@host/home/alice?readonly=true!/docs", scheme: "sftp", resource: "host/home/alice", user: "alice", readOnly: true, sub: "/docs"},
	}

	for name, test := range tests {
		t.Run(name, func(tst *testing.T) {
			target, err := Parse(test.raw)
			if err != nil {
				tst.Fatalf("Parse failed: %v", err)
			}
			if target.Scheme != test.scheme {
				tst.Errorf("Scheme = %q, expected %q", target.Scheme, test.scheme)
			}
			if target.Resource != test.resource {
				tst.Errorf("Resource = %q, expected %q", target.Resource, test.resource)
			}
			if target.Username() != test.user || target.Password() != test.pass {
				tst.Errorf("User = %q:%q, expected %q:%q", target.Username(), target.Password(), test.user, test.pass)
			}
			if target.ReadOnly != test.readOnly {
				tst.Errorf("ReadOnly = %v, expected %v", target.ReadOnly, test.readOnly)
			}
			if target.SubPath.String() != test.sub {
				tst.Errorf("SubPath = %q, expected %q", target.SubPath, test.sub)
			}
		})
	}

	t.Run("HostPath", func(tst *testing.T) {
		target, err := Parse("s3://minio:9000/bucket/a/b")
		if err != nil {
			tst.Fatalf("Parse failed: %v", err)
		}
		if target.Host() != "minio:9000" || target.Path() != "bucket/a/b" {
			tst.Errorf("Host = %q, Path = %q", target.Host(), target.Path())
		}
	})

	invalid := map[string]string{
		"NoScheme":     "/just/a/path",
		"BadReadOnly":  "mem://?readonly=maybe",
		"BadSubPath":   "mem://!/../up",
		"EmptyScheme":  "://resource",
		"BadQueryPart": "mem://?a=%zz",
	}
	for name, raw := range invalid {
		t.Run(name, func(tst *testing.T) {
			if _, err := Parse(raw); err == nil {
				tst.Fatalf("Parse(%q) expected error", raw)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Run("Schemes", func(tst *testing.T) {
		schemes := Default.Schemes()
		for _, scheme := range []string{"mem", "file", "local", "sqlite", "postgres", "s3", "minio", "consul", "sftp", "ssh", "tar", "temp"} {
			if !slices.Contains(schemes, scheme) {
				tst.Errorf("scheme %q not registered", scheme)
			}
		}
	})

	t.Run("Duplicate", func(tst *testing.T) {
		r := NewDefaultRegistry()
		if err := r.Register(openMemory, "MEM"); err == nil {
			tst.Fatalf("expected duplicate registration to fail")
		}
	})

	t.Run("Custom", func(tst *testing.T) {
		r := NewRegistry()
		shared := memory.NewMemoryBackend()
		opener := func(ctx context.Context, target *Target) (backend.Backend, error) {
			return shared, nil
		}
		if err := r.Register(opener, "custom"); err != nil {
			tst.Fatalf("Register failed: %v", err)
		}

		b, err := r.Open(tst.Context(), "custom://anything")
		if err != nil {
			tst.Fatalf("Open failed: %v", err)
		}
		if b != shared {
			tst.Errorf("expected registered backend")
		}
	})

	t.Run("UnknownScheme", func(tst *testing.T) {
		if _, err := Open(tst.Context(), "ftp://host"); err == nil {
			tst.Fatalf("expected unknown scheme to fail")
		}
	})
}

func TestOpen(t *testing.T) {
	t.Run("Local", func(tst *testing.T) {
		ctx := tst.Context()
		dir := tst.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, "docs"), 0o755); err != nil {
			tst.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "docs", "a.txt"), []byte("alpha"), 0o644); err != nil {
			tst.Fatalf("WriteFile failed: %v", err)
		}

		b, err := Open(ctx, "file://"+filepath.ToSlash(dir)+"?readonly=true!/docs")
		if err != nil {
			tst.Fatalf("Open failed: %v", err)
		}
		defer b.Close(ctx)

		got, err := backendtest.ReadFile(ctx, b, data.MustNormalize("/a.txt"))
		if err != nil || string(got) != "alpha" {
			tst.Errorf("ReadFile = %q, %v", got, err)
		}

		err = backendtest.WriteFile(ctx, b, data.MustNormalize("/b.txt"), []byte("beta"))
		if !errors.Is(err, data.ErrResourceReadOnly) {
			tst.Errorf("expected %v, got %v", data.ErrResourceReadOnly, err)
		}
		if !b.GetCapabilities().ReadOnly {
			tst.Errorf("expected read-only capabilities")
		}
	})

	t.Run("LocalCreate", func(tst *testing.T) {
		ctx := tst.Context()
		dir := filepath.Join(tst.TempDir(), "nested", "root")

		b, err := Open(ctx, "local://"+filepath.ToSlash(dir)+"?create=true")
		if err != nil {
			tst.Fatalf("Open failed: %v", err)
		}
		defer b.Close(ctx)

		if _, err := os.Stat(dir); err != nil {
			tst.Errorf("root directory not created: %v", err)
		}
	})

	t.Run("Temp", func(tst *testing.T) {
		ctx := tst.Context()

		b, err := Open(ctx, "temp://scratch")
		if err != nil {
			tst.Fatalf("Open failed: %v", err)
		}
		lb, ok := b.(*local.LocalBackend)
		if !ok {
			tst.Fatalf("expected a local backend, got %T", b)
		}
		root := lb.Path()
		if !strings.HasPrefix(filepath.Base(root), "treefs-scratch-") {
			tst.Errorf("unexpected temp root %q", root)
		}

		if err := backendtest.WriteFile(ctx, b, data.MustNormalize("/f.txt"), []byte("tmp")); err != nil {
			tst.Fatalf("WriteFile failed: %v", err)
		}
		if err := b.Close(ctx); err != nil {
			tst.Fatalf("Close failed: %v", err)
		}
		if _, err := os.Stat(root); !errors.Is(err, os.ErrNotExist) {
			tst.Errorf("temp root not removed: %v", err)
		}
	})

	t.Run("SQLite", func(tst *testing.T) {
		ctx := tst.Context()

		b, err := Open(ctx, "sqlite://:memory:?chunk_size=16")
		if err != nil {
			tst.Fatalf("Open failed: %v", err)
		}
		defer b.Close(ctx)

		if err := backendtest.WriteFile(ctx, b, data.MustNormalize("/f.txt"), []byte("chunked content")); err != nil {
			tst.Fatalf("WriteFile failed: %v", err)
		}
		got, err := backendtest.ReadFile(ctx, b, data.MustNormalize("/f.txt"))
		if err != nil || string(got) != "chunked content" {
			tst.Errorf("ReadFile = %q, %v", got, err)
		}
	})

	t.Run("MissingSubPath", func(tst *testing.T) {
		_, err := Open(tst.Context(), "mem://!/missing")
		if !errors.Is(err, data.ErrResourceNotFound) {
			tst.Fatalf("expected %v, got %v", data.ErrResourceNotFound, err)
		}
	})

	t.Run("BadParameters", func(tst *testing.T) {
		for _, raw := range []string{"sqlite://:memory:?chunk_size=big", "s3://host", "tar://", "tar:///x.tar?compression=rar", "temp://a/b"} {
			if _, err := Open(tst.Context(), raw); err == nil {
				tst.Errorf("Open(%q) expected error", raw)
			}
		}
	})
}
