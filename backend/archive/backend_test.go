package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/backend/backendtest"
	"github.com/mwantia/treefs/backend/memory"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
)

func newSource(tst *testing.T) backend.Backend {
	tst.Helper()
	ctx := tst.Context()

	mb := memory.NewMemoryBackend()
	for _, dir := range []string{"/docs", "/docs/empty", "/src"} {
		if err := mb.MakeDir(ctx, data.MustNormalize(dir), data.DefaultDirMode, false); err != nil {
			tst.Fatalf("MakeDir failed: %v", err)
		}
	}

	files := map[string]string{
		"/docs/readme.md": "# treefs",
		"/src/main.go":    "package main",
		"/top.txt":        "top level",
	}
	for name, content := range files {
		if err := backendtest.WriteFile(ctx, mb, data.MustNormalize(name), []byte(content)); err != nil {
			tst.Fatalf("WriteFile failed: %v", err)
		}
	}
	return mb
}

func writeArchive(tst *testing.T, name string, content []byte) string {
	tst.Helper()
	file := filepath.Join(tst.TempDir(), name)
	if err := os.WriteFile(file, content, 0o644); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}
	return file
}

func TestExportRoundTrip(t *testing.T) {
	tests := map[string]Compression{
		"Plain": CompressionNone,
		"Gzip":  CompressionGzip,
		"Zstd":  CompressionZstd,
	}

	for name, compression := range tests {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			src := newSource(tst)

			var buf bytes.Buffer
			count, err := Export(ctx, src, data.Root(), &buf, compression)
			if err != nil {
				tst.Fatalf("Export failed: %v", err)
			}
			if count != 6 {
				tst.Errorf("Export wrote %d members, expected 6", count)
			}

			ab := NewArchiveBackend(writeArchive(tst, "tree.tar", buf.Bytes()))
			if err := ab.Open(ctx); err != nil {
				tst.Fatalf("Open failed: %v", err)
			}
			defer ab.Close(ctx)

			if ab.detected != compression {
				tst.Errorf("detected %v, expected %v", ab.detected, compression)
			}

			got, err := backendtest.ReadFile(ctx, ab, data.MustNormalize("/src/main.go"))
			if err != nil {
				tst.Fatalf("ReadFile failed: %v", err)
			}
			if string(got) != "package main" {
				tst.Errorf("content = %q", got)
			}

			names, err := ab.ListDir(ctx, data.MustNormalize("/docs"))
			if err != nil {
				tst.Fatalf("ListDir failed: %v", err)
			}
			slices.Sort(names)
			if !slices.Equal(names, []string{"empty", "readme.md"}) {
				tst.Errorf("ListDir = %v", names)
			}

			info, err := ab.GetInfo(ctx, data.MustNormalize("/top.txt"), data.NamespaceDetails)
			if err != nil {
				tst.Fatalf("GetInfo failed: %v", err)
			}
			if size, _ := info.Size(); size != int64(len("top level")) {
				tst.Errorf("Size = %d", size)
			}
		})
	}
}

func TestArchiveBackend_ImplicitDirectories(t *testing.T) {
	ctx := t.Context()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range map[string]string{
		"./a/b/c.txt": "deep",
		"a/d.txt":     "shallow",
	} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o600, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatalf("WriteHeader failed: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.WriteHeader(&tar.Header{Name: "../escape.txt", Typeflag: tar.TypeReg}); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ab := NewArchiveBackend(writeArchive(t, "implicit.tar", buf.Bytes()))
	if err := ab.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	steps, err := tree.WalkAll(ctx, ab, data.Root())
	if err != nil {
		t.Fatalf("WalkAll failed: %v", err)
	}

	var paths []string
	for _, step := range steps {
		paths = append(paths, step.Path.String())
	}
	expected := []string{"/a", "/a/b", "/a/d.txt", "/a/b/c.txt"}
	if !slices.Equal(paths, expected) {
		t.Errorf("WalkAll = %v, expected %v", paths, expected)
	}

	info, err := ab.GetInfo(ctx, data.MustNormalize("/a/b"), data.NamespaceDetails)
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("/a/b expected to be a directory")
	}

	got, err := backendtest.ReadFile(ctx, ab, data.MustNormalize("/a/b/c.txt"))
	if err != nil || string(got) != "deep" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
}

func TestArchiveBackend_ReadOnly(t *testing.T) {
	ctx := t.Context()
	src := newSource(t)

	var buf bytes.Buffer
	if _, err := Export(ctx, src, data.Root(), &buf, CompressionGzip); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	ab := NewArchiveBackend(writeArchive(t, "tree.tgz", buf.Bytes()), WithCompression(CompressionFromName("tree.tgz")))
	if err := ab.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if !ab.GetCapabilities().ReadOnly {
		t.Errorf("expected read-only capabilities")
	}

	p := data.MustNormalize("/top.txt")
	checks := map[string]error{
		"MakeDir":   ab.MakeDir(ctx, data.MustNormalize("/new"), data.DefaultDirMode, false),
		"Remove":    ab.Remove(ctx, p),
		"RemoveDir": ab.RemoveDir(ctx, data.MustNormalize("/docs")),
		"SetInfo":   ab.SetInfo(ctx, p, data.RawInfo{}),
	}
	_, err := ab.OpenBinary(ctx, p, data.ModeWrite)
	checks["OpenBinary"] = err

	for name, err := range checks {
		if !errors.Is(err, data.ErrResourceReadOnly) {
			t.Errorf("%s: expected %v, got %v", name, data.ErrResourceReadOnly, err)
		}
	}

	if _, err := ab.OpenBinary(ctx, data.MustNormalize("/docs"), data.ModeRead); !errors.Is(err, data.ErrFileExpected) {
		t.Errorf("OpenBinary on directory: expected %v, got %v", data.ErrFileExpected, err)
	}
	if _, err := ab.GetInfo(ctx, data.MustNormalize("/missing")); !errors.Is(err, data.ErrResourceNotFound) {
		t.Errorf("GetInfo: expected %v, got %v", data.ErrResourceNotFound, err)
	}
}

func TestArchiveBackend_CopyOut(t *testing.T) {
	ctx := t.Context()
	src := newSource(t)

	var buf bytes.Buffer
	if _, err := Export(ctx, src, data.MustNormalize("/docs"), &buf, CompressionZstd); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	ab := NewArchiveBackend(writeArchive(t, "docs.tar.zst", buf.Bytes()))
	if err := ab.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	dst := memory.NewMemoryBackend()
	outcome, err := tree.Copy(ctx, ab, data.Root(), dst, data.MustNormalize("/restored"))
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if !outcome.OK() || outcome.Succeeded != 2 {
		t.Errorf("Copy outcome = %s", outcome)
	}

	got, err := backendtest.ReadFile(ctx, dst, data.MustNormalize("/restored/readme.md"))
	if err != nil || string(got) != "# treefs" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
}

func TestParseCompression(t *testing.T) {
	tests := map[string]Compression{
		"":     CompressionAuto,
		"none": CompressionNone,
		"gz":   CompressionGzip,
		"ZSTD": CompressionZstd,
	}
	for input, expected := range tests {
		got, err := ParseCompression(input)
		if err != nil || got != expected {
			t.Errorf("ParseCompression(%q) = %v, %v", input, got, err)
		}
	}
	if _, err := ParseCompression("rar"); err == nil {
		t.Errorf("ParseCompression(rar) expected error")
	}
}
