// Package backendtest holds the conformance suite shared by backend tests.
package backendtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// Factory creates a fresh, opened and empty backend for a single test.
type Factory func(t *testing.T) (backend.Backend, error)

// Run executes every conformance test against backends produced by factory.
func Run(t *testing.T, factory Factory) {
	tests := map[string]func(tst *testing.T, b backend.Backend){
		"Root":         testRoot,
		"MakeDir":      testMakeDir,
		"ReadWrite":    testReadWrite,
		"OpenErrors":   testOpenErrors,
		"ListDir":      testListDir,
		"Remove":       testRemove,
		"RemoveDir":    testRemoveDir,
		"SetInfo":      testSetInfo,
		"ScanDir":      testScanDir,
		"Concurrent":   testConcurrent,
		"Append":       testAppend,
		"Capabilities": testCapabilities,
	}

	for name, test := range tests {
		t.Run(name, func(tst *testing.T) {
			b, err := factory(tst)
			if err != nil {
				tst.Fatalf("Backend init failed: %v", err)
			}
			defer b.Close(context.Background())

			test(tst, b)
		})
	}
}

func path(raw string) data.Path {
	return data.MustNormalize(raw)
}

func expectKind(tst *testing.T, err error, kind error, what string) {
	tst.Helper()
	if !errors.Is(err, kind) {
		tst.Fatalf("%s: expected %v, got %v", what, kind, err)
	}
}

// WriteFile creates or replaces a file with content.
func WriteFile(ctx context.Context, b backend.Backend, p data.Path, content []byte) error {
	f, err := b.OpenBinary(ctx, p, data.ModeWrite)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile returns the whole content of a file.
func ReadFile(ctx context.Context, b backend.Backend, p data.Path) ([]byte, error) {
	f, err := b.OpenBinary(ctx, p, data.ModeRead)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func testRoot(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()

	info, err := b.GetInfo(ctx, data.Root())
	if err != nil {
		tst.Fatalf("GetInfo root failed: %v", err)
	}
	if !info.IsDir() {
		tst.Fatalf("root must be a directory")
	}

	_, err = b.GetInfo(ctx, path("/missing"))
	expectKind(tst, err, data.ErrResourceNotFound, "GetInfo missing")

	if err := b.MakeDir(ctx, data.Root(), data.DefaultDirMode, true); err != nil {
		tst.Fatalf("MakeDir root with recreate failed: %v", err)
	}
}

func testMakeDir(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()

	if err := b.MakeDir(ctx, path("/a"), data.DefaultDirMode, false); err != nil {
		tst.Fatalf("MakeDir failed: %v", err)
	}
	info, err := b.GetInfo(ctx, path("/a"), data.NamespaceDetails)
	if err != nil {
		tst.Fatalf("GetInfo failed: %v", err)
	}
	if !info.IsDir() || info.Name() != "a" {
		tst.Fatalf("unexpected info: name=%q dir=%v", info.Name(), info.IsDir())
	}

	expectKind(tst, b.MakeDir(ctx, path("/a"), data.DefaultDirMode, false), data.ErrDirectoryExists, "MakeDir existing")
	if err := b.MakeDir(ctx, path("/a"), data.DefaultDirMode, true); err != nil {
		tst.Fatalf("MakeDir recreate failed: %v", err)
	}
	expectKind(tst, b.MakeDir(ctx, path("/x/y"), data.DefaultDirMode, false), data.ErrResourceNotFound, "MakeDir without parent")
}

func testReadWrite(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()
	content := bytes.Repeat([]byte("0123456789"), 1000)

	if err := WriteFile(ctx, b, path("/data.bin"), content); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}

	got, err := ReadFile(ctx, b, path("/data.bin"))
	if err != nil {
		tst.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		tst.Fatalf("content mismatch: %d bytes, expected %d", len(got), len(content))
	}

	info, err := b.GetInfo(ctx, path("/data.bin"), data.NamespaceDetails)
	if err != nil {
		tst.Fatalf("GetInfo failed: %v", err)
	}
	if info.IsDir() {
		tst.Fatalf("file reported as directory")
	}
	if size, ok := info.Size(); ok && size != int64(len(content)) {
		tst.Fatalf("Size = %d, expected %d", size, len(content))
	}

	// Writing again truncates.
	if err := WriteFile(ctx, b, path("/data.bin"), []byte("short")); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}
	got, err = ReadFile(ctx, b, path("/data.bin"))
	if err != nil || string(got) != "short" {
		tst.Fatalf("ReadFile after truncate = %q, %v", got, err)
	}

	// Empty files exist after close.
	if err := WriteFile(ctx, b, path("/empty"), nil); err != nil {
		tst.Fatalf("WriteFile empty failed: %v", err)
	}
	if _, err := b.GetInfo(ctx, path("/empty")); err != nil {
		tst.Fatalf("GetInfo empty failed: %v", err)
	}
}

func testOpenErrors(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()

	_, err := b.OpenBinary(ctx, path("/missing"), data.ModeRead)
	expectKind(tst, err, data.ErrResourceNotFound, "OpenBinary missing")

	_, err = b.OpenBinary(ctx, path("/nodir/file"), data.ModeWrite)
	expectKind(tst, err, data.ErrResourceNotFound, "OpenBinary without parent")

	if err := b.MakeDir(ctx, path("/dir"), data.DefaultDirMode, false); err != nil {
		tst.Fatalf("MakeDir failed: %v", err)
	}
	_, err = b.OpenBinary(ctx, path("/dir"), data.ModeRead)
	expectKind(tst, err, data.ErrFileExpected, "OpenBinary directory")

	if err := WriteFile(ctx, b, path("/exists"), []byte("x")); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}
	_, err = b.OpenBinary(ctx, path("/exists"), data.ModeCreateNew)
	expectKind(tst, err, data.ErrFileExists, "OpenBinary exclusive")
}

func testListDir(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()

	if err := b.MakeDir(ctx, path("/dir"), data.DefaultDirMode, false); err != nil {
		tst.Fatalf("MakeDir failed: %v", err)
	}
	if err := b.MakeDir(ctx, path("/dir/sub"), data.DefaultDirMode, false); err != nil {
		tst.Fatalf("MakeDir failed: %v", err)
	}
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := WriteFile(ctx, b, path("/dir").Child(name), []byte(name)); err != nil {
			tst.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := WriteFile(ctx, b, path("/dir/sub/deep.txt"), []byte("deep")); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}

	names, err := b.ListDir(ctx, path("/dir"))
	if err != nil {
		tst.Fatalf("ListDir failed: %v", err)
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"a.txt", "b.txt", "sub"}) {
		tst.Fatalf("ListDir = %v", names)
	}

	_, err = b.ListDir(ctx, path("/missing"))
	expectKind(tst, err, data.ErrResourceNotFound, "ListDir missing")

	_, err = b.ListDir(ctx, path("/dir/a.txt"))
	expectKind(tst, err, data.ErrNotADirectory, "ListDir file")
}

func testRemove(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()

	if err := WriteFile(ctx, b, path("/f"), []byte("x")); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}
	if err := b.MakeDir(ctx, path("/d"), data.DefaultDirMode, false); err != nil {
		tst.Fatalf("MakeDir failed: %v", err)
	}

	if err := b.Remove(ctx, path("/f")); err != nil {
		tst.Fatalf("Remove failed: %v", err)
	}
	_, err := b.GetInfo(ctx, path("/f"))
	expectKind(tst, err, data.ErrResourceNotFound, "GetInfo removed")

	expectKind(tst, b.Remove(ctx, path("/f")), data.ErrResourceNotFound, "Remove missing")
	expectKind(tst, b.Remove(ctx, path("/d")), data.ErrFileExpected, "Remove directory")
}

func testRemoveDir(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()

	if err := b.MakeDir(ctx, path("/d"), data.DefaultDirMode, false); err != nil {
		tst.Fatalf("MakeDir failed: %v", err)
	}
	if err := WriteFile(ctx, b, path("/d/f"), []byte("x")); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}

	expectKind(tst, b.RemoveDir(ctx, path("/d")), data.ErrDirectoryNotEmpty, "RemoveDir non-empty")
	expectKind(tst, b.RemoveDir(ctx, path("/d/f")), data.ErrDirectoryExpected, "RemoveDir file")
	expectKind(tst, b.RemoveDir(ctx, path("/nope")), data.ErrResourceNotFound, "RemoveDir missing")
	expectKind(tst, b.RemoveDir(ctx, data.Root()), data.ErrRemoveRoot, "RemoveDir root")

	if err := b.Remove(ctx, path("/d/f")); err != nil {
		tst.Fatalf("Remove failed: %v", err)
	}
	if err := b.RemoveDir(ctx, path("/d")); err != nil {
		tst.Fatalf("RemoveDir failed: %v", err)
	}
	_, err := b.GetInfo(ctx, path("/d"))
	expectKind(tst, err, data.ErrResourceNotFound, "GetInfo removed directory")
}

func testSetInfo(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()

	expectKind(tst, b.SetInfo(ctx, path("/missing"), data.RawInfo{}), data.ErrResourceNotFound, "SetInfo missing")

	if err := WriteFile(ctx, b, path("/f"), []byte("x")); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}

	modified := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	changes := data.RawInfo{}
	changes.Set(data.NamespaceDetails, data.FieldModified, modified)
	if err := b.SetInfo(ctx, path("/f"), changes); err != nil {
		tst.Fatalf("SetInfo failed: %v", err)
	}

	if !b.GetCapabilities().Contains(backend.CapabilitySetInfo) {
		return
	}

	info, err := b.GetInfo(ctx, path("/f"), data.NamespaceDetails)
	if err != nil {
		tst.Fatalf("GetInfo failed: %v", err)
	}
	got, ok := info.Modified()
	if !ok || !got.Equal(modified) {
		tst.Fatalf("Modified = %v (%v), expected %v", got, ok, modified)
	}
}

func testScanDir(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()

	scanner, ok := backend.AsScanner(b)
	if !ok {
		tst.Skip("backend has no scan accelerator")
	}

	if err := b.MakeDir(ctx, path("/s"), data.DefaultDirMode, false); err != nil {
		tst.Fatalf("MakeDir failed: %v", err)
	}
	if err := b.MakeDir(ctx, path("/s/dir"), data.DefaultDirMode, false); err != nil {
		tst.Fatalf("MakeDir failed: %v", err)
	}
	if err := WriteFile(ctx, b, path("/s/file"), []byte("abc")); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}

	it, err := scanner.ScanDir(ctx, path("/s"), data.NamespaceDetails)
	if err != nil {
		tst.Fatalf("ScanDir failed: %v", err)
	}
	defer it.Close()

	found := make(map[string]bool)
	for it.Next() {
		entry := it.Entry()
		found[entry.Name] = entry.Info.IsDir()
	}
	if err := it.Err(); err != nil {
		tst.Fatalf("ScanDir iteration failed: %v", err)
	}

	if len(found) != 2 || !found["dir"] || found["file"] {
		tst.Fatalf("ScanDir = %v", found)
	}
}

func testConcurrent(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()

	if err := b.MakeDir(ctx, path("/c"), data.DefaultDirMode, false); err != nil {
		tst.Fatalf("MakeDir failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := path("/c").Child(fmt.Sprintf("f%02d", i))
			if err := WriteFile(ctx, b, p, []byte(p.String())); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		tst.Fatalf("concurrent write failed: %v", err)
	}

	names, err := b.ListDir(ctx, path("/c"))
	if err != nil || len(names) != 16 {
		tst.Fatalf("ListDir = %d entries, %v", len(names), err)
	}
	for _, name := range names {
		got, err := ReadFile(ctx, b, path("/c").Child(name))
		if err != nil || string(got) != "/c/"+name {
			tst.Fatalf("ReadFile %s = %q, %v", name, got, err)
		}
	}
}

func testAppend(tst *testing.T, b backend.Backend) {
	ctx := tst.Context()
	if !b.GetCapabilities().Contains(backend.CapabilityAppend) {
		tst.Skip("backend does not support append")
	}

	if err := WriteFile(ctx, b, path("/log"), []byte("one\n")); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}

	f, err := b.OpenBinary(ctx, path("/log"), data.ModeAppend)
	if err != nil {
		tst.Fatalf("OpenBinary append failed: %v", err)
	}
	if _, err := f.Write([]byte("two\n")); err != nil {
		tst.Fatalf("Write failed: %v", err)
	}
	if err := f.Close(); err != nil {
		tst.Fatalf("Close failed: %v", err)
	}

	got, err := ReadFile(ctx, b, path("/log"))
	if err != nil || string(got) != "one\ntwo\n" {
		tst.Fatalf("ReadFile = %q, %v", got, err)
	}
}

func testCapabilities(tst *testing.T, b backend.Backend) {
	caps := b.GetCapabilities()
	if caps == nil {
		tst.Fatalf("GetCapabilities returned nil")
	}
	if caps.ReadOnly {
		tst.Fatalf("conformance suite requires a writable backend")
	}
	if b.Name() == "" {
		tst.Fatalf("backend has no name")
	}
}
