package builtin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mwantia/treefs/backend/memory"
	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/mount"
)

type harness struct {
	mfs *mount.MountFS
	cc  *cmd.CommandCenter
}

func newHarness(tst *testing.T) *harness {
	tst.Helper()
	ctx := tst.Context()

	mfs := mount.New(nil, nil)
	if err := mfs.Open(ctx); err != nil {
		tst.Fatalf("Open failed: %v", err)
	}

	for _, dir := range []string{"/docs", "/docs/sub"} {
		if err := mfs.MakeDir(ctx, data.MustNormalize(dir), data.DefaultDirMode, false); err != nil {
			tst.Fatalf("MakeDir failed: %v", err)
		}
	}
	files := map[string]string{
		"/top.txt":           "top",
		"/docs/notes.txt":    "notes",
		"/docs/readme.md":    "# readme",
		"/docs/sub/deep.txt": "deep",
	}
	for path, content := range files {
		writeFile(tst, mfs, path, content)
	}

	cc := cmd.NewCommandCenter()
	if err := InitBuiltin(cc); err != nil {
		tst.Fatalf("InitBuiltin failed: %v", err)
	}
	return &harness{mfs: mfs, cc: cc}
}

func writeFile(tst *testing.T, mfs *mount.MountFS, path, content string) {
	tst.Helper()
	file, err := mfs.OpenBinary(tst.Context(), data.MustNormalize(path), data.ModeWrite)
	if err != nil {
		tst.Fatalf("OpenBinary(%s) failed: %v", path, err)
	}
	if _, err := io.WriteString(file, content); err != nil {
		tst.Fatalf("Write failed: %v", err)
	}
	if err := file.Close(); err != nil {
		tst.Fatalf("Close failed: %v", err)
	}
}

func (h *harness) run(ctx context.Context, args ...string) (string, int, error) {
	var stdout, stderr bytes.Buffer
	env := cmd.NewEnv(h.mfs, &stdout, &stderr, nil)
	code, err := h.cc.Execute(ctx, env, args...)
	return stdout.String(), code, err
}

func (h *harness) exists(ctx context.Context, path string) bool {
	_, err := h.mfs.GetInfo(ctx, data.MustNormalize(path))
	return err == nil
}

func TestInitBuiltin(t *testing.T) {
	cc := cmd.NewCommandCenter()
	if err := InitBuiltin(cc); err != nil {
		t.Fatalf("InitBuiltin failed: %v", err)
	}
	if got := len(cc.List()); got != len(Commands()) {
		t.Errorf("expected %d commands, got %d", len(Commands()), got)
	}
	if err := InitBuiltin(cc); err == nil {
		t.Errorf("expected second InitBuiltin to fail")
	}

	for _, c := range cc.List() {
		if c.Description() == "" || !strings.HasPrefix(c.Usage(), c.Name()) {
			t.Errorf("command %s lacks help text", c.Name())
		}
	}
}

func TestLs(t *testing.T) {
	t.Run("Root", func(tst *testing.T) {
		h := newHarness(tst)
		out, code, err := h.run(tst.Context(), "ls")
		if err != nil || code != 0 {
			tst.Fatalf("ls failed: %d %v", code, err)
		}
		if out != "docs/\ntop.txt\n" {
			tst.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("Exclude", func(tst *testing.T) {
		h := newHarness(tst)
		out, _, err := h.run(tst.Context(), "ls", "-x", "*.md", "/docs")
		if err != nil {
			tst.Fatalf("ls failed: %v", err)
		}
		if out != "notes.txt\nsub/\n" {
			tst.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("LongFile", func(tst *testing.T) {
		h := newHarness(tst)
		out, _, err := h.run(tst.Context(), "ls", "-l", "/docs/notes.txt")
		if err != nil {
			tst.Fatalf("ls failed: %v", err)
		}
		if !strings.HasSuffix(out, " notes.txt\n") || !strings.Contains(out, " 5  ") {
			tst.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("Missing", func(tst *testing.T) {
		h := newHarness(tst)
		_, code, err := h.run(tst.Context(), "ls", "/nope")
		if !errors.Is(err, data.ErrResourceNotFound) || code != 1 {
			tst.Errorf("expected ErrResourceNotFound, got %d %v", code, err)
		}
	})
}

func TestTree(t *testing.T) {
	h := newHarness(t)
	out, code, err := h.run(t.Context(), "tree", "/docs")
	if err != nil || code != 0 {
		t.Fatalf("tree failed: %d %v", code, err)
	}

	for _, line := range []string{"/docs\n", "  sub/\n", "    deep.txt\n", "  notes.txt\n", "1 directories, 3 files\n"} {
		if !strings.Contains(out, line) {
			t.Errorf("output lacks %q:\n%s", line, out)
		}
	}

	out, _, err = h.run(t.Context(), "tree", "-L", "1", "/docs")
	if err != nil {
		t.Fatalf("tree failed: %v", err)
	}
	if strings.Contains(out, "deep.txt") {
		t.Errorf("depth limit ignored:\n%s", out)
	}
}

func TestCat(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run(t.Context(), "cat", "/top.txt", "/docs/sub/deep.txt")
	if err != nil {
		t.Fatalf("cat failed: %v", err)
	}
	if out != "topdeep" {
		t.Errorf("unexpected output: %q", out)
	}

	if _, code, err := h.run(t.Context(), "cat", "/docs"); err == nil || code != 1 {
		t.Errorf("expected cat of a directory to fail")
	}
	if _, code, _ := h.run(t.Context(), "cat"); code != 2 {
		t.Errorf("expected usage error, got %d", code)
	}
}

func TestMkdir(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()

	if _, _, err := h.run(ctx, "mkdir", "-p", "/a/b/c", "/docs/sub"); err != nil {
		t.Fatalf("mkdir -p failed: %v", err)
	}
	if !h.exists(ctx, "/a/b/c") {
		t.Errorf("expected /a/b/c to exist")
	}

	if _, _, err := h.run(ctx, "mkdir", "/docs"); !errors.Is(err, data.ErrDirectoryExists) {
		t.Errorf("expected ErrDirectoryExists, got %v", err)
	}
	if _, _, err := h.run(ctx, "mkdir", "/x/y"); !errors.Is(err, data.ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
	if _, code, _ := h.run(ctx, "mkdir", "-m", "999", "/z"); code != 2 {
		t.Errorf("expected invalid mode to be a usage error, got %d", code)
	}
}

func TestCopy(t *testing.T) {
	t.Run("Tree", func(tst *testing.T) {
		h := newHarness(tst)
		ctx := tst.Context()

		if _, _, err := h.run(ctx, "cp", "/docs", "/backup"); err != nil {
			tst.Fatalf("cp failed: %v", err)
		}
		out, _, err := h.run(ctx, "cat", "/backup/sub/deep.txt")
		if err != nil || out != "deep" {
			tst.Fatalf("unexpected copy: %q %v", out, err)
		}

		// The destination now exists, so the source lands inside it.
		if _, _, err := h.run(ctx, "cp", "/docs", "/backup"); err != nil {
			tst.Fatalf("cp failed: %v", err)
		}
		if !h.exists(ctx, "/backup/docs/readme.md") {
			tst.Errorf("expected /backup/docs/readme.md")
		}
	})

	t.Run("NoClobber", func(tst *testing.T) {
		h := newHarness(tst)
		ctx := tst.Context()
		writeFile(tst, h.mfs, "/other.txt", "other")

		_, code, err := h.run(ctx, "cp", "-n", "/top.txt", "/other.txt")
		if err == nil || code != 1 {
			tst.Fatalf("expected cp -n to fail, got %d %v", code, err)
		}
		out, _, _ := h.run(ctx, "cat", "/other.txt")
		if out != "other" {
			tst.Errorf("destination was overwritten: %q", out)
		}
	})

	t.Run("Verbose", func(tst *testing.T) {
		h := newHarness(tst)
		out, _, err := h.run(tst.Context(), "cp", "-v", "-j", "2", "-x", "*.md", "/docs", "/copy")
		if err != nil {
			tst.Fatalf("cp failed: %v", err)
		}
		if !strings.HasPrefix(out, "copy ") || !strings.Contains(out, "failed=0") {
			tst.Errorf("unexpected summary: %q", out)
		}
		if h.exists(tst.Context(), "/copy/readme.md") {
			tst.Errorf("excluded file was copied")
		}
	})

	t.Run("IntoSelf", func(tst *testing.T) {
		h := newHarness(tst)
		_, code, err := h.run(tst.Context(), "cp", "-T", "/docs", "/docs/sub/again")
		if !errors.Is(err, data.ErrIllegalDestination) || code != 1 {
			tst.Errorf("expected ErrIllegalDestination, got %d %v", code, err)
		}
	})
}

func TestMove(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()

	if _, _, err := h.run(ctx, "mv", "/top.txt", "/docs"); err != nil {
		t.Fatalf("mv failed: %v", err)
	}
	if h.exists(ctx, "/top.txt") || !h.exists(ctx, "/docs/top.txt") {
		t.Errorf("file was not moved")
	}

	if _, _, err := h.run(ctx, "mv", "/docs", "/archive"); err != nil {
		t.Fatalf("mv failed: %v", err)
	}
	if h.exists(ctx, "/docs") || !h.exists(ctx, "/archive/sub/deep.txt") {
		t.Errorf("tree was not moved")
	}
}

func TestRm(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()

	if _, _, err := h.run(ctx, "rm", "/docs"); !errors.Is(err, data.ErrFileExpected) {
		t.Errorf("expected ErrFileExpected, got %v", err)
	}
	if _, _, err := h.run(ctx, "rm", "-d", "/docs"); !errors.Is(err, data.ErrDirectoryNotEmpty) {
		t.Errorf("expected ErrDirectoryNotEmpty, got %v", err)
	}
	if _, _, err := h.run(ctx, "rm", "/top.txt"); err != nil {
		t.Errorf("rm failed: %v", err)
	}
	if _, _, err := h.run(ctx, "rm", "-r", "/docs"); err != nil {
		t.Errorf("rm -r failed: %v", err)
	}
	if h.exists(ctx, "/docs") || h.exists(ctx, "/top.txt") {
		t.Errorf("resources were not removed")
	}

	if _, code, err := h.run(ctx, "rm", "-f", "/missing"); err != nil || code != 0 {
		t.Errorf("rm -f failed: %d %v", code, err)
	}
	if _, _, err := h.run(ctx, "rm", "/missing"); !errors.Is(err, data.ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestFind(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()

	out, _, err := h.run(ctx, "find", "--name", "*.txt", "-t", "f")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	// Breadth first: shallow results come first.
	if out != "/top.txt\n/docs/notes.txt\n/docs/sub/deep.txt\n" {
		t.Errorf("unexpected output: %q", out)
	}

	out, _, err = h.run(ctx, "find", "/docs", "-t", "d")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if out != "/docs/sub\n" {
		t.Errorf("unexpected output: %q", out)
	}

	out, _, err = h.run(ctx, "find", "--glob", "/docs/*.txt")
	if err != nil {
		t.Fatalf("find --glob failed: %v", err)
	}
	if out != "/docs/notes.txt\n" {
		t.Errorf("unexpected output: %q", out)
	}

	if _, code, _ := h.run(ctx, "find", "-t", "x"); code != 2 {
		t.Errorf("expected usage error, got %d", code)
	}
}

func TestInfo(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run(t.Context(), "info", "/docs/notes.txt")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	for _, line := range []string{"/docs/notes.txt\n", "basic.name: notes.txt\n", "details.size: 5\n", "access.permissions: 0644\n"} {
		if !strings.Contains(out, line) {
			t.Errorf("output lacks %q:\n%s", line, out)
		}
	}
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()

	out, _, err := h.run(ctx, "export", "-v", "/docs", "/docs.tar.gz")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if out != "4 members written to /docs.tar.gz\n" {
		t.Errorf("unexpected output: %q", out)
	}

	info, err := h.mfs.GetInfo(ctx, data.MustNormalize("/docs.tar.gz"), data.NamespaceDetails)
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if size, _ := info.Size(); size == 0 {
		t.Errorf("archive is empty")
	}

	if _, _, err := h.run(ctx, "export", "/docs", "/docs/self.tar"); !errors.Is(err, data.ErrIllegalDestination) {
		t.Errorf("expected ErrIllegalDestination, got %v", err)
	}
	if _, code, _ := h.run(ctx, "export", "-z", "rar", "/docs", "/x.rar"); code != 2 {
		t.Errorf("expected usage error, got %d", code)
	}
}

func TestMounts(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()

	if err := h.mfs.Mount(ctx, data.MustNormalize("/mnt/scratch"), memory.NewMemoryBackend(), mount.AsReadOnly()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	out, _, err := h.run(ctx, "mounts")
	if err != nil {
		t.Fatalf("mounts failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two mounts, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[2], "/mnt/scratch") || !strings.Contains(lines[2], " yes ") {
		t.Errorf("unexpected mount line: %q", lines[2])
	}

	// A mounted read-only backend rejects writes through the commands.
	if _, _, err := h.run(ctx, "mkdir", "/mnt/scratch/x"); !errors.Is(err, data.ErrResourceReadOnly) {
		t.Errorf("expected ErrResourceReadOnly, got %v", err)
	}
}
