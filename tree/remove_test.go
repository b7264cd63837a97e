package tree

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/mwantia/treefs/data"
)

func TestRemoveTree(t *testing.T) {
	ctx := t.Context()
	b := newMemory(t)
	populate(t, b, map[string]string{
		"/src/a.txt":      "a",
		"/src/sub/b.txt":  "b",
		"/src/sub/deep/":  "",
		"/keep/other.txt": "o",
	})

	outcome, err := RemoveTree(ctx, b, data.MustNormalize("/src"))
	if err != nil {
		t.Fatalf("RemoveTree failed: %v", err)
	}
	if !outcome.OK() || outcome.Succeeded != 5 {
		t.Errorf("Unexpected outcome: %s", outcome)
	}
	if _, err := b.GetInfo(ctx, data.MustNormalize("/src")); !errors.Is(err, data.ErrResourceNotFound) {
		t.Errorf("Expected /src to be gone, got %v", err)
	}
	if got := readString(t, b, "/keep/other.txt"); got != "o" {
		t.Errorf("Expected sibling to survive, got '%s'", got)
	}

	outcome, err = RemoveTree(ctx, b, data.MustNormalize("/src"))
	if err != nil {
		t.Fatalf("Second RemoveTree failed: %v", err)
	}
	if outcome.Visited != 0 || !outcome.OK() {
		t.Errorf("Expected an empty outcome, got %s", outcome)
	}
}

func TestRemoveTreeRoot(t *testing.T) {
	ctx := t.Context()
	b := newMemory(t)
	sample(t, b)

	if _, err := RemoveTree(ctx, b, data.Root()); err != nil {
		t.Fatalf("RemoveTree failed: %v", err)
	}

	names, err := b.ListDir(ctx, data.Root())
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected an empty root, got %v", names)
	}
}

func TestRemoveTreeFile(t *testing.T) {
	ctx := t.Context()
	b := newMemory(t)
	sample(t, b)

	outcome, err := RemoveTree(ctx, b, data.MustNormalize("/c.txt"))
	if err != nil {
		t.Fatalf("RemoveTree failed: %v", err)
	}
	if len(outcome.Failures) != 1 || outcome.Failures[0].Kind != data.ErrDirectoryExpected {
		t.Errorf("Expected a directory expected failure, got %+v", outcome.Failures)
	}
}

func TestRemoveTreePartial(t *testing.T) {
	ctx := t.Context()
	b := newFaultyBackend(newMemory(t))
	populate(t, b, map[string]string{
		"/src/a.txt":     "a",
		"/src/sub/b.txt": "b",
		"/src/other/":    "",
	})
	b.remove["/src/sub/b.txt"] = data.NewError(data.ErrPermissionDenied, "remove", "/src/sub/b.txt", nil)

	outcome, err := RemoveTree(ctx, b, data.MustNormalize("/src"))
	if err != nil {
		t.Fatalf("RemoveTree failed: %v", err)
	}

	var failed []string
	for _, failure := range outcome.Failures {
		failed = append(failed, failure.Path.String())
	}
	if want := []string{"/src/sub", "/src/sub/b.txt"}; !slices.Equal(failed, want) {
		t.Errorf("Expected failures %v, got %v", want, failed)
	}

	if _, err := b.GetInfo(ctx, data.MustNormalize("/src/a.txt")); !errors.Is(err, data.ErrResourceNotFound) {
		t.Errorf("Expected /src/a.txt to be removed, got %v", err)
	}
	if _, err := b.GetInfo(ctx, data.MustNormalize("/src/other")); !errors.Is(err, data.ErrResourceNotFound) {
		t.Errorf("Expected /src/other to be removed, got %v", err)
	}
	if got := readString(t, b, "/src/sub/b.txt"); got != "b" {
		t.Errorf("Expected the failed file to remain, got '%s'", got)
	}
}

func TestRemoveTreeVanished(t *testing.T) {
	ctx := t.Context()
	b := newFaultyBackend(newMemory(t))
	populate(t, b, map[string]string{
		"/t/a.txt": "a",
		"/t/gone/": "",
	})
	b.vanish["/t/gone"] = true

	outcome, err := RemoveTree(ctx, b, data.MustNormalize("/t"))
	if err != nil {
		t.Fatalf("RemoveTree failed: %v", err)
	}
	if !outcome.OK() || outcome.Visited != 3 || outcome.Succeeded != 3 {
		t.Errorf("Unexpected outcome: %s", outcome)
	}
	if _, err := b.GetInfo(ctx, data.MustNormalize("/t")); !errors.Is(err, data.ErrResourceNotFound) {
		t.Errorf("Expected /t to be removed, got %v", err)
	}
}

func TestRemoveTreeCancelled(t *testing.T) {
	b := newMemory(t)
	sample(t, b)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	outcome, err := RemoveTree(ctx, b, data.MustNormalize("/a"))
	if !errors.Is(err, data.ErrOperationAborted) {
		t.Fatalf("Expected aborted error, got %v", err)
	}
	if !outcome.Aborted {
		t.Errorf("Expected aborted outcome, got %s", outcome)
	}
	if got := readString(t, b, "/a/x.txt"); got != "x" {
		t.Errorf("Expected content to remain, got '%s'", got)
	}
}
