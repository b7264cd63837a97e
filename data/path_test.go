package data

import (
	"errors"
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"":              "/",
		"/":             "/",
		"a":             "/a",
		"/a/b":          "/a/b",
		"/a/b/":         "/a/b",
		"/a/./b":        "/a/b",
		"/a/../b":       "/b",
		"a/b/c/../../d": "/a/d",
		"/./":           "/",
	}

	for raw, expected := range tests {
		t.Run(raw, func(tst *testing.T) {
			p, err := Normalize(raw)
			if err != nil {
				tst.Fatalf("Normalize failed: %v", err)
			}
			if p.String() != expected {
				tst.Fatalf("Normalize(%q) = %q, expected %q", raw, p.String(), expected)
			}
		})
	}
}

func TestNormalizeInvalid(t *testing.T) {
	for _, raw := range []string{"/..", "/a/../..", "/a//b", "/a\x00b", "C:/data", "/a\\b"} {
		t.Run(raw, func(tst *testing.T) {
			_, err := Normalize(raw)
			if !errors.Is(err, ErrInvalidPath) {
				tst.Fatalf("Normalize(%q) expected ErrInvalidPath, got %v", raw, err)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, raw := range []string{"", "/", "x", "/a/b/../c", "/a/./b/", "/deep/er/and/./deeper/.."} {
		first, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		second, err := Normalize(first.String())
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if !first.Equal(second) {
			t.Fatalf("Normalize not idempotent for %q: %q != %q", raw, first, second)
		}
	}
}

func TestRelativeTo(t *testing.T) {
	p := MustNormalize("/a/b/c")

	rel, err := p.RelativeTo(MustNormalize("/a"))
	if err != nil {
		t.Fatalf("RelativeTo failed: %v", err)
	}
	if !slices.Equal(rel, []string{"b", "c"}) {
		t.Fatalf("RelativeTo = %v, expected [b c]", rel)
	}

	rel, err = p.RelativeTo(Root())
	if err != nil || len(rel) != 3 {
		t.Fatalf("RelativeTo root = %v, %v", rel, err)
	}

	if _, err := p.RelativeTo(MustNormalize("/x")); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("RelativeTo expected ErrInvalidPath, got %v", err)
	}
	if _, err := MustNormalize("/ab").RelativeTo(MustNormalize("/a")); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("RelativeTo matched a partial segment")
	}
}

func TestJoinAndRebase(t *testing.T) {
	base := MustNormalize("/data")

	joined, err := Join(base, "x", "../y", "z/")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if joined.String() != "/data/y/z" {
		t.Fatalf("Join = %q", joined)
	}

	if _, err := Join(Root(), "..", "x"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("Join expected ErrInvalidPath, got %v", err)
	}

	moved, err := joined.Rebase(base, MustNormalize("/backup"))
	if err != nil {
		t.Fatalf("Rebase failed: %v", err)
	}
	if moved.String() != "/backup/y/z" {
		t.Fatalf("Rebase = %q", moved)
	}
}

func TestPathAccessors(t *testing.T) {
	p := MustNormalize("/a/b/c.txt")

	if p.Name() != "c.txt" || p.Depth() != 3 || p.Key() != "a/b/c.txt" {
		t.Fatalf("unexpected accessors: %q %d %q", p.Name(), p.Depth(), p.Key())
	}
	if p.Parent().String() != "/a/b" || !Root().Parent().IsRoot() {
		t.Fatalf("unexpected parent: %q", p.Parent())
	}

	// Child must not alias the parent's backing array.
	parent := p.Parent()
	x := parent.Child("x")
	y := parent.Child("y")
	if x.String() != "/a/b/x" || y.String() != "/a/b/y" {
		t.Fatalf("Child aliasing: %q %q", x, y)
	}
}
