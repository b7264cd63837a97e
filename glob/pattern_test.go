package glob

import (
	"errors"
	"strings"
	"testing"
)

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		pattern  string
		path     string
		expected bool
	}{
		{"*.txt", "a.txt", true},
		{"*.txt", "a.txt.bak", false},
		{"*.txt", ".txt", true},
		{"**/b.txt", "x/y/b.txt", true},
		{"**/b.txt", "b.txt", true},
		{"**/b.txt", "x/y/c.txt", false},
		{"a/**", "a", true},
		{"a/**", "a/b/c", true},
		{"a/**/z", "a/z", true},
		{"a/**/z", "a/b/c/z", true},
		{"a/*/z", "a/b/c/z", false},
		{"file?.go", "file1.go", true},
		{"file?.go", "file10.go", false},
		{"[abc].md", "b.md", true},
		{"[!abc].md", "b.md", false},
		{"[a-c]x", "cx", true},
		{"\\*", "*", true},
		{"\\*", "a", false},
		{"{src,lib}/*.go", "lib/x.go", true},
		{"{src,lib}/*.go", "bin/x.go", false},
		{"*.{jpg,png}", "cat.png", true},
		{"*", "a/b", false},
		{"日本*", "日本語", true},
	}

	for _, test := range tests {
		t.Run(test.pattern+"~"+test.path, func(tst *testing.T) {
			p, err := Compile(test.pattern)
			if err != nil {
				tst.Fatalf("Compile failed: %v", err)
			}
			if got := p.MatchString(test.path); got != test.expected {
				tst.Fatalf("Match(%q, %q) = %v, expected %v", test.pattern, test.path, got, test.expected)
			}
		})
	}
}

func TestPatternSegments(t *testing.T) {
	p := MustCompile("**/b.txt")
	if !p.Match([]string{"x", "y", "b.txt"}) || !p.Match([]string{"b.txt"}) {
		t.Fatalf("recursive wildcard must match zero or more segments")
	}
	if p.IsLeaf() {
		t.Fatalf("recursive pattern reported as leaf")
	}

	leaf := MustCompile("*.txt")
	if !leaf.IsLeaf() || !leaf.MatchName("a.txt") || leaf.MatchName("a.txt.bak") {
		t.Fatalf("unexpected leaf behaviour")
	}
	if !leaf.MatchPath([]string{"deep", "dir", "a.txt"}) {
		t.Fatalf("leaf pattern must match the last segment of a path")
	}
}

func TestPatternCaseInsensitive(t *testing.T) {
	p := MustCompile("*.TXT", WithCaseInsensitive(true))
	if !p.MatchName("readme.txt") || !p.MatchName("README.Txt") {
		t.Fatalf("case-insensitive pattern did not match")
	}
	if MustCompile("*.TXT").MatchName("readme.txt") {
		t.Fatalf("case-sensitive pattern matched a different case")
	}
	if !MustCompile("[A-C]*", WithCaseInsensitive(true)).MatchName("banana") {
		t.Fatalf("case-insensitive class did not match")
	}
}

func TestPatternInvalid(t *testing.T) {
	for _, pattern := range []string{"", "[abc", "a//b", "{a,b"} {
		if _, err := Compile(pattern); !errors.Is(err, ErrBadPattern) {
			t.Fatalf("Compile(%q) expected ErrBadPattern, got %v", pattern, err)
		}
	}
}

func TestPatternPolynomial(t *testing.T) {
	// Classic backtracking killer: many stars against a long non-matching input.
	p := MustCompile(strings.Repeat("*a", 30) + "b")
	if p.MatchName(strings.Repeat("a", 5000)) {
		t.Fatalf("unexpected match")
	}

	deep := MustCompile(strings.Repeat("**/x/", 20) + "y")
	segments := make([]string, 400)
	for i := range segments {
		segments[i] = "x"
	}
	if deep.Match(segments) {
		t.Fatalf("unexpected match")
	}
}

func TestSet(t *testing.T) {
	set, err := CompileSet([]string{"*.go", "docs/**"})
	if err != nil {
		t.Fatalf("CompileSet failed: %v", err)
	}
	if !set.MatchPath([]string{"pkg", "main.go"}) || !set.MatchPath([]string{"docs", "a", "b.md"}) {
		t.Fatalf("set did not match")
	}
	if set.MatchPath([]string{"readme.md"}) {
		t.Fatalf("set matched unexpected path")
	}
	if !Set(nil).Accepts([]string{"x"}) || Set(nil).MatchPath([]string{"x"}) {
		t.Fatalf("empty set semantics broken")
	}
}
