package tree

import (
	"context"
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/glob"
)

// Glob returns every resource whose path matches pattern. Only the subtree
// below the static prefix of the pattern is walked, and the walk depth is
// bounded unless the pattern contains "**".
func Glob(ctx context.Context, b backend.Backend, pattern string, opts ...Option) ([]Step, error) {
	options := newDefaultOptions(RaiseOnError)
	if err := options.apply(opts); err != nil {
		return nil, err
	}

	base, rest := doublestar.SplitPattern(strings.TrimPrefix(pattern, "/"))
	root, err := data.Normalize(base)
	if err != nil {
		return nil, err
	}

	matcher, err := glob.Compile(rest, patternOptions(b, options)...)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(rest, "**") {
		options.MaxDepth = strings.Count(strings.Trim(rest, "/"), "/") + 1
	}

	walker, err := newWalker(ctx, b, root, options)
	if errors.Is(err, data.ErrResourceNotFound) || errors.Is(err, data.ErrDirectoryExpected) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer walker.Close()

	var matches []Step
	for walker.Next() {
		step := walker.Step()
		rel, err := step.Path.RelativeTo(root)
		if err != nil {
			continue
		}
		if matcher.Match(rel) {
			matches = append(matches, step)
		}
	}
	return matches, walker.Err()
}
