// Package glob compiles wildcard patterns over path segments.
//
// Supported syntax: `*` and `?` within one segment, `[...]` character
// classes (with `!` or `^` negation and ranges), `{a,b}` alternation,
// `\` escapes and `**` matching zero or more whole segments.
package glob

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

var ErrBadPattern = errors.New("treefs: invalid wildcard pattern")

// maxAlternatives bounds brace expansion.
const maxAlternatives = 64

type Options struct {
	CaseInsensitive bool
}

type Option func(*Options) error

// WithCaseInsensitive compiles a pattern that ignores letter case.
func WithCaseInsensitive(enabled bool) Option {
	return func(o *Options) error {
		o.CaseInsensitive = enabled
		return nil
	}
}

// Pattern is an immutable compiled wildcard pattern.
type Pattern struct {
	source          string
	caseInsensitive bool
	leaf            bool
	alternatives    [][]segmentToken
}

type segmentToken struct {
	recursive bool
	elems     []elem
}

type elemKind int

const (
	elemLiteral elemKind = iota
	elemAny
	elemStar
	elemClass
)

type elem struct {
	kind   elemKind
	r      rune
	negate bool
	ranges []runeRange
}

type runeRange struct {
	lo, hi rune
}

// Compile parses pattern once; the result can be matched any number of times.
func Compile(pattern string, opts ...Option) (*Pattern, error) {
	options := Options{}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, err
		}
	}

	if pattern == "" || !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: '%s'", ErrBadPattern, pattern)
	}

	expanded, err := expandBraces(pattern)
	if err != nil {
		return nil, err
	}

	p := &Pattern{
		source:          pattern,
		caseInsensitive: options.CaseInsensitive,
		leaf:            true,
	}

	for _, alternative := range expanded {
		tokens, err := compileAlternative(alternative, options.CaseInsensitive)
		if err != nil {
			return nil, fmt.Errorf("%w: '%s'", err, pattern)
		}
		if len(tokens) != 1 || tokens[0].recursive {
			p.leaf = false
		}
		p.alternatives = append(p.alternatives, tokens)
	}

	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string, opts ...Option) *Pattern {
	p, err := Compile(pattern, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string {
	return p.source
}

// IsLeaf reports whether the pattern describes a single segment.
func (p *Pattern) IsLeaf() bool {
	return p.leaf
}

// Match reports whether the whole segment sequence matches.
func (p *Pattern) Match(segments []string) bool {
	if p.caseInsensitive {
		folded := make([]string, len(segments))
		for i, segment := range segments {
			folded[i] = strings.ToLower(segment)
		}
		segments = folded
	}

	for _, tokens := range p.alternatives {
		if matchSegments(tokens, segments) {
			return true
		}
	}
	return false
}

// MatchName matches a single segment.
func (p *Pattern) MatchName(name string) bool {
	return p.Match([]string{name})
}

// MatchPath matches relative path segments. Leaf patterns are checked
// against the last segment only, everything else against the whole path.
func (p *Pattern) MatchPath(segments []string) bool {
	if p.leaf {
		if len(segments) == 0 {
			return false
		}
		return p.MatchName(segments[len(segments)-1])
	}
	return p.Match(segments)
}

// MatchString splits a slash separated path and matches it.
func (p *Pattern) MatchString(path string) bool {
	path = strings.Trim(path, "/")
	if path == "" {
		return p.Match(nil)
	}
	return p.Match(strings.Split(path, "/"))
}

// matchSegments runs the path-level dynamic program: row i holds which
// prefixes of segments are matched by the first i tokens.
func matchSegments(tokens []segmentToken, segments []string) bool {
	n := len(segments)
	prev := make([]bool, n+1)
	next := make([]bool, n+1)
	prev[0] = true

	for _, token := range tokens {
		if token.recursive {
			next[0] = prev[0]
			for j := 1; j <= n; j++ {
				next[j] = prev[j] || next[j-1]
			}
		} else {
			next[0] = false
			for j := 1; j <= n; j++ {
				next[j] = prev[j-1] && matchSegment(token.elems, segments[j-1])
			}
		}
		prev, next = next, prev
	}

	return prev[n]
}

// matchSegment runs the same dynamic program over the runes of one segment.
func matchSegment(elems []elem, segment string) bool {
	runes := []rune(segment)
	n := len(runes)
	prev := make([]bool, n+1)
	next := make([]bool, n+1)
	prev[0] = true

	for _, e := range elems {
		if e.kind == elemStar {
			next[0] = prev[0]
			for j := 1; j <= n; j++ {
				next[j] = prev[j] || next[j-1]
			}
		} else {
			next[0] = false
			for j := 1; j <= n; j++ {
				next[j] = prev[j-1] && e.matches(runes[j-1])
			}
		}
		prev, next = next, prev
	}

	return prev[n]
}

func (e elem) matches(r rune) bool {
	switch e.kind {
	case elemLiteral:
		return e.r == r
	case elemAny:
		return true
	case elemClass:
		in := false
		for _, rr := range e.ranges {
			if r >= rr.lo && r <= rr.hi {
				in = true
				break
			}
		}
		return in != e.negate
	default:
		return false
	}
}

func compileAlternative(pattern string, fold bool) ([]segmentToken, error) {
	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return nil, ErrBadPattern
	}

	var tokens []segmentToken
	for _, segment := range strings.Split(pattern, "/") {
		if segment == "" {
			return nil, ErrBadPattern
		}
		if segment == "**" {
			if len(tokens) > 0 && tokens[len(tokens)-1].recursive {
				continue
			}
			tokens = append(tokens, segmentToken{recursive: true})
			continue
		}

		elems, err := compileSegment(segment, fold)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, segmentToken{elems: elems})
	}
	return tokens, nil
}

func compileSegment(segment string, fold bool) ([]elem, error) {
	var elems []elem
	foldRune := func(r rune) rune {
		if fold {
			return unicode.ToLower(r)
		}
		return r
	}

	for i := 0; i < len(segment); {
		r, size := utf8.DecodeRuneInString(segment[i:])
		switch r {
		case '*':
			if len(elems) == 0 || elems[len(elems)-1].kind != elemStar {
				elems = append(elems, elem{kind: elemStar})
			}
			i += size
		case '?':
			elems = append(elems, elem{kind: elemAny})
			i += size
		case '[':
			e, n, err := compileClass(segment[i+size:], foldRune)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			i += size + n
		case '\\':
			i += size
			if i >= len(segment) {
				return nil, ErrBadPattern
			}
			r, size = utf8.DecodeRuneInString(segment[i:])
			elems = append(elems, elem{kind: elemLiteral, r: foldRune(r)})
			i += size
		default:
			elems = append(elems, elem{kind: elemLiteral, r: foldRune(r)})
			i += size
		}
	}
	return elems, nil
}

// compileClass parses the body of a character class following '['.
// It returns the element and the number of bytes consumed including ']'.
func compileClass(body string, fold func(rune) rune) (elem, int, error) {
	e := elem{kind: elemClass}
	i := 0
	if i < len(body) && (body[i] == '!' || body[i] == '^') {
		e.negate = true
		i++
	}

	first := true
	for i < len(body) {
		r, size := utf8.DecodeRuneInString(body[i:])
		if r == ']' && !first {
			return e, i + size, nil
		}
		first = false
		if r == '\\' {
			i += size
			if i >= len(body) {
				return elem{}, 0, ErrBadPattern
			}
			r, size = utf8.DecodeRuneInString(body[i:])
		}
		i += size

		lo, hi := r, r
		if i+1 < len(body) && body[i] == '-' && body[i+1] != ']' {
			hi, size = utf8.DecodeRuneInString(body[i+1:])
			i += 1 + size
			if hi < lo {
				return elem{}, 0, ErrBadPattern
			}
		}
		e.ranges = append(e.ranges, runeRange{lo: fold(lo), hi: fold(hi)})
	}

	return elem{}, 0, ErrBadPattern
}

// expandBraces rewrites `{a,b}` alternation into separate patterns.
func expandBraces(pattern string) ([]string, error) {
	start, end := findBraces(pattern)
	if start < 0 {
		return []string{pattern}, nil
	}

	prefix, body, suffix := pattern[:start], pattern[start+1:end], pattern[end+1:]
	var out []string
	for _, option := range splitTopLevel(body) {
		expanded, err := expandBraces(prefix + option + suffix)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
		if len(out) > maxAlternatives {
			return nil, fmt.Errorf("%w: too many alternatives in '%s'", ErrBadPattern, pattern)
		}
	}
	return out, nil
}

func findBraces(pattern string) (int, int) {
	start, depth := -1, 0
	inClass := false
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case c == '\\':
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case c == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case c == '}' && depth > 0:
			depth--
			if depth == 0 {
				return start, i
			}
		}
	}
	return -1, -1
}

func splitTopLevel(body string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, body[start:])
}
