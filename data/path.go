package data

import (
	"strings"
)

// Path is a normalized, absolute virtual path made of non-empty segments.
// The zero value is the root.
type Path struct {
	segments []string
}

// Root returns the root path.
func Root() Path {
	return Path{}
}

// Normalize validates raw and converts it into a Path.
// Relative input is resolved from the root, "." segments are dropped and
// ".." segments consume their parent. A single trailing slash is accepted.
func Normalize(raw string) (Path, error) {
	if strings.IndexByte(raw, 0) >= 0 {
		return Path{}, NewError(ErrInvalidPath, "normalize", raw, nil)
	}

	trimmed := strings.TrimPrefix(raw, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return Path{}, nil
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]string, 0, len(parts))
	for i, part := range parts {
		switch part {
		case "":
			return Path{}, NewError(ErrInvalidPath, "normalize", raw, nil)
		case ".":
			continue
		case "..":
			if len(segments) == 0 {
				return Path{}, NewError(ErrInvalidPath, "normalize", raw, nil)
			}
			segments = segments[:len(segments)-1]
		default:
			if !validSegment(part, i == 0) {
				return Path{}, NewError(ErrInvalidPath, "normalize", raw, nil)
			}
			segments = append(segments, part)
		}
	}

	return Path{segments: segments}, nil
}

// MustNormalize is like Normalize but panics on invalid input.
func MustNormalize(raw string) Path {
	p, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func validSegment(segment string, first bool) bool {
	if strings.ContainsRune(segment, '\\') {
		return false
	}
	// Drive designators such as "C:" are never valid virtual segments.
	if first && len(segment) == 2 && segment[1] == ':' && isASCIILetter(segment[0]) {
		return false
	}
	return true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Join appends parts to base and normalizes the result.
func Join(base Path, parts ...string) (Path, error) {
	raw := base.String()
	for _, part := range parts {
		if part == "" {
			continue
		}
		raw = raw + "/" + part
	}
	return Normalize(raw)
}

// Join is a shorthand for Join(p, parts...).
func (p Path) Join(parts ...string) (Path, error) {
	return Join(p, parts...)
}

// Child appends a single entry name as returned by a directory listing.
// The name is not re-validated.
func (p Path) Child(name string) Path {
	segments := make([]string, len(p.segments)+1)
	copy(segments, p.segments)
	segments[len(p.segments)] = name
	return Path{segments: segments}
}

// RelativeTo returns the segments of p below ancestor.
func (p Path) RelativeTo(ancestor Path) ([]string, error) {
	if !p.HasPrefix(ancestor) {
		return nil, NewError(ErrInvalidPath, "relative_to", p.String(), nil)
	}

	rel := make([]string, len(p.segments)-len(ancestor.segments))
	copy(rel, p.segments[len(ancestor.segments):])
	return rel, nil
}

// Rebase maps p from below the from path to the same position below to.
func (p Path) Rebase(from, to Path) (Path, error) {
	rel, err := p.RelativeTo(from)
	if err != nil {
		return Path{}, err
	}

	segments := make([]string, 0, len(to.segments)+len(rel))
	segments = append(segments, to.segments...)
	segments = append(segments, rel...)
	return Path{segments: segments}, nil
}

// HasPrefix reports whether ancestor is p or one of its ancestors.
func (p Path) HasPrefix(ancestor Path) bool {
	if len(ancestor.segments) > len(p.segments) {
		return false
	}
	for i, segment := range ancestor.segments {
		if p.segments[i] != segment {
			return false
		}
	}
	return true
}

func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	return p.HasPrefix(other)
}

func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return len(p.segments)
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	segments := make([]string, len(p.segments))
	copy(segments, p.segments)
	return segments
}

// Name returns the last segment, or "" for the root.
func (p Path) Name() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns the containing directory. The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p.segments) <= 1 {
		return Path{}
	}
	return Path{segments: p.segments[: len(p.segments)-1 : len(p.segments)-1]}
}

// String renders the path with a leading slash.
func (p Path) String() string {
	if len(p.segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.segments, "/")
}

// Key renders the path without the leading slash, as used by key-value stores.
func (p Path) Key() string {
	return strings.Join(p.segments, "/")
}
