package glob

// Set is a list of patterns where any match counts.
type Set []*Pattern

// CompileSet compiles every pattern with the same options.
func CompileSet(patterns []string, opts ...Option) (Set, error) {
	set := make(Set, 0, len(patterns))
	for _, pattern := range patterns {
		p, err := Compile(pattern, opts...)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}
	return set, nil
}

// MatchPath reports whether any pattern matches. An empty set matches nothing.
func (s Set) MatchPath(segments []string) bool {
	for _, p := range s {
		if p.MatchPath(segments) {
			return true
		}
	}
	return false
}

// MatchName reports whether any pattern matches the single segment name.
func (s Set) MatchName(name string) bool {
	for _, p := range s {
		if p.MatchName(name) {
			return true
		}
	}
	return false
}

// Accepts treats an empty set as accept-all, as used for include filters.
func (s Set) Accepts(segments []string) bool {
	return len(s) == 0 || s.MatchPath(segments)
}
