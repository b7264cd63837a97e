// Package opener creates backends from URLs of the form
//
//	scheme://[user[:pass]@]resource[?params][!subpath]
//
// e.g. "sqlite:///var/lib/treefs.db?readonly=true" or "s3://key:secret@minio:9000/bucket!/photos".
package opener

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/wrap"
)

// Target is a parsed backend URL.
type Target struct {
	// Raw is the URL without the subpath suffix.
	Raw    string
	Scheme string
	// Resource is everything between "://" and "?" without user info.
	Resource string
	User     *url.Userinfo
	Query    url.Values

	ReadOnly bool
	SubPath  data.Path
}

// Parse splits rawURL into its parts.
func Parse(rawURL string) (*Target, error) {
	target := &Target{SubPath: data.Root()}

	if idx := strings.LastIndex(rawURL, "!"); idx >= 0 {
		sub, err := data.Normalize(rawURL[idx+1:])
		if err != nil {
			return nil, err
		}
		target.SubPath = sub
		rawURL = rawURL[:idx]
	}
	target.Raw = rawURL

	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("invalid backend url '%s': missing scheme", rawURL)
	}
	target.Scheme = strings.ToLower(scheme)

	resource, rawQuery, _ := strings.Cut(rest, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url '%s': %w", rawURL, err)
	}
	target.Query = query

	// User info ends at the last "@" before the first "/".
	authority, _, _ := strings.Cut(resource, "/")
	if idx := strings.LastIndex(authority, "@"); idx >= 0 {
		userinfo := resource[:idx]
		resource = resource[idx+1:]

		user, pass, hasPass := strings.Cut(userinfo, ":")
		if user, err = url.PathUnescape(user); err != nil {
			return nil, err
		}
		if hasPass {
			if pass, err = url.PathUnescape(pass); err != nil {
				return nil, err
			}
			target.User = url.UserPassword(user, pass)
		} else {
			target.User = url.User(user)
		}
	}
	target.Resource = resource

	if value := query.Get("readonly"); value != "" {
		readOnly, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid readonly value '%s'", value)
		}
		target.ReadOnly = readOnly
	}

	return target, nil
}

// Host returns the authority part of the resource, e.g. "minio:9000".
func (t *Target) Host() string {
	host, _, _ := strings.Cut(t.Resource, "/")
	return host
}

// Path returns the resource after the host, without the leading slash.
func (t *Target) Path() string {
	_, p, _ := strings.Cut(t.Resource, "/")
	return p
}

// Username returns the user name, or "".
func (t *Target) Username() string {
	if t.User == nil {
		return ""
	}
	return t.User.Username()
}

// Password returns the password, or "".
func (t *Target) Password() string {
	if t.User == nil {
		return ""
	}
	pass, _ := t.User.Password()
	return pass
}

// Bool reads a boolean query parameter.
func (t *Target) Bool(key string, fallback bool) (bool, error) {
	value := t.Query.Get(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid value '%s' for parameter '%s'", value, key)
	}
	return b, nil
}

// Int reads an integer query parameter.
func (t *Target) Int(key string, fallback int) (int, error) {
	value := t.Query.Get(key)
	if value == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid value '%s' for parameter '%s'", value, key)
	}
	return i, nil
}

// OpenerFunc creates an unopened backend for a target.
type OpenerFunc func(ctx context.Context, target *Target) (backend.Backend, error)

// Registry maps URL schemes to openers.
type Registry struct {
	mu      sync.RWMutex
	openers map[string]OpenerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		openers: make(map[string]OpenerFunc),
	}
}

// Register adds opener for every scheme. Registering a scheme twice fails.
func (r *Registry) Register(opener OpenerFunc, schemes ...string) error {
	if opener == nil {
		return fmt.Errorf("opener cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, scheme := range schemes {
		scheme = strings.ToLower(scheme)
		if _, exists := r.openers[scheme]; exists {
			return fmt.Errorf("scheme already registered: %s", scheme)
		}
	}
	for _, scheme := range schemes {
		r.openers[strings.ToLower(scheme)] = opener
	}
	return nil
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.openers))
	for scheme := range r.openers {
		schemes = append(schemes, scheme)
	}
	slices.Sort(schemes)
	return schemes
}

// Open creates the backend for rawURL, applies the subpath and read-only
// wrappers and opens it.
func (r *Registry) Open(ctx context.Context, rawURL string) (backend.Backend, error) {
	target, err := Parse(rawURL)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	opener, exists := r.openers[target.Scheme]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported backend scheme '%s'", target.Scheme)
	}

	b, err := opener(ctx, target)
	if err != nil {
		return nil, err
	}
	if !target.SubPath.IsRoot() {
		b = wrap.Sub(b, target.SubPath)
	}
	if target.ReadOnly {
		b = wrap.ReadOnly(b)
	}

	if err := b.Open(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Default holds the builtin schemes.
var Default = NewDefaultRegistry()

// Register adds a scheme to the default registry.
func Register(opener OpenerFunc, schemes ...string) error {
	return Default.Register(opener, schemes...)
}

// Open opens rawURL with the default registry.
func Open(ctx context.Context, rawURL string) (backend.Backend, error) {
	return Default.Open(ctx, rawURL)
}
