package tree

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/backend/backendtest"
	"github.com/mwantia/treefs/backend/memory"
	"github.com/mwantia/treefs/data"
)

// plainBackend hides the scan accelerator of the wrapped backend.
type plainBackend struct {
	backend.Backend
}

func (p *plainBackend) GetCapabilities() *backend.Capabilities {
	return p.Backend.GetCapabilities().Without(backend.CapabilityScanDir)
}

// faultyBackend fails selected operations for selected paths.
type faultyBackend struct {
	backend.Backend

	mu      sync.Mutex
	listDir map[string]error
	remove  map[string]error
	open    map[string]error
	// vanish holds directories removed right before they are listed.
	vanish map[string]bool
}

func newFaultyBackend(b backend.Backend) *faultyBackend {
	return &faultyBackend{
		Backend: b,
		listDir: make(map[string]error),
		remove:  make(map[string]error),
		open:    make(map[string]error),
		vanish:  make(map[string]bool),
	}
}

func (f *faultyBackend) GetCapabilities() *backend.Capabilities {
	return f.Backend.GetCapabilities().Without(backend.CapabilityScanDir)
}

func (f *faultyBackend) fault(table map[string]error, path data.Path) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return table[path.String()]
}

func (f *faultyBackend) ListDir(ctx context.Context, path data.Path) ([]string, error) {
	if err := f.fault(f.listDir, path); err != nil {
		return nil, err
	}
	f.mu.Lock()
	vanish := f.vanish[path.String()]
	f.mu.Unlock()
	if vanish {
		if err := f.Backend.RemoveDir(ctx, path); err != nil {
			return nil, err
		}
	}
	return f.Backend.ListDir(ctx, path)
}

func (f *faultyBackend) Remove(ctx context.Context, path data.Path) error {
	if err := f.fault(f.remove, path); err != nil {
		return err
	}
	return f.Backend.Remove(ctx, path)
}

func (f *faultyBackend) OpenBinary(ctx context.Context, path data.Path, mode data.AccessMode) (backend.File, error) {
	if err := f.fault(f.open, path); err != nil {
		return nil, err
	}
	return f.Backend.OpenBinary(ctx, path, mode)
}

func newMemory(t *testing.T) *memory.MemoryBackend {
	t.Helper()
	b := memory.NewMemoryBackend()
	if err := b.Open(t.Context()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return b
}

// populate creates the given resources. Keys ending in "/" are directories,
// every other key is a file with the value as content. Parents are created
// as needed.
func populate(t *testing.T, b backend.Backend, resources map[string]string) {
	t.Helper()
	ctx := t.Context()

	keys := make([]string, 0, len(resources))
	for key := range resources {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		p := data.MustNormalize(key)
		makeParents(t, b, p)

		if strings.HasSuffix(key, "/") {
			if err := b.MakeDir(ctx, p, data.DefaultDirMode, true); err != nil {
				t.Fatalf("MakeDir %s failed: %v", p, err)
			}
			continue
		}
		if err := backendtest.WriteFile(ctx, b, p, []byte(resources[key])); err != nil {
			t.Fatalf("WriteFile %s failed: %v", p, err)
		}
	}
}

func makeParents(t *testing.T, b backend.Backend, p data.Path) {
	t.Helper()
	segments := p.Segments()
	current := data.Root()
	for _, segment := range segments[:max(len(segments)-1, 0)] {
		current = current.Child(segment)
		if err := b.MakeDir(t.Context(), current, data.DefaultDirMode, true); err != nil {
			t.Fatalf("MakeDir %s failed: %v", current, err)
		}
	}
}

func readString(t *testing.T, b backend.Backend, raw string) string {
	t.Helper()
	content, err := backendtest.ReadFile(t.Context(), b, data.MustNormalize(raw))
	if err != nil {
		t.Fatalf("ReadFile %s failed: %v", raw, err)
	}
	return string(content)
}

func stepPaths(steps []Step) []string {
	paths := make([]string, 0, len(steps))
	for _, step := range steps {
		paths = append(paths, step.Path.String())
	}
	return paths
}

func sample(t *testing.T, b backend.Backend) {
	populate(t, b, map[string]string{
		"/a/x.txt":   "x",
		"/a/b/y.log": "y",
		"/c.txt":     "c",
		"/d/":        "",
	})
}
