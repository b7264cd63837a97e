package wrap

import (
	"context"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// ReadOnlyBackend rejects every mutation with ErrResourceReadOnly.
type ReadOnlyBackend struct {
	backend.Backend
}

func ReadOnly(b backend.Backend) *ReadOnlyBackend {
	return &ReadOnlyBackend{Backend: b}
}

// Unwrap returns the wrapped backend.
func (rb *ReadOnlyBackend) Unwrap() backend.Backend {
	return rb.Backend
}

func (rb *ReadOnlyBackend) GetCapabilities() *backend.Capabilities {
	caps := rb.Backend.GetCapabilities().Without(backend.CapabilitySetInfo, backend.CapabilityAppend)
	caps.ReadOnly = true
	return caps
}

func (rb *ReadOnlyBackend) ScanDir(ctx context.Context, p data.Path, namespaces ...string) (backend.EntryIterator, error) {
	scanner, ok := backend.AsScanner(rb.Backend)
	if !ok {
		return nil, data.NewError(data.ErrUnsupported, "scan_dir", p.String(), nil)
	}
	return scanner.ScanDir(ctx, p, namespaces...)
}

func (rb *ReadOnlyBackend) MakeDir(ctx context.Context, p data.Path, perm data.FileMode, recreate bool) error {
	return data.NewError(data.ErrResourceReadOnly, "make_dir", p.String(), nil)
}

func (rb *ReadOnlyBackend) OpenBinary(ctx context.Context, p data.Path, mode data.AccessMode) (backend.File, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if mode.IsWriting() {
		return nil, data.NewError(data.ErrResourceReadOnly, "open_binary", p.String(), nil)
	}
	return rb.Backend.OpenBinary(ctx, p, mode)
}

func (rb *ReadOnlyBackend) Remove(ctx context.Context, p data.Path) error {
	return data.NewError(data.ErrResourceReadOnly, "remove", p.String(), nil)
}

func (rb *ReadOnlyBackend) RemoveDir(ctx context.Context, p data.Path) error {
	return data.NewError(data.ErrResourceReadOnly, "remove_dir", p.String(), nil)
}

func (rb *ReadOnlyBackend) SetInfo(ctx context.Context, p data.Path, changes data.RawInfo) error {
	return data.NewError(data.ErrResourceReadOnly, "set_info", p.String(), nil)
}
