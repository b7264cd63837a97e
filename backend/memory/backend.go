// Package memory provides a backend that keeps the whole tree in memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/tidwall/btree"
)

type node struct {
	id       string
	name     string
	isDir    bool
	perm     data.FileMode
	content  []byte
	children *btree.Set[string]

	contentType data.ContentType
	created     time.Time
	modified    time.Time
	accessed    time.Time
	changed     time.Time
}

type MemoryBackend struct {
	guard *backend.Guard
	mu    sync.RWMutex

	keys  *btree.Map[string, string]
	nodes map[string]*node
}

func NewMemoryBackend() *MemoryBackend {
	mb := &MemoryBackend{
		guard: backend.NewGuard(),
		keys:  btree.NewMap[string, string](0),
		nodes: make(map[string]*node),
	}
	mb.resetUnsafe()

	return mb
}

// Name returns the identifier name defined for this backend.
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour; the tree is ready on construction.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	return nil
}

// Close drops every stored resource.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	return mb.guard.Do(ctx, func(ctx context.Context) error {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		mb.resetUnsafe()
		return nil
	})
}

func (mb *MemoryBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityScanDir,
			backend.CapabilitySetInfo,
			backend.CapabilityAppend,
			backend.CapabilityStreaming,
		},
	}
}

func newNode(name string, isDir bool, perm data.FileMode) *node {
	now := time.Now()
	n := &node{
		id:       uuid.Must(uuid.NewV7()).String(),
		name:     name,
		isDir:    isDir,
		perm:     perm.Perm(),
		created:  now,
		modified: now,
		accessed: now,
		changed:  now,
	}
	if isDir {
		n.children = new(btree.Set[string])
		n.contentType = data.ContentTypeDirectory
	}
	return n
}
