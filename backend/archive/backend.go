// Package archive serves the content of a tar archive as a read-only
// backend and writes any tree into a tar stream.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/tidwall/btree"
)

// member is one indexed archive entry. Parent directories missing from the
// archive are synthesised with implicit set.
type member struct {
	name     string
	isDir    bool
	implicit bool
	size     int64
	offset   int64
	ordinal  int
	perm     data.FileMode
	modified time.Time
	accessed time.Time
	uid      int
	gid      int
	user     string
	group    string
	children []string
}

type ArchiveBackend struct {
	mu          sync.RWMutex
	path        string
	compression Compression

	// detected holds the resolved compression after Open.
	detected Compression
	members  *btree.Map[string, *member]
}

type ArchiveOption func(*ArchiveBackend)

// WithCompression overrides the magic byte detection.
func WithCompression(compression Compression) ArchiveOption {
	return func(ab *ArchiveBackend) {
		ab.compression = compression
	}
}

func NewArchiveBackend(path string, opts ...ArchiveOption) *ArchiveBackend {
	ab := &ArchiveBackend{
		path:        path,
		compression: CompressionAuto,
		members:     btree.NewMap[string, *member](0),
	}
	for _, opt := range opts {
		opt(ab)
	}
	return ab
}

// Name returns the identifier name defined for this backend.
func (*ArchiveBackend) Name() string {
	return "archive"
}

// Open reads the whole archive once and indexes its members.
func (ab *ArchiveBackend) Open(ctx context.Context) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	file, err := os.Open(ab.path)
	if err != nil {
		return data.FromOSError("open", ab.path, err)
	}
	defer file.Close()

	compression := ab.compression
	if compression == CompressionAuto {
		head := make([]byte, len(zstdMagic))
		n, _ := io.ReadFull(file, head)
		compression = detectCompression(head[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return data.FromOSError("open", ab.path, err)
		}
	}

	reader, closeFn, err := decompress(file, compression)
	if err != nil {
		return data.NewError(data.ErrOperationFailed, "open", ab.path, err)
	}
	defer closeFn()

	ab.members.Clear()
	ab.members.Set(data.Root().String(), &member{isDir: true, implicit: true, perm: data.DefaultDirMode})

	// Offsets are only meaningful for uncompressed archives.
	counter := &countingReader{r: reader}
	tr := tar.NewReader(counter)
	for ordinal := 0; ; ordinal++ {
		if err := ctx.Err(); err != nil {
			return data.NewError(data.ErrOperationAborted, "open", ab.path, err)
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		// Insecure names are rejected by memberPath below.
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return data.NewError(data.ErrOperationFailed, "open", ab.path, err)
		}

		p, ok := memberPath(header.Name)
		if !ok || p.IsRoot() {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			ab.indexUnsafe(p, newMember(p, header, true, counter.n, ordinal))
		case tar.TypeReg:
			ab.indexUnsafe(p, newMember(p, header, false, counter.n, ordinal))
		}
	}

	ab.members.Scan(func(_ string, m *member) bool {
		slices.Sort(m.children)
		m.children = slices.Compact(m.children)
		return true
	})

	ab.detected = compression
	return nil
}

// memberPath normalizes a tar member name. Names escaping the archive root
// are rejected.
func memberPath(name string) (data.Path, bool) {
	name = strings.TrimPrefix(name, "./")
	name = strings.Trim(name, "/")
	if name == "" || name == "." {
		return data.Root(), true
	}
	p, err := data.Normalize("/" + name)
	return p, err == nil
}

func newMember(p data.Path, header *tar.Header, isDir bool, offset int64, ordinal int) *member {
	m := &member{
		name:     p.Name(),
		isDir:    isDir,
		offset:   offset,
		ordinal:  ordinal,
		perm:     data.FileMode(header.Mode).Perm(),
		modified: header.ModTime,
		accessed: header.AccessTime,
		uid:      header.Uid,
		gid:      header.Gid,
		user:     header.Uname,
		group:    header.Gname,
	}
	if !isDir {
		m.size = header.Size
	}
	return m
}

// indexUnsafe adds m and any missing ancestors. Requires the write lock.
func (ab *ArchiveBackend) indexUnsafe(p data.Path, m *member) {
	if existing, ok := ab.members.Get(p.String()); ok && existing.isDir {
		if !m.isDir {
			// A file replacing a directory would orphan its children.
			return
		}
		m.children = existing.children
	}
	ab.members.Set(p.String(), m)

	child := p
	for !child.IsRoot() {
		parentPath := child.Parent()
		parent, ok := ab.members.Get(parentPath.String())
		if !ok || !parent.isDir {
			parent = &member{
				name:     parentPath.Name(),
				isDir:    true,
				implicit: true,
				perm:     data.DefaultDirMode,
			}
			ab.members.Set(parentPath.String(), parent)
		}
		parent.children = append(parent.children, child.Name())
		child = parentPath
	}
}

// Close is part of the lifecycle behaviour and drops the index.
func (ab *ArchiveBackend) Close(ctx context.Context) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.members.Clear()
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (ab *ArchiveBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityScanDir,
			backend.CapabilityStreaming,
		},
		ReadOnly: true,
	}
}

func (m *member) info(namespaces ...string) data.Info {
	raw := data.NewRawInfo(m.name, m.isDir)
	for _, namespace := range namespaces {
		switch namespace {
		case data.NamespaceDetails:
			resourceType := data.ResourceTypeFile
			if m.isDir {
				resourceType = data.ResourceTypeDirectory
			}
			raw.Set(namespace, data.FieldType, resourceType).
				Set(namespace, data.FieldSize, m.size)
			if !m.modified.IsZero() {
				raw.Set(namespace, data.FieldModified, m.modified)
			}
			if !m.accessed.IsZero() {
				raw.Set(namespace, data.FieldAccessed, m.accessed)
			}
			if contentType, ok := data.ContentTypeByName(m.name); ok && !m.isDir {
				raw.Set(namespace, data.FieldContentType, contentType)
			}
		case data.NamespaceAccess:
			raw.Set(namespace, data.FieldPermissions, m.perm)
			if !m.implicit {
				raw.Set(namespace, data.FieldUID, m.uid).
					Set(namespace, data.FieldGID, m.gid)
				if m.user != "" {
					raw.Set(namespace, data.FieldUser, m.user)
				}
				if m.group != "" {
					raw.Set(namespace, data.FieldGroup, m.group)
				}
			}
		}
	}
	return raw.Info()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
