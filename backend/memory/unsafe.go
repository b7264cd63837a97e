package memory

import (
	"github.com/mwantia/treefs/data"
)

// Methods in this file touch the index without locking.
// They MUST be called while holding mb.mu (read or write as noted).

// resetUnsafe replaces the tree with an empty root. Requires the write lock.
func (mb *MemoryBackend) resetUnsafe() {
	mb.keys.Clear()
	clear(mb.nodes)

	root := newNode("", true, data.DefaultDirMode)
	mb.keys.Set(data.Root().String(), root.id)
	mb.nodes[root.id] = root
}

// lookupUnsafe resolves a path. Requires at least the read lock.
func (mb *MemoryBackend) lookupUnsafe(path data.Path) (*node, bool) {
	id, ok := mb.keys.Get(path.String())
	if !ok {
		return nil, false
	}
	n, ok := mb.nodes[id]
	return n, ok
}

// parentUnsafe resolves the directory that would contain path.
// Requires at least the read lock.
func (mb *MemoryBackend) parentUnsafe(op string, path data.Path) (*node, error) {
	parent, ok := mb.lookupUnsafe(path.Parent())
	if !ok {
		return nil, data.NewError(data.ErrResourceNotFound, op, path.Parent().String(), nil)
	}
	if !parent.isDir {
		return nil, data.NewError(data.ErrDirectoryExpected, op, path.Parent().String(), nil)
	}
	return parent, nil
}

// insertUnsafe links n below parent. Requires the write lock.
func (mb *MemoryBackend) insertUnsafe(parent *node, path data.Path, n *node) {
	mb.keys.Set(path.String(), n.id)
	mb.nodes[n.id] = n
	parent.children.Insert(n.name)
	parent.modified = n.created
}

// deleteUnsafe unlinks a leaf. Requires the write lock.
func (mb *MemoryBackend) deleteUnsafe(path data.Path, n *node) {
	mb.keys.Delete(path.String())
	delete(mb.nodes, n.id)
	if parent, ok := mb.lookupUnsafe(path.Parent()); ok {
		parent.children.Delete(n.name)
	}
}

// infoUnsafe renders the info record of n. Requires at least the read lock.
func infoUnsafe(n *node, namespaces ...string) data.Info {
	raw := data.NewRawInfo(n.name, n.isDir)
	for _, namespace := range namespaces {
		switch namespace {
		case data.NamespaceDetails:
			resourceType := data.ResourceTypeFile
			if n.isDir {
				resourceType = data.ResourceTypeDirectory
			}
			raw.Set(namespace, data.FieldType, resourceType).
				Set(namespace, data.FieldSize, int64(len(n.content))).
				Set(namespace, data.FieldCreated, n.created).
				Set(namespace, data.FieldModified, n.modified).
				Set(namespace, data.FieldAccessed, n.accessed).
				Set(namespace, data.FieldMetadataChanged, n.changed)
			if n.contentType != "" {
				raw.Set(namespace, data.FieldContentType, n.contentType)
			}
		case data.NamespaceAccess:
			raw.Set(namespace, data.FieldPermissions, n.perm)
		}
	}
	return raw.Info()
}
