package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mwantia/treefs/data"
)

// Methods in this file touch the key index without locking.
// They MUST be called while holding sb.mu (read or write as noted).

const (
	nodesTable  = "treefs_nodes"
	chunksTable = "treefs_chunks"
)

var nodeColumns = []string{
	"id", "path", "parent", "name", "is_dir", "mode", "size", "content_type",
	"create_time", "modify_time", "access_time", "change_time",
}

type row struct {
	id          string
	path        string
	parent      string
	name        string
	isDir       bool
	mode        data.FileMode
	size        int64
	contentType string

	created  time.Time
	modified time.Time
	accessed time.Time
	changed  time.Time
}

func newRow(path data.Path, isDir bool, mode data.FileMode) *row {
	now := time.Now()
	parent := ""
	if !path.IsRoot() {
		parent = path.Parent().String()
	}
	return &row{
		id:       newID(),
		path:     path.String(),
		parent:   parent,
		name:     path.Name(),
		isDir:    isDir,
		mode:     mode.Perm(),
		created:  now,
		modified: now,
		accessed: now,
		changed:  now,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(scanner rowScanner) (*row, error) {
	var (
		r                                 row
		isDir, mode                       int64
		created, modified, accessed, chgd int64
	)
	if err := scanner.Scan(&r.id, &r.path, &r.parent, &r.name, &isDir, &mode, &r.size, &r.contentType,
		&created, &modified, &accessed, &chgd); err != nil {
		return nil, err
	}

	r.isDir = isDir != 0
	r.mode = data.FileMode(mode)
	r.created = time.Unix(0, created)
	r.modified = time.Unix(0, modified)
	r.accessed = time.Unix(0, accessed)
	r.changed = time.Unix(0, chgd)
	return &r, nil
}

// info renders the info record of r with the requested namespaces.
func (r *row) info(namespaces ...string) data.Info {
	raw := data.NewRawInfo(r.name, r.isDir)
	for _, namespace := range namespaces {
		switch namespace {
		case data.NamespaceDetails:
			resourceType := data.ResourceTypeFile
			if r.isDir {
				resourceType = data.ResourceTypeDirectory
			}
			raw.Set(namespace, data.FieldType, resourceType).
				Set(namespace, data.FieldSize, r.size).
				Set(namespace, data.FieldCreated, r.created).
				Set(namespace, data.FieldModified, r.modified).
				Set(namespace, data.FieldAccessed, r.accessed).
				Set(namespace, data.FieldMetadataChanged, r.changed)
			if r.contentType != "" {
				raw.Set(namespace, data.FieldContentType, data.ContentType(r.contentType))
			}
		case data.NamespaceAccess:
			raw.Set(namespace, data.FieldPermissions, r.mode)
		}
	}
	return raw.Info()
}

// loadKeysUnsafe fills the key index from the nodes table. Requires the write lock.
func (sb *SQLBackend) loadKeysUnsafe(ctx context.Context) error {
	query, args, err := sb.builder.Select("path", "id").From(nodesTable).ToSql()
	if err != nil {
		return err
	}

	rows, err := sb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load keys: %w", err)
	}
	defer rows.Close()

	sb.keys.Clear()
	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return fmt.Errorf("failed to scan key: %w", err)
		}
		sb.keys.Set(key, id)
	}

	return rows.Err()
}

// lookupUnsafe reads the row of path. Requires at least the read lock.
func (sb *SQLBackend) lookupUnsafe(ctx context.Context, op string, path data.Path) (*row, error) {
	id, ok := sb.keys.Get(path.String())
	if !ok {
		return nil, data.NewError(data.ErrResourceNotFound, op, path.String(), nil)
	}

	query, args, err := sb.builder.Select(nodeColumns...).From(nodesTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	r, err := scanRow(sb.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.NewError(data.ErrResourceNotFound, op, path.String(), nil)
	}
	if err != nil {
		return nil, data.NewError(data.KindOf(err), op, path.String(), err)
	}
	return r, nil
}

// parentUnsafe resolves the directory that would contain path.
// Requires at least the read lock.
func (sb *SQLBackend) parentUnsafe(ctx context.Context, op string, path data.Path) (*row, error) {
	parent, err := sb.lookupUnsafe(ctx, op, path.Parent())
	if err != nil {
		return nil, err
	}
	if !parent.isDir {
		return nil, data.NewError(data.ErrDirectoryExpected, op, path.Parent().String(), nil)
	}
	return parent, nil
}

// insertUnsafe stores r and indexes it. Requires the write lock.
func (sb *SQLBackend) insertUnsafe(ctx context.Context, r *row) error {
	query, args, err := sb.builder.Insert(nodesTable).Columns(nodeColumns...).Values(
		r.id, r.path, r.parent, r.name, boolInt(r.isDir), int64(r.mode), r.size, r.contentType,
		r.created.UnixNano(), r.modified.UnixNano(), r.accessed.UnixNano(), r.changed.UnixNano(),
	).ToSql()
	if err != nil {
		return err
	}

	if _, err := sb.db.ExecContext(ctx, query, args...); err != nil {
		return data.NewError(data.KindOf(err), "insert", r.path, err)
	}

	sb.keys.Set(r.path, r.id)
	return nil
}

// updateUnsafe applies column changes to the row with id. Requires the write lock.
func (sb *SQLBackend) updateUnsafe(ctx context.Context, id string, changes map[string]any) error {
	query, args, err := sb.builder.Update(nodesTable).SetMap(changes).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	_, err = sb.db.ExecContext(ctx, query, args...)
	return err
}

// deleteUnsafe removes r together with its content. Requires the write lock.
func (sb *SQLBackend) deleteUnsafe(ctx context.Context, r *row) error {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, builder := range []sq.DeleteBuilder{
		sb.builder.Delete(chunksTable).Where(sq.Eq{"node_id": r.id}),
		sb.builder.Delete(nodesTable).Where(sq.Eq{"id": r.id}),
	} {
		query, args, err := builder.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	sb.keys.Delete(r.path)
	return nil
}

// truncateUnsafe drops every chunk of the node with id. Requires the write lock.
func (sb *SQLBackend) truncateUnsafe(ctx context.Context, id string) error {
	query, args, err := sb.builder.Delete(chunksTable).Where(sq.Eq{"node_id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = sb.db.ExecContext(ctx, query, args...)
	return err
}

// hasChildrenUnsafe reports whether any node lives below path.
// Requires at least the read lock.
func (sb *SQLBackend) hasChildrenUnsafe(path data.Path) bool {
	prefix := path.String()
	if !path.IsRoot() {
		prefix += "/"
	}

	found := false
	sb.keys.Ascend(prefix, func(key, _ string) bool {
		if key == path.String() {
			return true
		}
		found = strings.HasPrefix(key, prefix)
		return false
	})
	return found
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
