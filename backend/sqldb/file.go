package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"io/fs"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mwantia/treefs/data"
)

// sqlFile streams content chunk by chunk. Readers fetch one chunk per query,
// writers buffer up to the chunk size before inserting a row.
type sqlFile struct {
	ctx  context.Context
	sb   *SQLBackend
	id   string
	path data.Path
	mode data.AccessMode

	// next is the lowest chunk sequence not yet read or written.
	next int64
	buf  []byte

	base    int64
	written int64
	head    []byte
	closed  bool
}

func newSQLFile(ctx context.Context, sb *SQLBackend, r *row, path data.Path, mode data.AccessMode) *sqlFile {
	f := &sqlFile{
		ctx:  context.WithoutCancel(ctx),
		sb:   sb,
		id:   r.id,
		path: path,
		mode: mode,
	}
	if mode.HasAppend() {
		f.base = r.size
	}
	return f
}

func (f *sqlFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.mode.CanRead() {
		return 0, data.NewError(data.ErrPermissionDenied, "read", f.path.String(), nil)
	}

	for len(f.buf) == 0 {
		if err := f.fetch(); err != nil {
			return 0, err
		}
	}

	n := copy(p, f.buf)
	f.buf = f.buf[n:]
	return n, nil
}

// fetch loads the next stored chunk into the buffer.
func (f *sqlFile) fetch() error {
	f.sb.mu.RLock()
	defer f.sb.mu.RUnlock()

	query, args, err := f.sb.builder.Select("seq", "content").From(chunksTable).
		Where(sq.And{sq.Eq{"node_id": f.id}, sq.GtOrEq{"seq": f.next}}).
		OrderBy("seq").
		Limit(1).
		ToSql()
	if err != nil {
		return err
	}

	var seq int64
	var content []byte
	err = f.sb.db.QueryRowContext(f.ctx, query, args...).Scan(&seq, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return io.EOF
	}
	if err != nil {
		return data.NewError(data.KindOf(err), "read", f.path.String(), err)
	}

	f.next = seq + 1
	f.buf = content
	return nil
}

func (f *sqlFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.mode.IsWriting() {
		return 0, data.NewError(data.ErrPermissionDenied, "write", f.path.String(), nil)
	}

	if missing := data.SniffLength - len(f.head); missing > 0 && !f.mode.HasAppend() {
		f.head = append(f.head, p[:min(missing, len(p))]...)
	}

	f.buf = append(f.buf, p...)
	for len(f.buf) >= f.sb.chunkSize {
		if err := f.flush(f.buf[:f.sb.chunkSize]); err != nil {
			return 0, err
		}
		f.buf = f.buf[f.sb.chunkSize:]
	}

	f.written += int64(len(p))
	return len(p), nil
}

// flush stores one chunk after the last existing one.
func (f *sqlFile) flush(chunk []byte) error {
	return f.sb.guard.Do(f.ctx, func(ctx context.Context) error {
		f.sb.mu.Lock()
		defer f.sb.mu.Unlock()

		if f.next == 0 {
			next, err := f.nextSeqUnsafe(ctx)
			if err != nil {
				return err
			}
			f.next = next
		}

		query, args, err := f.sb.builder.Insert(chunksTable).
			Columns("node_id", "seq", "content").
			Values(f.id, f.next, append([]byte(nil), chunk...)).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := f.sb.db.ExecContext(ctx, query, args...); err != nil {
			return data.NewError(data.KindOf(err), "write", f.path.String(), err)
		}

		f.next++
		return nil
	})
}

func (f *sqlFile) nextSeqUnsafe(ctx context.Context) (int64, error) {
	query, args, err := f.sb.builder.Select("COALESCE(MAX(seq), -1) + 1").From(chunksTable).
		Where(sq.Eq{"node_id": f.id}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var next int64
	if err := f.sb.db.QueryRowContext(ctx, query, args...).Scan(&next); err != nil {
		return 0, data.NewError(data.KindOf(err), "write", f.path.String(), err)
	}
	return next, nil
}

func (f *sqlFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if !f.mode.IsWriting() {
		return nil
	}

	if len(f.buf) > 0 {
		if err := f.flush(f.buf); err != nil {
			return err
		}
		f.buf = nil
	}

	return f.sb.guard.Do(f.ctx, func(ctx context.Context) error {
		f.sb.mu.Lock()
		defer f.sb.mu.Unlock()

		now := time.Now().UnixNano()
		columns := map[string]any{
			"size":        f.base + f.written,
			"modify_time": now,
			"change_time": now,
		}
		if !f.mode.HasAppend() {
			columns["content_type"] = string(data.DetectContentType(f.path.Name(), f.head))
		}

		if err := f.sb.updateUnsafe(ctx, f.id, columns); err != nil {
			return data.NewError(data.KindOf(err), "close", f.path.String(), err)
		}
		return nil
	})
}
