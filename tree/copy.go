package tree

import (
	"cmp"
	"context"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"golang.org/x/sync/errgroup"
)

// Copy copies the file or directory tree at srcPath on src to dstPath on dst.
// src and dst may be different backends. Directories are created before any
// file inside them; file content is streamed in chunks.
//
// Per-resource failures are collected in the outcome and, by default, do not
// stop the copy. The returned error is set when the error handler raised or
// ctx was cancelled.
func Copy(ctx context.Context, src backend.Backend, srcPath data.Path, dst backend.Backend, dstPath data.Path, opts ...Option) (*Outcome, error) {
	options := newDefaultOptions(IgnoreOnError)
	if err := options.apply(opts); err != nil {
		return nil, err
	}
	return newTransfer(ctx, "copy", src, srcPath, dst, dstPath, options).run()
}

// Move copies like Copy and removes each source resource once its copy is
// confirmed. Directories are removed deepest first after their contents, so
// a failure leaves the source data intact.
func Move(ctx context.Context, src backend.Backend, srcPath data.Path, dst backend.Backend, dstPath data.Path, opts ...Option) (*Outcome, error) {
	options := newDefaultOptions(IgnoreOnError)
	if err := options.apply(opts); err != nil {
		return nil, err
	}

	t := newTransfer(ctx, "move", src, srcPath, dst, dstPath, options)
	t.move = true
	return t.run()
}

type transfer struct {
	ctx      context.Context
	src      backend.Backend
	srcPath  data.Path
	dst      backend.Backend
	dstPath  data.Path
	options  *Options
	recorder *recorder
	move     bool

	buffers sync.Pool

	mu   sync.Mutex
	dirs []Step
}

func newTransfer(ctx context.Context, op string, src backend.Backend, srcPath data.Path, dst backend.Backend, dstPath data.Path, options *Options) *transfer {
	t := &transfer{
		ctx:      ctx,
		src:      src,
		srcPath:  srcPath,
		dst:      dst,
		dstPath:  dstPath,
		options:  options,
		recorder: newRecorder(op, options),
	}
	t.buffers.New = func() any {
		buf := make([]byte, options.ChunkSize)
		return &buf
	}
	return t
}

func (t *transfer) run() (*Outcome, error) {
	if t.recorder.cancelled(t.ctx.Err()) {
		return t.recorder.finish()
	}

	if t.src == t.dst && t.dstPath.HasPrefix(t.srcPath) {
		err := data.NewError(data.ErrIllegalDestination, t.recorder.outcome.Op, t.dstPath.String(), nil)
		t.recorder.fail(t.srcPath, err)
		t.recorder.raise(err)
		return t.recorder.finish()
	}

	info, err := t.src.GetInfo(t.ctx, t.srcPath, data.NamespaceDetails, data.NamespaceAccess)
	if err != nil {
		return t.failRoot(t.srcPath, err)
	}

	if !info.IsDir() {
		t.transferFile(Step{Path: t.srcPath, Info: info})
		return t.recorder.finish()
	}

	if err := t.dst.MakeDir(t.ctx, t.dstPath, dirMode(info), true); err != nil {
		return t.failRoot(t.dstPath, err)
	}

	t.transferTree()

	if t.move && !t.recorder.stopped.Load() {
		t.removeSourceDirs()
	} else {
		for _, step := range t.dirs {
			t.recorder.succeed(step.Path, false)
		}
	}

	return t.recorder.finish()
}

// failRoot ends the run when the source or destination root is unusable.
func (t *transfer) failRoot(path data.Path, err error) (*Outcome, error) {
	if t.recorder.cancelled(t.ctx.Err()) {
		return t.recorder.finish()
	}
	t.recorder.fail(path, err)
	t.recorder.raise(err)
	return t.recorder.finish()
}

func (t *transfer) transferTree() {
	options := *t.options
	options.Namespaces = []string{data.NamespaceDetails, data.NamespaceAccess}
	if options.Order == PostOrder {
		options.Order = BreadthFirst
	}
	options.OnError = t.recorder.walkHandler(nil)

	walker, err := newWalker(t.ctx, t.src, t.srcPath, &options)
	if err != nil {
		t.recorder.fail(t.srcPath, err)
		return
	}
	defer walker.Close()

	var group errgroup.Group
	group.SetLimit(t.options.Workers)

	for walker.Next() {
		if t.recorder.stopped.Load() || t.recorder.cancelled(t.ctx.Err()) {
			break
		}

		step := walker.Step()
		if step.Info.IsDir() {
			// Created synchronously so no file below it is dispatched earlier.
			t.createDir(step)
			continue
		}

		if t.options.Workers <= 1 {
			t.transferFile(step)
			continue
		}
		group.Go(func() error {
			t.transferFile(step)
			return nil
		})
	}

	_ = group.Wait()

	if err := walker.Err(); data.IsCanceled(err) {
		t.recorder.cancelled(err)
	}
}

func (t *transfer) createDir(step Step) {
	target, err := step.Path.Rebase(t.srcPath, t.dstPath)
	if err != nil {
		t.recorder.fail(step.Path, err)
		return
	}

	if err := t.dst.MakeDir(t.ctx, target, dirMode(step.Info), true); err != nil {
		t.recorder.fail(step.Path, err)
		return
	}
	t.recorder.logger.Debug("%s: created directory %s", t.recorder.outcome.Op, target)

	if t.move {
		t.mu.Lock()
		t.dirs = append(t.dirs, step)
		t.mu.Unlock()
		return
	}
	t.recorder.succeed(step.Path, false)
}

func (t *transfer) transferFile(step Step) {
	if t.recorder.stopped.Load() || t.recorder.cancelled(t.ctx.Err()) {
		return
	}

	target, err := step.Path.Rebase(t.srcPath, t.dstPath)
	if err != nil {
		t.recorder.fail(step.Path, err)
		return
	}

	existing, err := t.dst.GetInfo(t.ctx, target, data.NamespaceDetails)
	switch {
	case err == nil && existing.IsDir():
		t.recorder.fail(step.Path, data.NewError(data.ErrFileExpected, t.recorder.outcome.Op, target.String(), nil))
		return
	case err == nil && t.options.Overwrite == OverwriteNever:
		t.recorder.fail(step.Path, data.NewError(data.ErrDestinationExists, t.recorder.outcome.Op, target.String(), nil))
		return
	case err == nil && t.options.Overwrite == OverwriteNewer && !isNewer(step.Info, existing):
		t.recorder.logger.Debug("%s: skipped %s, destination is up to date", t.recorder.outcome.Op, target)
		t.recorder.succeed(step.Path, true)
		return
	case err != nil && !errors.Is(err, data.ErrResourceNotFound):
		t.recorder.fail(step.Path, err)
		return
	}

	if err := t.stream(step.Path, target); err != nil {
		t.recorder.fail(step.Path, err)
		return
	}

	if t.options.PreserveTime {
		if modified, ok := step.Info.Modified(); ok {
			changes := data.RawInfo{}
			changes.Set(data.NamespaceDetails, data.FieldModified, modified)
			if err := t.dst.SetInfo(t.ctx, target, changes); err != nil {
				t.recorder.fail(step.Path, err)
				return
			}
		}
	}

	if t.move {
		if err := t.src.Remove(t.ctx, step.Path); err != nil && !errors.Is(err, data.ErrResourceNotFound) {
			t.recorder.fail(step.Path, err)
			return
		}
	}

	t.recorder.logger.Debug("%s: transferred %s to %s", t.recorder.outcome.Op, step.Path, target)
	t.recorder.succeed(step.Path, false)
}

// stream copies the content of one file chunk by chunk.
func (t *transfer) stream(srcPath, dstPath data.Path) (err error) {
	reader, err := t.src.OpenBinary(t.ctx, srcPath, data.ModeRead)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := t.dst.OpenBinary(t.ctx, dstPath, data.ModeWrite)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := writer.Close(); err == nil && cerr != nil {
			err = data.NewError(data.KindOf(cerr), "close", dstPath.String(), cerr)
		}
	}()

	buf := t.buffers.Get().(*[]byte)
	defer t.buffers.Put(buf)

	// Wrapping both sides hides ReaderFrom/WriterTo so the chunk buffer is used.
	_, err = io.CopyBuffer(writerOnly{writer}, &contextReader{ctx: t.ctx, r: reader}, *buf)
	if err != nil {
		return data.NewError(data.KindOf(err), "copy", srcPath.String(), err)
	}
	return nil
}

// removeSourceDirs removes moved directories deepest first, then the source root.
func (t *transfer) removeSourceDirs() {
	slices.SortStableFunc(t.dirs, func(a, b Step) int {
		return cmp.Compare(b.Depth, a.Depth)
	})

	for _, step := range t.dirs {
		if t.recorder.cancelled(t.ctx.Err()) {
			return
		}
		removed, err := t.removeDir(step.Path)
		switch {
		case err != nil:
			t.recorder.fail(step.Path, err)
		case removed:
			t.recorder.succeed(step.Path, false)
		default:
			t.recorder.skip(step.Path)
		}
	}

	if !t.srcPath.IsRoot() {
		if _, err := t.removeDir(t.srcPath); err != nil {
			t.recorder.fail(t.srcPath, err)
		}
	}
}

// removeDir leaves directories that still hold content in place and reports
// them as not removed; their content either failed (and is recorded) or was
// filtered out.
func (t *transfer) removeDir(path data.Path) (bool, error) {
	err := t.src.RemoveDir(t.ctx, path)
	switch {
	case err == nil || errors.Is(err, data.ErrResourceNotFound):
		return true, nil
	case errors.Is(err, data.ErrDirectoryNotEmpty):
		return false, nil
	default:
		return false, err
	}
}

func isNewer(src, dst data.Info) bool {
	srcModified, ok := src.Modified()
	if !ok {
		return true
	}
	dstModified, ok := dst.Modified()
	if !ok {
		return true
	}
	return srcModified.After(dstModified)
}

func dirMode(info data.Info) data.FileMode {
	if perm, ok := info.Permissions(); ok {
		return perm.Perm()
	}
	return data.DefaultDirMode
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

type writerOnly struct {
	io.Writer
}
