package tree

import (
	"context"
	"errors"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// RemoveTree removes path and everything below it. Files are removed as
// they are visited, directories only after everything the walk saw below
// them is gone. Resources that are already gone count as removed, so
// calling RemoveTree on a missing path succeeds. The root directory itself
// is emptied but kept.
func RemoveTree(ctx context.Context, b backend.Backend, path data.Path, opts ...Option) (*Outcome, error) {
	options := newDefaultOptions(IgnoreOnError)
	if err := options.apply(opts); err != nil {
		return nil, err
	}

	r := newRecorder("removetree", options)

	info, err := b.GetInfo(ctx, path)
	if errors.Is(err, data.ErrResourceNotFound) {
		return r.finish()
	}
	if err != nil {
		r.fail(path, err)
		return r.finish()
	}
	if !info.IsDir() {
		r.fail(path, data.NewError(data.ErrDirectoryExpected, "removetree", path.String(), nil))
		return r.finish()
	}

	rm := &removal{ctx: ctx, b: b, root: path, recorder: r, tainted: make(map[string]bool)}
	rm.run(options)

	return r.finish()
}

type removal struct {
	ctx      context.Context
	b        backend.Backend
	root     data.Path
	recorder *recorder
	// tainted holds directories with a descendant that was not removed.
	tainted map[string]bool
}

func (rm *removal) run(options *Options) {
	handler := rm.recorder.walkHandler(func(path data.Path) {
		rm.taint(path, false)
	})
	walkOptions := &Options{
		MaxDepth: Unbounded,
		Order:    PostOrder,
		OnError: func(path data.Path, err error) ErrorAction {
			// A directory removed by someone else after its parent was listed
			// is already gone; its step is still yielded and removed as usual.
			if errors.Is(err, data.ErrResourceNotFound) {
				return ActionContinue
			}
			return handler(path, err)
		},
		CaseInsensitive: options.CaseInsensitive,
	}

	walker, err := newWalker(rm.ctx, rm.b, rm.root, walkOptions)
	if err != nil {
		if !errors.Is(err, data.ErrResourceNotFound) {
			rm.recorder.fail(rm.root, err)
		}
		return
	}
	defer walker.Close()

	for walker.Next() {
		if rm.recorder.stopped.Load() || rm.recorder.cancelled(rm.ctx.Err()) {
			return
		}

		step := walker.Step()
		if step.Info.IsDir() {
			rm.removeDir(step.Path)
		} else {
			rm.removeFile(step.Path)
		}
	}

	if err := walker.Err(); data.IsCanceled(err) {
		rm.recorder.cancelled(err)
	}
	if rm.recorder.stopped.Load() || rm.root.IsRoot() || rm.tainted[rm.root.String()] {
		return
	}

	rm.removeDir(rm.root)
}

func (rm *removal) removeFile(path data.Path) {
	err := rm.b.Remove(rm.ctx, path)
	if err != nil && !errors.Is(err, data.ErrResourceNotFound) {
		rm.taint(path, false)
		rm.recorder.fail(path, err)
		return
	}
	rm.recorder.succeed(path, false)
}

func (rm *removal) removeDir(path data.Path) {
	if rm.tainted[path.String()] {
		rm.taint(path, false)
		rm.recorder.fail(path, data.NewError(data.ErrDirectoryNotEmpty, "removetree", path.String(), nil))
		return
	}

	err := rm.b.RemoveDir(rm.ctx, path)
	if err != nil && !errors.Is(err, data.ErrResourceNotFound) {
		rm.taint(path, false)
		rm.recorder.fail(path, err)
		return
	}
	rm.recorder.succeed(path, false)
}

// taint marks the ancestors of path up to the removal root, and path itself
// when self is set.
func (rm *removal) taint(path data.Path, self bool) {
	if self {
		rm.tainted[path.String()] = true
	}
	for p := path; !p.Equal(rm.root) && !p.IsRoot(); {
		p = p.Parent()
		rm.tainted[p.String()] = true
	}
}
