package tree

import (
	"context"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/glob"
)

// Step is one resource produced by a walk.
type Step struct {
	Path data.Path
	Info data.Info
	// Depth is 1 for direct children of the start path.
	Depth int
}

type frame struct {
	path  data.Path
	depth int
	it    backend.EntryIterator
	// step is emitted when the frame is exhausted (post-order only).
	step *Step
}

type pending struct {
	path  data.Path
	depth int
}

// Walker is a pull-based traversal of a directory tree. It never yields the
// start path itself. Directory listing failures are routed through the
// configured ErrorHandler.
//
//	w, err := tree.Walk(ctx, b, root)
//	for w.Next() {
//		step := w.Step()
//	}
//	err = w.Err()
type Walker struct {
	ctx     context.Context
	b       backend.Backend
	root    data.Path
	options *Options

	files   glob.Set
	dirs    glob.Set
	exclude glob.Set

	queue   []pending
	stack   []*frame
	descend *pending
	visited map[string]struct{}

	step    Step
	err     error
	aborted bool
	done    bool
}

// Walk starts a traversal below root. The walk is lazy: backend calls
// happen only while the caller pulls steps.
func Walk(ctx context.Context, b backend.Backend, root data.Path, opts ...Option) (*Walker, error) {
	options := newDefaultOptions(RaiseOnError)
	if err := options.apply(opts); err != nil {
		return nil, err
	}
	return newWalker(ctx, b, root, options)
}

func newWalker(ctx context.Context, b backend.Backend, root data.Path, options *Options) (*Walker, error) {
	info, err := b.GetInfo(ctx, root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, data.NewError(data.ErrDirectoryExpected, "walk", root.String(), nil)
	}

	w := &Walker{
		ctx:     ctx,
		b:       b,
		root:    root,
		options: options,
		visited: map[string]struct{}{root.String(): {}},
	}

	globOpts := patternOptions(b, options)
	if w.files, err = glob.CompileSet(options.FilterFiles, globOpts...); err != nil {
		return nil, err
	}
	if w.dirs, err = glob.CompileSet(options.FilterDirs, globOpts...); err != nil {
		return nil, err
	}
	if w.exclude, err = glob.CompileSet(options.Exclude, globOpts...); err != nil {
		return nil, err
	}

	if options.MaxDepth != 0 {
		if options.Order == BreadthFirst {
			w.queue = append(w.queue, pending{path: root})
		} else {
			w.descend = &pending{path: root}
		}
	}

	return w, nil
}

// Next advances to the next step. It returns false when the walk is
// exhausted, aborted, failed or the context is done.
func (w *Walker) Next() bool {
	for !w.done {
		if err := w.ctx.Err(); err != nil {
			w.err = err
			w.finish()
			return false
		}

		if w.descend != nil {
			target := *w.descend
			w.descend = nil
			if !w.push(target, nil) {
				return false
			}
			continue
		}

		top := w.top()
		if top == nil {
			w.finish()
			return false
		}

		if !top.it.Next() {
			err := top.it.Err()
			top.it.Close()
			w.pop()

			if err != nil && !w.handle(top.path, err) {
				return false
			}
			if top.step != nil {
				w.step = *top.step
				return true
			}
			continue
		}

		entry := top.it.Entry()
		step := Step{
			Path:  top.path.Child(entry.Name),
			Info:  entry.Info,
			Depth: top.depth + 1,
		}

		rel, _ := step.Path.RelativeTo(w.root)
		if w.exclude.MatchPath(rel) {
			continue
		}

		if !step.Info.IsDir() {
			if !w.files.Accepts(rel) {
				continue
			}
			w.step = step
			return true
		}

		if !w.dirs.Accepts(rel) {
			continue
		}

		key := step.Path.String()
		if _, seen := w.visited[key]; seen {
			continue
		}
		w.visited[key] = struct{}{}

		canDescend := w.options.MaxDepth == Unbounded || step.Depth < w.options.MaxDepth
		switch {
		case !canDescend:
		case w.options.Order == BreadthFirst:
			w.queue = append(w.queue, pending{path: step.Path, depth: step.Depth})
		case w.options.Order == DepthFirst:
			w.descend = &pending{path: step.Path, depth: step.Depth}
		case w.options.Order == PostOrder:
			deferred := step
			if !w.push(pending{path: step.Path, depth: step.Depth}, &deferred) {
				return false
			}
			if len(w.stack) > 0 && w.stack[len(w.stack)-1].step == &deferred {
				continue
			}
		}

		w.step = step
		return true
	}
	return false
}

// top returns the frame to read from, opening the next queued directory
// for breadth-first walks.
func (w *Walker) top() *frame {
	if len(w.stack) > 0 {
		return w.stack[len(w.stack)-1]
	}

	for len(w.queue) > 0 && !w.done {
		target := w.queue[0]
		w.queue = w.queue[1:]
		if w.push(target, nil) && len(w.stack) > 0 {
			return w.stack[len(w.stack)-1]
		}
	}
	return nil
}

// push opens the directory and pushes its frame. When scanning fails the
// error handler decides; push returns false only if the walk stopped.
func (w *Walker) push(target pending, step *Step) bool {
	it, err := ScanDir(w.ctx, w.b, target.path, w.options.Namespaces...)
	if err != nil {
		return w.handle(target.path, err)
	}

	w.stack = append(w.stack, &frame{
		path:  target.path,
		depth: target.depth,
		it:    it,
		step:  step,
	})
	return true
}

func (w *Walker) pop() {
	w.stack[len(w.stack)-1] = nil
	w.stack = w.stack[:len(w.stack)-1]
}

// handle routes a listing failure through the error handler.
func (w *Walker) handle(path data.Path, err error) bool {
	if data.IsCanceled(err) {
		w.err = err
		w.finish()
		return false
	}

	switch w.options.OnError(path, err) {
	case ActionContinue:
		return true
	case ActionAbort:
		w.aborted = true
	default:
		w.err = err
	}
	w.finish()
	return false
}

// Step returns the current step. Only valid after Next returned true.
func (w *Walker) Step() Step {
	return w.step
}

// Err returns the error that stopped the walk, if any.
func (w *Walker) Err() error {
	return w.err
}

// Aborted reports whether the error handler aborted the walk.
func (w *Walker) Aborted() bool {
	return w.aborted
}

// Close releases open directory iterators. It is safe to call repeatedly.
func (w *Walker) Close() error {
	w.finish()
	return nil
}

func (w *Walker) finish() {
	if w.done {
		return
	}
	w.done = true
	for len(w.stack) > 0 {
		w.stack[len(w.stack)-1].it.Close()
		w.pop()
	}
	w.queue = nil
	w.descend = nil
}

// Collect drains the walker into a slice.
func (w *Walker) Collect() ([]Step, error) {
	defer w.Close()

	var steps []Step
	for w.Next() {
		steps = append(steps, w.Step())
	}
	return steps, w.Err()
}

// WalkAll is a convenience wrapper collecting every step of a walk.
func WalkAll(ctx context.Context, b backend.Backend, root data.Path, opts ...Option) ([]Step, error) {
	w, err := Walk(ctx, b, root, opts...)
	if err != nil {
		return nil, err
	}
	return w.Collect()
}
