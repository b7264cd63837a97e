package tree

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/log"
)

// Failure records one resource that could not be processed.
type Failure struct {
	Path data.Path
	// Kind is one of the data error kinds, e.g. data.ErrDestinationExists.
	Kind error
	Err  error
}

// Outcome is the terminal record of a copy, move or removetree run.
type Outcome struct {
	ID string
	Op string

	Visited   int
	Succeeded int
	// Skipped counts resources left as they were: up-to-date files under
	// OverwriteNewer, which are also included in Succeeded, and source
	// directories a move kept because they still hold content, which are not.
	Skipped  int
	Failures []Failure
	Aborted  bool
}

// OK reports whether every visited resource succeeded.
func (o *Outcome) OK() bool {
	return !o.Aborted && len(o.Failures) == 0
}

// Partial reports whether some resources succeeded and some failed.
func (o *Outcome) Partial() bool {
	return len(o.Failures) > 0 && o.Succeeded > 0
}

// Err joins all failures, or returns nil.
func (o *Outcome) Err() error {
	if len(o.Failures) == 0 {
		return nil
	}

	errs := make([]error, 0, len(o.Failures))
	for _, failure := range o.Failures {
		errs = append(errs, failure.Err)
	}
	return errors.Join(errs...)
}

func (o *Outcome) String() string {
	return fmt.Sprintf("%s %s: visited=%d succeeded=%d skipped=%d failed=%d aborted=%v",
		o.Op, o.ID, o.Visited, o.Succeeded, o.Skipped, len(o.Failures), o.Aborted)
}

// recorder collects results from concurrent workers and applies the error policy.
type recorder struct {
	mu      sync.Mutex
	outcome *Outcome
	handler ErrorHandler
	logger  *log.Logger

	stopped atomic.Bool
	raised  error
}

func newRecorder(op string, options *Options) *recorder {
	return &recorder{
		outcome: &Outcome{
			ID: uuid.Must(uuid.NewV7()).String(),
			Op: op,
		},
		handler: options.OnError,
		logger:  options.Logger.Named(op),
	}
}

func (r *recorder) succeed(path data.Path, skipped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcome.Visited++
	r.outcome.Succeeded++
	if skipped {
		r.outcome.Skipped++
	}
}

// skip records a resource that was left in place without a failure.
func (r *recorder) skip(path data.Path) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcome.Visited++
	r.outcome.Skipped++
	r.logger.Debug("%s: kept %s", r.outcome.Op, path)
}

// fail records err for path and returns true when the operation must stop.
func (r *recorder) fail(path data.Path, err error) bool {
	kind := data.KindOf(err)
	r.logger.Warn("%s: failed for %s - %v", r.outcome.Op, path, err)

	r.mu.Lock()
	r.outcome.Visited++
	r.outcome.Failures = append(r.outcome.Failures, Failure{Path: path, Kind: kind, Err: err})
	r.mu.Unlock()

	// Cancellation stops the run without consulting the handler.
	if kind == data.ErrOperationAborted {
		r.cancelled(err)
		return true
	}

	switch r.handler(path, err) {
	case ActionContinue:
		return r.stopped.Load()
	case ActionAbort:
		r.abort()
	default:
		r.raise(err)
	}
	return true
}

// raise stops the operation and keeps the first raised error.
func (r *recorder) raise(err error) {
	r.mu.Lock()
	if r.raised == nil {
		r.raised = err
	}
	r.mu.Unlock()
	r.stopped.Store(true)
}

func (r *recorder) abort() {
	r.mu.Lock()
	r.outcome.Aborted = true
	r.mu.Unlock()
	r.stopped.Store(true)
}

// walkHandler adapts the recorder to a Walker listing-failure handler.
func (r *recorder) walkHandler(onFailure func(path data.Path)) ErrorHandler {
	return func(path data.Path, err error) ErrorAction {
		if onFailure != nil {
			onFailure(path)
		}
		if r.fail(path, err) {
			// The recorder already captured the error; stop the walk cleanly.
			return ActionAbort
		}
		return ActionContinue
	}
}

// cancelled marks the outcome aborted when ctx is done.
func (r *recorder) cancelled(err error) bool {
	if err == nil {
		return false
	}
	r.abort()
	r.mu.Lock()
	if r.raised == nil {
		r.raised = data.NewError(data.ErrOperationAborted, r.outcome.Op, "", err)
	}
	r.mu.Unlock()
	return true
}

// finish sorts failures by path and returns the outcome and the raised error.
func (r *recorder) finish() (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slices.SortStableFunc(r.outcome.Failures, func(a, b Failure) int {
		return cmp.Compare(a.Path.String(), b.Path.String())
	})

	r.logger.Debug("%s", r.outcome)
	return r.outcome, r.raised
}
