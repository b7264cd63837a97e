package tree

import (
	"fmt"
	"strings"

	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/log"
)

// Unbounded disables the depth limit of a walk.
const Unbounded = -1

// DefaultChunkSize is the buffer size used to stream file content.
const DefaultChunkSize = 64 * 1024

// SearchOrder selects how the Walker traverses directories.
type SearchOrder int

const (
	// BreadthFirst visits all entries of a directory before descending.
	BreadthFirst SearchOrder = iota
	// DepthFirst yields a directory and then its whole subtree.
	DepthFirst
	// PostOrder is depth-first with directories yielded after their contents.
	PostOrder
)

func (o SearchOrder) String() string {
	switch o {
	case DepthFirst:
		return "depth_first"
	case PostOrder:
		return "post_order"
	default:
		return "breadth_first"
	}
}

func ParseSearchOrder(s string) (SearchOrder, error) {
	switch strings.ToLower(s) {
	case "", "breadth", "breadth_first":
		return BreadthFirst, nil
	case "depth", "depth_first":
		return DepthFirst, nil
	case "post", "post_order":
		return PostOrder, nil
	default:
		return BreadthFirst, fmt.Errorf("invalid search order '%s'", s)
	}
}

// OverwritePolicy decides what copy and move do with existing destination files.
type OverwritePolicy int

const (
	// OverwriteAlways replaces existing files.
	OverwriteAlways OverwritePolicy = iota
	// OverwriteNever keeps existing files and records ErrDestinationExists.
	OverwriteNever
	// OverwriteNewer replaces a file only when the source was modified later.
	// Without modification times on both sides it behaves like OverwriteAlways.
	OverwriteNewer
)

func (p OverwritePolicy) String() string {
	switch p {
	case OverwriteNever:
		return "never"
	case OverwriteNewer:
		return "newer"
	default:
		return "always"
	}
}

func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch strings.ToLower(s) {
	case "", "always":
		return OverwriteAlways, nil
	case "never":
		return OverwriteNever, nil
	case "newer":
		return OverwriteNewer, nil
	default:
		return OverwriteAlways, fmt.Errorf("invalid overwrite policy '%s'", s)
	}
}

// ErrorAction is the decision of an ErrorHandler.
type ErrorAction int

const (
	// ActionContinue records the failure and carries on.
	ActionContinue ErrorAction = iota
	// ActionAbort stops the operation cleanly.
	ActionAbort
	// ActionRaise stops the operation and returns the error.
	ActionRaise
)

// ErrorHandler decides how an operation proceeds after a per-resource failure.
type ErrorHandler func(path data.Path, err error) ErrorAction

func RaiseOnError(data.Path, error) ErrorAction  { return ActionRaise }
func IgnoreOnError(data.Path, error) ErrorAction { return ActionContinue }
func AbortOnError(data.Path, error) ErrorAction  { return ActionAbort }

// ParseErrorPolicy maps "raise", "ignore" and "abort" to handlers.
func ParseErrorPolicy(s string) (ErrorHandler, error) {
	switch strings.ToLower(s) {
	case "raise":
		return RaiseOnError, nil
	case "", "ignore":
		return IgnoreOnError, nil
	case "abort":
		return AbortOnError, nil
	default:
		return nil, fmt.Errorf("invalid error policy '%s'", s)
	}
}

// Options configure walks and tree operations. Fields that do not apply
// to an operation are ignored by it.
type Options struct {
	MaxDepth        int
	Order           SearchOrder
	FilterFiles     []string
	FilterDirs      []string
	Exclude         []string
	Namespaces      []string
	CaseInsensitive *bool
	OnError         ErrorHandler

	Overwrite    OverwritePolicy
	Workers      int
	ChunkSize    int
	PreserveTime bool

	Logger *log.Logger
}

type Option func(*Options) error

func newDefaultOptions(onError ErrorHandler) *Options {
	return &Options{
		MaxDepth:  Unbounded,
		Order:     BreadthFirst,
		OnError:   onError,
		Overwrite: OverwriteAlways,
		Workers:   1,
		ChunkSize: DefaultChunkSize,
		Logger:    log.Discard(),
	}
}

func (o *Options) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// WithMaxDepth limits how many levels below the start path are visited.
func WithMaxDepth(depth int) Option {
	return func(o *Options) error {
		if depth < Unbounded {
			return fmt.Errorf("invalid max depth %d", depth)
		}
		o.MaxDepth = depth
		return nil
	}
}

func WithSearchOrder(order SearchOrder) Option {
	return func(o *Options) error {
		o.Order = order
		return nil
	}
}

// WithFilter only yields files matching one of the patterns.
func WithFilter(patterns ...string) Option {
	return func(o *Options) error {
		o.FilterFiles = append(o.FilterFiles, patterns...)
		return nil
	}
}

// WithDirFilter only yields and descends into directories matching one of the patterns.
func WithDirFilter(patterns ...string) Option {
	return func(o *Options) error {
		o.FilterDirs = append(o.FilterDirs, patterns...)
		return nil
	}
}

// WithExclude skips files and directories matching one of the patterns.
// Exclusion is checked before the filters.
func WithExclude(patterns ...string) Option {
	return func(o *Options) error {
		o.Exclude = append(o.Exclude, patterns...)
		return nil
	}
}

// WithNamespaces requests additional info namespaces for every step.
func WithNamespaces(namespaces ...string) Option {
	return func(o *Options) error {
		o.Namespaces = append(o.Namespaces, namespaces...)
		return nil
	}
}

// WithCaseInsensitive overrides the case sensitivity reported by the backend.
func WithCaseInsensitive(enabled bool) Option {
	return func(o *Options) error {
		o.CaseInsensitive = &enabled
		return nil
	}
}

func WithOnError(handler ErrorHandler) Option {
	return func(o *Options) error {
		if handler == nil {
			return fmt.Errorf("error handler must not be nil")
		}
		o.OnError = handler
		return nil
	}
}

func WithOverwrite(policy OverwritePolicy) Option {
	return func(o *Options) error {
		o.Overwrite = policy
		return nil
	}
}

// WithWorkers sets the number of concurrent file transfers.
func WithWorkers(workers int) Option {
	return func(o *Options) error {
		if workers < 1 {
			return fmt.Errorf("invalid worker count %d", workers)
		}
		o.Workers = workers
		return nil
	}
}

func WithChunkSize(size int) Option {
	return func(o *Options) error {
		if size <= 0 {
			return fmt.Errorf("invalid chunk size %d", size)
		}
		o.ChunkSize = size
		return nil
	}
}

// WithPreserveTime copies the modification time to the destination.
func WithPreserveTime(enabled bool) Option {
	return func(o *Options) error {
		o.PreserveTime = enabled
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			logger = log.Discard()
		}
		o.Logger = logger
		return nil
	}
}
