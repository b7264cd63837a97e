package backend

import "context"

// EntryIterator is a pull-based sequence of directory entries.
//
//	for it.Next() {
//		entry := it.Entry()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Close must be called when the caller stops early.
type EntryIterator interface {
	Next() bool
	Entry() Entry
	Err() error
	Close() error
}

// SliceIterator serves entries collected up front.
type SliceIterator struct {
	entries []Entry
	index   int
}

func NewSliceIterator(entries []Entry) *SliceIterator {
	return &SliceIterator{entries: entries, index: -1}
}

func (it *SliceIterator) Next() bool {
	if it.index+1 >= len(it.entries) {
		it.index = len(it.entries)
		return false
	}
	it.index++
	return true
}

func (it *SliceIterator) Entry() Entry {
	if it.index < 0 || it.index >= len(it.entries) {
		return Entry{}
	}
	return it.entries[it.index]
}

func (it *SliceIterator) Err() error {
	return nil
}

func (it *SliceIterator) Close() error {
	it.index = len(it.entries)
	return nil
}

// FuncIterator produces entries lazily from next until it returns ok == false.
type FuncIterator struct {
	ctx     context.Context
	next    func(ctx context.Context) (Entry, bool, error)
	closeFn func() error
	current Entry
	err     error
	done    bool
}

// NewFuncIterator wraps a generator function. closeFn may be nil.
func NewFuncIterator(ctx context.Context, next func(ctx context.Context) (Entry, bool, error), closeFn func() error) *FuncIterator {
	return &FuncIterator{ctx: ctx, next: next, closeFn: closeFn}
}

func (it *FuncIterator) Next() bool {
	if it.done {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		it.finish()
		return false
	}

	entry, ok, err := it.next(it.ctx)
	if err != nil {
		it.err = err
		it.finish()
		return false
	}
	if !ok {
		it.finish()
		return false
	}

	it.current = entry
	return true
}

func (it *FuncIterator) Entry() Entry {
	return it.current
}

func (it *FuncIterator) Err() error {
	return it.err
}

func (it *FuncIterator) Close() error {
	return it.finish()
}

func (it *FuncIterator) finish() error {
	if it.done {
		return nil
	}
	it.done = true
	if it.closeFn != nil {
		return it.closeFn()
	}
	return nil
}
