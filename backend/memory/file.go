package memory

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"

	"github.com/mwantia/treefs/data"
)

// memoryFile is a positioned handle on a node. Reads and writes go through
// the backend locks so concurrent handles observe whole chunks.
type memoryFile struct {
	mb     *MemoryBackend
	n      *node
	mode   data.AccessMode
	offset int64
	closed bool
}

func newMemoryFile(mb *MemoryBackend, n *node, mode data.AccessMode, offset int64) *memoryFile {
	return &memoryFile{
		mb:     mb,
		n:      n,
		mode:   mode,
		offset: offset,
	}
}

func (f *memoryFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.mode.CanRead() {
		return 0, data.NewError(data.ErrPermissionDenied, "read", f.n.name, nil)
	}

	f.mb.mu.RLock()
	defer f.mb.mu.RUnlock()

	if f.offset >= int64(len(f.n.content)) {
		return 0, io.EOF
	}

	n := copy(p, f.n.content[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *memoryFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.mode.IsWriting() {
		return 0, data.NewError(data.ErrPermissionDenied, "write", f.n.name, nil)
	}

	err := f.mb.guard.Do(context.Background(), func(ctx context.Context) error {
		f.mb.mu.Lock()
		defer f.mb.mu.Unlock()

		if f.mode.HasAppend() {
			f.offset = int64(len(f.n.content))
		}

		end := f.offset + int64(len(p))
		if size := int64(len(f.n.content)); end > size {
			f.n.content = append(f.n.content, make([]byte, end-size)...)
		}
		copy(f.n.content[f.offset:end], p)

		f.offset = end
		f.n.modified = time.Now()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *memoryFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}

	f.mb.mu.RLock()
	size := int64(len(f.n.content))
	f.mb.mu.RUnlock()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = f.offset + offset
	case io.SeekEnd:
		target = size + offset
	default:
		return 0, errors.New("memory: invalid whence")
	}
	if target < 0 {
		return 0, errors.New("memory: negative position")
	}

	f.offset = target
	return target, nil
}

func (f *memoryFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if !f.mode.IsWriting() {
		return nil
	}

	f.mb.mu.Lock()
	defer f.mb.mu.Unlock()

	f.n.contentType = data.DetectContentType(f.n.name, f.n.content)
	return nil
}
