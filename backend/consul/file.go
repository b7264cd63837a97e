package consul

import (
	"bytes"
	"context"
	"io/fs"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/treefs/data"
)

// consulFile buffers the whole value. Writes become visible on Close with
// a single Put.
type consulFile struct {
	ctx  context.Context
	cb   *ConsulBackend
	path data.Path
	mode data.AccessMode
	pair *api.KVPair

	reader *bytes.Reader
	buf    bytes.Buffer
	closed bool
}

func newConsulFile(ctx context.Context, cb *ConsulBackend, path data.Path, mode data.AccessMode, pair *api.KVPair) *consulFile {
	f := &consulFile{
		ctx:  context.WithoutCancel(ctx),
		cb:   cb,
		path: path,
		mode: mode,
		pair: pair,
	}
	if mode.IsWriting() {
		f.buf.Write(pair.Value)
	} else {
		f.reader = bytes.NewReader(pair.Value)
	}
	return f
}

func (f *consulFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if f.reader == nil {
		return 0, data.NewError(data.ErrPermissionDenied, "read", f.path.String(), nil)
	}
	return f.reader.Read(p)
}

func (f *consulFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.mode.IsWriting() {
		return 0, data.NewError(data.ErrPermissionDenied, "write", f.path.String(), nil)
	}
	if f.buf.Len()+len(p) > MaxValueSize {
		return 0, data.NewError(data.ErrUnsupported, "write", f.path.String(), nil)
	}
	return f.buf.Write(p)
}

func (f *consulFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if !f.mode.IsWriting() {
		return nil
	}

	return f.cb.guard.Do(f.ctx, func(ctx context.Context) error {
		pair := &api.KVPair{
			Key:   f.pair.Key,
			Flags: f.pair.Flags,
			Value: f.buf.Bytes(),
		}
		if _, err := f.cb.kv.Put(pair, f.cb.writeOptions(ctx)); err != nil {
			return data.NewError(data.KindOf(err), "close", f.path.String(), err)
		}
		return nil
	})
}
