package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// memberFile is a read-only handle on a member's content.
type memberFile struct {
	path   data.Path
	reader io.Reader
	closer func() error
	closed bool
}

func (f *memberFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	return f.reader.Read(p)
}

func (f *memberFile) Write(p []byte) (int, error) {
	return 0, data.NewError(data.ErrResourceReadOnly, "write", f.path.String(), nil)
}

func (f *memberFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.closer()
}

// openSection serves a member of an uncompressed archive straight from its offset.
func (ab *ArchiveBackend) openSection(p data.Path, m *member) (backend.File, error) {
	file, err := os.Open(ab.path)
	if err != nil {
		return nil, data.FromOSError("open_binary", p.String(), err)
	}

	return &memberFile{
		path:   p,
		reader: io.NewSectionReader(file, m.offset, m.size),
		closer: file.Close,
	}, nil
}

// openStream decompresses the archive up to the member. Compressed streams
// cannot be entered at an offset.
func (ab *ArchiveBackend) openStream(ctx context.Context, p data.Path, m *member, compression Compression) (backend.File, error) {
	file, err := os.Open(ab.path)
	if err != nil {
		return nil, data.FromOSError("open_binary", p.String(), err)
	}

	reader, closeFn, err := decompress(file, compression)
	if err != nil {
		file.Close()
		return nil, data.NewError(data.ErrOperationFailed, "open_binary", p.String(), err)
	}
	closer := func() error {
		errs := data.Errors{}
		errs.Add(closeFn())
		errs.Add(file.Close())
		return errs.Errors()
	}

	tr := tar.NewReader(reader)
	for ordinal := 0; ; ordinal++ {
		if err := ctx.Err(); err != nil {
			closer()
			return nil, data.NewError(data.ErrOperationAborted, "open_binary", p.String(), err)
		}

		_, err := tr.Next()
		if errors.Is(err, io.EOF) {
			closer()
			return nil, data.NewError(data.ErrResourceNotFound, "open_binary", p.String(), fmt.Errorf("member vanished from archive"))
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			closer()
			return nil, data.NewError(data.ErrOperationFailed, "open_binary", p.String(), err)
		}

		if ordinal == m.ordinal {
			return &memberFile{path: p, reader: tr, closer: closer}, nil
		}
	}
}
