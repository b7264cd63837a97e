package s3

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/treefs/data"
)

type s3Reader struct {
	object *minio.Object
	path   data.Path
}

func (r *s3Reader) Read(p []byte) (int, error) {
	n, err := r.object.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, s3Error("read", r.path.String(), err)
	}
	return n, err
}

func (r *s3Reader) Write(p []byte) (int, error) {
	return 0, data.NewError(data.ErrPermissionDenied, "write", r.path.String(), nil)
}

func (r *s3Reader) Close() error {
	return r.object.Close()
}

// s3Writer streams written bytes into a single upload. The upload starts
// once enough bytes were written to detect the content type.
type s3Writer struct {
	ctx  context.Context
	sb   *S3Backend
	path data.Path

	head   []byte
	pipe   *io.PipeWriter
	done   chan error
	closed bool
}

func newS3Writer(ctx context.Context, sb *S3Backend, path data.Path) *s3Writer {
	return &s3Writer{ctx: ctx, sb: sb, path: path}
}

func (w *s3Writer) start() {
	reader, writer := io.Pipe()
	w.pipe = writer
	w.done = make(chan error, 1)

	contentType := data.DetectContentType(w.path.Name(), w.head)
	go func() {
		_, err := w.sb.client.PutObject(w.ctx, w.sb.bucketName, w.sb.objectKey(w.path), reader, -1, minio.PutObjectOptions{
			ContentType: string(contentType),
			PartSize:    w.sb.partSize,
		})
		reader.CloseWithError(err)
		w.done <- err
	}()
}

func (w *s3Writer) Read(p []byte) (int, error) {
	return 0, data.NewError(data.ErrPermissionDenied, "read", w.path.String(), nil)
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}

	if w.pipe == nil {
		w.head = append(w.head, p...)
		if len(w.head) < data.SniffLength {
			return len(p), nil
		}

		w.start()
		head := w.head
		w.head = nil
		if _, err := w.pipe.Write(head); err != nil {
			return 0, s3Error("write", w.path.String(), err)
		}
		return len(p), nil
	}

	n, err := w.pipe.Write(p)
	if err != nil {
		return n, s3Error("write", w.path.String(), err)
	}
	return n, nil
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.pipe == nil {
		w.start()
		if len(w.head) > 0 {
			if _, err := w.pipe.Write(w.head); err != nil {
				return s3Error("close", w.path.String(), err)
			}
		}
	}

	w.pipe.Close()
	return s3Error("close", w.path.String(), <-w.done)
}
