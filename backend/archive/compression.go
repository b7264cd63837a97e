package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects the stream format wrapped around the tar data.
type Compression int

const (
	// CompressionAuto detects the format from the leading magic bytes.
	CompressionAuto Compression = iota
	CompressionNone
	CompressionGzip
	CompressionZstd
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "auto"
	}
}

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return CompressionAuto, nil
	case "none", "tar":
		return CompressionNone, nil
	case "gzip", "gz", "tgz":
		return CompressionGzip, nil
	case "zstd", "zst", "tzst":
		return CompressionZstd, nil
	default:
		return CompressionAuto, fmt.Errorf("invalid compression '%s'", s)
	}
}

// CompressionFromName guesses the format from a file name.
func CompressionFromName(name string) Compression {
	name = strings.ToLower(name)
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return CompressionGzip
	case strings.HasSuffix(name, ".tar.zst"), strings.HasSuffix(name, ".tzst"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

func detectCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// decompress wraps r according to c. The returned closer releases decoder resources.
func decompress(r io.Reader, c Compression) (io.Reader, func() error, error) {
	switch c {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gzReader, gzReader.Close, nil
	case CompressionZstd:
		zstdReader, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zstdReader, func() error {
			zstdReader.Close()
			return nil
		}, nil
	default:
		return r, func() error { return nil }, nil
	}
}

// compress wraps w according to c. Closing the returned writer flushes the
// compressed stream but leaves w open.
func compress(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
