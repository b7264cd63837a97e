// Package s3 provides a backend on top of an S3 compatible bucket.
//
// Directories are zero-byte marker objects whose key ends with a slash.
// Prefixes that only exist implicitly, because objects live below them,
// are reported as directories as well.
package s3

import (
	"context"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// DefaultPartSize is the multipart chunk size used for streamed uploads.
const DefaultPartSize = 16 * 1024 * 1024

type S3Backend struct {
	guard *backend.Guard

	client     *minio.Client
	bucketName string
	prefix     string
	create     bool
	partSize   uint64
}

type S3Option func(*S3Backend)

// WithPrefix roots the backend below prefix inside the bucket.
func WithPrefix(prefix string) S3Option {
	return func(sb *S3Backend) {
		sb.prefix = strings.Trim(prefix, "/")
	}
}

// WithCreateBucket makes Open create a missing bucket.
func WithCreateBucket(create bool) S3Option {
	return func(sb *S3Backend) {
		sb.create = create
	}
}

func WithPartSize(size uint64) S3Option {
	return func(sb *S3Backend) {
		sb.partSize = size
	}
}

func NewS3Backend(endpoint, bucketName, accessKey, secretKey string, useSsl bool, opts ...S3Option) (*S3Backend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSsl,
	})
	if err != nil {
		return nil, err
	}

	sb := &S3Backend{
		guard:      backend.NewGuard(),
		client:     client,
		bucketName: bucketName,
		partSize:   DefaultPartSize,
	}
	for _, opt := range opts {
		opt(sb)
	}
	return sb, nil
}

// Name returns the identifier name defined for this backend.
func (*S3Backend) Name() string {
	return "s3"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *S3Backend) Open(ctx context.Context) error {
	exists, err := sb.client.BucketExists(ctx, sb.bucketName)
	if err != nil {
		return s3Error("open", sb.bucketName, err)
	}

	if !exists {
		if !sb.create {
			return data.NewError(data.ErrResourceNotFound, "open", sb.bucketName, nil)
		}
		if err := sb.client.MakeBucket(ctx, sb.bucketName, minio.MakeBucketOptions{}); err != nil {
			return s3Error("open", sb.bucketName, err)
		}
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *S3Backend) Close(ctx context.Context) error {
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *S3Backend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityScanDir,
			backend.CapabilitySetInfo,
			backend.CapabilityStreaming,
		},
		// Single PUT limit of S3 multipart uploads.
		MaxObjectSize: 5 * 1024 * 1024 * 1024 * 1024,
	}
}

// objectKey maps a path to the key of a file object.
func (sb *S3Backend) objectKey(p data.Path) string {
	if sb.prefix == "" {
		return p.Key()
	}
	return path.Join(sb.prefix, p.Key())
}

// dirKey maps a path to the listing prefix and marker key of a directory.
func (sb *S3Backend) dirKey(p data.Path) string {
	key := sb.objectKey(p)
	if key == "" {
		return ""
	}
	return key + "/"
}

// s3Error maps S3 error codes to resource error kinds.
func s3Error(op, path string, err error) error {
	if err == nil {
		return nil
	}

	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return data.NewError(data.ErrResourceNotFound, op, path, err)
	case "AccessDenied":
		return data.NewError(data.ErrPermissionDenied, op, path, err)
	}
	return data.NewError(data.KindOf(err), op, path, err)
}
