package s3

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// metaModified is the user metadata key holding a modification time set
// through SetInfo.
const metaModified = "Mtime"

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// stat resolves path to a file object, a directory marker or an implicit
// directory prefix.
func (sb *S3Backend) stat(ctx context.Context, op string, p data.Path) (minio.ObjectInfo, bool, error) {
	if p.IsRoot() {
		return minio.ObjectInfo{Key: sb.dirKey(p)}, true, nil
	}

	object, err := sb.client.StatObject(ctx, sb.bucketName, sb.objectKey(p), minio.StatObjectOptions{})
	if err == nil {
		return object, false, nil
	}
	if !isNotFound(err) {
		return minio.ObjectInfo{}, false, s3Error(op, p.String(), err)
	}

	marker, err := sb.client.StatObject(ctx, sb.bucketName, sb.dirKey(p), minio.StatObjectOptions{})
	if err == nil {
		return marker, true, nil
	}
	if !isNotFound(err) {
		return minio.ObjectInfo{}, false, s3Error(op, p.String(), err)
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for object := range sb.client.ListObjects(listCtx, sb.bucketName, minio.ListObjectsOptions{
		Prefix:  sb.dirKey(p),
		MaxKeys: 1,
	}) {
		if object.Err != nil {
			return minio.ObjectInfo{}, false, s3Error(op, p.String(), object.Err)
		}
		return minio.ObjectInfo{Key: sb.dirKey(p)}, true, nil
	}

	return minio.ObjectInfo{}, false, data.NewError(data.ErrResourceNotFound, op, p.String(), nil)
}

func (sb *S3Backend) info(p data.Path, object minio.ObjectInfo, isDir bool, namespaces ...string) data.Info {
	raw := data.NewRawInfo(p.Name(), isDir)
	for _, namespace := range namespaces {
		if namespace != data.NamespaceDetails {
			continue
		}

		resourceType := data.ResourceTypeFile
		if isDir {
			resourceType = data.ResourceTypeDirectory
		}
		raw.Set(namespace, data.FieldType, resourceType)

		if !isDir {
			raw.Set(namespace, data.FieldSize, object.Size)
			if object.ContentType != "" {
				raw.Set(namespace, data.FieldContentType, data.ContentType(object.ContentType))
			} else if contentType, ok := data.ContentTypeByName(p.Name()); ok {
				raw.Set(namespace, data.FieldContentType, contentType)
			}
		}
		if modified := modifiedTime(object); !modified.IsZero() {
			raw.Set(namespace, data.FieldModified, modified)
		}
	}
	return raw.Info()
}

// modifiedTime prefers a time stored by SetInfo over the upload time.
func modifiedTime(object minio.ObjectInfo) time.Time {
	for key, value := range object.UserMetadata {
		if strings.EqualFold(key, metaModified) {
			if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
				return t
			}
		}
	}
	if value := object.Metadata.Get("X-Amz-Meta-" + metaModified); value != "" {
		if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
			return t
		}
	}
	return object.LastModified
}

func (sb *S3Backend) GetInfo(ctx context.Context, p data.Path, namespaces ...string) (data.Info, error) {
	object, isDir, err := sb.stat(ctx, "get_info", p)
	if err != nil {
		return data.Info{}, err
	}
	return sb.info(p, object, isDir, namespaces...), nil
}

func (sb *S3Backend) ListDir(ctx context.Context, p data.Path) ([]string, error) {
	it, err := sb.scan(ctx, "list_dir", p)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var names []string
	for it.Next() {
		names = append(names, it.Entry().Name)
	}
	return names, it.Err()
}

// ScanDir streams a delimited listing of the directory prefix.
func (sb *S3Backend) ScanDir(ctx context.Context, p data.Path, namespaces ...string) (backend.EntryIterator, error) {
	return sb.scan(ctx, "scan_dir", p, namespaces...)
}

func (sb *S3Backend) scan(ctx context.Context, op string, p data.Path, namespaces ...string) (backend.EntryIterator, error) {
	_, isDir, err := sb.stat(ctx, op, p)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, data.NewError(data.ErrNotADirectory, op, p.String(), nil)
	}

	prefix := sb.dirKey(p)
	listCtx, cancel := context.WithCancel(ctx)
	objects := sb.client.ListObjects(listCtx, sb.bucketName, minio.ListObjectsOptions{
		Prefix: prefix,
	})

	next := func(ctx context.Context) (backend.Entry, bool, error) {
		for object := range objects {
			if object.Err != nil {
				return backend.Entry{}, false, s3Error(op, p.String(), object.Err)
			}

			name := strings.TrimPrefix(object.Key, prefix)
			isDir := strings.HasSuffix(name, "/")
			name = strings.TrimSuffix(name, "/")
			if name == "" {
				// The directory marker itself.
				continue
			}

			child := p.Child(name)
			return backend.Entry{Name: name, Info: sb.info(child, object, isDir, namespaces...)}, true, nil
		}
		return backend.Entry{}, false, nil
	}

	return backend.NewFuncIterator(ctx, next, func() error {
		cancel()
		return nil
	}), nil
}

func (sb *S3Backend) MakeDir(ctx context.Context, p data.Path, perm data.FileMode, recreate bool) error {
	return sb.guard.Do(ctx, func(ctx context.Context) error {
		_, isDir, err := sb.stat(ctx, "make_dir", p)
		if err == nil {
			if isDir && recreate {
				return nil
			}
			return data.NewError(data.ErrDirectoryExists, "make_dir", p.String(), nil)
		}
		if !errors.Is(err, data.ErrResourceNotFound) {
			return err
		}

		if err := sb.requireParent(ctx, "make_dir", p); err != nil {
			return err
		}

		_, err = sb.client.PutObject(ctx, sb.bucketName, sb.dirKey(p), bytes.NewReader(nil), 0, minio.PutObjectOptions{
			ContentType: string(data.ContentTypeDirectory),
		})
		return s3Error("make_dir", p.String(), err)
	})
}

func (sb *S3Backend) requireParent(ctx context.Context, op string, p data.Path) error {
	_, isDir, err := sb.stat(ctx, op, p.Parent())
	if err != nil {
		return err
	}
	if !isDir {
		return data.NewError(data.ErrDirectoryExpected, op, p.Parent().String(), nil)
	}
	return nil
}

func (sb *S3Backend) OpenBinary(ctx context.Context, p data.Path, mode data.AccessMode) (backend.File, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	if !mode.IsWriting() {
		_, isDir, err := sb.stat(ctx, "open_binary", p)
		if err != nil {
			return nil, err
		}
		if isDir {
			return nil, data.NewError(data.ErrFileExpected, "open_binary", p.String(), nil)
		}

		object, err := sb.client.GetObject(ctx, sb.bucketName, sb.objectKey(p), minio.GetObjectOptions{})
		if err != nil {
			return nil, s3Error("open_binary", p.String(), err)
		}
		return &s3Reader{object: object, path: p}, nil
	}

	if mode.HasAppend() || mode.CanRead() {
		return nil, data.NewError(data.ErrUnsupported, "open_binary", p.String(), nil)
	}

	var writer *s3Writer
	err := sb.guard.Do(ctx, func(ctx context.Context) error {
		_, isDir, err := sb.stat(ctx, "open_binary", p)
		switch {
		case err == nil && isDir:
			return data.NewError(data.ErrFileExpected, "open_binary", p.String(), nil)
		case err == nil && mode.HasExcl():
			return data.NewError(data.ErrFileExists, "open_binary", p.String(), nil)
		case err == nil && !mode.HasTrunc():
			return data.NewError(data.ErrUnsupported, "open_binary", p.String(), nil)
		case err != nil && !errors.Is(err, data.ErrResourceNotFound):
			return err
		case err != nil && !mode.HasCreate():
			return err
		case err != nil:
			if err := sb.requireParent(ctx, "open_binary", p); err != nil {
				return err
			}
		}

		writer = newS3Writer(context.WithoutCancel(ctx), sb, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return writer, nil
}

func (sb *S3Backend) Remove(ctx context.Context, p data.Path) error {
	return sb.guard.Do(ctx, func(ctx context.Context) error {
		_, isDir, err := sb.stat(ctx, "remove", p)
		if err != nil {
			return err
		}
		if isDir {
			return data.NewError(data.ErrFileExpected, "remove", p.String(), nil)
		}

		err = sb.client.RemoveObject(ctx, sb.bucketName, sb.objectKey(p), minio.RemoveObjectOptions{})
		return s3Error("remove", p.String(), err)
	})
}

func (sb *S3Backend) RemoveDir(ctx context.Context, p data.Path) error {
	if p.IsRoot() {
		return data.NewError(data.ErrRemoveRoot, "remove_dir", p.String(), nil)
	}

	return sb.guard.Do(ctx, func(ctx context.Context) error {
		_, isDir, err := sb.stat(ctx, "remove_dir", p)
		if err != nil {
			return err
		}
		if !isDir {
			return data.NewError(data.ErrDirectoryExpected, "remove_dir", p.String(), nil)
		}

		empty, err := sb.isEmpty(ctx, p)
		if err != nil {
			return err
		}
		if !empty {
			return data.NewError(data.ErrDirectoryNotEmpty, "remove_dir", p.String(), nil)
		}

		err = sb.client.RemoveObject(ctx, sb.bucketName, sb.dirKey(p), minio.RemoveObjectOptions{})
		return s3Error("remove_dir", p.String(), err)
	})
}

func (sb *S3Backend) isEmpty(ctx context.Context, p data.Path) (bool, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := sb.dirKey(p)
	for object := range sb.client.ListObjects(listCtx, sb.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return false, s3Error("remove_dir", p.String(), object.Err)
		}
		if object.Key != prefix {
			return false, nil
		}
	}
	return true, nil
}

// SetInfo stores a modification time as user metadata by copying the
// object onto itself. Other fields have no S3 equivalent and are ignored.
func (sb *S3Backend) SetInfo(ctx context.Context, p data.Path, changes data.RawInfo) error {
	return sb.guard.Do(ctx, func(ctx context.Context) error {
		object, isDir, err := sb.stat(ctx, "set_info", p)
		if err != nil {
			return err
		}

		modified, ok := changes[data.NamespaceDetails][data.FieldModified].(time.Time)
		if isDir || !ok {
			return nil
		}

		metadata := map[string]string{
			metaModified: modified.UTC().Format(time.RFC3339Nano),
		}
		if object.ContentType != "" {
			metadata[http.CanonicalHeaderKey("content-type")] = object.ContentType
		}

		_, err = sb.client.CopyObject(ctx, minio.CopyDestOptions{
			Bucket:          sb.bucketName,
			Object:          sb.objectKey(p),
			UserMetadata:    metadata,
			ReplaceMetadata: true,
		}, minio.CopySrcOptions{
			Bucket: sb.bucketName,
			Object: sb.objectKey(p),
		})
		return s3Error("set_info", p.String(), err)
	})
}
