package s3

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/backend/backendtest"
	"github.com/mwantia/treefs/data"
)

func TestS3Backend_Keys(t *testing.T) {
	tests := map[string]struct {
		prefix string
		path   string
		object string
		dir    string
	}{
		"Root":         {prefix: "", path: "/", object: "", dir: ""},
		"Nested":       {prefix: "", path: "/a/b.txt", object: "a/b.txt", dir: "a/b.txt/"},
		"PrefixRoot":   {prefix: "/tenant/", path: "/", object: "tenant", dir: "tenant/"},
		"PrefixNested": {prefix: "tenant", path: "/a", object: "tenant/a", dir: "tenant/a/"},
	}

	for name, test := range tests {
		t.Run(name, func(tst *testing.T) {
			sb, err := NewS3Backend("localhost:9000", "bucket", "key", "secret", false, WithPrefix(test.prefix))
			if err != nil {
				tst.Fatalf("NewS3Backend failed: %v", err)
			}

			p := data.MustNormalize(test.path)
			if got := sb.objectKey(p); got != test.object {
				tst.Errorf("objectKey = %q, expected %q", got, test.object)
			}
			if got := sb.dirKey(p); got != test.dir {
				tst.Errorf("dirKey = %q, expected %q", got, test.dir)
			}
		})
	}
}

// TREEFS_S3_ENDPOINT, TREEFS_S3_ACCESS_KEY and TREEFS_S3_SECRET_KEY point
// at a scratch MinIO instance, e.g. started with "minio server /tmp/data".
func TestS3Backend(t *testing.T) {
	endpoint := os.Getenv("TREEFS_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TREEFS_S3_ENDPOINT not set")
	}

	backendtest.Run(t, func(t *testing.T) (backend.Backend, error) {
		sb, err := NewS3Backend(endpoint, "treefs-test",
			os.Getenv("TREEFS_S3_ACCESS_KEY"), os.Getenv("TREEFS_S3_SECRET_KEY"), false,
			WithCreateBucket(true),
			WithPrefix(fmt.Sprintf("run-%d", time.Now().UnixNano())),
		)
		if err != nil {
			return nil, err
		}
		return sb, sb.Open(t.Context())
	})
}
