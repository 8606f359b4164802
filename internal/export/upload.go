package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader pushes finished export artifacts to S3-compatible object
// storage so a field archive can be handed over without cables.
type Uploader struct {
	client *minio.Client
	bucket string
}

// NewUploader connects to the object store endpoint.
func NewUploader(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Uploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}
	return &Uploader{client: client, bucket: bucket}, nil
}

// ObjectName returns the timestamped storage key for an artifact.
func ObjectName(filename string, now time.Time) string {
	return now.UTC().Format("20060102-150405") + "_" + filename
}

// Upload stores the artifact and returns its object name.
func (u *Uploader) Upload(ctx context.Context, res *Result) (string, error) {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return "", fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("create bucket: %w", err)
		}
	}

	name := ObjectName(res.Filename, time.Now())
	_, err = u.client.PutObject(ctx, u.bucket, name,
		bytes.NewReader(res.Data), int64(len(res.Data)),
		minio.PutObjectOptions{ContentType: res.MimeType})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", name, err)
	}
	return name, nil
}
