// Package objectstore archives rendered exports in an S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"helios/api/internal/logging"
)

const defaultRegion = "us-east-1"

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	URLTTL    time.Duration
}

// Object describes an archived export.
type Object struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Archive struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func New(opts Options) (*Archive, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("archive endpoint is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("archive bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}
	ttl := opts.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Archive{
		client: client,
		bucket: opts.Bucket,
		ttl:    ttl,
		now:    time.Now,
		logger: logging.Component("archive"),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	a.logger.Info("archive bucket created", "bucket", a.bucket)
	return nil
}

// Store uploads an export body under the project's prefix and returns a
// presigned download link.
func (a *Archive) Store(ctx context.Context, projectID, filename, contentType string, body []byte) (Object, error) {
	key := ObjectKey(projectID, filename, a.now())
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", key, err)
	}
	link, expires, err := a.URL(ctx, key, filename)
	if err != nil {
		return Object{}, err
	}
	a.logger.Info("export archived", "key", key, "bytes", len(body))
	return Object{Key: key, Size: int64(len(body)), URL: link, ExpiresAt: expires}, nil
}

// URL presigns a GET for key that downloads as filename.
func (a *Archive) URL(ctx context.Context, key, filename string) (string, time.Time, error) {
	params := make(url.Values)
	if filename != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	presigned, err := a.client.PresignedGetObject(ctx, a.bucket, key, a.ttl, params)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return presigned.String(), a.now().Add(a.ttl), nil
}

// ObjectKey lays exports out as exports/<project>/<UTC timestamp>-<filename>.
func ObjectKey(projectID, filename string, at time.Time) string {
	return path.Join("exports", projectID, at.UTC().Format("20060102T150405Z")+"-"+path.Base(filename))
}
