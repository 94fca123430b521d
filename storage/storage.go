package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client wraps the MinIO client for video, thumbnail and avatar objects.
type Client struct {
	Minio  *minio.Client
	Bucket string
}

// New connects to MinIO with static credentials.
func New(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}
	return &Client{Minio: mc, Bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.Minio.BucketExists(ctx, c.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.Minio.MakeBucket(ctx, c.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// Upload stores an object under key. size may be -1 when unknown.
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := c.Minio.PutObject(ctx, c.Bucket, key, r, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Remove deletes an object. Removing a missing object is not an error.
func (c *Client) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return c.Minio.RemoveObject(ctx, c.Bucket, key, minio.RemoveObjectOptions{})
}

// PresignedStreamURL returns a browser-facing signed URL for an object.
// The presigned host path is rewritten to the /storage prefix that the
// reverse proxy forwards to MinIO.
func (c *Client) PresignedStreamURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	presigned, err := c.Minio.PresignedGetObject(ctx, c.Bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return BrowserStreamURL(presigned.String())
}

// BrowserStreamURL converts a presigned MinIO URL into the path served
// through the reverse proxy, keeping the signature query intact.
func BrowserStreamURL(presigned string) (string, error) {
	u, err := url.Parse(presigned)
	if err != nil || u.Path == "" {
		return "", fmt.Errorf("invalid presigned URL")
	}

	streamPath := "/storage" + u.EscapedPath()
	if u.RawQuery != "" {
		streamPath += "?" + u.RawQuery
	}
	return streamPath, nil
}
