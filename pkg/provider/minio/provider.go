// Package minio implements provider.Gateway on top of minio-go for
// S3-compatible stores (MinIO, Ceph RGW, Wasabi).
package minio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/3leaps/coldvault/pkg/provider"
)

// DefaultMaxKeys is the default page size for List operations.
const DefaultMaxKeys = 1000

// Config configures a minio-go backed provider.
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string

	// Endpoint is the store URL, e.g. http://localhost:9000 (required).
	// The scheme selects TLS.
	Endpoint string

	// Region is passed through to request signing.
	Region string

	// AccessKeyID and SecretAccessKey are static credentials (required).
	AccessKeyID     string
	SecretAccessKey string

	// SessionToken accompanies temporary credentials.
	SessionToken string

	// MaxKeys is the default page size for List operations.
	MaxKeys int
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch {
	case c.Bucket == "":
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	case c.Endpoint == "":
		return &ConfigError{Field: "Endpoint", Message: "endpoint is required"}
	case c.AccessKeyID == "" || c.SecretAccessKey == "":
		return &ConfigError{Field: "AccessKeyID/SecretAccessKey", Message: "static credentials are required"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "minio config: " + e.Field + ": " + e.Message
}

// Provider implements provider.Gateway with a minio-go client.
type Provider struct {
	client  *minio.Client
	bucket  string
	maxKeys int
}

var _ provider.Gateway = (*Provider)(nil)

// New creates a provider for the configured bucket.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	host, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderMinio, Bucket: cfg.Bucket, Err: err}
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderMinio, Bucket: cfg.Bucket, Err: err}
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 || maxKeys > DefaultMaxKeys {
		maxKeys = DefaultMaxKeys
	}

	return &Provider{client: client, bucket: cfg.Bucket, maxKeys: maxKeys}, nil
}

// splitEndpoint turns a URL into the host:port and TLS flag minio-go expects.
// A bare host:port is treated as TLS.
func splitEndpoint(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("endpoint %q has no host", endpoint)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

// List returns a page of objects with the given prefix.
//
// minio-go streams listings through a channel; pages are cut from that stream
// and the last key of a full page becomes the continuation token.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 || maxKeys > p.maxKeys {
		maxKeys = p.maxKeys
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := make([]provider.ObjectSummary, 0, maxKeys)
	for info := range p.client.ListObjects(listCtx, p.bucket, minio.ListObjectsOptions{
		Prefix:     opts.Prefix,
		Recursive:  true,
		StartAfter: opts.ContinuationToken,
		MaxKeys:    maxKeys,
	}) {
		if info.Err != nil {
			return nil, p.wrapError("List", "", info.Err)
		}
		objects = append(objects, summaryFromInfo(info))
		if len(objects) == maxKeys {
			break
		}
	}

	result := &provider.ListResult{Objects: objects}
	if len(objects) == maxKeys {
		result.IsTruncated = true
		result.ContinuationToken = objects[len(objects)-1].Key
	}
	return result, nil
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	info, err := p.client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}

	return &provider.ObjectMeta{
		ObjectSummary: summaryFromInfo(info),
		ContentType:   info.ContentType,
		Metadata:      map[string]string(info.UserMetadata),
		Restore:       info.Metadata.Get("X-Amz-Restore"),
	}, nil
}

// PutObject uploads an object. minio-go switches to multipart on its own for
// large bodies.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts provider.PutOptions) error {
	_, err := p.client.PutObject(ctx, p.bucket, key, body, contentLength, minio.PutObjectOptions{
		StorageClass: opts.StorageClass,
		ContentType:  opts.ContentType,
	})
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

// GetObject opens the object body for streaming.
//
// minio-go defers the GET until the first read, and a HEAD succeeds for cold
// objects that cannot be read. The first byte is peeked so that errors such
// as InvalidObjectState surface here, before the caller starts writing.
func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	obj, err := p.client.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	br := bufio.NewReader(obj)
	if _, err := br.Peek(1); err != nil && !errors.Is(err, io.EOF) {
		_ = obj.Close()
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	// After the first read Stat answers from the GET response headers.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	return &objectBody{Reader: br, obj: obj}, info.Size, nil
}

// objectBody reads through the peeked buffer and closes the minio object.
type objectBody struct {
	*bufio.Reader
	obj *minio.Object
}

func (b *objectBody) Close() error { return b.obj.Close() }

// RestoreObject requests a temporary restored copy of a cold object.
//
// minio-go does not expose the response status, so a successful call is
// always reported as RestoreAccepted.
func (p *Provider) RestoreObject(ctx context.Context, key string, opts provider.RestoreOptions) (provider.RestoreStatus, error) {
	req := minio.RestoreRequest{}
	req.SetDays(opts.Days)
	req.SetGlacierJobParameters(minio.GlacierJobParameters{Tier: minio.TierType(opts.Tier)})

	if err := p.client.RestoreObject(ctx, p.bucket, key, "", req); err != nil {
		if minio.ToErrorResponse(err).Code == "ObjectAlreadyInActiveTierError" {
			return provider.RestoreAlreadyRestored, nil
		}
		return 0, p.wrapError("RestoreObject", key, err)
	}
	return provider.RestoreAccepted, nil
}

// DeleteObject deletes an object.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	if err := p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	return nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}

func summaryFromInfo(info minio.ObjectInfo) provider.ObjectSummary {
	return provider.ObjectSummary{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, "\""),
		LastModified: info.LastModified,
		StorageClass: provider.NormalizeStorageClass(info.StorageClass),
	}
}

// wrapError maps minio error responses onto provider sentinels.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderMinio,
		Bucket:   p.bucket,
		Key:      key,
		Err:      err,
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapped
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		wrapped.Err = provider.ErrNotFound
	case "NoSuchBucket":
		wrapped.Err = provider.ErrBucketNotFound
	case "InvalidObjectState":
		wrapped.Err = provider.ErrNotRestorable
	case "RestoreAlreadyInProgress":
		wrapped.Err = provider.ErrRestoreInProgress
	case "AccessDenied":
		wrapped.Err = provider.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		wrapped.Err = provider.ErrInvalidCredentials
	case "SlowDown", "SlowDownRead", "SlowDownWrite":
		wrapped.Err = provider.ErrThrottled
	case "ServiceUnavailable", "InternalError":
		wrapped.Err = provider.ErrProviderUnavailable
	case "":
		// StatObject on a HEAD carries only the status code.
		switch resp.StatusCode {
		case 404:
			wrapped.Err = provider.ErrNotFound
		case 403:
			wrapped.Err = provider.ErrAccessDenied
		case 503:
			wrapped.Err = provider.ErrProviderUnavailable
		}
	}
	return wrapped
}
