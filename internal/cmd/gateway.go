package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/3leaps/coldvault/internal/config"
	"github.com/3leaps/coldvault/pkg/provider"
	fileprovider "github.com/3leaps/coldvault/pkg/provider/file"
	minioprovider "github.com/3leaps/coldvault/pkg/provider/minio"
	s3provider "github.com/3leaps/coldvault/pkg/provider/s3"
)

// newGateway creates the gateway selected by store.provider.
func newGateway(ctx context.Context, cfg *config.Config) (provider.Gateway, provider.ProviderType, error) {
	var (
		gw  provider.Gateway
		typ provider.ProviderType
		err error
	)
	switch cfg.Store.Provider {
	case config.ProviderS3:
		typ = provider.ProviderS3
		gw, err = s3provider.New(ctx, s3provider.Config{
			Bucket:          cfg.Store.Bucket,
			Region:          cfg.Store.Region,
			Endpoint:        cfg.Store.Endpoint,
			Profile:         cfg.Store.Profile,
			AccessKeyID:     cfg.Store.AccessKeyID,
			SecretAccessKey: cfg.Store.SecretAccessKey,
			SessionToken:    cfg.Store.SessionToken,
			// S3-compatible services (moto, MinIO, etc.) require path-style URLs.
			ForcePathStyle: cfg.Store.ForcePathStyle || cfg.Store.Endpoint != "",
			MaxKeys:        cfg.Store.PageSize,
		})
	case config.ProviderMinio:
		typ = provider.ProviderMinio
		gw, err = minioprovider.New(minioprovider.Config{
			Bucket:          cfg.Store.Bucket,
			Endpoint:        cfg.Store.Endpoint,
			Region:          cfg.Store.Region,
			AccessKeyID:     cfg.Store.AccessKeyID,
			SecretAccessKey: cfg.Store.SecretAccessKey,
			SessionToken:    cfg.Store.SessionToken,
			MaxKeys:         cfg.Store.PageSize,
		})
	case config.ProviderFile:
		typ = provider.ProviderFile
		gw, err = fileprovider.New(fileprovider.Config{
			BaseDir:      cfg.Store.Path,
			RestoreDelay: cfg.Store.RestoreDelay,
		})
	default:
		return nil, "", fmt.Errorf("provider %q is not supported", cfg.Store.Provider)
	}
	if err != nil {
		return nil, typ, err
	}
	if cfg.RequestTimeout > 0 {
		gw = &timeoutGateway{Gateway: gw, timeout: cfg.RequestTimeout}
	}
	return gw, typ, nil
}

// timeoutGateway bounds each metadata and restore call. Object bodies are
// streamed and stay bounded by the command context only.
type timeoutGateway struct {
	provider.Gateway
	timeout time.Duration
}

func (g *timeoutGateway) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.Gateway.List(ctx, opts)
}

func (g *timeoutGateway) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.Gateway.Head(ctx, key)
}

func (g *timeoutGateway) RestoreObject(ctx context.Context, key string, opts provider.RestoreOptions) (provider.RestoreStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.Gateway.RestoreObject(ctx, key, opts)
}

func (g *timeoutGateway) DeleteObject(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.Gateway.DeleteObject(ctx, key)
}
