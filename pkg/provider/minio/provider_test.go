package minio

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/coldvault/pkg/provider"
)

func TestConfig_Validate(t *testing.T) {
	valid := Config{Bucket: "vault", Endpoint: "http://localhost:9000", AccessKeyID: "minioadmin", SecretAccessKey: "minioadmin"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing bucket", func(c *Config) { c.Bucket = "" }, "bucket name is required"},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"missing secret", func(c *Config) { c.SecretAccessKey = "" }, "static credentials are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		endpoint   string
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{"http://localhost:9000", "localhost:9000", false, false},
		{"https://s3.wasabisys.com", "s3.wasabisys.com", true, false},
		{"minio.internal:9000", "minio.internal:9000", true, false},
		{"ftp://host", "", false, true},
		{"http://", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, secure, err := splitEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, secure)
		})
	}
}

func TestNew(t *testing.T) {
	p, err := New(Config{Bucket: "vault", Endpoint: "http://localhost:9000", AccessKeyID: "a", SecretAccessKey: "b", MaxKeys: 5000})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxKeys, p.maxKeys)
	assert.NoError(t, p.Close())

	_, err = New(Config{})
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestWrapError(t *testing.T) {
	p := &Provider{bucket: "vault"}

	tests := []struct {
		name     string
		resp     minio.ErrorResponse
		expected error
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}, provider.ErrNotFound},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404}, provider.ErrBucketNotFound},
		{"invalid object state", minio.ErrorResponse{Code: "InvalidObjectState", StatusCode: 403}, provider.ErrNotRestorable},
		{"restore in progress", minio.ErrorResponse{Code: "RestoreAlreadyInProgress", StatusCode: 409}, provider.ErrRestoreInProgress},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}, provider.ErrAccessDenied},
		{"bad signature", minio.ErrorResponse{Code: "SignatureDoesNotMatch", StatusCode: 403}, provider.ErrInvalidCredentials},
		{"slow down", minio.ErrorResponse{Code: "SlowDown", StatusCode: 503}, provider.ErrThrottled},
		{"head 404 without code", minio.ErrorResponse{StatusCode: 404}, provider.ErrNotFound},
		{"head 403 without code", minio.ErrorResponse{StatusCode: 403}, provider.ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.wrapError("Head", "alice/a.txt", tt.resp)

			var provErr *provider.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, provider.ProviderMinio, provErr.Provider)
			assert.Equal(t, "alice/a.txt", provErr.Key)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestWrapError_TransportKeepsCause(t *testing.T) {
	p := &Provider{bucket: "vault"}
	cause := errors.New("connection reset by peer")

	err := p.wrapError("List", "", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, provider.IsTransport(err))
}
