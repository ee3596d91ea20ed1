package s3

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/coldvault/pkg/provider"
)

// stubResponse is a canned HTTP answer.
type stubResponse struct {
	status int
	header map[string]string
	body   string
}

// stubDoer answers every request with one canned response and records the
// last request it saw.
type stubDoer struct {
	resp stubResponse
	last *http.Request
}

func (d *stubDoer) Do(r *http.Request) (*http.Response, error) {
	d.last = r
	h := http.Header{}
	for k, v := range d.resp.header {
		h.Set(k, v)
	}
	h.Set("Content-Length", strconv.Itoa(len(d.resp.body)))
	return &http.Response{
		StatusCode:    d.resp.status,
		Status:        http.StatusText(d.resp.status),
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(d.resp.body)),
		ContentLength: int64(len(d.resp.body)),
		Request:       r,
	}, nil
}

func newStubbedProvider(resp stubResponse) (*Provider, *stubDoer) {
	doer := &stubDoer{resp: resp}
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String("http://s3.test"),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("testing", "testing", ""),
		HTTPClient:   doer,
		Retryer:      aws.NopRetryer{},
	})
	return newWithClient(client, Config{Bucket: "vault"}), doer
}

func s3ErrorXML(code, message string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<Error><Code>` + code + `</Code><Message>` + message + `</Message><RequestId>1</RequestId></Error>`
}

func xmlError(status int, code string) stubResponse {
	return stubResponse{
		status: status,
		header: map[string]string{"Content-Type": "application/xml"},
		body:   s3ErrorXML(code, code),
	}
}

func TestRestoreObject_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		resp    stubResponse
		want    provider.RestoreStatus
		wantErr error
	}{
		{name: "202 starts a restoration", resp: stubResponse{status: http.StatusAccepted}, want: provider.RestoreAccepted},
		{name: "200 means already restored", resp: stubResponse{status: http.StatusOK}, want: provider.RestoreAlreadyRestored},
		{name: "object already in active tier", resp: xmlError(http.StatusForbidden, "ObjectAlreadyInActiveTierError"), want: provider.RestoreAlreadyRestored},
		{name: "restore in progress", resp: xmlError(http.StatusConflict, "RestoreAlreadyInProgress"), wantErr: provider.ErrRestoreInProgress},
		{name: "access denied", resp: xmlError(http.StatusForbidden, "AccessDenied"), wantErr: provider.ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, doer := newStubbedProvider(tt.resp)

			got, err := p.RestoreObject(context.Background(), "alice/a.txt", provider.RestoreOptions{Tier: "Bulk", Days: 10})

			require.NotNil(t, doer.last)
			assert.Equal(t, http.MethodPost, doer.last.Method)
			assert.Contains(t, doer.last.URL.RawQuery, "restore")
			assert.Equal(t, "/vault/alice/a.txt", doer.last.URL.Path)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetObject_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		resp    stubResponse
		wantErr error
	}{
		{name: "cold object", resp: xmlError(http.StatusForbidden, "InvalidObjectState"), wantErr: provider.ErrNotRestorable},
		{name: "missing key", resp: xmlError(http.StatusNotFound, "NoSuchKey"), wantErr: provider.ErrNotFound},
		{name: "throttled", resp: xmlError(http.StatusServiceUnavailable, "SlowDown"), wantErr: provider.ErrThrottled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newStubbedProvider(tt.resp)

			body, _, err := p.GetObject(context.Background(), "alice/a.txt")
			require.Error(t, err)
			assert.Nil(t, body)
			assert.ErrorIs(t, err, tt.wantErr)

			var provErr *provider.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, "GetObject", provErr.Op)
			assert.Equal(t, "alice/a.txt", provErr.Key)
		})
	}
}

func TestGetObject_StreamsBody(t *testing.T) {
	p, _ := newStubbedProvider(stubResponse{
		status: http.StatusOK,
		header: map[string]string{"Content-Type": "text/plain"},
		body:   "restored content",
	})

	body, size, err := p.GetObject(context.Background(), "alice/a.txt")
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	assert.Equal(t, int64(len("restored content")), size)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "restored content", string(data))
}

func TestHead_ReadsTierAndRestoreHeader(t *testing.T) {
	p, doer := newStubbedProvider(stubResponse{
		status: http.StatusOK,
		header: map[string]string{
			"x-amz-storage-class": "DEEP_ARCHIVE",
			"x-amz-restore":       `ongoing-request="true"`,
			"ETag":                `"abc123"`,
		},
	})

	meta, err := p.Head(context.Background(), "alice/a.txt")
	require.NoError(t, err)
	assert.Equal(t, http.MethodHead, doer.last.Method)
	assert.Equal(t, provider.StorageClassDeepArchive, meta.StorageClass)
	assert.Equal(t, `ongoing-request="true"`, meta.Restore)
	assert.Equal(t, "abc123", meta.ETag)
}

func TestHead_NotFound(t *testing.T) {
	p, _ := newStubbedProvider(stubResponse{status: http.StatusNotFound})

	_, err := p.Head(context.Background(), "alice/missing.txt")
	require.Error(t, err)
	assert.True(t, provider.IsNotFound(err))
}
