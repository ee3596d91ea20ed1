package minio

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/coldvault/pkg/batch"
	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/lifecycle"
	"github.com/3leaps/coldvault/pkg/listing"
	"github.com/3leaps/coldvault/pkg/provider"
)

const invalidObjectStateXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>InvalidObjectState</Code><Message>The operation is not valid for the object's storage class</Message><Key>alice/cold.txt</Key><RequestId>1</RequestId></Error>`

// newTieredServer serves bucket "vault" with one cold object that answers HEAD
// but refuses GET, and one readable object.
func newTieredServer(t *testing.T) *Provider {
	t.Helper()
	modified := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Last-Modified", modified)
		h.Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)

		switch r.URL.Path {
		case "/vault/alice/cold.txt":
			if r.Method == http.MethodHead {
				h.Set("Content-Length", "4")
				h.Set("x-amz-storage-class", "DEEP_ARCHIVE")
				w.WriteHeader(http.StatusOK)
				return
			}
			h.Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, invalidObjectStateXML)
		case "/vault/alice/warm.txt":
			body := "warm"
			h.Set("Content-Length", strconv.Itoa(len(body)))
			h.Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			if r.Method != http.MethodHead {
				_, _ = io.WriteString(w, body)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	p, err := New(Config{
		Bucket:          "vault",
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	require.NoError(t, err)
	return p
}

func TestGetObject_ColdObjectIsNotRestorable(t *testing.T) {
	p := newTieredServer(t)

	body, size, err := p.GetObject(context.Background(), "alice/cold.txt")
	require.Error(t, err)
	assert.Nil(t, body)
	assert.Zero(t, size)
	assert.ErrorIs(t, err, provider.ErrNotRestorable)
}

func TestGetObject_StreamsReadableObject(t *testing.T) {
	p := newTieredServer(t)

	body, size, err := p.GetObject(context.Background(), "alice/warm.txt")
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	assert.Equal(t, int64(4), size)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "warm", string(data))
}

func TestDownload_ColdObjectIsSkipped(t *testing.T) {
	p := newTieredServer(t)

	pair, err := keys.ArchivePrefix("alice", keys.Root)
	require.NoError(t, err)
	set := &listing.ObjectSet{
		Pair: pair,
		Pages: []listing.Page{{Number: 1, Objects: []provider.ObjectSummary{
			{Key: "alice/cold.txt", Size: 4, StorageClass: provider.StorageClassDeepArchive},
			{Key: "alice/warm.txt", Size: 4, StorageClass: provider.StorageClassDeepArchive},
		}}},
		Count:     2,
		TotalSize: 8,
	}

	var mu sync.Mutex
	errs := map[string]error{}
	eng := lifecycle.New(p, lifecycle.Config{
		UserID: "alice",
		Observer: func(ev lifecycle.ItemEvent) {
			mu.Lock()
			defer mu.Unlock()
			errs[ev.Key] = ev.Err
		},
	}, nil)

	dest := t.TempDir()
	summary, err := eng.Download(context.Background(), set, dest)
	require.NoError(t, err)
	assert.Equal(t, batch.Result{Processed: 2, Succeeded: 1, Skipped: 1}, summary.Result)

	var notYet *lifecycle.NotYetRestorableError
	require.ErrorAs(t, errs["cold.txt"], &notYet)
	assert.NoError(t, errs["warm.txt"])

	_, err = os.Stat(filepath.Join(dest, "cold.txt"))
	assert.True(t, os.IsNotExist(err), "no placeholder left for the cold object")
	data, err := os.ReadFile(filepath.Join(dest, "warm.txt"))
	require.NoError(t, err)
	assert.Equal(t, "warm", string(data))
}
