//go:build cloudintegration

package s3_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/coldvault/pkg/provider"
	"github.com/3leaps/coldvault/pkg/provider/s3"
	"github.com/3leaps/coldvault/test/cloudtest"
)

func newProvider(t *testing.T, ctx context.Context, bucket string) *s3.Provider {
	t.Helper()
	p, err := s3.New(ctx, cloudtest.ProviderConfig(bucket))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProvider_List_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	t.Run("reports storage classes", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		cloudtest.PutObjects(t, ctx, bucket, []string{"alice/a.txt", "alice/b.txt"}, provider.StorageClassDeepArchive)
		cloudtest.PutObjects(t, ctx, bucket, []string{"alice/restored/c.txt"}, "")

		p := newProvider(t, ctx, bucket)
		result, err := p.List(ctx, provider.ListOptions{Prefix: "alice/"})
		require.NoError(t, err)
		require.Len(t, result.Objects, 3)

		classes := map[string]string{}
		for _, obj := range result.Objects {
			classes[obj.Key] = obj.StorageClass
		}
		assert.Equal(t, provider.StorageClassDeepArchive, classes["alice/a.txt"])
		assert.Equal(t, provider.StorageClassStandard, classes["alice/restored/c.txt"])
	})

	t.Run("paginates with continuation token", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		cloudtest.PutObjects(t, ctx, bucket, []string{"f1.txt", "f2.txt", "f3.txt"}, "")

		p := newProvider(t, ctx, bucket)
		first, err := p.List(ctx, provider.ListOptions{MaxKeys: 2})
		require.NoError(t, err)
		assert.Len(t, first.Objects, 2)
		assert.True(t, first.IsTruncated)

		second, err := p.List(ctx, provider.ListOptions{MaxKeys: 2, ContinuationToken: first.ContinuationToken})
		require.NoError(t, err)
		assert.Len(t, second.Objects, 1)
		assert.False(t, second.IsTruncated)
	})

	t.Run("missing bucket", func(t *testing.T) {
		p := newProvider(t, ctx, "nonexistent-bucket-12345")
		_, err := p.List(ctx, provider.ListOptions{})
		assert.ErrorIs(t, err, provider.ErrBucketNotFound)
	})
}

func TestProvider_PutGetDelete_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	p := newProvider(t, ctx, bucket)

	body := "hello vault"
	require.NoError(t, p.PutObject(ctx, "alice/docs/a.txt", strings.NewReader(body), int64(len(body)), provider.PutOptions{}))

	meta, err := p.Head(ctx, "alice/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), meta.Size)

	rc, size, err := p.GetObject(ctx, "alice/docs/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
	assert.Equal(t, int64(len(body)), size)

	require.NoError(t, p.DeleteObject(ctx, "alice/docs/a.txt"))
	_, err = p.Head(ctx, "alice/docs/a.txt")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestProvider_DeepArchive_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	p := newProvider(t, ctx, bucket)

	body := "frozen"
	require.NoError(t, p.PutObject(ctx, "alice/cold.txt", strings.NewReader(body), int64(len(body)),
		provider.PutOptions{StorageClass: provider.StorageClassDeepArchive}))

	meta, err := p.Head(ctx, "alice/cold.txt")
	require.NoError(t, err)
	assert.Equal(t, provider.StorageClassDeepArchive, meta.StorageClass)

	_, _, err = p.GetObject(ctx, "alice/cold.txt")
	assert.ErrorIs(t, err, provider.ErrNotRestorable)

	status, err := p.RestoreObject(ctx, "alice/cold.txt", provider.RestoreOptions{Tier: "Bulk", Days: 10})
	require.NoError(t, err)
	assert.Equal(t, provider.RestoreAccepted, status)
}
