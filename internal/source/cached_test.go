package source

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taiwan-calendar/internal/cache"
	"taiwan-calendar/internal/logger"
)

func newCachedIndex(t *testing.T, dir string, now *time.Time) *CachedLister {
	t.Helper()
	c, err := cache.New(dir, time.Hour, cache.WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return NewCachedLister(NewIndexLister("", nil), c)
}

func TestCachedLister(t *testing.T) {
	setupHTTPMock(t)
	ctx := logger.ContextWithLogger(context.Background(), logger.Discard())
	httpmock.RegisterResponder("GET", DefaultIndexURL, httpmock.NewStringResponder(http.StatusOK, indexResponse))

	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	l := newCachedIndex(t, t.TempDir(), &now)
	assert.Equal(t, "dataset-index", l.Name())

	first, err := l.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	t.Run("Should serve a fresh listing from the cache", func(t *testing.T) {
		now = now.Add(30 * time.Minute)
		second, err := l.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})

	t.Run("Should list again once the listing expires", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		_, err := l.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, httpmock.GetTotalCallCount())

		_, err = l.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, httpmock.GetTotalCallCount())
	})
}

func TestCachedLister_DoesNotCacheErrors(t *testing.T) {
	setupHTTPMock(t)
	ctx := logger.ContextWithLogger(context.Background(), logger.Discard())
	httpmock.RegisterResponder("GET", DefaultIndexURL, httpmock.NewStringResponder(http.StatusBadGateway, ""))

	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	l := newCachedIndex(t, t.TempDir(), &now)

	_, err := l.List(ctx)
	require.Error(t, err)

	httpmock.RegisterResponder("GET", DefaultIndexURL, httpmock.NewStringResponder(http.StatusOK, indexResponse))
	refs, err := l.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, refs)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestCachedLister_WarnsWhenCacheIsUnwritable(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("GET", DefaultIndexURL, httpmock.NewStringResponder(http.StatusOK, indexResponse))

	var buf bytes.Buffer
	ctx := logger.ContextWithLogger(context.Background(), logger.New(&logger.Config{Output: &buf, Level: "warn"}))

	dir := t.TempDir()
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	l := newCachedIndex(t, dir, &now)
	require.NoError(t, os.RemoveAll(dir))

	refs, err := l.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, refs)
	assert.Contains(t, buf.String(), "failed to cache resource listing")
	assert.Contains(t, buf.String(), "dataset-index")

	_, err = l.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}
