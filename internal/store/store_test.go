package store

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_SetGet(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	s, err := NewLocalFs(fsys, "docs")
	require.NoError(t, err)

	_, err = s.Get(ctx, "2024")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "2024", []byte(`[]`)))
	got, err := s.Get(ctx, "2024")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	exists, err := afero.Exists(fsys, "docs/2024.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStore_ReplaceLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	s, err := NewLocalFs(fsys, "docs")
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "2024", []byte("first")))
	require.NoError(t, s.Set(ctx, "2024", []byte("second")))

	got, err := s.Get(ctx, "2024")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := afero.ReadDir(fsys, "docs")
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}

func TestLocalStore_SetWithExtension(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	s, err := NewLocalFs(fsys, "origin")
	require.NoError(t, err)

	require.NoError(t, s.SetWithExtension(ctx, "2024", ".csv", []byte("a,b\n")))

	data, err := afero.ReadFile(fsys, "origin/2024.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalStore_List(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalFs(afero.NewMemMapFs(), "docs")
	require.NoError(t, err)

	for _, k := range []string{"2025", "2017", "2024"} {
		require.NoError(t, s.Set(ctx, k, []byte("[]")))
	}

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2017", "2024", "2025"}, keys)
}

func TestLocalStore_KeysCannotEscape(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := NewLocalFs(fsys, "docs")
	require.NoError(t, err)

	assert.Equal(t, "docs/passwd.json", s.keyPath("../../passwd", ".json"))
}

func TestLocalStore_OsFs(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "2024", []byte("[]")))
	got, err := s.Get(ctx, "2024")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json; charset=utf-8", contentType(".json"))
	assert.Equal(t, "text/csv", contentType(".csv"))
	assert.Equal(t, "application/octet-stream", contentType(".bin"))
}
