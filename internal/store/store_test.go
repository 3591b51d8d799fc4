package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	doc := []byte(`{"userBalances":{"a":1}}`)
	require.NoError(t, m.Save(ctx, doc))
	doc[0] = 'x'

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userBalances":{"a":1}}`, string(got))
	assert.Equal(t, 1, m.Saves())
}

func TestMemoryFailSaves(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("disk full")
	m.FailSaves(boom)
	require.ErrorIs(t, m.Save(ctx, []byte("{}")), boom)

	m.FailSaves(nil)
	require.NoError(t, m.Save(ctx, []byte("{}")))
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "economy.json")
	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.Save(ctx, []byte(`{"v":1}`)))
	require.NoError(t, f.Save(ctx, []byte(`{"v":2}`)))

	got, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileEmptyIsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "economy.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	f, err := OpenFile(path)
	require.NoError(t, err)

	_, err = f.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileSaveHonorsCanceledContext(t *testing.T) {
	f, err := OpenFile(filepath.Join(t.TempDir(), "economy.json"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, f.Save(ctx, []byte("{}")), context.Canceled)
}
