package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "documents/u1/notes.txt", strings.NewReader("hello"), 5, "text/plain"))
	assert.True(t, store.Exists("documents/u1/notes.txt"))

	obj, err := store.Open(ctx, "documents/u1/notes.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
	assert.Equal(t, "hello", string(body))
	assert.EqualValues(t, 5, obj.Size)

	require.NoError(t, store.Delete(ctx, "documents/u1/notes.txt"))
	assert.False(t, store.Exists("documents/u1/notes.txt"))
	require.NoError(t, store.Delete(ctx, "documents/u1/notes.txt"))

	_, err = store.Open(ctx, "documents/u1/notes.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestLocalStoragePutFailureLeavesNoFile(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "broken.bin", failingReader{}, -1, "")
	require.Error(t, err)
	assert.False(t, store.Exists("broken.bin"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}
