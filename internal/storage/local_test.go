package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_PutGetListDelete(t *testing.T) {
	ctx := context.Background()
	fs, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/media/")
	require.NoError(t, err)

	key := "navistream/videos/abc.mp4"
	require.NoError(t, fs.PutObject(ctx, key, strings.NewReader("hello"), 5, "video/mp4"))

	rc, err := fs.GetObject(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	objects, err := fs.ListObjects(ctx, "navistream/videos/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, key, objects[0].Key)
	assert.Equal(t, int64(5), objects[0].Size)

	assert.Equal(t, "http://localhost:8080/media/"+key, fs.ObjectURL(key))

	require.NoError(t, fs.DeleteObject(ctx, key))
	require.NoError(t, fs.DeleteObject(ctx, key), "deleting twice is fine")
	_, err = fs.GetObject(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	fs, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	err = fs.PutObject(context.Background(), "../outside", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}

func TestLocalStorage_ShortWrite(t *testing.T) {
	fs, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	err = fs.PutObject(context.Background(), "a/b.mp4", strings.NewReader("abc"), 10, "")
	assert.Error(t, err)
	objects, err := fs.ListObjects(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}
