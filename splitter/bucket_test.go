package splitter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenInputLocalFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "planet.osm.pbf")
	assert.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0644))

	r, err := OpenInput(context.Background(), path)
	assert.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestOpenInputMissingFile(t *testing.T) {
	_, err := OpenInput(context.Background(), "/no/such/file.osm.pbf")
	assert.Error(t, err)
}

func TestOpenInputFileScheme(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "planet.osm.pbf")
	assert.NoError(t, os.WriteFile(path, []byte{9, 9}, 0644))

	r, err := OpenInput(context.Background(), "file://"+filepath.ToSlash(path))
	assert.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, data)
}

func TestOpenOutputLocalDirectoryCreatesTree(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "tiles")

	sink, err := OpenOutput(context.Background(), root)
	assert.NoError(t, err)
	defer sink.Close()

	w, err := sink.Create(context.Background(), "13/4290/2866.osm.pbf")
	assert.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	got, err := os.ReadFile(filepath.Join(root, "13", "4290", "2866.osm.pbf"))
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestHasBucketScheme(t *testing.T) {
	assert.True(t, hasBucketScheme("s3://bucket/key"))
	assert.True(t, hasBucketScheme("gs://bucket/key"))
	assert.True(t, hasBucketScheme("azblob://bucket/key"))
	assert.True(t, hasBucketScheme("file:///tmp/x"))
	assert.False(t, hasBucketScheme("/tmp/x"))
	assert.False(t, hasBucketScheme("relative/path.osm.pbf"))
}

func TestSplitBucketURLFileScheme(t *testing.T) {
	dir, key, err := splitBucketURL("file:///tmp/foo/bar.osm.pbf")
	assert.NoError(t, err)
	assert.Equal(t, "bar.osm.pbf", key)
	assert.Contains(t, dir, "file://")
	assert.Contains(t, dir, "/tmp/foo")
}

func TestSplitBucketURLRemoteScheme(t *testing.T) {
	dir, key, err := splitBucketURL("s3://my-bucket/planet/latest.osm.pbf")
	assert.NoError(t, err)
	assert.Equal(t, "latest.osm.pbf", key)
	assert.Equal(t, "s3://my-bucket/planet", dir)
}
