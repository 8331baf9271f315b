package cache_test

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/storage/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(data []byte) string {
	h := sha1.Sum(data)
	return hex.EncodeToString(h[:])
}

// store publishes content through a temp file, the same way the pipeline does
func store(t *testing.T, c *cache.Cache, a domain.Artifact, content []byte) string {
	t.Helper()
	f, err := c.TempFile()
	require.NoError(t, err)
	_, err = f.Write(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p, err := c.Publish(f.Name(), cache.Key(a))
	require.NoError(t, err)
	return p
}

func TestCache_Path(t *testing.T) {
	dir := t.TempDir()
	c := cache.New(dir)

	assert.Equal(t, filepath.Join(dir, "objects", "ab", "abcdef"), c.Path("abcdef"))
	assert.Equal(t, filepath.Join(dir, "paths", "libraries", "a", "b.jar"), c.Path("path:libraries/a/b.jar"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "abcdef", cache.Key(domain.Artifact{SHA1: "ABCDEF", Path: "x"}))
	assert.Equal(t, "path:libraries/x.jar", cache.Key(domain.Artifact{Path: "libraries/x.jar"}))
}

func TestCache_PublishAndVerify(t *testing.T) {
	c := cache.New(t.TempDir())
	content := []byte("library bytes")
	a := domain.Artifact{Path: "libraries/lib.jar", SHA1: sum(content), Size: int64(len(content))}

	assert.ErrorIs(t, c.Verify(a), os.ErrNotExist)
	p := store(t, c, a, content)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.NoError(t, c.Verify(a))
}

func TestCache_Verify_DetectsCorruption(t *testing.T) {
	c := cache.New(t.TempDir())
	content := []byte("original")
	a := domain.Artifact{Path: "libraries/lib.jar", SHA1: sum(content)}
	p := store(t, c, a, content)

	require.NoError(t, os.WriteFile(p, []byte("tampered"), 0644))

	err := c.Verify(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIntegrity))

	var ie *domain.IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, a.SHA1, ie.Expected)
}

func TestCache_Verify_SizeMismatch(t *testing.T) {
	c := cache.New(t.TempDir())
	a := domain.Artifact{Path: "libraries/unchecked.jar", Size: 100}
	store(t, c, a, []byte("short"))

	err := c.Verify(a)
	assert.True(t, errors.Is(err, domain.ErrIntegrity))
}

func TestCache_Verify_Missing(t *testing.T) {
	c := cache.New(t.TempDir())
	err := c.Verify(domain.Artifact{Path: "x", SHA1: "deadbeef"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCache_DeleteAndPrune(t *testing.T) {
	c := cache.New(t.TempDir())

	keep := domain.Artifact{Path: "a", SHA1: sum([]byte("keep"))}
	drop := domain.Artifact{Path: "b", SHA1: sum([]byte("drop"))}
	unchecked := domain.Artifact{Path: "libraries/c.jar"}
	store(t, c, keep, []byte("keep"))
	store(t, c, drop, []byte("drop"))
	store(t, c, unchecked, []byte("unchecked"))

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{cache.Key(keep), cache.Key(drop), cache.Key(unchecked)}, keys)

	removed, freed, err := c.Prune(map[string]bool{cache.Key(keep): true})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, int64(len("drop")+len("unchecked")), freed)
	keys, err = c.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{cache.Key(keep)}, keys)

	require.NoError(t, c.Delete(cache.Key(keep)))
	require.NoError(t, c.Delete(cache.Key(keep)), "deleting twice is fine")
}

func TestCache_Size(t *testing.T) {
	c := cache.New(t.TempDir())

	size, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	store(t, c, domain.Artifact{Path: "a", SHA1: sum([]byte("12345"))}, []byte("12345"))
	size, err = c.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestHashFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0644))

	got, err := cache.HashFile(p)
	require.NoError(t, err)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", got)
}
