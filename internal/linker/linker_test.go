package linker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/linker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	src := filepath.Join(dir, "cache", "objects", "ab", "abcdef")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("content"), 0644))
	return src
}

func TestSymlinkLinker_Place(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	dst := filepath.Join(dir, "runtime", "libraries", "a.jar")

	l := linker.NewSymlink()
	require.NoError(t, l.Place(src, dst))

	// Verify it's a symlink
	info, err := os.Lstat(dst)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0)

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), content)

	placed, err := l.IsPlaced(src, dst)
	require.NoError(t, err)
	assert.True(t, placed)
}

func TestHardlinkLinker_Place(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	dst := filepath.Join(dir, "runtime", "a.jar")

	l := linker.NewHardlink()
	require.NoError(t, l.Place(src, dst))

	srcInfo, err := os.Stat(src)
	require.NoError(t, err)
	dstInfo, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, os.SameFile(srcInfo, dstInfo))

	placed, err := l.IsPlaced(src, dst)
	require.NoError(t, err)
	assert.True(t, placed)

	// Placing again over an existing file succeeds
	require.NoError(t, l.Place(src, dst))
}

func TestCopyLinker_Place(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	dst := filepath.Join(dir, "runtime", "a.jar")

	l := linker.NewCopy()
	require.NoError(t, l.Place(src, dst))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), content)

	srcInfo, _ := os.Stat(src)
	dstInfo, _ := os.Stat(dst)
	assert.False(t, os.SameFile(srcInfo, dstInfo))

	// Editing the copy leaves the cache intact
	require.NoError(t, os.WriteFile(dst, []byte("changed!"), 0644))
	content, err = os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), content)

	placed, err := l.IsPlaced(src, dst)
	require.NoError(t, err)
	assert.False(t, placed, "size differs after edit")
}

func TestCopyLinker_IsPlacedComparesBytes(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	dst := filepath.Join(dir, "runtime", "a.jar")

	l := linker.NewCopy()
	require.NoError(t, l.Place(src, dst))

	placed, err := l.IsPlaced(src, dst)
	require.NoError(t, err)
	assert.True(t, placed)

	// Same length as "content", different bytes
	require.NoError(t, os.WriteFile(dst, []byte("tamperd"), 0644))
	placed, err = l.IsPlaced(src, dst)
	require.NoError(t, err)
	assert.False(t, placed)

	placed, err = l.IsPlaced(src, filepath.Join(dir, "missing.jar"))
	require.NoError(t, err)
	assert.False(t, placed)
}

func TestCopyLinker_ReplacesSymlink(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	dst := filepath.Join(dir, "a.jar")

	require.NoError(t, linker.NewSymlink().Place(src, dst))
	require.NoError(t, linker.NewCopy().Place(src, dst))

	info, err := os.Lstat(dst)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
}

func TestRemove_MissingIsNoop(t *testing.T) {
	for _, method := range []domain.LinkMethod{domain.LinkHardlink, domain.LinkSymlink, domain.LinkCopy} {
		l := linker.New(method)
		assert.NoError(t, l.Remove(filepath.Join(t.TempDir(), "missing")))
	}
}

func TestFallback_MissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	l := linker.New(domain.LinkHardlink)

	err := l.Place(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLinkFailed)
}

func TestNew_ReturnsCorrectLinker(t *testing.T) {
	assert.Equal(t, domain.LinkSymlink, linker.New(domain.LinkSymlink).Method())
	assert.Equal(t, domain.LinkHardlink, linker.New(domain.LinkHardlink).Method())
	assert.Equal(t, domain.LinkCopy, linker.New(domain.LinkCopy).Method())
}
