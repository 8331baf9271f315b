// Package cache stores downloaded artifacts shared by all profiles.
//
// Files with a known SHA-1 live under objects/<sha1[:2]>/<sha1> and are never
// rewritten under the same name. Files published without a checksum are kept under
// paths/<relative path>.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

const (
	objectsDir = "objects"
	pathsDir   = "paths"
	tmpDir     = "tmp"
)

// Cache manages the central artifact cache
type Cache struct {
	basePath string
}

// New creates a new cache manager
func New(basePath string) *Cache {
	return &Cache{basePath: basePath}
}

// BasePath returns the cache root
func (c *Cache) BasePath() string {
	return c.basePath
}

// Key returns the cache key of an artifact: its checksum when known, otherwise its path
func Key(a domain.Artifact) string {
	if a.SHA1 != "" {
		return strings.ToLower(a.SHA1)
	}
	return "path:" + a.Path
}

// Path returns where the object for key is stored
func (c *Cache) Path(key string) string {
	if p, ok := strings.CutPrefix(key, "path:"); ok {
		return filepath.Join(c.basePath, pathsDir, filepath.FromSlash(p))
	}
	if len(key) < 2 {
		return filepath.Join(c.basePath, objectsDir, key)
	}
	return filepath.Join(c.basePath, objectsDir, key[:2], key)
}

// Verify checks the cached copy of a against its checksum and size.
// It returns os.ErrNotExist (wrapped) when nothing is cached and *domain.IntegrityError on mismatch.
func (c *Cache) Verify(a domain.Artifact) error {
	p := c.Path(Key(a))
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("stat cached %s: %w", a.Path, err)
	}
	if a.Size > 0 && info.Size() != a.Size {
		return &domain.IntegrityError{
			Path:     a.Path,
			Expected: fmt.Sprintf("%d bytes", a.Size),
			Actual:   fmt.Sprintf("%d bytes", info.Size()),
		}
	}
	if a.SHA1 == "" {
		return nil
	}

	sum, err := HashFile(p)
	if err != nil {
		return err
	}
	if !strings.EqualFold(sum, a.SHA1) {
		return &domain.IntegrityError{Path: a.Path, Expected: strings.ToLower(a.SHA1), Actual: sum}
	}
	return nil
}

// TempFile creates a temporary file inside the cache, on the same filesystem as the objects,
// so it can later be published with a rename.
func (c *Cache) TempFile() (*os.File, error) {
	dir := filepath.Join(c.basePath, tmpDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache temp dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "fetch-*.part")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return f, nil
}

// Publish atomically moves a verified temporary file into place for key
func (c *Cache) Publish(tempPath, key string) (string, error) {
	dest := c.Path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	if err := os.Rename(tempPath, dest); err != nil {
		return "", fmt.Errorf("publishing %s: %w", key, err)
	}
	return dest, nil
}

// Delete removes a cached object; deleting a missing object is not an error
func (c *Cache) Delete(key string) error {
	if err := os.Remove(c.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting cached object: %w", err)
	}
	return nil
}

// Keys lists every cached key
func (c *Cache) Keys() ([]string, error) {
	var keys []string

	objects := filepath.Join(c.basePath, objectsDir)
	err := filepath.WalkDir(objects, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			keys = append(keys, d.Name())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing cached objects: %w", err)
	}

	paths := filepath.Join(c.basePath, pathsDir)
	err = filepath.WalkDir(paths, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(paths, p)
		if err != nil {
			return err
		}
		keys = append(keys, "path:"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing cached paths: %w", err)
	}

	return keys, nil
}

// Prune deletes every cached object whose key is not in keep, plus stale temp files.
// It returns the number of objects and bytes removed.
func (c *Cache) Prune(keep map[string]bool) (int, int64, error) {
	keys, err := c.Keys()
	if err != nil {
		return 0, 0, err
	}

	var removed int
	var freed int64
	for _, key := range keys {
		if keep[key] {
			continue
		}
		p := c.Path(key)
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if err := c.Delete(key); err != nil {
			return removed, freed, err
		}
		removed++
		freed += info.Size()
	}

	if err := os.RemoveAll(filepath.Join(c.basePath, tmpDir)); err != nil {
		return removed, freed, fmt.Errorf("removing temp files: %w", err)
	}

	return removed, freed, nil
}

// Size returns the total size of cached files
func (c *Cache) Size() (int64, error) {
	var totalSize int64
	err := filepath.WalkDir(c.basePath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		totalSize += info.Size()
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("calculating cache size: %w", err)
	}

	return totalSize, nil
}

// HashFile returns the lowercase hex SHA-1 of the file at path
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
