package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// SymlinkLinker places files using symbolic links into the cache
type SymlinkLinker struct{}

// NewSymlink creates a new symlink linker
func NewSymlink() *SymlinkLinker {
	return &SymlinkLinker{}
}

// Place creates a symlink at dst pointing to src
func (l *SymlinkLinker) Place(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	// Remove existing file/link if present
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing existing file: %w", err)
	}

	abs, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("resolving source: %w", err)
	}

	return os.Symlink(abs, dst)
}

// Remove removes the link at dst
func (l *SymlinkLinker) Remove(dst string) error {
	return removeFile(dst)
}

// IsPlaced reports whether dst is a symlink resolving to src
func (l *SymlinkLinker) IsPlaced(src, dst string) (bool, error) {
	info, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return false, nil
	}

	target, err := os.Readlink(dst)
	if err != nil {
		return false, err
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return false, err
	}
	return target == abs, nil
}

// Method returns the link method
func (l *SymlinkLinker) Method() domain.LinkMethod {
	return domain.LinkSymlink
}
