package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// HardlinkLinker places files using hard links into the cache
type HardlinkLinker struct{}

// NewHardlink creates a new hardlink linker
func NewHardlink() *HardlinkLinker {
	return &HardlinkLinker{}
}

// Place creates a hard link from src to dst, replacing whatever was at dst
func (l *HardlinkLinker) Place(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing existing file: %w", err)
	}

	// The *os.LinkError is returned unwrapped so callers can fall back
	return os.Link(src, dst)
}

// Remove removes the file at dst
func (l *HardlinkLinker) Remove(dst string) error {
	return removeFile(dst)
}

// IsPlaced reports whether dst is the same inode as src
func (l *HardlinkLinker) IsPlaced(src, dst string) (bool, error) {
	dstInfo, err := os.Stat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	return os.SameFile(srcInfo, dstInfo), nil
}

// Method returns the link method
func (l *HardlinkLinker) Method() domain.LinkMethod {
	return domain.LinkHardlink
}
