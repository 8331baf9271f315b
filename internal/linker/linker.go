// Package linker places cached artifacts and content files into profile directories.
package linker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// Linker places a cached file at a destination inside a profile
type Linker interface {
	Place(src, dst string) error
	Remove(dst string) error
	IsPlaced(src, dst string) (bool, error)
	Method() domain.LinkMethod
}

// New creates a linker for the given method. Hardlinks and symlinks fall back to
// copying when the filesystem refuses them (different devices, no link support).
func New(method domain.LinkMethod) Linker {
	switch method {
	case domain.LinkCopy:
		return NewCopy()
	case domain.LinkSymlink:
		return &fallbackLinker{primary: NewSymlink(), fallback: NewCopy()}
	default:
		return &fallbackLinker{primary: NewHardlink(), fallback: NewCopy()}
	}
}

type fallbackLinker struct {
	primary  Linker
	fallback Linker
}

func (l *fallbackLinker) Place(src, dst string) error {
	err := l.primary.Place(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	if ferr := l.fallback.Place(src, dst); ferr != nil {
		return fmt.Errorf("%w: %s: %v (fallback: %v)", domain.ErrLinkFailed, dst, err, ferr)
	}
	return nil
}

func (l *fallbackLinker) Remove(dst string) error {
	return removeFile(dst)
}

func (l *fallbackLinker) IsPlaced(src, dst string) (bool, error) {
	ok, err := l.primary.IsPlaced(src, dst)
	if err != nil || ok {
		return ok, err
	}
	return l.fallback.IsPlaced(src, dst)
}

func (l *fallbackLinker) Method() domain.LinkMethod {
	return l.primary.Method()
}

func removeFile(dst string) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

// sameContent reports whether dst is a regular file with the same bytes as src
func sameContent(src, dst string) (bool, error) {
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
	if !dstInfo.Mode().IsRegular() || dstInfo.Size() != srcInfo.Size() {
		return false, nil
	}

	sf, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer sf.Close()
	df, err := os.Open(dst)
	if err != nil {
		return false, err
	}
	defer df.Close()

	sbuf := make([]byte, 64*1024)
	dbuf := make([]byte, 64*1024)
	for {
		sn, serr := io.ReadFull(sf, sbuf)
		dn, derr := io.ReadFull(df, dbuf)
		if sn != dn || !bytes.Equal(sbuf[:sn], dbuf[:dn]) {
			return false, nil
		}
		if serr == io.EOF || serr == io.ErrUnexpectedEOF {
			return derr == io.EOF || derr == io.ErrUnexpectedEOF, nil
		}
		if serr != nil {
			return false, serr
		}
		if derr != nil {
			return false, derr
		}
	}
}
