package core

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// nativeExtensions are the shared library types unpacked from legacy natives jars
var nativeExtensions = []string{".so", ".dll", ".dylib", ".jnilib"}

// ExtractNatives unpacks the shared libraries of every native artifact in graph from runtimeDir
// into destDir. Jar metadata and non-library entries are skipped. Graphs without native artifacts
// (game versions from 1.19 on) leave destDir empty.
func ExtractNatives(runtimeDir string, graph *domain.VersionGraph, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating natives directory: %w", err)
	}

	for _, a := range graph.Artifacts {
		if a.Kind != domain.ArtifactNative {
			continue
		}
		jar := filepath.Join(runtimeDir, filepath.FromSlash(a.Path))
		if err := extractNativeJar(jar, destDir); err != nil {
			return fmt.Errorf("extracting %s: %w", a.Path, err)
		}
	}
	return nil
}

func extractNativeJar(archivePath, destDir string) (err error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening jar: %w", err)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing jar: %w", cerr)
		}
	}()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "META-INF/") || !isNativeLibrary(f.Name) {
			continue
		}
		if err := extractNativeFile(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

func isNativeLibrary(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range nativeExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// extractNativeFile writes one library, replacing whatever a previous launch left there
func extractNativeFile(f *zip.File, destDir string) (err error) {
	destPath, err := sanitizePath(destDir, f.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s in jar: %w", f.Name, err)
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing jar entry %s: %w", f.Name, cerr)
		}
	}()

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", destPath, err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing file %s: %w", destPath, cerr)
		}
	}()

	if _, err = io.Copy(outFile, rc); err != nil {
		return fmt.Errorf("writing file %s: %w", destPath, err)
	}
	return nil
}

// sanitizePath keeps an archive entry inside destDir ("zip slip")
func sanitizePath(destDir, filePath string) (string, error) {
	destPath := filepath.Join(destDir, filepath.Clean(filePath))

	if !strings.HasPrefix(filepath.Clean(destPath)+string(os.PathSeparator), filepath.Clean(destDir)+string(os.PathSeparator)) {
		if filepath.Clean(destPath) != filepath.Clean(destDir) {
			return "", fmt.Errorf("path traversal detected: %s", filePath)
		}
	}
	return destPath, nil
}
