package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OptionsFile is the game's settings file inside a game directory
const OptionsFile = "options.txt"

// SyncSettings makes every sync-enabled profile and the shared copy hold the most recently
// modified options.txt among them. Last writer wins; edits are never merged.
// It returns the path that was treated as canonical, or "" when no copy exists yet.
func (pm *ProfileManager) SyncSettings(ctx context.Context) (string, error) {
	profiles, err := pm.List()
	if err != nil {
		return "", err
	}

	paths := []string{pm.paths.SharedSettingsPath()}
	for _, p := range profiles {
		if p.SettingsSync {
			paths = append(paths, filepath.Join(p.GameDir, OptionsFile))
		}
	}

	source, modTime := newestFile(paths)
	if source == "" {
		return "", nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", source, err)
	}

	var errs []error
	for _, path := range paths {
		if path == source {
			continue
		}
		if err := ctx.Err(); err != nil {
			return source, err
		}
		if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, data) {
			continue
		}
		if err := writeSettings(path, data, modTime); err != nil {
			errs = append(errs, err)
			continue
		}
		pm.log.Debug().Str("from", source).Str("to", path).Msg("Synced settings")
	}

	if len(errs) > 0 {
		return source, fmt.Errorf("syncing settings: %w", errors.Join(errs...))
	}
	return source, nil
}

// newestFile returns the existing path with the latest modification time
func newestFile(paths []string) (string, time.Time) {
	var newest string
	var newestTime time.Time
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest, newestTime = path, info.ModTime()
		}
	}
	return newest, newestTime
}

// writeSettings replaces path through a temporary file and keeps the canonical modification time,
// so copies never look newer than their source
func writeSettings(path string, data []byte, modTime time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chtimes(tmp, modTime, modTime); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
