// Package config provides configuration and profile file parsing and validation.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const appName = "lion"

// Paths are the root directories the launcher works in
type Paths struct {
	ConfigDir string // config.yaml
	DataDir   string // database, profiles, installers, shared settings
	CacheDir  string // shared artifact cache
}

// DefaultPaths returns the XDG locations for the launcher
func DefaultPaths() Paths {
	return Paths{
		ConfigDir: filepath.Join(xdg.ConfigHome, appName),
		DataDir:   filepath.Join(xdg.DataHome, appName),
		CacheDir:  filepath.Join(xdg.CacheHome, appName),
	}
}

// ProfilesDir is the root holding one directory per profile
func (p Paths) ProfilesDir() string {
	return filepath.Join(p.DataDir, "profiles")
}

// InstallersDir caches loader installer jars
func (p Paths) InstallersDir() string {
	return filepath.Join(p.DataDir, "installers")
}

// DatabasePath is the sqlite database file
func (p Paths) DatabasePath() string {
	return filepath.Join(p.DataDir, "lion.db")
}

// SharedSettingsPath is the canonical options.txt shared by sync-enabled profiles
func (p Paths) SharedSettingsPath() string {
	return filepath.Join(p.DataDir, "shared_options.txt")
}

// ParseProfilePath validates the path of a profile definition file to import and
// returns it cleaned and absolute. It returns an error if:
//   - The path is empty
//   - The path contains parent directory traversal (..)
//   - The file does not exist
//   - The path points to a directory instead of a file
//   - The file does not have a .yaml or .yml extension
func ParseProfilePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("profile path cannot be empty")
	}

	if strings.Contains(path, "..") {
		return "", errors.New("profile path contains invalid traversal")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New("profile file does not exist")
		}
		return "", err
	}

	if info.IsDir() {
		return "", errors.New("profile path is a directory, not a file")
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if ext != ".yaml" && ext != ".yml" {
		return "", errors.New("profile file must have .yaml or .yml extension")
	}

	return abs, nil
}
