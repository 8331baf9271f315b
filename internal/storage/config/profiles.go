package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/domain"

	"gopkg.in/yaml.v3"
)

const profileFile = "profile.yaml"

// ProfileConfig is the YAML representation of a profile
type ProfileConfig struct {
	ID            string    `yaml:"id"`
	Name          string    `yaml:"name"`
	GameVersion   string    `yaml:"game_version"`
	Loader        string    `yaml:"loader"`
	LoaderVersion string    `yaml:"loader_version,omitempty"`
	MemoryMB      int       `yaml:"memory_mb,omitempty"`
	JavaArgs      []string  `yaml:"java_args,omitempty"`
	IconPath      string    `yaml:"icon_path,omitempty"`
	SettingsSync  bool      `yaml:"settings_sync"`
	CreatedAt     time.Time `yaml:"created_at"`
	LastPlayed    time.Time `yaml:"last_played,omitempty"`
}

// ProfileDir returns the directory owned by a profile
func ProfileDir(profilesDir, id string) string {
	return filepath.Join(profilesDir, id)
}

// GameDir returns a profile's game directory
func GameDir(profilesDir, id string) string {
	return filepath.Join(profilesDir, id, "game")
}

// RuntimeDir returns where a profile's materialized artifacts live
func RuntimeDir(profilesDir, id string) string {
	return filepath.Join(profilesDir, id, "runtime")
}

// LoadProfile reads a profile from disk
func LoadProfile(profilesDir, id string) (*domain.Profile, error) {
	data, err := os.ReadFile(filepath.Join(ProfileDir(profilesDir, id), profileFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	var cfg ProfileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}

	kind, ok := domain.ParseLoaderKind(cfg.Loader)
	if !ok {
		return nil, fmt.Errorf("%w: unknown loader %q in profile %s", domain.ErrInvalidProfile, cfg.Loader, id)
	}

	return &domain.Profile{
		ID:           id,
		Name:         cfg.Name,
		GameVersion:  cfg.GameVersion,
		Loader:       domain.Loader{Kind: kind, Version: cfg.LoaderVersion},
		MemoryMB:     cfg.MemoryMB,
		JavaArgs:     cfg.JavaArgs,
		GameDir:      GameDir(profilesDir, id),
		IconPath:     cfg.IconPath,
		SettingsSync: cfg.SettingsSync,
		CreatedAt:    cfg.CreatedAt,
		LastPlayed:   cfg.LastPlayed,
	}, nil
}

// SaveProfile writes a profile's metadata file, replacing it atomically
func SaveProfile(profilesDir string, profile *domain.Profile) error {
	cfg := ProfileConfig{
		ID:            profile.ID,
		Name:          profile.Name,
		GameVersion:   profile.GameVersion,
		Loader:        profile.Loader.Kind.String(),
		LoaderVersion: profile.Loader.Version,
		MemoryMB:      profile.MemoryMB,
		JavaArgs:      profile.JavaArgs,
		IconPath:      profile.IconPath,
		SettingsSync:  profile.SettingsSync,
		CreatedAt:     profile.CreatedAt,
		LastPlayed:    profile.LastPlayed,
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	dir := ProfileDir(profilesDir, profile.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating profile dir: %w", err)
	}

	profilePath := filepath.Join(dir, profileFile)
	tmpPath := profilePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	if err := os.Rename(tmpPath, profilePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing profile: %w", err)
	}

	return nil
}

// ListProfiles returns the ids of all profiles, sorted
func ListProfiles(profilesDir string) ([]string, error) {
	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading profiles dir: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(profilesDir, entry.Name(), profileFile)); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)

	return ids, nil
}

// DeleteProfile removes a profile's entire directory tree
func DeleteProfile(profilesDir, id string) error {
	dir := ProfileDir(profilesDir, id)
	if _, err := os.Stat(filepath.Join(dir, profileFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrProfileNotFound
		}
		return fmt.Errorf("checking profile: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	return nil
}

// ExportProfile exports a profile definition to a portable format
func ExportProfile(profile *domain.Profile) ([]byte, error) {
	exported := domain.ExportedProfile{
		Name:          profile.Name,
		GameVersion:   profile.GameVersion,
		Loader:        profile.Loader.Kind.String(),
		LoaderVersion: profile.Loader.Version,
		MemoryMB:      profile.MemoryMB,
		JavaArgs:      profile.JavaArgs,
	}

	data, err := yaml.Marshal(&exported)
	if err != nil {
		return nil, fmt.Errorf("marshaling exported profile: %w", err)
	}

	return data, nil
}

// ImportProfile parses a portable profile definition. The result has no id or directory yet.
func ImportProfile(data []byte) (*domain.Profile, error) {
	var exported domain.ExportedProfile
	if err := yaml.Unmarshal(data, &exported); err != nil {
		return nil, fmt.Errorf("parsing exported profile: %w", err)
	}

	kind, ok := domain.ParseLoaderKind(exported.Loader)
	if !ok {
		return nil, fmt.Errorf("%w: unknown loader %q", domain.ErrInvalidProfile, exported.Loader)
	}

	return &domain.Profile{
		Name:         exported.Name,
		GameVersion:  exported.GameVersion,
		Loader:       domain.Loader{Kind: kind, Version: exported.LoaderVersion},
		MemoryMB:     exported.MemoryMB,
		JavaArgs:     exported.JavaArgs,
		SettingsSync: true,
	}, nil
}
