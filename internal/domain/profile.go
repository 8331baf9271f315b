package domain

import "time"

// Profile is a named, reproducible Minecraft installation
type Profile struct {
	ID           string    // Stable identifier (uuid)
	Name         string    // Display name
	GameVersion  string    // Minecraft version, e.g. "1.20.1"
	Loader       Loader    // Loader selection
	MemoryMB     int       // Heap max; zero means the configured default
	JavaArgs     []string  // Extra JVM arguments appended after the configured ones
	GameDir      string    // Absolute game directory (owned exclusively)
	IconPath     string    // Optional icon reference
	SettingsSync bool      // Share options.txt with other sync-enabled profiles
	CreatedAt    time.Time // Creation time
	LastPlayed   time.Time // Zero if never launched
}

// ExportedProfile is the YAML-serializable format for sharing a profile definition
type ExportedProfile struct {
	Name          string   `yaml:"name"`
	GameVersion   string   `yaml:"game_version"`
	Loader        string   `yaml:"loader"`
	LoaderVersion string   `yaml:"loader_version,omitempty"`
	MemoryMB      int      `yaml:"memory_mb,omitempty"`
	JavaArgs      []string `yaml:"java_args,omitempty"`
}
