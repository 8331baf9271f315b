package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DonovanMods/lion-launcher/internal/domain"

	"gopkg.in/yaml.v3"
)

// Default launch settings
const (
	DefaultMemoryMB        = 4096
	DefaultDownloadWorkers = 8
	DefaultDownloadRetries = 3
	DefaultJavaPath        = "java"
	DefaultHookTimeout     = 60
	MinMemoryMB            = 512
)

// DefaultJavaArgs are the G1GC tuning flags applied to every launch
var DefaultJavaArgs = []string{
	"-XX:+UnlockExperimentalVMOptions",
	"-XX:+UseG1GC",
	"-XX:G1NewSizePercent=20",
	"-XX:G1ReservePercent=20",
	"-XX:MaxGCPauseMillis=50",
	"-XX:G1HeapRegionSize=32M",
}

// Token store backends
const (
	TokenStoreDatabase = "database"
	TokenStoreKeyring  = "keyring"
)

// Config holds global launcher settings
type Config struct {
	LinkMethod       domain.LinkMethod `yaml:"-"`
	LinkMethodStr    string            `yaml:"link_method"`
	CachePath        string            `yaml:"cache_path,omitempty"`
	JavaPath         string            `yaml:"java_path"`
	JavaArgs         []string          `yaml:"java_args"`
	MemoryMB         int               `yaml:"memory_mb"`
	DownloadWorkers  int               `yaml:"download_workers"`
	DownloadRetries  int               `yaml:"download_retries"`
	TokenStore       string            `yaml:"token_store"`
	IncludeSnapshots bool              `yaml:"include_snapshots"`
	CurseForgeAPIKey string            `yaml:"curseforge_api_key,omitempty"`
	Resolution       Resolution        `yaml:"resolution"`
	Hooks            LaunchHooks       `yaml:"hooks"`
}

// LaunchHooks are scripts run around every launch
type LaunchHooks struct {
	PreLaunch      string `yaml:"pre_launch,omitempty"`
	PostExit       string `yaml:"post_exit,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Resolution is the initial game window size
type Resolution struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Default returns a Config populated with defaults
func Default() *Config {
	return &Config{
		LinkMethod:      domain.LinkHardlink,
		JavaPath:        DefaultJavaPath,
		JavaArgs:        append([]string(nil), DefaultJavaArgs...),
		MemoryMB:        DefaultMemoryMB,
		DownloadWorkers: DefaultDownloadWorkers,
		DownloadRetries: DefaultDownloadRetries,
		TokenStore:      TokenStoreDatabase,
		Resolution:      Resolution{Width: 1280, Height: 720},
		Hooks:           LaunchHooks{TimeoutSeconds: DefaultHookTimeout},
	}
}

// Load reads configuration from the given directory
func Load(configDir string) (*Config, error) {
	cfg := Default()

	configPath := filepath.Join(configDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // Return defaults
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.LinkMethodStr != "" {
		cfg.LinkMethod = domain.ParseLinkMethod(cfg.LinkMethodStr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that cannot be repaired with a default
func (c *Config) Validate() error {
	if c.MemoryMB < MinMemoryMB {
		return fmt.Errorf("%w: memory_mb must be at least %d", domain.ErrInvalidConfig, MinMemoryMB)
	}
	if c.DownloadWorkers < 1 {
		return fmt.Errorf("%w: download_workers must be at least 1", domain.ErrInvalidConfig)
	}
	if c.DownloadRetries < 1 {
		return fmt.Errorf("%w: download_retries must be at least 1", domain.ErrInvalidConfig)
	}
	if c.Hooks.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: hooks.timeout_seconds cannot be negative", domain.ErrInvalidConfig)
	}
	if c.TokenStore != TokenStoreDatabase && c.TokenStore != TokenStoreKeyring {
		return fmt.Errorf("%w: token_store must be %q or %q", domain.ErrInvalidConfig, TokenStoreDatabase, TokenStoreKeyring)
	}
	return nil
}

// Save writes configuration to the given directory
func (c *Config) Save(configDir string) error {
	c.LinkMethodStr = c.LinkMethod.String()

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
