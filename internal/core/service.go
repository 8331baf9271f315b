package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/DonovanMods/lion-launcher/internal/auth"
	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/linker"
	"github.com/DonovanMods/lion-launcher/internal/logging"
	"github.com/DonovanMods/lion-launcher/internal/manifest"
	"github.com/DonovanMods/lion-launcher/internal/source"
	"github.com/DonovanMods/lion-launcher/internal/source/curseforge"
	"github.com/DonovanMods/lion-launcher/internal/source/modrinth"
	"github.com/DonovanMods/lion-launcher/internal/storage/cache"
	"github.com/DonovanMods/lion-launcher/internal/storage/config"
	"github.com/DonovanMods/lion-launcher/internal/storage/db"
)

// Environment overrides applied on top of config.yaml
const (
	EnvCurseForgeAPIKey = "LION_CURSEFORGE_API_KEY"
	EnvJavaPath         = "LION_JAVA"
)

// ServiceConfig holds configuration for the core service
type ServiceConfig struct {
	Paths config.Paths

	// HTTPClient is used for artifact downloads and registry requests. Nil uses NewHTTPClient.
	HTTPClient *http.Client
	// ManifestOptions and AuthOptions are passed through to the resolver and auth manager
	ManifestOptions []manifest.Option
	AuthOptions     []auth.Option
	// Sources replaces the default registries (Modrinth and CurseForge) when set
	Sources []source.ContentSource
}

// Service wires the launcher's components together. It is the context object the CLI and the
// TUI hand every operation to.
type Service struct {
	paths  config.Paths
	config *config.Config
	db     *db.DB
	cache  *cache.Cache
	log    zerolog.Logger

	pipeline *Pipeline
	resolver *manifest.Resolver
	auth     *auth.Manager
	sources  *source.Registry
	content  *ContentInstaller
	profiles *ProfileManager
	launcher *Launcher
}

// NewService creates a new core service instance
func NewService(cfg ServiceConfig) (*Service, error) {
	log := logging.Get("service")

	appConfig, err := config.Load(cfg.Paths.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	applyEnv(appConfig)

	if err := os.MkdirAll(cfg.Paths.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.New(cfg.Paths.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	paths := cfg.Paths
	if appConfig.CachePath != "" {
		paths.CacheDir = appConfig.CachePath
	}
	artifactCache := cache.New(paths.CacheDir)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	lnk := linker.New(appConfig.LinkMethod)
	pipeline := NewPipeline(
		artifactCache,
		NewDownloader(httpClient, WithMaxAttempts(appConfig.DownloadRetries)),
		lnk,
		appConfig.DownloadWorkers,
	)

	manifestOpts := []manifest.Option{
		manifest.WithInstallersDir(cfg.Paths.InstallersDir()),
		manifest.WithInstallerFetcher(func(ctx context.Context, a domain.Artifact) (string, error) {
			return pipeline.Fetch(ctx, a, nil)
		}),
	}
	resolver := manifest.New(database, append(manifestOpts, cfg.ManifestOptions...)...)

	vault, err := auth.NewVault(appConfig.TokenStore, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	accounts, err := auth.NewManager(database, vault, cfg.AuthOptions...)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	registry := source.NewRegistry()
	if cfg.Sources != nil {
		for _, src := range cfg.Sources {
			registry.Register(src)
		}
	} else {
		registry.Register(modrinth.New(cfg.HTTPClient))
		registry.Register(curseforge.New(cfg.HTTPClient, appConfig.CurseForgeAPIKey))
	}

	profiles := NewProfileManager(paths, database, pipeline, resolver, appConfig.MemoryMB)
	launcher := NewLauncher(profiles, accounts, LauncherConfig{
		JavaPath:        appConfig.JavaPath,
		JavaArgs:        appConfig.JavaArgs,
		DefaultMemoryMB: appConfig.MemoryMB,
		Width:           appConfig.Resolution.Width,
		Height:          appConfig.Resolution.Height,
		Hooks: LaunchHooks{
			PreLaunch: appConfig.Hooks.PreLaunch,
			PostExit:  appConfig.Hooks.PostExit,
			Timeout:   time.Duration(appConfig.Hooks.TimeoutSeconds) * time.Second,
		},
	})

	log.Debug().
		Str("data", cfg.Paths.DataDir).
		Str("cache", paths.CacheDir).
		Str("link", appConfig.LinkMethod.String()).
		Msg("Service ready")

	return &Service{
		paths:    paths,
		config:   appConfig,
		db:       database,
		cache:    artifactCache,
		log:      log,
		pipeline: pipeline,
		resolver: resolver,
		auth:     accounts,
		sources:  registry,
		content:  NewContentInstaller(database, pipeline, lnk, registry),
		profiles: profiles,
		launcher: launcher,
	}, nil
}

func applyEnv(cfg *config.Config) {
	if key := os.Getenv(EnvCurseForgeAPIKey); key != "" {
		cfg.CurseForgeAPIKey = key
	}
	if java := os.Getenv(EnvJavaPath); java != "" {
		cfg.JavaPath = java
	}
}

// Close releases resources held by the service
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Config returns the loaded configuration
func (s *Service) Config() *config.Config {
	return s.config
}

// Paths returns the directories the service works in
func (s *Service) Paths() config.Paths {
	return s.paths
}

// Profiles returns the profile store
func (s *Service) Profiles() *ProfileManager {
	return s.profiles
}

// Content returns the content installer
func (s *Service) Content() *ContentInstaller {
	return s.content
}

// Auth returns the account manager
func (s *Service) Auth() *auth.Manager {
	return s.auth
}

// Launcher returns the launch coordinator
func (s *Service) Launcher() *Launcher {
	return s.launcher
}

// Resolver returns the manifest resolver
func (s *Service) Resolver() *manifest.Resolver {
	return s.resolver
}

// Registry returns the content source registry
func (s *Service) Registry() *source.Registry {
	return s.sources
}

// DB returns the database
func (s *Service) DB() *db.DB {
	return s.db
}

// Cache returns the shared artifact cache
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Search searches one content source. Game version and loader filters default to the profile's
// when profileID is set.
func (s *Service) Search(ctx context.Context, sourceID, profileID string, query source.SearchQuery) (source.SearchResult, error) {
	src, err := s.sources.Get(sourceID)
	if err != nil {
		return source.SearchResult{}, err
	}
	if profileID != "" {
		p, err := s.profiles.Get(profileID)
		if err != nil {
			return source.SearchResult{}, err
		}
		if query.GameVersion == "" {
			query.GameVersion = p.GameVersion
		}
		if query.Loader == "" && query.Kind.NeedsLoader() && p.Loader.Kind != domain.LoaderVanilla {
			query.Loader = p.Loader.Kind.String()
		}
	}
	return src.Search(ctx, query.Normalize())
}

// Install installs registry content into a profile, with its required dependencies when asked
func (s *Service) Install(ctx context.Context, profileID string, req InstallRequest) ([]domain.ContentItem, error) {
	p, err := s.profiles.Get(profileID)
	if err != nil {
		return nil, err
	}
	if req.Dependencies {
		return s.content.InstallWithDependencies(ctx, p, req)
	}
	item, err := s.content.Install(ctx, p, req)
	if err != nil {
		return nil, err
	}
	return []domain.ContentItem{*item}, nil
}

// CacheUsage returns the total bytes held in the artifact cache
func (s *Service) CacheUsage() (int64, error) {
	return s.cache.Size()
}

// PruneCache removes cached objects that no profile runtime or installed content references.
// It returns the number of objects and bytes removed.
func (s *Service) PruneCache() (int, int64, error) {
	keep, err := s.db.MaterializedKeys()
	if err != nil {
		return 0, 0, err
	}
	sums, err := s.db.ContentSHA1s()
	if err != nil {
		return 0, 0, err
	}
	for sum := range sums {
		keep[sum] = true
	}

	removed, freed, err := s.cache.Prune(keep)
	if err != nil {
		return removed, freed, fmt.Errorf("pruning cache: %w", err)
	}
	s.log.Info().Int("objects", removed).Int64("bytes", freed).Msg("Pruned cache")
	return removed, freed, nil
}

// CheckMigration reports what switching a profile to another loader would do to its mods
func (s *Service) CheckMigration(ctx context.Context, profileID string, target domain.LoaderKind) (*MigrationReport, error) {
	p, err := s.profiles.Get(profileID)
	if err != nil {
		return nil, err
	}
	return s.content.CheckMigration(ctx, p, target, s.resolver)
}
