package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/logging"
	"github.com/DonovanMods/lion-launcher/internal/storage/cache"
	"github.com/DonovanMods/lion-launcher/internal/storage/config"
	"github.com/DonovanMods/lion-launcher/internal/storage/db"
)

// GraphResolver is the part of the manifest resolver that profiles and launches depend on
type GraphResolver interface {
	Resolve(ctx context.Context, gameVersion string, loader domain.Loader) (*domain.VersionGraph, error)
	SupportsLoader(ctx context.Context, gameVersion string, loader domain.Loader) error
	Refresh()
}

// gameSubdirs are created inside every new game directory
var gameSubdirs = []string{"mods", "resourcepacks", "shaderpacks", "logs", "config", "saves"}

// CreateProfile holds the fields of a new profile
type CreateProfile struct {
	Name         string
	GameVersion  string
	Loader       domain.Loader
	MemoryMB     int // Zero selects the configured default
	JavaArgs     []string
	IconPath     string
	SettingsSync *bool // Nil means enabled
}

// ProfileUpdate changes the fields that are set
type ProfileUpdate struct {
	Name         *string
	GameVersion  *string
	Loader       *domain.Loader
	MemoryMB     *int
	JavaArgs     []string // Nil leaves args unchanged; an empty slice clears them
	IconPath     *string
	SettingsSync *bool
}

// ProfileManager stores profiles on disk and keeps their runtimes in step with their definitions
type ProfileManager struct {
	paths           config.Paths
	db              *db.DB
	pipeline        *Pipeline
	resolver        GraphResolver
	defaultMemoryMB int
	mu              sync.Mutex // serializes read-modify-write of profile files
	log             zerolog.Logger
}

// NewProfileManager creates a profile manager rooted at paths.ProfilesDir()
func NewProfileManager(paths config.Paths, database *db.DB, pipeline *Pipeline, resolver GraphResolver, defaultMemoryMB int) *ProfileManager {
	if defaultMemoryMB <= 0 {
		defaultMemoryMB = config.DefaultMemoryMB
	}
	return &ProfileManager{
		paths:           paths,
		db:              database,
		pipeline:        pipeline,
		resolver:        resolver,
		defaultMemoryMB: defaultMemoryMB,
		log:             logging.Get("profiles"),
	}
}

// Create validates a new profile against the upstream manifests and allocates its directories
func (pm *ProfileManager) Create(ctx context.Context, req CreateProfile) (*domain.Profile, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidProfile)
	}
	if req.GameVersion == "" {
		return nil, fmt.Errorf("%w: game version is required", domain.ErrInvalidProfile)
	}

	memory := req.MemoryMB
	if memory == 0 {
		memory = pm.defaultMemoryMB
	}
	if memory < config.MinMemoryMB {
		return nil, fmt.Errorf("%w: memory must be at least %d MB", domain.ErrInvalidProfile, config.MinMemoryMB)
	}

	if err := pm.validateVersion(ctx, req.GameVersion, req.Loader); err != nil {
		return nil, err
	}

	profile := &domain.Profile{
		ID:           uuid.NewString(),
		Name:         name,
		GameVersion:  req.GameVersion,
		Loader:       req.Loader,
		MemoryMB:     memory,
		JavaArgs:     req.JavaArgs,
		IconPath:     req.IconPath,
		SettingsSync: req.SettingsSync == nil || *req.SettingsSync,
		CreatedAt:    time.Now().UTC(),
	}
	profile.GameDir = config.GameDir(pm.paths.ProfilesDir(), profile.ID)

	for _, sub := range gameSubdirs {
		if err := os.MkdirAll(filepath.Join(profile.GameDir, sub), 0755); err != nil {
			os.RemoveAll(config.ProfileDir(pm.paths.ProfilesDir(), profile.ID))
			return nil, fmt.Errorf("creating game directory: %w", err)
		}
	}
	if err := config.SaveProfile(pm.paths.ProfilesDir(), profile); err != nil {
		os.RemoveAll(config.ProfileDir(pm.paths.ProfilesDir(), profile.ID))
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	pm.log.Info().Str("profile", profile.ID).Str("name", profile.Name).Str("version", profile.GameVersion).
		Str("loader", profile.Loader.Kind.String()).Msg("Created profile")
	return profile, nil
}

func (pm *ProfileManager) validateVersion(ctx context.Context, gameVersion string, loader domain.Loader) error {
	err := pm.resolver.SupportsLoader(ctx, gameVersion, loader)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrVersionNotFound) && !errors.Is(err, domain.ErrInvalidProfile) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidProfile, err)
	}
	return err
}

// Get loads a profile by id
func (pm *ProfileManager) Get(id string) (*domain.Profile, error) {
	if err := validProfileID(id); err != nil {
		return nil, err
	}
	return config.LoadProfile(pm.paths.ProfilesDir(), id)
}

// List returns all profiles, most recently played first, then by name
func (pm *ProfileManager) List() ([]*domain.Profile, error) {
	ids, err := config.ListProfiles(pm.paths.ProfilesDir())
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	profiles := make([]*domain.Profile, 0, len(ids))
	for _, id := range ids {
		profile, err := config.LoadProfile(pm.paths.ProfilesDir(), id)
		if err != nil {
			pm.log.Warn().Err(err).Str("profile", id).Msg("Skipping unreadable profile")
			continue
		}
		profiles = append(profiles, profile)
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := profiles[i], profiles[j]
		if !a.LastPlayed.Equal(b.LastPlayed) {
			return a.LastPlayed.After(b.LastPlayed)
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return profiles, nil
}

// Update applies changes to a profile. A new game version or loader is validated first and
// drops the materialized runtime so the next launch rebuilds it; the game directory is never touched.
func (pm *ProfileManager) Update(ctx context.Context, id string, upd ProfileUpdate) (*domain.Profile, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	profile, err := pm.Get(id)
	if err != nil {
		return nil, err
	}

	gameVersion, loader := profile.GameVersion, profile.Loader
	if upd.GameVersion != nil {
		gameVersion = *upd.GameVersion
	}
	if upd.Loader != nil {
		loader = *upd.Loader
	}
	runtimeChanged := gameVersion != profile.GameVersion || loader != profile.Loader
	if runtimeChanged {
		if err := pm.validateVersion(ctx, gameVersion, loader); err != nil {
			return nil, err
		}
		profile.GameVersion = gameVersion
		profile.Loader = loader
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidProfile)
		}
		profile.Name = name
	}
	if upd.MemoryMB != nil {
		if *upd.MemoryMB < config.MinMemoryMB {
			return nil, fmt.Errorf("%w: memory must be at least %d MB", domain.ErrInvalidProfile, config.MinMemoryMB)
		}
		profile.MemoryMB = *upd.MemoryMB
	}
	if upd.JavaArgs != nil {
		profile.JavaArgs = upd.JavaArgs
	}
	if upd.IconPath != nil {
		profile.IconPath = *upd.IconPath
	}
	if upd.SettingsSync != nil {
		profile.SettingsSync = *upd.SettingsSync
	}

	if err := config.SaveProfile(pm.paths.ProfilesDir(), profile); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	if runtimeChanged {
		if err := pm.ClearCache(id); err != nil {
			return nil, err
		}
		pm.log.Info().Str("profile", id).Str("version", gameVersion).Str("loader", loader.Kind.String()).
			Msg("Profile runtime invalidated")
	}
	return profile, nil
}

// Delete removes a profile's directory tree and every record of it. It cannot be undone.
func (pm *ProfileManager) Delete(id string) error {
	if err := validProfileID(id); err != nil {
		return err
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := config.DeleteProfile(pm.paths.ProfilesDir(), id); err != nil {
		return err
	}
	if err := pm.db.DeleteProfileContent(id); err != nil {
		return err
	}
	if err := pm.db.DeleteMaterialized(id); err != nil {
		return err
	}
	pm.log.Info().Str("profile", id).Msg("Deleted profile")
	return nil
}

// MarkPlayed records a launch time
func (pm *ProfileManager) MarkPlayed(id string, at time.Time) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	profile, err := pm.Get(id)
	if err != nil {
		return err
	}
	profile.LastPlayed = at.UTC()
	return config.SaveProfile(pm.paths.ProfilesDir(), profile)
}

// RuntimeDir returns where a profile's artifacts are materialized
func (pm *ProfileManager) RuntimeDir(id string) string {
	return config.RuntimeDir(pm.paths.ProfilesDir(), id)
}

// Resolve returns the version graph of a profile's game version and loader
func (pm *ProfileManager) Resolve(ctx context.Context, profile *domain.Profile) (*domain.VersionGraph, error) {
	return pm.resolver.Resolve(ctx, profile.GameVersion, profile.Loader)
}

// Materialize resolves a profile's version graph and makes its runtime complete.
// With repair set every artifact is re-verified and placed again.
func (pm *ProfileManager) Materialize(ctx context.Context, profile *domain.Profile, repair bool, progressFn PipelineProgressFunc) (*domain.VersionGraph, error) {
	graph, err := pm.Resolve(ctx, profile)
	if err != nil {
		return nil, err
	}
	return graph, pm.Build(ctx, profile, graph, repair, progressFn)
}

// Build materializes an already resolved graph into the profile's runtime and records what
// the runtime was built from
func (pm *ProfileManager) Build(ctx context.Context, profile *domain.Profile, graph *domain.VersionGraph, repair bool, progressFn PipelineProgressFunc) error {
	target := pm.RuntimeDir(profile.ID)
	var err error
	if repair {
		err = pm.pipeline.Repair(ctx, graph, target, progressFn)
	} else {
		err = pm.pipeline.Materialize(ctx, graph, target, progressFn)
	}
	if err != nil {
		return err
	}

	keys := make([]string, len(graph.Artifacts))
	for i, a := range graph.Artifacts {
		keys[i] = cache.Key(a)
	}
	return pm.db.ReplaceMaterialized(profile.ID, graph.ID(), keys)
}

// Repair re-verifies every artifact of a profile, re-fetching anything missing or corrupt
func (pm *ProfileManager) Repair(ctx context.Context, id string, progressFn PipelineProgressFunc) error {
	profile, err := pm.Get(id)
	if err != nil {
		return err
	}
	defer logging.Operation(pm.log.With().Str("profile", id).Logger(), "repair")()

	// A repair starts from freshly fetched manifests, not a stale or memoized copy
	pm.resolver.Refresh()
	_, err = pm.Materialize(ctx, profile, true, progressFn)
	return err
}

// ClearCache drops a profile's materialized runtime. The shared cache is left alone.
func (pm *ProfileManager) ClearCache(id string) error {
	if err := validProfileID(id); err != nil {
		return err
	}
	if err := pm.pipeline.Invalidate(pm.RuntimeDir(id)); err != nil {
		return err
	}
	return pm.db.DeleteMaterialized(id)
}

// Export serializes a profile definition for sharing
func (pm *ProfileManager) Export(id string) ([]byte, error) {
	profile, err := pm.Get(id)
	if err != nil {
		return nil, err
	}
	return config.ExportProfile(profile)
}

// Import creates a new profile from an exported definition
func (pm *ProfileManager) Import(ctx context.Context, data []byte) (*domain.Profile, error) {
	imported, err := config.ImportProfile(data)
	if err != nil {
		return nil, err
	}
	return pm.Create(ctx, CreateProfile{
		Name:        imported.Name,
		GameVersion: imported.GameVersion,
		Loader:      imported.Loader,
		MemoryMB:    imported.MemoryMB,
		JavaArgs:    imported.JavaArgs,
	})
}

func validProfileID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", domain.ErrProfileNotFound, id)
	}
	return nil
}
