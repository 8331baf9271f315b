package core_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/storage/config"
	"github.com/DonovanMods/lion-launcher/internal/storage/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver knows a fixed set of game versions and serves the artifact server's graph for all of them
type fakeResolver struct {
	srv      *artifactServer
	versions map[string]bool
	// unsupported lists loaders that have no builds for any version
	unsupported map[domain.LoaderKind]bool
	resolves    int
	refreshes   int
}

func (r *fakeResolver) Resolve(ctx context.Context, gameVersion string, loader domain.Loader) (*domain.VersionGraph, error) {
	if err := r.SupportsLoader(ctx, gameVersion, loader); err != nil {
		return nil, err
	}
	r.resolves++
	g := testGraph(r.srv)
	g.GameVersion = gameVersion
	g.Loader = loader
	return g, nil
}

func (r *fakeResolver) Refresh() {
	r.refreshes++
}

func (r *fakeResolver) SupportsLoader(ctx context.Context, gameVersion string, loader domain.Loader) error {
	if !r.versions[gameVersion] {
		return fmt.Errorf("%w: %s", domain.ErrVersionNotFound, gameVersion)
	}
	if r.unsupported[loader.Kind] {
		return fmt.Errorf("%w: %s is not available for %s", domain.ErrInvalidProfile, loader.Kind, gameVersion)
	}
	return nil
}

type profileFixture struct {
	pm       *core.ProfileManager
	db       *db.DB
	paths    config.Paths
	resolver *fakeResolver
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	dir := t.TempDir()
	paths := config.Paths{
		ConfigDir: filepath.Join(dir, "config"),
		DataDir:   filepath.Join(dir, "data"),
		CacheDir:  filepath.Join(dir, "cache"),
	}

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	resolver := &fakeResolver{
		srv:         newArtifactServer(t, defaultBodies()),
		versions:    map[string]bool{"1.20.1": true, "1.20.4": true, "1.19.2": true},
		unsupported: map[domain.LoaderKind]bool{domain.LoaderNeoForge: true},
	}
	pipeline := newTestPipeline(t, paths.CacheDir)

	return &profileFixture{
		pm:       core.NewProfileManager(paths, database, pipeline, resolver, 3072),
		db:       database,
		paths:    paths,
		resolver: resolver,
	}
}

func (f *profileFixture) create(t *testing.T, name, version string, loader domain.LoaderKind) *domain.Profile {
	t.Helper()
	p, err := f.pm.Create(context.Background(), core.CreateProfile{
		Name:        name,
		GameVersion: version,
		Loader:      domain.Loader{Kind: loader},
	})
	require.NoError(t, err)
	return p
}

func TestProfileManager_Create(t *testing.T) {
	f := newProfileFixture(t)

	p := f.create(t, "  Survival  ", "1.20.1", domain.LoaderFabric)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Survival", p.Name)
	assert.Equal(t, 3072, p.MemoryMB)
	assert.True(t, p.SettingsSync)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, filepath.Join(f.paths.ProfilesDir(), p.ID, "game"), p.GameDir)

	for _, sub := range []string{"mods", "resourcepacks", "shaderpacks", "logs", "config", "saves"} {
		assert.DirExists(t, filepath.Join(p.GameDir, sub))
	}
	assert.FileExists(t, filepath.Join(f.paths.ProfilesDir(), p.ID, "profile.yaml"))

	loaded, err := f.pm.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, loaded.Name)
	assert.Equal(t, domain.LoaderFabric, loaded.Loader.Kind)
}

func TestProfileManager_Create_SettingsSyncOff(t *testing.T) {
	f := newProfileFixture(t)
	off := false

	p, err := f.pm.Create(context.Background(), core.CreateProfile{
		Name: "Private", GameVersion: "1.20.1", SettingsSync: &off, MemoryMB: 2048,
	})
	require.NoError(t, err)
	assert.False(t, p.SettingsSync)
	assert.Equal(t, 2048, p.MemoryMB)
}

func TestProfileManager_Create_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  core.CreateProfile
	}{
		{"empty name", core.CreateProfile{Name: " ", GameVersion: "1.20.1"}},
		{"no version", core.CreateProfile{Name: "x"}},
		{"unknown version", core.CreateProfile{Name: "x", GameVersion: "9.9.9"}},
		{"unsupported loader", core.CreateProfile{Name: "x", GameVersion: "1.20.1", Loader: domain.Loader{Kind: domain.LoaderNeoForge}}},
		{"too little memory", core.CreateProfile{Name: "x", GameVersion: "1.20.1", MemoryMB: 128}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProfileFixture(t)

			_, err := f.pm.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidProfile)

			// Nothing is allocated for a rejected profile
			entries, _ := os.ReadDir(f.paths.ProfilesDir())
			assert.Empty(t, entries)
		})
	}
}

func TestProfileManager_Get_NotFound(t *testing.T) {
	f := newProfileFixture(t)

	_, err := f.pm.Get("does-not-exist")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	_, err = f.pm.Get("../escape")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestProfileManager_List_Order(t *testing.T) {
	f := newProfileFixture(t)

	f.create(t, "zebra", "1.20.1", domain.LoaderVanilla)
	alpha := f.create(t, "Alpha", "1.20.1", domain.LoaderVanilla)
	old := f.create(t, "played long ago", "1.20.1", domain.LoaderVanilla)
	recent := f.create(t, "played today", "1.20.1", domain.LoaderVanilla)

	now := time.Now()
	require.NoError(t, f.pm.MarkPlayed(old.ID, now.Add(-48*time.Hour)))
	require.NoError(t, f.pm.MarkPlayed(recent.ID, now))

	profiles, err := f.pm.List()
	require.NoError(t, err)

	var names []string
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"played today", "played long ago", "Alpha", "zebra"}, names)

	got, err := f.pm.Get(alpha.ID)
	require.NoError(t, err)
	assert.True(t, got.LastPlayed.IsZero())
}

func TestProfileManager_Update_LoaderChangeInvalidatesRuntime(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := f.create(t, "Survival", "1.20.1", domain.LoaderFabric)

	_, err := f.pm.Materialize(ctx, p, false, nil)
	require.NoError(t, err)
	stamp, err := f.db.GetMaterialized(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.20.1-fabric-", stamp)
	assert.DirExists(t, f.pm.RuntimeDir(p.ID))

	// Content survives a loader change
	modPath := filepath.Join(p.GameDir, "mods", "sodium.jar")
	require.NoError(t, os.WriteFile(modPath, []byte("mod"), 0644))

	quilt := domain.Loader{Kind: domain.LoaderQuilt}
	updated, err := f.pm.Update(ctx, p.ID, core.ProfileUpdate{Loader: &quilt})
	require.NoError(t, err)
	assert.Equal(t, domain.LoaderQuilt, updated.Loader.Kind)

	_, err = os.Stat(f.pm.RuntimeDir(p.ID))
	assert.True(t, os.IsNotExist(err))
	stamp, err = f.db.GetMaterialized(p.ID)
	require.NoError(t, err)
	assert.Empty(t, stamp)
	assert.FileExists(t, modPath)
}

func TestProfileManager_Update_NameKeepsRuntime(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := f.create(t, "Survival", "1.20.1", domain.LoaderVanilla)

	_, err := f.pm.Materialize(ctx, p, false, nil)
	require.NoError(t, err)

	name := "Hardcore"
	memory := 8192
	updated, err := f.pm.Update(ctx, p.ID, core.ProfileUpdate{Name: &name, MemoryMB: &memory, JavaArgs: []string{"-Dfoo=bar"}})
	require.NoError(t, err)
	assert.Equal(t, "Hardcore", updated.Name)
	assert.Equal(t, 8192, updated.MemoryMB)
	assert.Equal(t, []string{"-Dfoo=bar"}, updated.JavaArgs)

	assert.DirExists(t, f.pm.RuntimeDir(p.ID))
	stamp, err := f.db.GetMaterialized(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.20.1", stamp)
}

func TestProfileManager_Update_InvalidVersionLeavesProfile(t *testing.T) {
	f := newProfileFixture(t)
	p := f.create(t, "Survival", "1.20.1", domain.LoaderFabric)

	bad := "0.0.1"
	_, err := f.pm.Update(context.Background(), p.ID, core.ProfileUpdate{GameVersion: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)

	got, err := f.pm.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.20.1", got.GameVersion)
}

func TestProfileManager_Delete(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := f.create(t, "Survival", "1.20.1", domain.LoaderFabric)

	_, err := f.pm.Materialize(ctx, p, false, nil)
	require.NoError(t, err)
	require.NoError(t, f.db.SaveContent(&domain.ContentItem{ProfileID: p.ID, Kind: domain.ContentMod, Filename: "a.jar", SHA1: "abc"}))

	require.NoError(t, f.pm.Delete(p.ID))

	_, err = os.Stat(filepath.Join(f.paths.ProfilesDir(), p.ID))
	assert.True(t, os.IsNotExist(err))
	items, err := f.db.GetContent(p.ID, domain.ContentMod)
	require.NoError(t, err)
	assert.Empty(t, items)
	stamp, err := f.db.GetMaterialized(p.ID)
	require.NoError(t, err)
	assert.Empty(t, stamp)

	assert.ErrorIs(t, f.pm.Delete(p.ID), domain.ErrProfileNotFound)
}

func TestProfileManager_Repair_RestoresRuntime(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := f.create(t, "Survival", "1.20.1", domain.LoaderVanilla)

	_, err := f.pm.Materialize(ctx, p, false, nil)
	require.NoError(t, err)

	clientJar := filepath.Join(f.pm.RuntimeDir(p.ID), "versions", "1.20.1", "1.20.1.jar")
	require.NoError(t, os.Remove(clientJar))

	var last core.Progress
	resolvesBefore := f.resolver.resolves
	require.NoError(t, f.pm.Repair(ctx, p.ID, func(pr core.Progress) { last = pr }))
	assert.FileExists(t, clientJar)
	assert.Equal(t, last.BytesTotal, last.BytesCompleted)

	// Manifests are re-read before the graph is resolved again
	assert.Equal(t, 1, f.resolver.refreshes)
	assert.Equal(t, resolvesBefore+1, f.resolver.resolves)
}

func TestProfileManager_ClearCache(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := f.create(t, "Survival", "1.20.1", domain.LoaderVanilla)

	graph, err := f.pm.Materialize(ctx, p, false, nil)
	require.NoError(t, err)

	require.NoError(t, f.pm.ClearCache(p.ID))
	_, err = os.Stat(f.pm.RuntimeDir(p.ID))
	assert.True(t, os.IsNotExist(err))

	// The shared cache is untouched, so rebuilding downloads nothing
	before := f.resolver.srv.total.Load()
	_, err = f.pm.Materialize(ctx, p, false, nil)
	require.NoError(t, err)
	assert.Equal(t, before, f.resolver.srv.total.Load())
	assert.Len(t, graph.Artifacts, 3)
}

func TestProfileManager_ExportImport(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p, err := f.pm.Create(ctx, core.CreateProfile{
		Name: "Shared", GameVersion: "1.19.2", Loader: domain.Loader{Kind: domain.LoaderForge, Version: "43.3.0"},
		MemoryMB: 6144, JavaArgs: []string{"-Dfml.earlyprogresswindow=false"},
	})
	require.NoError(t, err)

	data, err := f.pm.Export(p.ID)
	require.NoError(t, err)

	imported, err := f.pm.Import(ctx, data)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, imported.ID)
	assert.Equal(t, "Shared", imported.Name)
	assert.Equal(t, p.Loader, imported.Loader)
	assert.Equal(t, 6144, imported.MemoryMB)
	assert.Equal(t, p.JavaArgs, imported.JavaArgs)
}

func TestProfileManager_SyncSettings_LastWriterWins(t *testing.T) {
	f := newProfileFixture(t)
	off := false
	a := f.create(t, "A", "1.20.1", domain.LoaderVanilla)
	b := f.create(t, "B", "1.20.1", domain.LoaderVanilla)
	c, err := f.pm.Create(context.Background(), core.CreateProfile{Name: "C", GameVersion: "1.20.1", SettingsSync: &off})
	require.NoError(t, err)

	now := time.Now()
	write := func(path, data string, mod time.Time) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	write(f.paths.SharedSettingsPath(), "fov:70", now.Add(-3*time.Hour))
	write(filepath.Join(a.GameDir, core.OptionsFile), "fov:80", now.Add(-2*time.Hour))
	write(filepath.Join(b.GameDir, core.OptionsFile), "fov:90", now.Add(-time.Hour))
	// Newest of all, but C does not sync
	write(filepath.Join(c.GameDir, core.OptionsFile), "fov:110", now)

	source, err := f.pm.SyncSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b.GameDir, core.OptionsFile), source)

	for _, path := range []string{f.paths.SharedSettingsPath(), filepath.Join(a.GameDir, core.OptionsFile)} {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "fov:90", string(data))
	}
	data, err := os.ReadFile(filepath.Join(c.GameDir, core.OptionsFile))
	require.NoError(t, err)
	assert.Equal(t, "fov:110", string(data))

	// A later edit in A becomes canonical on the next sync
	write(filepath.Join(a.GameDir, core.OptionsFile), "fov:100", now.Add(time.Minute))
	source, err = f.pm.SyncSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.GameDir, core.OptionsFile), source)

	data, err = os.ReadFile(filepath.Join(b.GameDir, core.OptionsFile))
	require.NoError(t, err)
	assert.Equal(t, "fov:100", string(data))
}

func TestProfileManager_SyncSettings_NothingToSync(t *testing.T) {
	f := newProfileFixture(t)
	f.create(t, "A", "1.20.1", domain.LoaderVanilla)

	source, err := f.pm.SyncSettings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, source)
}
