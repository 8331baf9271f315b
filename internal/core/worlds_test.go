package core_test

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/domain"

	"github.com/Tnze/go-mc/nbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLevelData struct {
	LevelName  string `nbt:"LevelName"`
	LastPlayed int64  `nbt:"LastPlayed"`
	GameType   int32  `nbt:"GameType"`
	Difficulty int8   `nbt:"Difficulty"`
	Hardcore   int8   `nbt:"hardcore"`
	Version    struct {
		Name string `nbt:"Name"`
	} `nbt:"Version"`
	// Present in real saves and ignored when listing
	SpawnX int32 `nbt:"SpawnX"`
}

type testLevel struct {
	Data testLevelData `nbt:"Data"`
}

type testServerEntry struct {
	Name string `nbt:"name"`
	IP   string `nbt:"ip"`
	Icon string `nbt:"icon"`
}

type testServers struct {
	Servers []testServerEntry `nbt:"servers"`
}

func writeLevel(t *testing.T, dir string, data testLevelData) {
	t.Helper()
	raw, err := nbt.Marshal(testLevel{Data: data})
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "level.dat"), buf.Bytes(), 0644))
}

func TestProfileManager_Worlds(t *testing.T) {
	f := newProfileFixture(t)
	p := f.create(t, "Survival", "1.20.1", domain.LoaderVanilla)
	saves := filepath.Join(p.GameDir, "saves")

	older := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	base := testLevelData{LevelName: "Base Camp", LastPlayed: older.UnixMilli(), GameType: 0, Difficulty: 2}
	base.Version.Name = "1.20.1"
	writeLevel(t, filepath.Join(saves, "base"), base)
	require.NoError(t, os.WriteFile(filepath.Join(saves, "base", "icon.png"), []byte("png"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(saves, "base", "region"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(saves, "base", "region", "r.0.0.mca"), make([]byte, 4096), 0644))

	writeLevel(t, filepath.Join(saves, "build"), testLevelData{LevelName: "Creative Build", LastPlayed: newer.UnixMilli(), GameType: 1, Difficulty: 0, Hardcore: 1})

	// Corrupt level.dat: listed under its folder name
	require.NoError(t, os.MkdirAll(filepath.Join(saves, "broken"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(saves, "broken", "level.dat"), []byte("not gzip"), 0644))

	// No level.dat: not a world
	require.NoError(t, os.MkdirAll(filepath.Join(saves, "junk"), 0755))

	worlds, err := f.pm.Worlds(p.ID)
	require.NoError(t, err)
	require.Len(t, worlds, 3)

	assert.Equal(t, "Creative Build", worlds[0].Name)
	assert.Equal(t, "build", worlds[0].Folder)
	assert.Equal(t, "creative", worlds[0].GameMode)
	assert.Equal(t, "peaceful", worlds[0].Difficulty)
	assert.True(t, worlds[0].Hardcore)
	assert.Equal(t, newer, worlds[0].LastPlayed)
	assert.Empty(t, worlds[0].IconPath)

	assert.Equal(t, "Base Camp", worlds[1].Name)
	assert.Equal(t, "survival", worlds[1].GameMode)
	assert.Equal(t, "normal", worlds[1].Difficulty)
	assert.Equal(t, "1.20.1", worlds[1].Version)
	assert.Equal(t, older, worlds[1].LastPlayed)
	assert.Equal(t, filepath.Join(saves, "base", "icon.png"), worlds[1].IconPath)
	assert.Greater(t, worlds[1].SizeBytes, int64(4096))

	assert.Equal(t, "broken", worlds[2].Name)
	assert.Equal(t, "unknown", worlds[2].GameMode)
	assert.True(t, worlds[2].LastPlayed.IsZero())
}

func TestProfileManager_Worlds_NoSaves(t *testing.T) {
	f := newProfileFixture(t)
	p := f.create(t, "Survival", "1.20.1", domain.LoaderVanilla)
	require.NoError(t, os.RemoveAll(filepath.Join(p.GameDir, "saves")))

	worlds, err := f.pm.Worlds(p.ID)
	require.NoError(t, err)
	assert.Empty(t, worlds)

	_, err = f.pm.Worlds("missing")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestProfileManager_Servers(t *testing.T) {
	f := newProfileFixture(t)
	p := f.create(t, "Survival", "1.20.1", domain.LoaderVanilla)

	servers, err := f.pm.Servers(p.ID)
	require.NoError(t, err)
	assert.Empty(t, servers, "no servers.dat yet")

	raw, err := nbt.Marshal(testServers{Servers: []testServerEntry{
		{Name: "Hypixel", IP: "mc.hypixel.net", Icon: "aWNvbg=="},
		{Name: "Friends", IP: "192.168.1.20:25565"},
		{Name: "Hypixel again", IP: "mc.hypixel.net"},
	}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(p.GameDir, "servers.dat"), raw, 0644))

	servers, err = f.pm.Servers(p.ID)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "Hypixel", servers[0].Name)
	assert.Equal(t, "mc.hypixel.net", servers[0].Address)
	assert.True(t, servers[0].HasIcon)
	assert.Equal(t, "192.168.1.20:25565", servers[1].Address)
	assert.False(t, servers[1].HasIcon)
}

func TestProfileManager_Servers_Corrupt(t *testing.T) {
	f := newProfileFixture(t)
	p := f.create(t, "Survival", "1.20.1", domain.LoaderVanilla)
	require.NoError(t, os.WriteFile(filepath.Join(p.GameDir, "servers.dat"), []byte{0x0a, 0x00}, 0644))

	_, err := f.pm.Servers(p.ID)
	assert.Error(t, err)
}
