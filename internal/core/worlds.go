package core

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/Tnze/go-mc/nbt"
)

// World is a singleplayer save in a profile's saves directory
type World struct {
	Name       string    `json:"name"`
	Folder     string    `json:"folder"`
	LastPlayed time.Time `json:"last_played"`
	GameMode   string    `json:"game_mode"`
	Difficulty string    `json:"difficulty"`
	Hardcore   bool      `json:"hardcore"`
	Version    string    `json:"version,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	IconPath   string    `json:"icon_path,omitempty"`
}

// Server is an entry of a profile's multiplayer server list
type Server struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	HasIcon bool   `json:"has_icon"`
}

// levelDat is the part of a save's gzipped level.dat that is read
type levelDat struct {
	Data struct {
		LevelName  string `nbt:"LevelName"`
		LastPlayed int64  `nbt:"LastPlayed"` // Unix millis
		GameType   int32  `nbt:"GameType"`
		Difficulty int8   `nbt:"Difficulty"`
		Hardcore   int8   `nbt:"hardcore"`
		Version    struct {
			Name string `nbt:"Name"`
		} `nbt:"Version"`
	} `nbt:"Data"`
}

// serversDat is the uncompressed servers.dat in the game directory
type serversDat struct {
	Servers []struct {
		Name string `nbt:"name"`
		IP   string `nbt:"ip"`
		Icon string `nbt:"icon"` // base64 PNG
	} `nbt:"servers"`
}

var (
	gameModeNames   = []string{"survival", "creative", "adventure", "spectator"}
	difficultyNames = []string{"peaceful", "easy", "normal", "hard"}
)

const unknownLabel = "unknown"

func label(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return unknownLabel
	}
	return names[i]
}

// Worlds lists a profile's saves, most recently played first. A save whose level.dat cannot be
// parsed is still listed under its folder name.
func (pm *ProfileManager) Worlds(id string) ([]World, error) {
	profile, err := pm.Get(id)
	if err != nil {
		return nil, err
	}

	savesDir := filepath.Join(profile.GameDir, "saves")
	entries, err := os.ReadDir(savesDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading saves: %w", err)
	}

	var worlds []World
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(savesDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "level.dat")); err != nil {
			continue
		}

		w, err := readWorld(dir)
		if err != nil {
			pm.log.Debug().Err(err).Str("world", e.Name()).Msg("Could not read level.dat")
			w = World{Name: e.Name(), GameMode: unknownLabel, Difficulty: unknownLabel}
		}
		w.Folder = e.Name()
		w.SizeBytes = dirSize(dir)
		if _, err := os.Stat(filepath.Join(dir, "icon.png")); err == nil {
			w.IconPath = filepath.Join(dir, "icon.png")
		}
		worlds = append(worlds, w)
	}

	slices.SortStableFunc(worlds, func(a, b World) int {
		return b.LastPlayed.Compare(a.LastPlayed)
	})
	return worlds, nil
}

func readWorld(dir string) (World, error) {
	f, err := os.Open(filepath.Join(dir, "level.dat"))
	if err != nil {
		return World{}, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return World{}, fmt.Errorf("decompressing level.dat: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return World{}, fmt.Errorf("decompressing level.dat: %w", err)
	}

	var level levelDat
	if err := nbt.Unmarshal(data, &level); err != nil {
		return World{}, fmt.Errorf("parsing level.dat: %w", err)
	}

	d := level.Data
	w := World{
		Name:       d.LevelName,
		GameMode:   label(gameModeNames, int(d.GameType)),
		Difficulty: label(difficultyNames, int(d.Difficulty)),
		Hardcore:   d.Hardcore != 0,
		Version:    d.Version.Name,
	}
	if w.Name == "" {
		w.Name = filepath.Base(dir)
	}
	if d.LastPlayed > 0 {
		w.LastPlayed = time.UnixMilli(d.LastPlayed).UTC()
	}
	return w, nil
}

// dirSize sums the regular files under dir. Unreadable entries are skipped.
func dirSize(dir string) int64 {
	var size int64
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}

// Servers returns a profile's multiplayer server list in the game's order. Repeated addresses
// are listed once.
func (pm *ProfileManager) Servers(id string) ([]Server, error) {
	profile, err := pm.Get(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(profile.GameDir, "servers.dat"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading servers.dat: %w", err)
	}

	var list serversDat
	if err := nbt.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing servers.dat: %w", err)
	}

	seen := make(map[string]bool, len(list.Servers))
	servers := make([]Server, 0, len(list.Servers))
	for _, s := range list.Servers {
		if s.IP == "" || seen[s.IP] {
			continue
		}
		seen[s.IP] = true
		servers = append(servers, Server{Name: s.Name, Address: s.IP, HasIcon: s.Icon != ""})
	}
	return servers, nil
}
