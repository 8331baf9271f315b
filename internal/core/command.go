package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

const (
	launcherName    = "lion"
	launcherVersion = "1.0"
)

// CommandSpec is everything needed to assemble a game command line
type CommandSpec struct {
	JavaPath        string
	Profile         *domain.Profile
	Graph           *domain.VersionGraph
	Account         *domain.Account
	RuntimeDir      string
	NativesDir      string
	JavaArgs        []string // Configured for every launch; the profile's own args follow
	DefaultMemoryMB int
	Width, Height   int // Initial window size; zero omits it
}

// BuildCommand returns the argv of the game process: java, heap flags, JVM arguments, classpath,
// main class and game arguments
func BuildCommand(spec CommandSpec) ([]string, error) {
	if spec.Graph == nil || spec.Graph.MainClass == "" {
		return nil, errors.New("version graph has no main class")
	}
	if spec.Account == nil {
		return nil, domain.ErrAuthRequired
	}

	memory := spec.Profile.MemoryMB
	if memory <= 0 {
		memory = spec.DefaultMemoryMB
	}
	java := spec.JavaPath
	if java == "" {
		java = "java"
	}

	classpath := Classpath(spec.Graph, spec.RuntimeDir)
	replacer := placeholders(spec, classpath)

	args := []string{
		java,
		fmt.Sprintf("-Xms%dM", memory/2),
		fmt.Sprintf("-Xmx%dM", memory),
	}
	args = append(args, spec.JavaArgs...)
	args = append(args, spec.Profile.JavaArgs...)
	args = append(args, "-Djava.library.path="+spec.NativesDir)
	for _, a := range spec.Graph.JVMArgs {
		args = append(args, replacer.Replace(a))
	}
	args = append(args, "-cp", classpath, spec.Graph.MainClass)

	args = append(args,
		"--username", spec.Account.Username,
		"--version", spec.Graph.ID(),
		"--gameDir", spec.Profile.GameDir,
		"--assetsDir", filepath.Join(spec.RuntimeDir, "assets"),
		"--assetIndex", spec.Graph.AssetIndex,
		"--uuid", spec.Account.UUID,
		"--accessToken", spec.Account.AccessToken,
		"--userType", spec.Account.UserType(),
		"--versionType", versionType(spec.Graph),
	)
	if spec.Width > 0 && spec.Height > 0 {
		args = append(args, "--width", strconv.Itoa(spec.Width), "--height", strconv.Itoa(spec.Height))
	}
	for _, a := range spec.Graph.GameArgs {
		args = append(args, replacer.Replace(a))
	}
	return args, nil
}

// Classpath joins the graph's classpath jars: loader jars first, then libraries, then the client jar.
// When two artifacts are versions of the same library, the first one wins.
func Classpath(graph *domain.VersionGraph, runtimeDir string) string {
	seen := make(map[string]bool)
	var entries []string

	for _, kind := range []domain.ArtifactKind{domain.ArtifactLoaderJar, domain.ArtifactLibrary, domain.ArtifactClientJar} {
		for _, a := range graph.Artifacts {
			if a.Kind != kind {
				continue
			}
			id := a.Identity()
			if seen[id] {
				continue
			}
			seen[id] = true
			entries = append(entries, filepath.Join(runtimeDir, filepath.FromSlash(a.Path)))
		}
	}
	return strings.Join(entries, string(filepath.ListSeparator))
}

func versionType(graph *domain.VersionGraph) string {
	if graph.VersionType == "" {
		return "release"
	}
	return graph.VersionType
}

// placeholders expands the ${...} variables loaders use in their arguments
func placeholders(spec CommandSpec, classpath string) *strings.Replacer {
	return strings.NewReplacer(
		"${library_directory}", filepath.Join(spec.RuntimeDir, "libraries"),
		"${classpath_separator}", string(filepath.ListSeparator),
		"${classpath}", classpath,
		"${natives_directory}", spec.NativesDir,
		"${version_name}", spec.Graph.ID(),
		"${launcher_name}", launcherName,
		"${launcher_version}", launcherVersion,
		"${game_directory}", spec.Profile.GameDir,
		"${assets_root}", filepath.Join(spec.RuntimeDir, "assets"),
		"${assets_index_name}", spec.Graph.AssetIndex,
		"${auth_player_name}", spec.Account.Username,
		"${auth_uuid}", spec.Account.UUID,
		"${auth_access_token}", spec.Account.AccessToken,
		"${user_type}", spec.Account.UserType(),
		"${version_type}", versionType(spec.Graph),
	)
}
