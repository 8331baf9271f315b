package domain

import (
	"fmt"
	"path"
	"strings"
)

// ArtifactKind classifies a file required by a profile
type ArtifactKind int

const (
	ArtifactLibrary ArtifactKind = iota
	ArtifactAsset
	ArtifactAssetIndex
	ArtifactClientJar
	ArtifactLoaderJar
	ArtifactNative // Legacy natives jar, extracted before launch
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactLibrary:
		return "library"
	case ArtifactAsset:
		return "asset"
	case ArtifactAssetIndex:
		return "asset-index"
	case ArtifactClientJar:
		return "client"
	case ArtifactLoaderJar:
		return "loader"
	case ArtifactNative:
		return "native"
	default:
		return "unknown"
	}
}

// OnClasspath reports whether artifacts of this kind belong on the JVM classpath
func (k ArtifactKind) OnClasspath() bool {
	return k == ArtifactLibrary || k == ArtifactClientJar || k == ArtifactLoaderJar
}

// Artifact is a single file required to run a profile
type Artifact struct {
	Path string // Relative to the runtime root, forward slashes
	URL  string
	SHA1 string // Lowercase hex; empty when upstream publishes none
	Size int64  // Zero if unknown
	Kind ArtifactKind
}

// Identity returns the key used to deduplicate artifacts that are different versions of the
// same library. For Maven layouts this is group/artifact plus any classifier; for
// everything else it is the path itself.
func (a Artifact) Identity() string {
	if a.Kind != ArtifactLibrary && a.Kind != ArtifactLoaderJar && a.Kind != ArtifactNative {
		return a.Path
	}
	parts := strings.Split(a.Path, "/")
	if len(parts) < 4 || !strings.HasPrefix(a.Path, "libraries/") {
		return a.Path
	}
	parts = parts[1:] // drop "libraries"
	if len(parts) < 3 {
		return a.Path
	}
	version := parts[len(parts)-2]
	name := parts[len(parts)-3]
	file := parts[len(parts)-1]

	classifier := strings.TrimPrefix(file, name+"-"+version)
	classifier = strings.TrimSuffix(classifier, path.Ext(classifier))
	return strings.Join(parts[:len(parts)-2], "/") + classifier
}

// VersionGraph is the merged set of files and launch facts for one game version plus loader
type VersionGraph struct {
	GameVersion string
	VersionType string // release, snapshot, ...
	Loader      Loader
	MainClass   string
	AssetIndex  string
	Artifacts   []Artifact
	JVMArgs     []string // Loader-contributed JVM arguments, may contain ${placeholders}
	GameArgs    []string // Loader-contributed game arguments
	Stale       bool     // At least one document came from the offline cache
}

// TotalSize sums the declared sizes of all artifacts
func (g *VersionGraph) TotalSize() int64 {
	var total int64
	for _, a := range g.Artifacts {
		total += a.Size
	}
	return total
}

// ID names the graph for logging and stamps, e.g. "1.20.1-fabric-0.15.7"
func (g *VersionGraph) ID() string {
	if g.Loader.Kind == LoaderVanilla {
		return g.GameVersion
	}
	return fmt.Sprintf("%s-%s-%s", g.GameVersion, g.Loader.Kind, g.Loader.Version)
}

// MavenPath converts a Maven coordinate ("group:artifact:version[:classifier][@ext]")
// to its repository-relative path.
func MavenPath(coord string) (string, error) {
	ext := "jar"
	if i := strings.LastIndex(coord, "@"); i >= 0 {
		ext = coord[i+1:]
		coord = coord[:i]
	}

	parts := strings.Split(coord, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return "", fmt.Errorf("invalid maven coordinate %q", coord)
	}
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("invalid maven coordinate %q", coord)
		}
	}

	group := strings.ReplaceAll(parts[0], ".", "/")
	name, version := parts[1], parts[2]
	file := name + "-" + version
	if len(parts) == 4 {
		file += "-" + parts[3]
	}
	return fmt.Sprintf("%s/%s/%s/%s.%s", group, name, version, file, ext), nil
}
