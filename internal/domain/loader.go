package domain

import "strings"

// LoaderKind is the mod loader layered on top of vanilla Minecraft
type LoaderKind int

const (
	LoaderVanilla LoaderKind = iota
	LoaderFabric
	LoaderForge
	LoaderNeoForge
	LoaderQuilt
)

func (k LoaderKind) String() string {
	switch k {
	case LoaderVanilla:
		return "vanilla"
	case LoaderFabric:
		return "fabric"
	case LoaderForge:
		return "forge"
	case LoaderNeoForge:
		return "neoforge"
	case LoaderQuilt:
		return "quilt"
	default:
		return "unknown"
	}
}

// ParseLoaderKind converts a string to LoaderKind. The second return is false for unknown names.
func ParseLoaderKind(s string) (LoaderKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vanilla":
		return LoaderVanilla, true
	case "fabric":
		return LoaderFabric, true
	case "forge":
		return LoaderForge, true
	case "neoforge":
		return LoaderNeoForge, true
	case "quilt":
		return LoaderQuilt, true
	default:
		return LoaderVanilla, false
	}
}

// Loader selects a loader and, optionally, a specific loader version.
// An empty Version means "latest stable" and is pinned at profile creation.
type Loader struct {
	Kind    LoaderKind
	Version string
}

func (l Loader) String() string {
	if l.Kind == LoaderVanilla || l.Version == "" {
		return l.Kind.String()
	}
	return l.Kind.String() + " " + l.Version
}

// Accepts reports whether content built for the named loader runs under this loader.
// Quilt loads Fabric mods.
func (l Loader) Accepts(name string) bool {
	name = strings.ToLower(name)
	if name == l.Kind.String() {
		return true
	}
	return l.Kind == LoaderQuilt && name == LoaderFabric.String()
}
