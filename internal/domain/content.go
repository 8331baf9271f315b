package domain

import (
	"strings"
	"time"
)

// DisabledSuffix is appended to a content filename to disable it without deleting it
const DisabledSuffix = ".disabled"

// ContentKind is the type of third-party content installed into a profile
type ContentKind int

const (
	ContentMod ContentKind = iota
	ContentResourcePack
	ContentShaderPack
)

func (k ContentKind) String() string {
	switch k {
	case ContentMod:
		return "mod"
	case ContentResourcePack:
		return "resourcepack"
	case ContentShaderPack:
		return "shader"
	default:
		return "unknown"
	}
}

// Dir is the game subdirectory holding this kind of content
func (k ContentKind) Dir() string {
	switch k {
	case ContentResourcePack:
		return "resourcepacks"
	case ContentShaderPack:
		return "shaderpacks"
	default:
		return "mods"
	}
}

// NeedsLoader reports whether versions of this kind must match the profile's loader
func (k ContentKind) NeedsLoader() bool {
	return k == ContentMod
}

// ParseContentKind converts a string to ContentKind
func ParseContentKind(s string) (ContentKind, bool) {
	switch strings.ToLower(s) {
	case "mod", "mods", "":
		return ContentMod, true
	case "resourcepack", "resourcepacks", "resource-pack":
		return ContentResourcePack, true
	case "shader", "shaders", "shaderpack", "shaderpacks":
		return ContentShaderPack, true
	default:
		return ContentMod, false
	}
}

// ContentItem is one installed content file in a profile
type ContentItem struct {
	ProfileID   string
	Kind        ContentKind
	Filename    string // Current on-disk name, including DisabledSuffix when disabled
	SourceID    string // Registry that supplied it; empty for local files
	RegistryID  string // Project id in the registry; empty for local files
	VersionID   string // Registry version id
	Name        string
	Version     string
	SHA1        string
	Enabled     bool
	InstalledAt time.Time
}

// BaseFilename returns the filename without the disabled suffix
func (c *ContentItem) BaseFilename() string {
	return strings.TrimSuffix(c.Filename, DisabledSuffix)
}

// ContentProject is a registry project as returned by search
type ContentProject struct {
	ID            string
	SourceID      string
	Slug          string
	Name          string
	Summary       string
	Author        string
	IconURL       string
	Downloads     int64
	Categories    []string
	GameVersions  []string
	Loaders       []string
	LatestVersion string
	UpdatedAt     time.Time
}

// ContentFile is a downloadable file of a content version
type ContentFile struct {
	URL      string
	Filename string
	Primary  bool
	Size     int64
	SHA1     string
	SHA512   string
}

// DependencyType classifies a content dependency
type DependencyType int

const (
	DependencyRequired DependencyType = iota
	DependencyOptional
	DependencyIncompatible
	DependencyEmbedded
)

// ContentDependency references another project
type ContentDependency struct {
	ProjectID string
	VersionID string
	Type      DependencyType
}

// ContentVersion is one published version of a registry project
type ContentVersion struct {
	ID            string
	ProjectID     string
	Name          string
	VersionNumber string
	GameVersions  []string
	Loaders       []string
	Files         []ContentFile
	Dependencies  []ContentDependency
	Published     time.Time
}

// PrimaryFile returns the file flagged primary, else the first file
func (v *ContentVersion) PrimaryFile() (ContentFile, bool) {
	for _, f := range v.Files {
		if f.Primary {
			return f, true
		}
	}
	if len(v.Files) > 0 {
		return v.Files[0], true
	}
	return ContentFile{}, false
}

// ContentUpdate reports a newer compatible version of an installed item
type ContentUpdate struct {
	Item          ContentItem
	LatestVersion ContentVersion
}
