package curseforge

import "time"

// Subset of the CurseForge API v1 response shapes read for Minecraft content.
// API docs: https://docs.curseforge.com/rest-api/

// APIResponse wraps all CurseForge API responses
type APIResponse[T any] struct {
	Data T `json:"data"`
}

// PaginatedResponse wraps paginated CurseForge API responses
type PaginatedResponse[T any] struct {
	Data       T          `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains pagination info from CurseForge API
type Pagination struct {
	Index       int `json:"index"`
	PageSize    int `json:"pageSize"`
	ResultCount int `json:"resultCount"`
	TotalCount  int `json:"totalCount"`
}

// Mod is a CurseForge project: a mod, resource pack or shader pack
type Mod struct {
	ID                 int         `json:"id"`
	Name               string      `json:"name"`
	Slug               string      `json:"slug"`
	Summary            string      `json:"summary"`
	DownloadCount      int64       `json:"downloadCount"`
	ThumbsUpCount      int         `json:"thumbsUpCount"`
	ClassID            int         `json:"classId"`
	PrimaryCategoryID  int         `json:"primaryCategoryId"`
	Categories         []Category  `json:"categories"`
	Authors            []Author    `json:"authors"`
	Logo               *Logo       `json:"logo"`
	LatestFiles        []File      `json:"latestFiles"`
	LatestFilesIndexes []FileIndex `json:"latestFilesIndexes"`
	DateModified       time.Time   `json:"dateModified"`
}

// Category is a project category within a class
type Category struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	IconURL string `json:"iconUrl"`
	ClassID int    `json:"classId"`
}

// Author is a project member
type Author struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Logo is a project's icon
type Logo struct {
	ThumbnailURL string `json:"thumbnailUrl"`
	URL          string `json:"url"`
}

// File is one downloadable build of a project
type File struct {
	ID           int              `json:"id"`
	ModID        int              `json:"modId"`
	DisplayName  string           `json:"displayName"`
	FileName     string           `json:"fileName"`
	ReleaseType  int              `json:"releaseType"`
	Hashes       []FileHash       `json:"hashes"`
	FileDate     time.Time        `json:"fileDate"`
	FileLength   int64            `json:"fileLength"`
	DownloadURL  string           `json:"downloadUrl"` // Empty when the author disallows third-party downloads
	GameVersions []string         `json:"gameVersions"` // Mixes game versions and loader names, e.g. "1.20.1", "Fabric"
	Dependencies []FileDependency `json:"dependencies"`
	IsServerPack bool             `json:"isServerPack"`
}

// FileHash is one checksum of a file
type FileHash struct {
	Value string `json:"value"`
	Algo  int    `json:"algo"`
}

// FileDependency is a file's relation to another project
type FileDependency struct {
	ModID        int `json:"modId"`
	RelationType int `json:"relationType"`
}

// FileIndex summarizes the latest file per game version and loader
type FileIndex struct {
	GameVersion string `json:"gameVersion"`
	FileID      int    `json:"fileId"`
	ModLoader   int    `json:"modLoader"`
}

// StringDownloadURL is the response for the download URL endpoint
type StringDownloadURL struct {
	Data string `json:"data"`
}

// Hash algorithms
const (
	HashAlgoSHA1 = 1
	HashAlgoMD5  = 2
)

// Dependency relation types
const (
	RelationEmbeddedLibrary    = 1
	RelationOptionalDependency = 2
	RelationRequiredDependency = 3
	RelationTool               = 4
	RelationIncompatible       = 5
	RelationInclude            = 6
)

// Release types
const (
	ReleaseTypeRelease = 1
	ReleaseTypeBeta    = 2
	ReleaseTypeAlpha   = 3
)

// Class ids of the Minecraft content kinds
const (
	ClassMods          = 6
	ClassResourcePacks = 12
	ClassShaders       = 6552
)

// Search sort fields
const (
	SortPopularity     = 2
	SortLastUpdated    = 3
	SortTotalDownloads = 6
)

// Mod loader types. 2 and 3 are Cauldron and LiteLoader, which have no launcher support.
const (
	ModLoaderAny      = 0
	ModLoaderForge    = 1
	ModLoaderFabric   = 4
	ModLoaderQuilt    = 5
	ModLoaderNeoForge = 6
)
