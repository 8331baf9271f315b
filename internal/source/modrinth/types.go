package modrinth

import "time"

// Modrinth API v2 response types
// API docs: https://docs.modrinth.com/api/

// SearchResponse is the result of GET /search
type SearchResponse struct {
	Hits      []SearchHit `json:"hits"`
	Offset    int         `json:"offset"`
	Limit     int         `json:"limit"`
	TotalHits int         `json:"total_hits"`
}

// SearchHit is one project in search results
type SearchHit struct {
	ProjectID     string    `json:"project_id"`
	ProjectType   string    `json:"project_type"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Author        string    `json:"author"`
	IconURL       string    `json:"icon_url"`
	Downloads     int64     `json:"downloads"`
	Categories    []string  `json:"categories"`
	Versions      []string  `json:"versions"`
	LatestVersion string    `json:"latest_version"`
	DateModified  time.Time `json:"date_modified"`
}

// Project is the result of GET /project/{id}
type Project struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	ProjectType  string    `json:"project_type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	IconURL      string    `json:"icon_url"`
	Downloads    int64     `json:"downloads"`
	Categories   []string  `json:"categories"`
	Loaders      []string  `json:"loaders"`
	GameVersions []string  `json:"game_versions"`
	Versions     []string  `json:"versions"`
	Updated      time.Time `json:"updated"`
}

// Version is one published version of a project
type Version struct {
	ID            string       `json:"id"`
	ProjectID     string       `json:"project_id"`
	Name          string       `json:"name"`
	VersionNumber string       `json:"version_number"`
	VersionType   string       `json:"version_type"` // release, beta, alpha
	GameVersions  []string     `json:"game_versions"`
	Loaders       []string     `json:"loaders"`
	Files         []File       `json:"files"`
	Dependencies  []Dependency `json:"dependencies"`
	DatePublished time.Time    `json:"date_published"`
}

// File is a downloadable file of a version
type File struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Primary  bool   `json:"primary"`
	Size     int64  `json:"size"`
	Hashes   struct {
		SHA1   string `json:"sha1"`
		SHA512 string `json:"sha512"`
	} `json:"hashes"`
}

// Dependency references another project or version
type Dependency struct {
	ProjectID      string `json:"project_id"`
	VersionID      string `json:"version_id"`
	DependencyType string `json:"dependency_type"` // required, optional, incompatible, embedded
}

// APIError is the error body returned by Modrinth
type APIError struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}
