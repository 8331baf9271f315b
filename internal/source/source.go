// Package source defines content registries (Modrinth, CurseForge) and a registry of them.
package source

import (
	"context"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// SortOrder selects how search results are ranked
type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortDownloads SortOrder = "downloads"
	SortFollows   SortOrder = "follows"
	SortNewest    SortOrder = "newest"
	SortUpdated   SortOrder = "updated"
)

// SearchQuery contains parameters for searching content
type SearchQuery struct {
	Query       string
	Kind        domain.ContentKind
	GameVersion string // Optional game version filter
	Loader      string // Optional loader filter; ignored for packs
	Category    string // Optional category filter (source-specific)
	Sort        SortOrder
	Offset      int
	Limit       int
}

// SearchResult contains paginated search results
type SearchResult struct {
	Projects   []domain.ContentProject
	TotalCount int // Total results available (0 if unknown)
	Offset     int
	Limit      int
}

// ContentSource is the interface for content registries
type ContentSource interface {
	// Identity
	ID() string
	Name() string

	// Discovery
	Search(ctx context.Context, query SearchQuery) (SearchResult, error)
	GetProject(ctx context.Context, projectID string) (*domain.ContentProject, error)

	// Versions, newest first
	GetVersions(ctx context.Context, projectID string) ([]domain.ContentVersion, error)

	// LookupHash identifies a file by SHA-1. Returns domain.ErrContentNotFound when the registry
	// does not know the file.
	LookupHash(ctx context.Context, sha1 string) (*domain.ContentVersion, error)
}

const defaultLimit = 20

// Normalize fills in defaults for unset paging and sort fields
func (q SearchQuery) Normalize() SearchQuery {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Sort == "" {
		q.Sort = SortRelevance
	}
	return q
}
