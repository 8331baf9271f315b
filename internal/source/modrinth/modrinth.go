// Package modrinth implements the Modrinth content registry.
package modrinth

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/source"
)

// Modrinth implements the ContentSource interface
type Modrinth struct {
	client *Client
}

// New creates a new Modrinth source
func New(httpClient *http.Client) *Modrinth {
	return &Modrinth{client: NewClient(httpClient)}
}

// NewWithClient creates a Modrinth source around an existing client
func NewWithClient(c *Client) *Modrinth {
	return &Modrinth{client: c}
}

// ID returns the source identifier
func (m *Modrinth) ID() string {
	return "modrinth"
}

// Name returns the display name
func (m *Modrinth) Name() string {
	return "Modrinth"
}

// Search finds projects matching the query
func (m *Modrinth) Search(ctx context.Context, query source.SearchQuery) (source.SearchResult, error) {
	query = query.Normalize()

	resp, err := m.client.Search(ctx, query.Query, searchFacets(query), sortIndex(query.Sort), query.Offset, query.Limit)
	if err != nil {
		return source.SearchResult{}, err
	}

	projects := make([]domain.ContentProject, len(resp.Hits))
	for i, h := range resp.Hits {
		projects[i] = domain.ContentProject{
			ID:            h.ProjectID,
			SourceID:      m.ID(),
			Slug:          h.Slug,
			Name:          h.Title,
			Summary:       h.Description,
			Author:        h.Author,
			IconURL:       h.IconURL,
			Downloads:     h.Downloads,
			Categories:    h.Categories,
			GameVersions:  h.Versions,
			LatestVersion: h.LatestVersion,
			UpdatedAt:     h.DateModified,
		}
	}

	return source.SearchResult{
		Projects:   projects,
		TotalCount: resp.TotalHits,
		Offset:     resp.Offset,
		Limit:      resp.Limit,
	}, nil
}

// GetProject retrieves a project by id or slug
func (m *Modrinth) GetProject(ctx context.Context, projectID string) (*domain.ContentProject, error) {
	p, err := m.client.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &domain.ContentProject{
		ID:           p.ID,
		SourceID:     m.ID(),
		Slug:         p.Slug,
		Name:         p.Title,
		Summary:      p.Description,
		IconURL:      p.IconURL,
		Downloads:    p.Downloads,
		Categories:   p.Categories,
		GameVersions: p.GameVersions,
		Loaders:      p.Loaders,
		UpdatedAt:    p.Updated,
	}, nil
}

// GetVersions returns every version of a project, newest first
func (m *Modrinth) GetVersions(ctx context.Context, projectID string) ([]domain.ContentVersion, error) {
	versions, err := m.client.GetProjectVersions(ctx, projectID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ContentVersion, len(versions))
	for i, v := range versions {
		out[i] = versionToDomain(v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Published.After(out[j].Published) })
	return out, nil
}

// LookupHash identifies a file by SHA-1
func (m *Modrinth) LookupHash(ctx context.Context, sha1 string) (*domain.ContentVersion, error) {
	v, err := m.client.GetVersionByHash(ctx, strings.ToLower(sha1))
	if err != nil {
		return nil, err
	}
	cv := versionToDomain(*v)
	return &cv, nil
}

// searchFacets builds Modrinth's AND-of-ORs facet filter
func searchFacets(q source.SearchQuery) [][]string {
	facets := [][]string{{"project_type:" + projectType(q.Kind)}}
	if q.GameVersion != "" {
		facets = append(facets, []string{"versions:" + q.GameVersion})
	}
	if q.Loader != "" && q.Kind.NeedsLoader() {
		loaders := []string{"categories:" + strings.ToLower(q.Loader)}
		if strings.EqualFold(q.Loader, domain.LoaderQuilt.String()) {
			loaders = append(loaders, "categories:"+domain.LoaderFabric.String())
		}
		facets = append(facets, loaders)
	}
	if q.Category != "" {
		facets = append(facets, []string{"categories:" + strings.ToLower(q.Category)})
	}
	return facets
}

func projectType(kind domain.ContentKind) string {
	switch kind {
	case domain.ContentResourcePack:
		return "resourcepack"
	case domain.ContentShaderPack:
		return "shader"
	default:
		return "mod"
	}
}

func sortIndex(s source.SortOrder) string {
	switch s {
	case source.SortDownloads, source.SortFollows, source.SortNewest, source.SortUpdated:
		return string(s)
	default:
		return string(source.SortRelevance)
	}
}

func versionToDomain(v Version) domain.ContentVersion {
	cv := domain.ContentVersion{
		ID:            v.ID,
		ProjectID:     v.ProjectID,
		Name:          v.Name,
		VersionNumber: v.VersionNumber,
		GameVersions:  v.GameVersions,
		Loaders:       v.Loaders,
		Published:     v.DatePublished,
	}
	for _, f := range v.Files {
		cv.Files = append(cv.Files, domain.ContentFile{
			URL:      f.URL,
			Filename: f.Filename,
			Primary:  f.Primary,
			Size:     f.Size,
			SHA1:     f.Hashes.SHA1,
			SHA512:   f.Hashes.SHA512,
		})
	}
	for _, d := range v.Dependencies {
		cv.Dependencies = append(cv.Dependencies, domain.ContentDependency{
			ProjectID: d.ProjectID,
			VersionID: d.VersionID,
			Type:      dependencyType(d.DependencyType),
		})
	}
	return cv
}

func dependencyType(s string) domain.DependencyType {
	switch s {
	case "optional":
		return domain.DependencyOptional
	case "incompatible":
		return domain.DependencyIncompatible
	case "embedded":
		return domain.DependencyEmbedded
	default:
		return domain.DependencyRequired
	}
}
