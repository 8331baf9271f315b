// Package curseforge implements the CurseForge content registry for Minecraft.
package curseforge

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/source"
)

// CurseForge implements the ContentSource interface
type CurseForge struct {
	client *Client
	// categoryCache maps "class:slug" to numeric category ids
	categoryCache map[string]int
	cacheMu       sync.RWMutex
}

// New creates a new CurseForge source
func New(httpClient *http.Client, apiKey string) *CurseForge {
	return &CurseForge{
		client:        NewClient(httpClient, apiKey),
		categoryCache: make(map[string]int),
	}
}

// ID returns the source identifier
func (c *CurseForge) ID() string {
	return "curseforge"
}

// Name returns the display name
func (c *CurseForge) Name() string {
	return "CurseForge"
}

// SetAPIKey sets the API key for authentication
func (c *CurseForge) SetAPIKey(key string) {
	c.client.SetAPIKey(key)
}

// SetBaseURL points the source at another API root
func (c *CurseForge) SetBaseURL(u string) {
	c.client.SetBaseURL(u)
}

// IsAuthenticated returns true if an API key is configured
func (c *CurseForge) IsAuthenticated() bool {
	return c.client.IsAuthenticated()
}

// resolveCategoryID converts a category (numeric ID or slug) to a numeric ID.
// Slugs are resolved once per class and cached.
func (c *CurseForge) resolveCategoryID(ctx context.Context, classID int, category string) (int, error) {
	if id, err := strconv.Atoi(category); err == nil {
		return id, nil
	}

	key := strconv.Itoa(classID) + ":" + strings.ToLower(category)
	c.cacheMu.RLock()
	if id, ok := c.categoryCache[key]; ok {
		c.cacheMu.RUnlock()
		return id, nil
	}
	c.cacheMu.RUnlock()

	categories, err := c.client.GetCategories(ctx, classID)
	if err != nil {
		return 0, fmt.Errorf("fetching categories to resolve %q: %w", category, err)
	}

	slugLower := strings.ToLower(category)
	for _, cat := range categories {
		if strings.ToLower(cat.Slug) == slugLower || strings.ToLower(cat.Name) == slugLower {
			c.cacheMu.Lock()
			c.categoryCache[key] = cat.ID
			c.cacheMu.Unlock()
			return cat.ID, nil
		}
	}

	return 0, fmt.Errorf("category not found: %q", category)
}

// Search finds projects matching the query
func (c *CurseForge) Search(ctx context.Context, query source.SearchQuery) (source.SearchResult, error) {
	query = query.Normalize()

	params := SearchParams{
		Query:       query.Query,
		ClassID:     classID(query.Kind),
		GameVersion: query.GameVersion,
		SortField:   sortField(query.Sort),
		PageSize:    query.Limit,
		Index:       query.Offset,
	}
	if query.Kind.NeedsLoader() {
		params.ModLoaderType = modLoaderType(query.Loader)
	}
	if query.Category != "" {
		id, err := c.resolveCategoryID(ctx, params.ClassID, query.Category)
		if err != nil {
			return source.SearchResult{}, err
		}
		params.CategoryID = id
	}

	results, page, err := c.client.SearchMods(ctx, params)
	if err != nil {
		return source.SearchResult{}, err
	}

	projects := make([]domain.ContentProject, len(results))
	for i, r := range results {
		projects[i] = c.modToDomain(r)
	}

	// CurseForge's relevance ordering favors popularity; put name matches first
	if query.Sort == source.SortRelevance && query.Query != "" {
		queryLower := strings.ToLower(query.Query)
		sort.SliceStable(projects, func(i, j int) bool {
			iNameMatch := strings.Contains(strings.ToLower(projects[i].Name), queryLower)
			jNameMatch := strings.Contains(strings.ToLower(projects[j].Name), queryLower)
			if iNameMatch != jNameMatch {
				return iNameMatch
			}
			return projects[i].Downloads > projects[j].Downloads
		})
	}

	return source.SearchResult{
		Projects:   projects,
		TotalCount: page.TotalCount,
		Offset:     page.Index,
		Limit:      page.PageSize,
	}, nil
}

// GetProject retrieves a specific project
func (c *CurseForge) GetProject(ctx context.Context, projectID string) (*domain.ContentProject, error) {
	id, err := strconv.Atoi(projectID)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID %q: %w", projectID, err)
	}

	data, err := c.client.GetMod(ctx, id)
	if err != nil {
		return nil, err
	}

	p := c.modToDomain(*data)
	return &p, nil
}

// GetVersions returns the project's files as versions, newest first. Server packs are skipped.
func (c *CurseForge) GetVersions(ctx context.Context, projectID string) ([]domain.ContentVersion, error) {
	id, err := strconv.Atoi(projectID)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID %q: %w", projectID, err)
	}

	files, err := c.client.GetModFiles(ctx, id)
	if err != nil {
		return nil, err
	}

	versions := make([]domain.ContentVersion, 0, len(files))
	for _, f := range files {
		if f.IsServerPack {
			continue
		}
		versions = append(versions, fileToVersion(f))
	}
	sort.SliceStable(versions, func(i, j int) bool { return versions[i].Published.After(versions[j].Published) })
	return versions, nil
}

// LookupHash is not supported: CurseForge identifies files by murmur2 fingerprint, not SHA-1.
func (c *CurseForge) LookupHash(ctx context.Context, sha1 string) (*domain.ContentVersion, error) {
	return nil, fmt.Errorf("%w: curseforge cannot look up files by sha1", domain.ErrContentNotFound)
}

// ResolveDownloadURL returns the file's download URL, asking the API when the listing omitted it
func (c *CurseForge) ResolveDownloadURL(ctx context.Context, projectID, fileID string) (string, error) {
	modID, err := strconv.Atoi(projectID)
	if err != nil {
		return "", fmt.Errorf("invalid project ID: %w", err)
	}
	fID, err := strconv.Atoi(fileID)
	if err != nil {
		return "", fmt.Errorf("invalid file ID: %w", err)
	}
	return c.client.GetDownloadURL(ctx, modID, fID)
}

// modToDomain converts a CurseForge Mod to domain.ContentProject
func (c *CurseForge) modToDomain(data Mod) domain.ContentProject {
	p := domain.ContentProject{
		ID:        strconv.Itoa(data.ID),
		SourceID:  c.ID(),
		Slug:      data.Slug,
		Name:      data.Name,
		Summary:   data.Summary,
		Downloads: data.DownloadCount,
		UpdatedAt: data.DateModified,
	}
	if len(data.Authors) > 0 {
		p.Author = data.Authors[0].Name
	}
	if data.Logo != nil {
		p.IconURL = data.Logo.ThumbnailURL
	}
	for _, cat := range data.Categories {
		p.Categories = append(p.Categories, cat.Slug)
	}

	seenVersion := make(map[string]bool)
	seenLoader := make(map[string]bool)
	for _, idx := range data.LatestFilesIndexes {
		if idx.GameVersion != "" && !seenVersion[idx.GameVersion] {
			seenVersion[idx.GameVersion] = true
			p.GameVersions = append(p.GameVersions, idx.GameVersion)
		}
		if name := loaderName(idx.ModLoader); name != "" && !seenLoader[name] {
			seenLoader[name] = true
			p.Loaders = append(p.Loaders, name)
		}
	}

	if len(data.LatestFiles) > 0 {
		p.LatestVersion = extractVersion(data.LatestFiles[0].DisplayName, data.LatestFiles[0].FileName)
	}
	return p
}

// fileToVersion converts a CurseForge File. Its gameVersions list mixes
// Minecraft versions with loader and environment tags ("Forge", "Client", "Java 17").
func fileToVersion(f File) domain.ContentVersion {
	v := domain.ContentVersion{
		ID:            strconv.Itoa(f.ID),
		ProjectID:     strconv.Itoa(f.ModID),
		Name:          f.DisplayName,
		VersionNumber: extractVersion(f.DisplayName, f.FileName),
		Published:     f.FileDate,
	}

	for _, tag := range f.GameVersions {
		switch {
		case tag != "" && unicode.IsDigit(rune(tag[0])):
			v.GameVersions = append(v.GameVersions, tag)
		default:
			if kind, ok := domain.ParseLoaderKind(tag); ok && kind != domain.LoaderVanilla {
				v.Loaders = append(v.Loaders, kind.String())
			}
		}
	}

	file := domain.ContentFile{
		URL:      f.DownloadURL,
		Filename: f.FileName,
		Primary:  true,
		Size:     f.FileLength,
	}
	for _, h := range f.Hashes {
		if h.Algo == HashAlgoSHA1 {
			file.SHA1 = strings.ToLower(h.Value)
		}
	}
	v.Files = []domain.ContentFile{file}

	for _, dep := range f.Dependencies {
		v.Dependencies = append(v.Dependencies, domain.ContentDependency{
			ProjectID: strconv.Itoa(dep.ModID),
			Type:      relationType(dep.RelationType),
		})
	}
	return v
}

func classID(kind domain.ContentKind) int {
	switch kind {
	case domain.ContentResourcePack:
		return ClassResourcePacks
	case domain.ContentShaderPack:
		return ClassShaders
	default:
		return ClassMods
	}
}

func sortField(s source.SortOrder) int {
	switch s {
	case source.SortDownloads:
		return SortTotalDownloads
	case source.SortFollows:
		return SortPopularity
	case source.SortNewest, source.SortUpdated:
		return SortLastUpdated
	default:
		return 0
	}
}

func modLoaderType(loader string) int {
	kind, ok := domain.ParseLoaderKind(loader)
	if !ok {
		return ModLoaderAny
	}
	switch kind {
	case domain.LoaderForge:
		return ModLoaderForge
	case domain.LoaderFabric:
		return ModLoaderFabric
	case domain.LoaderQuilt:
		return ModLoaderQuilt
	case domain.LoaderNeoForge:
		return ModLoaderNeoForge
	default:
		return ModLoaderAny
	}
}

func loaderName(t int) string {
	switch t {
	case ModLoaderForge:
		return domain.LoaderForge.String()
	case ModLoaderFabric:
		return domain.LoaderFabric.String()
	case ModLoaderQuilt:
		return domain.LoaderQuilt.String()
	case ModLoaderNeoForge:
		return domain.LoaderNeoForge.String()
	default:
		return ""
	}
}

func relationType(r int) domain.DependencyType {
	switch r {
	case RelationRequiredDependency:
		return domain.DependencyRequired
	case RelationIncompatible:
		return domain.DependencyIncompatible
	case RelationEmbeddedLibrary, RelationInclude:
		return domain.DependencyEmbedded
	default:
		return domain.DependencyOptional
	}
}

// versionRegex matches semantic version patterns like 1.2.3, v1.2.3, 1.2.3-beta, etc.
// The optional suffix must start with a letter (to avoid matching 1.20.1-15.3.0 as one version).
var versionRegex = regexp.MustCompile(`[vV]?(\d+\.\d+(?:\.\d+)?(?:\.\d+)?(?:[-+][a-zA-Z][\w.]*)?)`)

// extractVersion attempts to extract a version string from a display name or filename.
// Returns the last version-like pattern found (the mod version follows the Minecraft version).
func extractVersion(displayName, fileName string) string {
	for _, s := range []string{displayName, fileName} {
		if s == "" {
			continue
		}
		base := strings.TrimSuffix(s, ".jar")
		base = strings.TrimSuffix(base, ".zip")

		// "jei-1.20.1-15.3.0.4" yields 1.20.1 then 15.3.0.4
		matches := versionRegex.FindAllStringSubmatch(base, -1)
		if len(matches) > 0 {
			return matches[len(matches)-1][1]
		}
	}
	return ""
}
