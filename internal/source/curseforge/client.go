package curseforge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

const (
	defaultBaseURL = "https://api.curseforge.com"

	// MinecraftGameID is CurseForge's numeric id for Minecraft
	MinecraftGameID = 432

	maxPageSize = 50
)

// Client wraps the CurseForge REST API v1
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient creates a new CurseForge API client
func NewClient(httpClient *http.Client, apiKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
}

// SetAPIKey sets the API key for authentication
func (c *Client) SetAPIKey(key string) {
	c.apiKey = key
}

// SetBaseURL points the client at another API root
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// IsAuthenticated returns true if an API key is configured
func (c *Client) IsAuthenticated() bool {
	return c.apiKey != ""
}

// doRequest performs an HTTP request with authentication
func (c *Client) doRequest(ctx context.Context, method, path string, result interface{}) (err error) {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{URL: reqURL, Attempts: 1, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing response body: %w", cerr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: CurseForge API key required", domain.ErrInvalidConfig)
	case resp.StatusCode == http.StatusForbidden:
		// 403 means a missing or invalid key, or an author who disabled third-party distribution
		if c.apiKey == "" {
			return fmt.Errorf("%w: CurseForge API key required", domain.ErrInvalidConfig)
		}
		if strings.HasSuffix(path, "/download-url") {
			return fmt.Errorf("project author has disabled third-party downloads; download it from the CurseForge website")
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if len(body) > 0 {
			return fmt.Errorf("%w: access denied (check API key): %s", domain.ErrInvalidConfig, string(body))
		}
		return fmt.Errorf("%w: access denied (check API key is valid)", domain.ErrInvalidConfig)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrContentNotFound, path)
	case resp.StatusCode >= 500:
		return &domain.NetworkError{URL: reqURL, StatusCode: resp.StatusCode, Attempts: 1}
	case resp.StatusCode != http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*1024)) // Limit error body to 10KB
		if readErr != nil {
			return fmt.Errorf("API error (status %d); reading body: %w", resp.StatusCode, readErr)
		}
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// SearchParams filters a project search
type SearchParams struct {
	Query         string
	ClassID       int
	CategoryID    int
	GameVersion   string
	ModLoaderType int // ModLoaderAny for no filter
	SortField     int
	PageSize      int
	Index         int
}

// SearchMods searches Minecraft projects with the given parameters
func (c *Client) SearchMods(ctx context.Context, p SearchParams) ([]Mod, *Pagination, error) {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}

	params := url.Values{}
	params.Set("gameId", strconv.Itoa(MinecraftGameID))
	if p.Query != "" {
		params.Set("searchFilter", p.Query)
	}
	if p.ClassID > 0 {
		params.Set("classId", strconv.Itoa(p.ClassID))
	}
	if p.CategoryID > 0 {
		params.Set("categoryId", strconv.Itoa(p.CategoryID))
	}
	if p.GameVersion != "" {
		params.Set("gameVersion", p.GameVersion)
	}
	if p.ModLoaderType != ModLoaderAny {
		params.Set("modLoaderType", strconv.Itoa(p.ModLoaderType))
	}
	if p.SortField > 0 {
		params.Set("sortField", strconv.Itoa(p.SortField))
		params.Set("sortOrder", "desc")
	}
	params.Set("pageSize", strconv.Itoa(p.PageSize))
	params.Set("index", strconv.Itoa(p.Index))

	path := "/v1/mods/search?" + params.Encode()

	var resp PaginatedResponse[[]Mod]
	if err := c.doRequest(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, nil, fmt.Errorf("searching mods: %w", err)
	}

	return resp.Data, &resp.Pagination, nil
}

// GetMod fetches a single project by ID
func (c *Client) GetMod(ctx context.Context, modID int) (*Mod, error) {
	path := fmt.Sprintf("/v1/mods/%d", modID)

	var resp APIResponse[Mod]
	if err := c.doRequest(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, fmt.Errorf("getting mod: %w", err)
	}
	return &resp.Data, nil
}

// GetModFiles fetches every file of a project, following pagination
func (c *Client) GetModFiles(ctx context.Context, modID int) ([]File, error) {
	var all []File
	index := 0

	for {
		params := url.Values{}
		params.Set("pageSize", strconv.Itoa(maxPageSize))
		params.Set("index", strconv.Itoa(index))
		path := fmt.Sprintf("/v1/mods/%d/files?%s", modID, params.Encode())

		var resp PaginatedResponse[[]File]
		if err := c.doRequest(ctx, http.MethodGet, path, &resp); err != nil {
			return nil, fmt.Errorf("getting mod files: %w", err)
		}
		all = append(all, resp.Data...)

		p := resp.Pagination
		if len(resp.Data) == 0 || p.Index+p.PageSize >= p.TotalCount {
			break
		}
		index += p.PageSize
	}

	return all, nil
}

// GetModFile fetches a specific file for a project
func (c *Client) GetModFile(ctx context.Context, modID, fileID int) (*File, error) {
	path := fmt.Sprintf("/v1/mods/%d/files/%d", modID, fileID)

	var resp APIResponse[File]
	if err := c.doRequest(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, fmt.Errorf("getting mod file: %w", err)
	}
	return &resp.Data, nil
}

// GetDownloadURL fetches the download URL for a project file
func (c *Client) GetDownloadURL(ctx context.Context, modID, fileID int) (string, error) {
	path := fmt.Sprintf("/v1/mods/%d/files/%d/download-url", modID, fileID)

	var resp StringDownloadURL
	if err := c.doRequest(ctx, http.MethodGet, path, &resp); err != nil {
		return "", fmt.Errorf("getting download URL: %w", err)
	}
	return resp.Data, nil
}

// GetCategories fetches Minecraft categories, optionally limited to a class
func (c *Client) GetCategories(ctx context.Context, classID int) ([]Category, error) {
	path := fmt.Sprintf("/v1/categories?gameId=%d", MinecraftGameID)
	if classID > 0 {
		path += fmt.Sprintf("&classId=%d", classID)
	}

	var resp APIResponse[[]Category]
	if err := c.doRequest(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, fmt.Errorf("getting categories: %w", err)
	}
	return resp.Data, nil
}
