package modrinth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

const (
	defaultBaseURL = "https://api.modrinth.com/v2"
	maxLimit       = 100
)

// Client wraps the Modrinth REST API v2
type Client struct {
	rest *resty.Client
}

// NewClient creates a new Modrinth API client. A nil httpClient uses resty's default.
func NewClient(httpClient *http.Client) *Client {
	var rest *resty.Client
	if httpClient != nil {
		rest = resty.NewWithClient(httpClient)
	} else {
		rest = resty.New()
	}
	rest.SetBaseURL(defaultBaseURL).
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "DonovanMods/lion-launcher").
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err == nil && (resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500)
		})
	return &Client{rest: rest}
}

// SetBaseURL points the client at another API root
func (c *Client) SetBaseURL(url string) {
	c.rest.SetBaseURL(url)
}

// get performs a GET and decodes the JSON body into result
func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) error {
	var apiErr APIError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrContentNotFound, path)
	case resp.IsError():
		if apiErr.Description != "" {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode(), apiErr.Description)
		}
		return &domain.NetworkError{URL: resp.Request.URL, StatusCode: resp.StatusCode(), Attempts: resp.Request.Attempt}
	}
	return nil
}

// Search runs a faceted project search
func (c *Client) Search(ctx context.Context, query string, facets [][]string, index string, offset, limit int) (*SearchResponse, error) {
	if limit > maxLimit {
		limit = maxLimit
	}

	params := map[string]string{
		"index":  index,
		"offset": strconv.Itoa(offset),
		"limit":  strconv.Itoa(limit),
	}
	if query != "" {
		params["query"] = query
	}
	if len(facets) > 0 {
		data, err := json.Marshal(facets)
		if err != nil {
			return nil, fmt.Errorf("encoding facets: %w", err)
		}
		params["facets"] = string(data)
	}

	var out SearchResponse
	if err := c.get(ctx, "/search", params, &out); err != nil {
		return nil, fmt.Errorf("searching projects: %w", err)
	}
	return &out, nil
}

// GetProject fetches a project by id or slug
func (c *Client) GetProject(ctx context.Context, idOrSlug string) (*Project, error) {
	var out Project
	if err := c.get(ctx, "/project/"+idOrSlug, nil, &out); err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return &out, nil
}

// GetProjectVersions fetches every version of a project, newest first
func (c *Client) GetProjectVersions(ctx context.Context, idOrSlug string) ([]Version, error) {
	var out []Version
	if err := c.get(ctx, "/project/"+idOrSlug+"/version", nil, &out); err != nil {
		return nil, fmt.Errorf("getting versions: %w", err)
	}
	return out, nil
}

// GetVersionByHash identifies a file by its SHA-1
func (c *Client) GetVersionByHash(ctx context.Context, sha1 string) (*Version, error) {
	var out Version
	if err := c.get(ctx, "/version_file/"+sha1, map[string]string{"algorithm": "sha1"}, &out); err != nil {
		return nil, fmt.Errorf("looking up file hash: %w", err)
	}
	return &out, nil
}
