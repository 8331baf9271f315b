// Package manifest resolves the version graph of a game version plus loader from upstream metadata.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/logging"
	"github.com/DonovanMods/lion-launcher/internal/storage/db"
)

// Endpoints are the upstream metadata locations. Tests point them at local servers.
type Endpoints struct {
	VersionManifest  string
	Resources        string
	FabricMeta       string
	FabricMaven      string
	QuiltMeta        string
	QuiltMaven       string
	ForgeMaven       string
	ForgeMetadata    string
	NeoForgeMaven    string
	NeoForgeVersions string
}

// DefaultEndpoints returns the public upstreams
func DefaultEndpoints() Endpoints {
	return Endpoints{
		VersionManifest:  "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json",
		Resources:        "https://resources.download.minecraft.net",
		FabricMeta:       "https://meta.fabricmc.net/v2",
		FabricMaven:      "https://maven.fabricmc.net/",
		QuiltMeta:        "https://meta.quiltmc.org/v3",
		QuiltMaven:       "https://maven.quiltmc.org/repository/release/",
		ForgeMaven:       "https://maven.minecraftforge.net/",
		ForgeMetadata:    "https://files.minecraftforge.net/net/minecraftforge/forge/maven-metadata.json",
		NeoForgeMaven:    "https://maven.neoforged.net/releases/",
		NeoForgeVersions: "https://maven.neoforged.net/api/maven/versions/releases/net/neoforged/neoforge",
	}
}

// DocumentStore keeps the last good copy of every fetched document for offline use
type DocumentStore interface {
	SaveDocument(doc *db.Document) error
	GetDocument(key string) (*db.Document, error)
}

// LoaderVersion is one published build of a loader for a game version
type LoaderVersion struct {
	Version string
	Stable  bool
}

// Option configures a Resolver
type Option func(*Resolver)

// WithEndpoints overrides the upstream locations
func WithEndpoints(e Endpoints) Option {
	return func(r *Resolver) {
		r.endpoints = e
	}
}

// WithHTTPClient sets the client used for metadata requests
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.client = resty.NewWithClient(c)
		configureClient(r.client)
	}
}

// WithInstallersDir sets where Forge and NeoForge installer jars are kept
func WithInstallersDir(dir string) Option {
	return func(r *Resolver) {
		r.installersDir = dir
	}
}

// WithOS overrides the operating system used to evaluate library rules ("linux", "osx", "windows")
func WithOS(name string) Option {
	return func(r *Resolver) {
		r.osName = name
	}
}

// Resolver turns (game version, loader) into a VersionGraph
type Resolver struct {
	client        *resty.Client
	store         DocumentStore
	endpoints     Endpoints
	installersDir string
	osName        string
	log           zerolog.Logger

	fetchInstaller InstallerFetcher

	mu       sync.Mutex
	manifest *versionManifest
	stale    bool
}

// New creates a resolver backed by store
func New(store DocumentStore, opts ...Option) *Resolver {
	client := resty.New()
	configureClient(client)

	r := &Resolver{
		client:        client,
		store:         store,
		endpoints:     DefaultEndpoints(),
		installersDir: filepath.Join(os.TempDir(), "lion-installers"),
		osName:        currentOS(),
		log:           logging.Get("manifest"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func configureClient(c *resty.Client) {
	c.SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "lion-launcher").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		})
}

func currentOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "osx"
	default:
		return runtime.GOOS
	}
}

// Resolve produces the merged version graph for a game version and loader.
// When a loader version is not given the latest stable build is used and recorded in the graph.
func (r *Resolver) Resolve(ctx context.Context, gameVersion string, loader domain.Loader) (*domain.VersionGraph, error) {
	graph, err := r.resolveVanilla(ctx, gameVersion)
	if err != nil {
		return nil, err
	}

	var desc *loaderDescriptor
	switch loader.Kind {
	case domain.LoaderVanilla:
		return graph, nil
	case domain.LoaderFabric:
		desc, err = r.resolveFabric(ctx, gameVersion, loader.Version)
	case domain.LoaderQuilt:
		desc, err = r.resolveQuilt(ctx, gameVersion, loader.Version)
	case domain.LoaderForge:
		desc, err = r.resolveForge(ctx, gameVersion, loader.Version)
	case domain.LoaderNeoForge:
		desc, err = r.resolveNeoForge(ctx, gameVersion, loader.Version)
	default:
		return nil, fmt.Errorf("%w: unknown loader %v", domain.ErrInvalidProfile, loader.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s for %s: %w", loader.Kind, gameVersion, err)
	}

	merged := merge(graph, desc)
	merged.Loader = domain.Loader{Kind: loader.Kind, Version: desc.Version}
	r.log.Debug().Str("graph", merged.ID()).Int("artifacts", len(merged.Artifacts)).Bool("stale", merged.Stale).Msg("Resolved")
	return merged, nil
}

// Refresh drops the in-memory version manifest so the next call fetches it again
func (r *Resolver) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifest = nil
	r.stale = false
}

// ListGameVersions returns game versions newest first. Snapshots and old betas are included on request.
func (r *Resolver) ListGameVersions(ctx context.Context, includeSnapshots bool) ([]VersionEntry, error) {
	m, _, err := r.versionManifest(ctx)
	if err != nil {
		return nil, err
	}

	var out []VersionEntry
	for _, v := range m.Versions {
		if !includeSnapshots && v.Type != "release" {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ListLoaderVersions returns the builds of a loader available for a game version, newest first
func (r *Resolver) ListLoaderVersions(ctx context.Context, kind domain.LoaderKind, gameVersion string) ([]LoaderVersion, error) {
	switch kind {
	case domain.LoaderVanilla:
		return nil, nil
	case domain.LoaderFabric:
		return r.listMetaLoaders(ctx, "fabric", r.endpoints.FabricMeta, gameVersion)
	case domain.LoaderQuilt:
		return r.listMetaLoaders(ctx, "quilt", r.endpoints.QuiltMeta, gameVersion)
	case domain.LoaderForge:
		return r.listForgeVersions(ctx, gameVersion)
	case domain.LoaderNeoForge:
		return r.listNeoForgeVersions(ctx, gameVersion)
	default:
		return nil, fmt.Errorf("%w: unknown loader %v", domain.ErrInvalidProfile, kind)
	}
}

// LatestLoaderVersion returns the newest stable build of a loader for a game version,
// or the newest build when none is marked stable
func (r *Resolver) LatestLoaderVersion(ctx context.Context, kind domain.LoaderKind, gameVersion string) (string, error) {
	versions, err := r.ListLoaderVersions(ctx, kind, gameVersion)
	if err != nil {
		return "", err
	}
	return pickLoaderVersion(versions, "", kind, gameVersion)
}

// SupportsLoader validates that gameVersion exists and that loader (and its version, when pinned)
// is published for it
func (r *Resolver) SupportsLoader(ctx context.Context, gameVersion string, loader domain.Loader) error {
	if _, err := r.findVersion(ctx, gameVersion); err != nil {
		return err
	}
	if loader.Kind == domain.LoaderVanilla {
		return nil
	}

	versions, err := r.ListLoaderVersions(ctx, loader.Kind, gameVersion)
	if err != nil {
		return err
	}
	_, err = pickLoaderVersion(versions, loader.Version, loader.Kind, gameVersion)
	return err
}

func pickLoaderVersion(versions []LoaderVersion, want string, kind domain.LoaderKind, gameVersion string) (string, error) {
	if len(versions) == 0 {
		return "", fmt.Errorf("%w: %s is not available for %s", domain.ErrInvalidProfile, kind, gameVersion)
	}
	if want != "" {
		for _, v := range versions {
			if v.Version == want {
				return v.Version, nil
			}
		}
		return "", fmt.Errorf("%w: %s %s is not available for %s", domain.ErrInvalidProfile, kind, want, gameVersion)
	}
	for _, v := range versions {
		if v.Stable {
			return v.Version, nil
		}
	}
	return versions[0].Version, nil
}

// fetchDocument GETs url. A successful response refreshes the stored copy under key. On failure the
// stored copy is returned with stale set; with no stored copy the result is ErrManifestUnavailable.
func (r *Resolver) fetchDocument(ctx context.Context, key, url string) ([]byte, bool, error) {
	resp, err := r.client.R().SetContext(ctx).Get(url)
	if err == nil && resp.IsSuccess() {
		body := resp.Body()
		if serr := r.store.SaveDocument(&db.Document{Key: key, URL: url, Body: body, FetchedAt: time.Now()}); serr != nil {
			r.log.Warn().Err(serr).Str("key", key).Msg("Failed to store document")
		}
		return body, false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, false, ctxErr
	}

	cause := err
	if cause == nil {
		cause = &domain.NetworkError{URL: url, StatusCode: resp.StatusCode(), Attempts: resp.Request.Attempt}
	}

	doc, derr := r.store.GetDocument(key)
	if derr == nil && doc != nil {
		r.log.Warn().Err(cause).Str("key", key).Time("fetchedAt", doc.FetchedAt).Msg("Using stored copy of document")
		return doc.Body, true, nil
	}

	return nil, false, fmt.Errorf("%w: %s: %v", domain.ErrManifestUnavailable, url, cause)
}

// storedDocument returns a stored document without touching the network, or nil
func (r *Resolver) storedDocument(key string) []byte {
	doc, err := r.store.GetDocument(key)
	if err != nil || doc == nil {
		return nil
	}
	return doc.Body
}
