package manifest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// VersionEntry is one game version listed in the version manifest
type VersionEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // release, snapshot, old_beta, old_alpha
	URL         string    `json:"url"`
	SHA1        string    `json:"sha1"`
	ReleaseTime time.Time `json:"releaseTime"`
}

type versionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []VersionEntry `json:"versions"`
}

type download struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type assetIndexRef struct {
	ID   string `json:"id"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type rule struct {
	Action string `json:"action"`
	OS     *struct {
		Name string `json:"name"`
	} `json:"os"`
	Features map[string]bool `json:"features"`
}

type library struct {
	Name      string `json:"name"`
	URL       string `json:"url"` // Maven base for libraries without a downloads block
	Downloads *struct {
		Artifact    *download           `json:"artifact"`
		Classifiers map[string]download `json:"classifiers"`
	} `json:"downloads"`
	Natives map[string]string `json:"natives"`
	Rules   []rule            `json:"rules"`
}

type versionJSON struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	MainClass  string        `json:"mainClass"`
	Assets     string        `json:"assets"`
	AssetIndex assetIndexRef `json:"assetIndex"`
	Libraries  []library     `json:"libraries"`
	Downloads  struct {
		Client download `json:"client"`
	} `json:"downloads"`
}

type assetIndex struct {
	Objects map[string]struct {
		Hash string `json:"hash"`
		Size int64  `json:"size"`
	} `json:"objects"`
}

const defaultLibraryMaven = "https://libraries.minecraft.net/"

// versionManifest returns the manifest, fetching it once per resolver lifetime
func (r *Resolver) versionManifest(ctx context.Context) (*versionManifest, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.manifest != nil {
		return r.manifest, r.stale, nil
	}

	body, stale, err := r.fetchDocument(ctx, "version_manifest", r.endpoints.VersionManifest)
	if err != nil {
		return nil, false, err
	}

	var m versionManifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, false, fmt.Errorf("%w: parsing version manifest: %v", domain.ErrManifestUnavailable, err)
	}

	r.manifest = &m
	r.stale = stale
	return r.manifest, stale, nil
}

func (r *Resolver) findVersion(ctx context.Context, gameVersion string) (*VersionEntry, error) {
	m, _, err := r.versionManifest(ctx)
	if err != nil {
		return nil, err
	}
	for i := range m.Versions {
		if m.Versions[i].ID == gameVersion {
			return &m.Versions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrVersionNotFound, gameVersion)
}

func (r *Resolver) resolveVanilla(ctx context.Context, gameVersion string) (*domain.VersionGraph, error) {
	_, manifestStale, err := r.versionManifest(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := r.findVersion(ctx, gameVersion)
	if err != nil {
		return nil, err
	}

	body, stale, err := r.immutableDocument(ctx, "version:"+entry.ID, entry.URL, entry.SHA1)
	if err != nil {
		return nil, err
	}

	var v versionJSON
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: parsing version %s: %v", domain.ErrManifestUnavailable, gameVersion, err)
	}

	graph := &domain.VersionGraph{
		GameVersion: v.ID,
		VersionType: entry.Type,
		Loader:      domain.Loader{Kind: domain.LoaderVanilla},
		MainClass:   v.MainClass,
		AssetIndex:  v.AssetIndex.ID,
		Stale:       manifestStale || stale,
	}
	if graph.AssetIndex == "" {
		graph.AssetIndex = v.Assets
	}

	graph.Artifacts = append(graph.Artifacts, r.libraryArtifacts(v.Libraries, domain.ArtifactLibrary, defaultLibraryMaven)...)

	graph.Artifacts = append(graph.Artifacts, domain.Artifact{
		Path: fmt.Sprintf("versions/%s/%s.jar", v.ID, v.ID),
		URL:  v.Downloads.Client.URL,
		SHA1: v.Downloads.Client.SHA1,
		Size: v.Downloads.Client.Size,
		Kind: domain.ArtifactClientJar,
	})

	if v.AssetIndex.URL != "" {
		assets, assetsStale, err := r.assetArtifacts(ctx, graph.AssetIndex, v.AssetIndex)
		if err != nil {
			return nil, err
		}
		graph.Artifacts = append(graph.Artifacts, assets...)
		graph.Stale = graph.Stale || assetsStale
	}

	return graph, nil
}

// libraryArtifacts converts version-JSON libraries into artifacts, applying OS rules.
// Legacy native classifiers for the current OS become Native artifacts.
func (r *Resolver) libraryArtifacts(libs []library, kind domain.ArtifactKind, defaultMaven string) []domain.Artifact {
	var out []domain.Artifact
	for _, lib := range libs {
		if !rulesAllow(lib.Rules, r.osName) {
			continue
		}

		switch {
		case lib.Downloads != nil && lib.Downloads.Artifact != nil:
			a := lib.Downloads.Artifact
			path := a.Path
			if path == "" {
				p, err := domain.MavenPath(lib.Name)
				if err != nil {
					r.log.Debug().Str("library", lib.Name).Msg("Skipping library with unusable name")
					continue
				}
				path = p
			}
			out = append(out, domain.Artifact{
				Path: "libraries/" + path,
				URL:  a.URL,
				SHA1: a.SHA1,
				Size: a.Size,
				Kind: kind,
			})
		case lib.Downloads == nil && lib.Natives == nil:
			path, err := domain.MavenPath(lib.Name)
			if err != nil {
				r.log.Debug().Str("library", lib.Name).Msg("Skipping library with unusable name")
				continue
			}
			base := lib.URL
			if base == "" {
				base = defaultMaven
			}
			out = append(out, domain.Artifact{
				Path: "libraries/" + path,
				URL:  joinURL(base, path),
				Kind: kind,
			})
		}

		if classifier, ok := lib.Natives[r.osName]; ok && lib.Downloads != nil {
			classifier = strings.ReplaceAll(classifier, "${arch}", "64")
			if n, ok := lib.Downloads.Classifiers[classifier]; ok {
				out = append(out, domain.Artifact{
					Path: "libraries/" + n.Path,
					URL:  n.URL,
					SHA1: n.SHA1,
					Size: n.Size,
					Kind: domain.ArtifactNative,
				})
			}
		}
	}
	return out
}

// assetArtifacts returns the asset index itself followed by every distinct asset object, sorted by hash
func (r *Resolver) assetArtifacts(ctx context.Context, id string, idx assetIndexRef) ([]domain.Artifact, bool, error) {
	body, stale, err := r.immutableDocument(ctx, "assets:"+id, idx.URL, idx.SHA1)
	if err != nil {
		return nil, false, err
	}

	var index assetIndex
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, false, fmt.Errorf("%w: parsing asset index %s: %v", domain.ErrManifestUnavailable, id, err)
	}

	out := []domain.Artifact{{
		Path: fmt.Sprintf("assets/indexes/%s.json", id),
		URL:  idx.URL,
		SHA1: idx.SHA1,
		Size: idx.Size,
		Kind: domain.ArtifactAssetIndex,
	}}

	seen := make(map[string]bool, len(index.Objects))
	var objects []domain.Artifact
	for _, obj := range index.Objects {
		if len(obj.Hash) < 2 || seen[obj.Hash] {
			continue
		}
		seen[obj.Hash] = true
		prefix := obj.Hash[:2]
		objects = append(objects, domain.Artifact{
			Path: fmt.Sprintf("assets/objects/%s/%s", prefix, obj.Hash),
			URL:  fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(r.endpoints.Resources, "/"), prefix, obj.Hash),
			SHA1: obj.Hash,
			Size: obj.Size,
			Kind: domain.ArtifactAsset,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })

	return append(out, objects...), stale, nil
}

// immutableDocument serves a checksummed document from the store when the stored copy still matches,
// and fetches it otherwise
func (r *Resolver) immutableDocument(ctx context.Context, key, url, sum string) ([]byte, bool, error) {
	if sum != "" {
		if body := r.storedDocument(key); body != nil && sha1Hex(body) == strings.ToLower(sum) {
			return body, false, nil
		}
	}
	return r.fetchDocument(ctx, key, url)
}

// rulesAllow evaluates library rules for an OS. No rules means allowed; otherwise the last
// matching rule decides. Rules gated on launcher features never match.
func rulesAllow(rules []rule, osName string) bool {
	if len(rules) == 0 {
		return true
	}
	allowed := false
	for _, rl := range rules {
		if len(rl.Features) > 0 {
			continue
		}
		if rl.OS != nil && rl.OS.Name != "" && rl.OS.Name != osName {
			continue
		}
		allowed = rl.Action == "allow"
	}
	return allowed
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
