package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// Fabric (meta v2) and Quilt (meta v3) publish the same launcher metadata shape; Quilt adds
// the hashed mappings artifact.

type metaCoordinate struct {
	Maven   string `json:"maven"`
	Version string `json:"version"`
	Stable  *bool  `json:"stable"`
}

type metaLibrary struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
}

type metaLoaderEntry struct {
	Loader       metaCoordinate  `json:"loader"`
	Intermediary metaCoordinate  `json:"intermediary"`
	Hashed       *metaCoordinate `json:"hashed"`
	LauncherMeta json.RawMessage `json:"launcherMeta"`
}

// loaderDescriptor is what a loader contributes on top of the vanilla graph
type loaderDescriptor struct {
	Version   string
	MainClass string
	Artifacts []domain.Artifact
	JVMArgs   []string
	GameArgs  []string
	Stale     bool
}

func (r *Resolver) metaLoaderEntries(ctx context.Context, name, metaURL, gameVersion string) ([]metaLoaderEntry, bool, error) {
	url := fmt.Sprintf("%s/versions/loader/%s", strings.TrimSuffix(metaURL, "/"), gameVersion)
	body, stale, err := r.fetchDocument(ctx, name+":loaders:"+gameVersion, url)
	if err != nil {
		return nil, false, err
	}

	var entries []metaLoaderEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, false, fmt.Errorf("%w: parsing %s loader list: %v", domain.ErrManifestUnavailable, name, err)
	}
	return entries, stale, nil
}

func (r *Resolver) listMetaLoaders(ctx context.Context, name, metaURL, gameVersion string) ([]LoaderVersion, error) {
	entries, _, err := r.metaLoaderEntries(ctx, name, metaURL, gameVersion)
	if err != nil {
		return nil, err
	}

	versions := make([]LoaderVersion, 0, len(entries))
	for _, e := range entries {
		versions = append(versions, LoaderVersion{Version: e.Loader.Version, Stable: metaStable(e.Loader)})
	}
	return versions, nil
}

// metaStable uses the published flag when present (Fabric) and the version label otherwise (Quilt)
func metaStable(c metaCoordinate) bool {
	if c.Stable != nil {
		return *c.Stable
	}
	return labelStable(c.Version)
}

func (r *Resolver) resolveFabric(ctx context.Context, gameVersion, loaderVersion string) (*loaderDescriptor, error) {
	return r.resolveMetaLoader(ctx, "fabric", r.endpoints.FabricMeta, r.endpoints.FabricMaven, gameVersion, loaderVersion)
}

func (r *Resolver) resolveQuilt(ctx context.Context, gameVersion, loaderVersion string) (*loaderDescriptor, error) {
	return r.resolveMetaLoader(ctx, "quilt", r.endpoints.QuiltMeta, r.endpoints.QuiltMaven, gameVersion, loaderVersion)
}

func (r *Resolver) resolveMetaLoader(ctx context.Context, name, metaURL, maven, gameVersion, loaderVersion string) (*loaderDescriptor, error) {
	entries, stale, err := r.metaLoaderEntries(ctx, name, metaURL, gameVersion)
	if err != nil {
		return nil, err
	}

	var entry *metaLoaderEntry
	for i := range entries {
		e := &entries[i]
		if loaderVersion != "" {
			if e.Loader.Version == loaderVersion {
				entry = e
				break
			}
			continue
		}
		if metaStable(e.Loader) {
			entry = e
			break
		}
	}
	if entry == nil && loaderVersion == "" && len(entries) > 0 {
		entry = &entries[0]
	}
	if entry == nil {
		if loaderVersion == "" {
			return nil, fmt.Errorf("%w: no %s loader for %s", domain.ErrVersionNotFound, name, gameVersion)
		}
		return nil, fmt.Errorf("%w: %s loader %s for %s", domain.ErrVersionNotFound, name, loaderVersion, gameVersion)
	}

	desc := &loaderDescriptor{Version: entry.Loader.Version, Stale: stale}

	desc.MainClass, err = metaMainClass(entry.LauncherMeta)
	if err != nil {
		return nil, fmt.Errorf("%w: %s launcher meta: %v", domain.ErrManifestUnavailable, name, err)
	}

	type mavenRef struct{ coord, base string }
	refs := []mavenRef{{entry.Loader.Maven, maven}}
	if entry.Hashed != nil && entry.Hashed.Maven != "" {
		refs = append(refs, mavenRef{entry.Hashed.Maven, maven})
	}
	if entry.Intermediary.Maven != "" {
		// Intermediary mappings are only published on the Fabric maven
		refs = append(refs, mavenRef{entry.Intermediary.Maven, r.endpoints.FabricMaven})
	}
	for _, c := range refs {
		a, err := mavenArtifact(c.coord, c.base, "", 0)
		if err != nil {
			return nil, err
		}
		desc.Artifacts = append(desc.Artifacts, a)
	}

	libs, err := metaLibraries(entry.LauncherMeta)
	if err != nil {
		return nil, fmt.Errorf("%w: %s libraries: %v", domain.ErrManifestUnavailable, name, err)
	}
	for _, lib := range libs {
		base := lib.URL
		if base == "" {
			base = maven
		}
		a, err := mavenArtifact(lib.Name, base, lib.SHA1, lib.Size)
		if err != nil {
			r.log.Debug().Str("library", lib.Name).Msg("Skipping library with unusable name")
			continue
		}
		desc.Artifacts = append(desc.Artifacts, a)
	}

	return desc, nil
}

// metaMainClass reads launcherMeta.mainClass, which is either a string or a {client, server} object
func metaMainClass(meta []byte) (string, error) {
	value, dataType, _, err := jsonparser.Get(meta, "mainClass")
	if err != nil {
		return "", err
	}
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Object:
		return jsonparser.GetString(value, "client")
	default:
		return "", fmt.Errorf("unexpected mainClass type %s", dataType)
	}
}

// metaLibraries returns launcherMeta.libraries.common followed by .client
func metaLibraries(meta []byte) ([]metaLibrary, error) {
	var libs []metaLibrary
	for _, section := range []string{"common", "client"} {
		raw, dataType, _, err := jsonparser.Get(meta, "libraries", section)
		if err == jsonparser.KeyPathNotFoundError || dataType == jsonparser.Null {
			continue
		}
		if err != nil {
			return nil, err
		}
		var part []metaLibrary
		if err := json.Unmarshal(raw, &part); err != nil {
			return nil, err
		}
		libs = append(libs, part...)
	}
	return libs, nil
}

func mavenArtifact(coord, base, sum string, size int64) (domain.Artifact, error) {
	path, err := domain.MavenPath(coord)
	if err != nil {
		return domain.Artifact{}, err
	}
	return domain.Artifact{
		Path: "libraries/" + path,
		URL:  joinURL(base, path),
		SHA1: strings.ToLower(sum),
		Size: size,
		Kind: domain.ArtifactLoaderJar,
	}, nil
}
