package manifest

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// InstallerFetcher retrieves an installer jar and returns a local path to it
type InstallerFetcher func(ctx context.Context, a domain.Artifact) (string, error)

// WithInstallerFetcher routes installer downloads through a shared fetcher (normally the download pipeline)
func WithInstallerFetcher(f InstallerFetcher) Option {
	return func(r *Resolver) {
		r.fetchInstaller = f
	}
}

// installerProfile is the part of an installer's version.json the launcher needs
type installerProfile struct {
	MainClass string
	Libraries []installerLibrary
	JVMArgs   []string
	GameArgs  []string
}

type installerLibrary struct {
	Name string
	Path string
	URL  string
	SHA1 string
	Size int64
}

func (r *Resolver) listForgeVersions(ctx context.Context, gameVersion string) ([]LoaderVersion, error) {
	body, _, err := r.fetchDocument(ctx, "forge:metadata", r.endpoints.ForgeMetadata)
	if err != nil {
		return nil, err
	}

	var meta map[string][]string
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("%w: parsing forge metadata: %v", domain.ErrManifestUnavailable, err)
	}

	prefix := gameVersion + "-"
	var versions []LoaderVersion
	for _, full := range meta[gameVersion] {
		v := strings.TrimPrefix(full, prefix)
		versions = append(versions, LoaderVersion{Version: v, Stable: labelStable(v)})
	}
	sortNewestFirst(versions)
	return versions, nil
}

func (r *Resolver) listNeoForgeVersions(ctx context.Context, gameVersion string) ([]LoaderVersion, error) {
	body, _, err := r.fetchDocument(ctx, "neoforge:versions", r.endpoints.NeoForgeVersions)
	if err != nil {
		return nil, err
	}

	var versions []LoaderVersion
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.String {
			return
		}
		v := string(value)
		if neoForgeGameVersion(v) == gameVersion {
			versions = append(versions, LoaderVersion{Version: v, Stable: labelStable(v)})
		}
	}, "versions")
	if err != nil {
		return nil, fmt.Errorf("%w: parsing neoforge versions: %v", domain.ErrManifestUnavailable, err)
	}
	sortNewestFirst(versions)
	return versions, nil
}

// neoForgeGameVersion maps a NeoForge version to the game version it targets:
// "20.4.237" -> "1.20.4", "21.0.167" -> "1.21". Unrecognized versions map to "".
func neoForgeGameVersion(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return ""
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return ""
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return ""
	}
	if minor == 0 {
		return fmt.Sprintf("1.%d", major)
	}
	return fmt.Sprintf("1.%d.%d", major, minor)
}

func labelStable(v string) bool {
	v = strings.ToLower(v)
	return !strings.Contains(v, "beta") && !strings.Contains(v, "alpha") && !strings.Contains(v, "pre")
}

func sortNewestFirst(versions []LoaderVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		return domain.CompareVersions(versions[i].Version, versions[j].Version) > 0
	})
}

func (r *Resolver) resolveForge(ctx context.Context, gameVersion, loaderVersion string) (*loaderDescriptor, error) {
	versions, err := r.listForgeVersions(ctx, gameVersion)
	if err != nil {
		return nil, err
	}
	v, err := pickLoaderVersion(versions, loaderVersion, domain.LoaderForge, gameVersion)
	if err != nil {
		return nil, err
	}

	full := gameVersion + "-" + v
	name := fmt.Sprintf("forge-%s-installer.jar", full)
	url := joinURL(r.endpoints.ForgeMaven, fmt.Sprintf("net/minecraftforge/forge/%s/%s", full, name))
	return r.resolveInstaller(ctx, v, name, url)
}

func (r *Resolver) resolveNeoForge(ctx context.Context, gameVersion, loaderVersion string) (*loaderDescriptor, error) {
	versions, err := r.listNeoForgeVersions(ctx, gameVersion)
	if err != nil {
		return nil, err
	}
	v, err := pickLoaderVersion(versions, loaderVersion, domain.LoaderNeoForge, gameVersion)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("neoforge-%s-installer.jar", v)
	url := joinURL(r.endpoints.NeoForgeMaven, fmt.Sprintf("net/neoforged/neoforge/%s/%s", v, name))
	return r.resolveInstaller(ctx, v, name, url)
}

// resolveInstaller obtains an installer jar and turns its version.json into a loader descriptor.
// Libraries without a download URL are taken from the jar's embedded maven/ tree when present.
func (r *Resolver) resolveInstaller(ctx context.Context, version, name, url string) (*loaderDescriptor, error) {
	jarPath, err := r.installerJar(ctx, name, url)
	if err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", domain.ErrManifestUnavailable, name, err)
	}
	defer zr.Close()

	raw, err := readZipEntry(&zr.Reader, "version.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no version.json: %v", domain.ErrManifestUnavailable, name, err)
	}
	profile, err := parseInstallerProfile(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s version.json: %v", domain.ErrManifestUnavailable, name, err)
	}

	desc := &loaderDescriptor{
		Version:   version,
		MainClass: profile.MainClass,
		JVMArgs:   profile.JVMArgs,
		GameArgs:  profile.GameArgs,
	}

	for _, lib := range profile.Libraries {
		path := lib.Path
		if path == "" {
			p, err := domain.MavenPath(lib.Name)
			if err != nil {
				r.log.Debug().Str("library", lib.Name).Msg("Skipping library with unusable name")
				continue
			}
			path = p
		}

		libURL := lib.URL
		if libURL == "" {
			local, err := r.extractEmbedded(&zr.Reader, path)
			if err != nil {
				// Produced by installer processors, which are not run
				r.log.Debug().Str("library", lib.Name).Err(err).Msg("Skipping library without a source")
				continue
			}
			libURL = "file://" + filepath.ToSlash(local)
		}

		desc.Artifacts = append(desc.Artifacts, domain.Artifact{
			Path: "libraries/" + path,
			URL:  libURL,
			SHA1: strings.ToLower(lib.SHA1),
			Size: lib.Size,
			Kind: domain.ArtifactLoaderJar,
		})
	}

	return desc, nil
}

// installerJar returns a local path to the named installer, downloading it when needed
func (r *Resolver) installerJar(ctx context.Context, name, url string) (string, error) {
	if r.fetchInstaller != nil {
		path, err := r.fetchInstaller(ctx, domain.Artifact{Path: "installers/" + name, URL: url, Kind: domain.ArtifactLoaderJar})
		if err != nil {
			return "", fmt.Errorf("%w: fetching %s: %v", domain.ErrManifestUnavailable, name, err)
		}
		return path, nil
	}

	dest := filepath.Join(r.installersDir, name)
	if validZip(dest) {
		return dest, nil
	}
	if err := os.MkdirAll(r.installersDir, 0755); err != nil {
		return "", fmt.Errorf("creating installers directory: %w", err)
	}

	tmp := dest + ".tmp"
	resp, err := r.client.R().SetContext(ctx).SetOutput(tmp).Get(url)
	if err != nil || !resp.IsSuccess() {
		_ = os.Remove(tmp)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		cause := err
		if cause == nil {
			cause = &domain.NetworkError{URL: url, StatusCode: resp.StatusCode(), Attempts: resp.Request.Attempt}
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrManifestUnavailable, url, cause)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("saving installer: %w", err)
	}
	r.log.Debug().Str("installer", name).Msg("Downloaded installer")
	return dest, nil
}

// extractEmbedded copies maven/<path> out of the installer into the installers directory
func (r *Resolver) extractEmbedded(zr *zip.Reader, path string) (string, error) {
	f, err := zr.Open("maven/" + path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	dest, err := filepath.Abs(filepath.Join(r.installersDir, "maven", filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", err
	}

	out, err := os.CreateTemp(filepath.Dir(dest), ".embedded-*")
	if err != nil {
		return "", err
	}
	tmp := out.Name()
	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return dest, nil
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func validZip(path string) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	zr.Close()
	return true
}

// parseInstallerProfile reads mainClass, libraries and the plain string entries of
// arguments.jvm / arguments.game. Conditional argument objects are ignored.
func parseInstallerProfile(data []byte) (*installerProfile, error) {
	p := &installerProfile{}

	mainClass, err := jsonparser.GetString(data, "mainClass")
	if err != nil {
		return nil, fmt.Errorf("mainClass: %w", err)
	}
	p.MainClass = mainClass

	var libErr error
	_, err = jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.Object || libErr != nil {
			return
		}
		lib := installerLibrary{}
		lib.Name, _ = jsonparser.GetString(value, "name")
		lib.Path, _ = jsonparser.GetString(value, "downloads", "artifact", "path")
		lib.URL, _ = jsonparser.GetString(value, "downloads", "artifact", "url")
		lib.SHA1, _ = jsonparser.GetString(value, "downloads", "artifact", "sha1")
		lib.Size, _ = jsonparser.GetInt(value, "downloads", "artifact", "size")
		if lib.Name == "" && lib.Path == "" {
			libErr = fmt.Errorf("library without name or path")
			return
		}
		p.Libraries = append(p.Libraries, lib)
	}, "libraries")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, fmt.Errorf("libraries: %w", err)
	}
	if libErr != nil {
		return nil, libErr
	}

	p.JVMArgs = stringArguments(data, "jvm")
	p.GameArgs = stringArguments(data, "game")
	return p, nil
}

func stringArguments(data []byte, section string) []string {
	var out []string
	_, _ = jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.String {
			return
		}
		if s, err := jsonparser.ParseString(value); err == nil {
			out = append(out, s)
		}
	}, "arguments", section)
	return out
}
