package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/linker"
	"github.com/DonovanMods/lion-launcher/internal/logging"
	"github.com/DonovanMods/lion-launcher/internal/source"
	"github.com/DonovanMods/lion-launcher/internal/storage/cache"
	"github.com/DonovanMods/lion-launcher/internal/storage/db"
)

// InstallRequest names registry content to install into a profile
type InstallRequest struct {
	Kind         domain.ContentKind
	SourceID     string
	ContentID    string // Project id or slug
	VersionID    string // Empty selects the best compatible version
	Dependencies bool   // Also install missing required dependencies
}

// ItemError is the failure of one item in a bulk operation
type ItemError struct {
	Filename string
	Err      error
}

func (e ItemError) Error() string {
	return e.Filename + ": " + e.Err.Error()
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// BulkResult reports which items of a bulk operation succeeded and which failed
type BulkResult struct {
	Succeeded []string
	Failed    []ItemError
}

func (r BulkResult) err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i := range r.Failed {
		errs[i] = r.Failed[i]
	}
	return errors.Join(errs...)
}

// downloadURLResolver is implemented by sources whose listings may omit download URLs
type downloadURLResolver interface {
	ResolveDownloadURL(ctx context.Context, projectID, fileID string) (string, error)
}

// ContentInstaller installs, lists, toggles and removes mods, resource packs and shader packs
type ContentInstaller struct {
	db       *db.DB
	pipeline *Pipeline
	linker   linker.Linker
	sources  *source.Registry
	log      zerolog.Logger
}

// NewContentInstaller creates a content installer. Files are fetched through pipeline and placed with lnk.
func NewContentInstaller(database *db.DB, pipeline *Pipeline, lnk linker.Linker, sources *source.Registry) *ContentInstaller {
	return &ContentInstaller{
		db:       database,
		pipeline: pipeline,
		linker:   lnk,
		sources:  sources,
		log:      logging.Get("content"),
	}
}

// SelectVersion picks the version of a project to install into a profile.
// Mods must list the profile's loader (Quilt also takes Fabric builds); packs ignore loaders.
// A version listing the exact game version beats one listing only the same major.minor line,
// and within a tier the newest published wins.
func SelectVersion(versions []domain.ContentVersion, gameVersion string, loader domain.Loader, kind domain.ContentKind) (*domain.ContentVersion, error) {
	if kind.NeedsLoader() && loader.Kind == domain.LoaderVanilla {
		return nil, fmt.Errorf("%w: vanilla profiles cannot load mods", domain.ErrNoCompatibleVersion)
	}

	line := domain.GameVersionLine(gameVersion)
	best, bestTier := -1, 3
	for i := range versions {
		v := &versions[i]
		if len(v.Files) == 0 {
			continue
		}
		if kind.NeedsLoader() && !acceptsAny(loader, v.Loaders) {
			continue
		}

		tier := 3
		for _, gv := range v.GameVersions {
			switch {
			case gv == gameVersion:
				tier = 1
			case tier > 2 && domain.GameVersionLine(gv) == line:
				tier = 2
			}
		}
		if tier > 2 {
			continue
		}

		if tier < bestTier || (tier == bestTier && v.Published.After(versions[best].Published)) {
			best, bestTier = i, tier
		}
	}

	if best < 0 {
		return nil, fmt.Errorf("%w for %s %s", domain.ErrNoCompatibleVersion, gameVersion, loader.Kind)
	}
	return &versions[best], nil
}

func acceptsAny(loader domain.Loader, names []string) bool {
	for _, n := range names {
		if loader.Accepts(n) {
			return true
		}
	}
	return false
}

// Install installs one registry project into a profile, replacing any version of it already installed
func (ci *ContentInstaller) Install(ctx context.Context, profile *domain.Profile, req InstallRequest) (*domain.ContentItem, error) {
	items, err := ci.InstallWithDependencies(ctx, profile, req)
	if err != nil {
		return nil, err
	}
	return &items[len(items)-1], nil
}

// InstallWithDependencies installs a project and, when req.Dependencies is set, its missing
// required dependencies first. The requested item is last in the result.
func (ci *ContentInstaller) InstallWithDependencies(ctx context.Context, profile *domain.Profile, req InstallRequest) ([]domain.ContentItem, error) {
	if req.Kind.NeedsLoader() && profile.Loader.Kind == domain.LoaderVanilla {
		return nil, fmt.Errorf("%w: vanilla profiles cannot load mods", domain.ErrNoCompatibleVersion)
	}

	src, err := ci.sources.Get(req.SourceID)
	if err != nil {
		return nil, err
	}

	versions, err := src.GetVersions(ctx, req.ContentID)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", req.ContentID, err)
	}

	var version *domain.ContentVersion
	if req.VersionID != "" {
		for i := range versions {
			if versions[i].ID == req.VersionID || versions[i].VersionNumber == req.VersionID {
				version = &versions[i]
				break
			}
		}
		if version == nil {
			return nil, fmt.Errorf("%w: version %s of %s", domain.ErrContentNotFound, req.VersionID, req.ContentID)
		}
	} else {
		version, err = SelectVersion(versions, profile.GameVersion, profile.Loader, req.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.ContentID, err)
		}
	}

	var plan []plannedInstall
	if req.Dependencies && req.Kind.NeedsLoader() {
		installed, err := ci.Index(profile, req.Kind)
		if err != nil {
			return nil, err
		}
		plan, err = resolveDependencies(ctx, src, profile, version, installed)
		if err != nil {
			return nil, err
		}
	}
	plan = append(plan, plannedInstall{projectID: req.ContentID, version: version})

	var result []domain.ContentItem
	for _, p := range plan {
		item, err := ci.installVersion(ctx, profile, req.Kind, src, p.projectID, p.version)
		if err != nil {
			return result, err
		}
		result = append(result, *item)
	}
	return result, nil
}

func (ci *ContentInstaller) installVersion(ctx context.Context, profile *domain.Profile, kind domain.ContentKind, src source.ContentSource, projectID string, v *domain.ContentVersion) (*domain.ContentItem, error) {
	file, ok := v.PrimaryFile()
	if !ok {
		return nil, fmt.Errorf("%w: version %s has no files", domain.ErrNoCompatibleVersion, v.ID)
	}
	if err := validFilename(file.Filename); err != nil {
		return nil, err
	}

	if file.URL == "" {
		resolver, ok := src.(downloadURLResolver)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no download url", domain.ErrContentNotFound, file.Filename)
		}
		url, err := resolver.ResolveDownloadURL(ctx, projectID, v.ID)
		if err != nil {
			return nil, err
		}
		file.URL = url
	}

	registryID := v.ProjectID
	if registryID == "" {
		registryID = projectID
	}

	artifact := domain.Artifact{
		Path: path.Join("content", src.ID(), registryID, file.Filename),
		URL:  file.URL,
		SHA1: strings.ToLower(file.SHA1),
		Size: file.Size,
	}
	cached, err := ci.pipeline.Fetch(ctx, artifact, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", file.Filename, err)
	}

	sum := artifact.SHA1
	if sum == "" {
		if sum, err = cache.HashFile(cached); err != nil {
			return nil, err
		}
	}

	previous, err := ci.db.GetContentByRegistryID(src.ID(), registryID)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(profile.GameDir, kind.Dir())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", kind.Dir(), err)
	}
	dst := filepath.Join(dir, file.Filename)
	if err := ci.place(cached, dst); err != nil {
		return nil, err
	}
	// An older disabled copy under the same name would shadow the toggle state
	_ = os.Remove(dst + domain.DisabledSuffix)

	item := &domain.ContentItem{
		ProfileID:   profile.ID,
		Kind:        kind,
		Filename:    file.Filename,
		SourceID:    src.ID(),
		RegistryID:  registryID,
		VersionID:   v.ID,
		Name:        ci.projectName(ctx, src, projectID, file.Filename),
		Version:     v.VersionNumber,
		SHA1:        sum,
		Enabled:     true,
		InstalledAt: time.Now(),
	}
	if err := ci.db.SaveContent(item); err != nil {
		return nil, err
	}

	// Another version of the same project is replaced
	for _, prev := range previous {
		if prev.ProfileID != profile.ID || prev.Kind != kind || prev.BaseFilename() == file.Filename {
			continue
		}
		if err := ci.Delete(profile, kind, prev.Filename); err != nil && !errors.Is(err, domain.ErrContentNotFound) {
			return nil, fmt.Errorf("removing previous version %s: %w", prev.Filename, err)
		}
	}

	ci.log.Info().
		Str("profile", profile.ID).
		Str("kind", kind.String()).
		Str("file", item.Filename).
		Str("version", item.Version).
		Msg("Installed content")
	return item, nil
}

// place puts the cached file at dst through a temporary name so dst is never partially written
func (ci *ContentInstaller) place(cached, dst string) error {
	tmp := dst + ".part"
	if err := ci.linker.Place(cached, tmp); err != nil {
		return fmt.Errorf("placing %s: %w", filepath.Base(dst), err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("placing %s: %w", filepath.Base(dst), err)
	}
	return nil
}

func (ci *ContentInstaller) projectName(ctx context.Context, src source.ContentSource, projectID, filename string) string {
	p, err := src.GetProject(ctx, projectID)
	if err != nil || p.Name == "" {
		ci.log.Debug().Err(err).Str("project", projectID).Msg("Using filename for content name")
		return ParseContentFilename(filename).Name
	}
	return p.Name
}

func validFilename(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: unsafe content filename %q", domain.ErrInvalidConfig, name)
	}
	return nil
}

// List returns the content of a kind found in the profile's directory, joined with recorded metadata.
// Files without a record get their name and version from the filename.
func (ci *ContentInstaller) List(profile *domain.Profile, kind domain.ContentKind) ([]domain.ContentItem, error) {
	entries, err := os.ReadDir(filepath.Join(profile.GameDir, kind.Dir()))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", kind.Dir(), err)
	}

	rows, err := ci.db.GetContent(profile.ID, kind)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]domain.ContentItem, len(rows))
	for _, r := range rows {
		recorded[r.BaseFilename()] = r
	}

	var items []domain.ContentItem
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		base := strings.TrimSuffix(name, domain.DisabledSuffix)
		if !isContentFile(base) {
			continue
		}

		item, ok := recorded[base]
		if !ok {
			parsed := ParseContentFilename(base)
			item = domain.ContentItem{
				ProfileID: profile.ID,
				Kind:      kind,
				Name:      parsed.Name,
				Version:   parsed.Version,
			}
			if info, err := e.Info(); err == nil {
				item.InstalledAt = info.ModTime()
			}
		}
		item.Filename = name
		item.Enabled = name == base
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].BaseFilename()) < strings.ToLower(items[j].BaseFilename())
	})
	return items, nil
}

func isContentFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range contentExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Index builds an IDIndex over a profile's installed content of a kind
func (ci *ContentInstaller) Index(profile *domain.Profile, kind domain.ContentKind) (*IDIndex, error) {
	items, err := ci.List(profile, kind)
	if err != nil {
		return nil, err
	}
	return NewIDIndex(items), nil
}

// locate returns the on-disk path of a content file given either its enabled or disabled name
func locate(profile *domain.Profile, kind domain.ContentKind, filename string) (string, bool, error) {
	if err := validFilename(filename); err != nil {
		return "", false, err
	}
	base := strings.TrimSuffix(filename, domain.DisabledSuffix)
	dir := filepath.Join(profile.GameDir, kind.Dir())

	enabled := filepath.Join(dir, base)
	if _, err := os.Lstat(enabled); err == nil {
		return enabled, true, nil
	}
	disabled := enabled + domain.DisabledSuffix
	if _, err := os.Lstat(disabled); err == nil {
		return disabled, false, nil
	}
	return "", false, fmt.Errorf("%w: %s", domain.ErrContentNotFound, base)
}

// SetEnabled enables or disables a content file by renaming it. It returns the new filename.
func (ci *ContentInstaller) SetEnabled(profile *domain.Profile, kind domain.ContentKind, filename string, enabled bool) (string, error) {
	current, isEnabled, err := locate(profile, kind, filename)
	if err != nil {
		return "", err
	}
	if isEnabled == enabled {
		return filepath.Base(current), nil
	}

	base := strings.TrimSuffix(filepath.Base(current), domain.DisabledSuffix)
	target := filepath.Join(filepath.Dir(current), base)
	if !enabled {
		target += domain.DisabledSuffix
	}
	if err := os.Rename(current, target); err != nil {
		return "", fmt.Errorf("renaming %s: %w", base, err)
	}

	if err := ci.db.SetContentEnabled(profile.ID, kind, base, enabled); err != nil && !errors.Is(err, domain.ErrContentNotFound) {
		return "", err
	}
	return filepath.Base(target), nil
}

// Toggle flips a content file between enabled and disabled and returns the new filename
func (ci *ContentInstaller) Toggle(profile *domain.Profile, kind domain.ContentKind, filename string) (string, error) {
	_, isEnabled, err := locate(profile, kind, filename)
	if err != nil {
		return "", err
	}
	return ci.SetEnabled(profile, kind, filename, !isEnabled)
}

// Delete removes a content file, its record, and its cache object when nothing else references it.
// A record whose file is already gone is dropped.
func (ci *ContentInstaller) Delete(profile *domain.Profile, kind domain.ContentKind, filename string) error {
	current, _, err := locate(profile, kind, filename)
	if errors.Is(err, domain.ErrContentNotFound) {
		return ci.forgetMissing(profile.ID, kind, strings.TrimSuffix(filename, domain.DisabledSuffix), err)
	}
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(current), domain.DisabledSuffix)
	item, err := ci.db.GetContentItem(profile.ID, kind, base)
	if err != nil && !errors.Is(err, domain.ErrContentNotFound) {
		return err
	}

	// Record first, so a failed removal leaves an unrecorded file rather than a record without one
	if item != nil {
		if err := ci.db.DeleteContent(profile.ID, kind, base); err != nil {
			return err
		}
	}
	if err := os.Remove(current); err != nil {
		return fmt.Errorf("removing %s: %w", filepath.Base(current), err)
	}
	if item != nil {
		ci.releaseCacheObject(item.SHA1)
	}
	return nil
}

// forgetMissing drops the record of a file that no longer exists. notFound is returned when
// there is no record either.
func (ci *ContentInstaller) forgetMissing(profileID string, kind domain.ContentKind, base string, notFound error) error {
	item, err := ci.db.GetContentItem(profileID, kind, base)
	if errors.Is(err, domain.ErrContentNotFound) {
		return notFound
	}
	if err != nil {
		return err
	}
	if err := ci.db.DeleteContent(profileID, kind, base); err != nil {
		return err
	}
	ci.log.Info().Str("profile", profileID).Str("file", base).Msg("Dropped record of missing content file")
	ci.releaseCacheObject(item.SHA1)
	return nil
}

// releaseCacheObject drops a content file from the cache once no profile records it
func (ci *ContentInstaller) releaseCacheObject(sha1 string) {
	if sha1 == "" {
		return
	}
	refs, err := ci.db.CountContentBySHA1(sha1)
	if err != nil || refs > 0 {
		return
	}
	if err := ci.pipeline.Cache().Delete(strings.ToLower(sha1)); err != nil {
		ci.log.Warn().Err(err).Str("sha1", sha1).Msg("Could not release cached content")
	}
}

// BulkToggle sets the enabled state of several files, continuing past failures
func (ci *ContentInstaller) BulkToggle(profile *domain.Profile, kind domain.ContentKind, filenames []string, enabled bool) (BulkResult, error) {
	var result BulkResult
	for _, name := range filenames {
		newName, err := ci.SetEnabled(profile, kind, name, enabled)
		if err != nil {
			result.Failed = append(result.Failed, ItemError{Filename: name, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, newName)
	}
	return result, result.err()
}

// BulkDelete removes several files, continuing past failures
func (ci *ContentInstaller) BulkDelete(profile *domain.Profile, kind domain.ContentKind, filenames []string) (BulkResult, error) {
	var result BulkResult
	for _, name := range filenames {
		if err := ci.Delete(profile, kind, name); err != nil {
			result.Failed = append(result.Failed, ItemError{Filename: name, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, name)
	}
	if len(result.Failed) > 0 {
		ci.log.Warn().Str("profile", profile.ID).Int("failed", len(result.Failed)).Msg("Bulk delete incomplete")
	}
	return result, result.err()
}

// Match returns the on-disk filenames whose base name matches a glob pattern, case-insensitively
func (ci *ContentInstaller) Match(profile *domain.Profile, kind domain.ContentKind, pattern string) ([]string, error) {
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	items, err := ci.List(profile, kind)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, item := range items {
		if g.Match(strings.ToLower(item.BaseFilename())) {
			matched = append(matched, item.Filename)
		}
	}
	return matched, nil
}
