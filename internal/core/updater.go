package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/storage/cache"
)

// UpdateProgressFunc is called before each item is checked
type UpdateProgressFunc func(current, total int, name string)

// CheckUpdates reports installed items with a newer compatible version, using the same selection
// rule as Install. Items without a registry id are identified by SHA-1 lookup or skipped.
// Items that could not be checked are reported in the returned error alongside any updates found.
func (ci *ContentInstaller) CheckUpdates(ctx context.Context, profile *domain.Profile, kind domain.ContentKind, progressFn UpdateProgressFunc) ([]domain.ContentUpdate, error) {
	items, err := ci.List(profile, kind)
	if err != nil {
		return nil, err
	}

	var updates []domain.ContentUpdate
	var checkErrs []error

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return updates, err
		}
		if progressFn != nil {
			progressFn(i+1, len(items), item.Name)
		}

		if item.RegistryID == "" {
			if !ci.identify(ctx, profile, &item) {
				continue
			}
		}

		src, err := ci.sources.Get(item.SourceID)
		if err != nil {
			checkErrs = append(checkErrs, fmt.Errorf("%s: %w", item.BaseFilename(), err))
			continue
		}
		versions, err := src.GetVersions(ctx, item.RegistryID)
		if err != nil {
			checkErrs = append(checkErrs, fmt.Errorf("%s: %w", item.BaseFilename(), err))
			continue
		}
		latest, err := SelectVersion(versions, profile.GameVersion, profile.Loader, kind)
		if err != nil {
			// Nothing compatible at all is not an update
			continue
		}

		if !isUpdate(item, latest) {
			continue
		}
		updates = append(updates, domain.ContentUpdate{Item: item, LatestVersion: *latest})
	}

	if len(checkErrs) > 0 {
		return updates, fmt.Errorf("update check skipped %d item(s): %w", len(checkErrs), errors.Join(checkErrs...))
	}
	return updates, nil
}

func isUpdate(item domain.ContentItem, latest *domain.ContentVersion) bool {
	if item.VersionID != "" {
		if latest.ID == item.VersionID {
			return false
		}
		if item.Version == "" || latest.VersionNumber == "" {
			return true
		}
		// A selected version that is older than what is installed was pinned on purpose
		return domain.CompareVersions(item.Version, latest.VersionNumber) != 1
	}
	if item.Version == "" {
		return false
	}
	return domain.IsNewerVersion(item.Version, latest.VersionNumber)
}

// identify asks each source to recognize an unrecorded file by its SHA-1, filling in its registry fields
func (ci *ContentInstaller) identify(ctx context.Context, profile *domain.Profile, item *domain.ContentItem) bool {
	sum := item.SHA1
	if sum == "" {
		var err error
		sum, err = cache.HashFile(filepath.Join(profile.GameDir, item.Kind.Dir(), item.Filename))
		if err != nil {
			ci.log.Debug().Err(err).Str("file", item.Filename).Msg("Could not hash content file")
			return false
		}
	}

	for _, src := range ci.sources.List() {
		v, err := src.LookupHash(ctx, sum)
		if err != nil {
			continue
		}
		item.SourceID = src.ID()
		item.RegistryID = v.ProjectID
		item.VersionID = v.ID
		item.Version = v.VersionNumber
		item.SHA1 = strings.ToLower(sum)
		return true
	}
	return false
}

// ApplyUpdates installs the latest version of each update, continuing past failures
func (ci *ContentInstaller) ApplyUpdates(ctx context.Context, profile *domain.Profile, updates []domain.ContentUpdate) (BulkResult, error) {
	var result BulkResult
	for _, u := range updates {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, ItemError{Filename: u.Item.Filename, Err: err})
			continue
		}
		item, err := ci.Install(ctx, profile, InstallRequest{
			Kind:      u.Item.Kind,
			SourceID:  u.Item.SourceID,
			ContentID: u.Item.RegistryID,
			VersionID: u.LatestVersion.ID,
		})
		if err != nil {
			result.Failed = append(result.Failed, ItemError{Filename: u.Item.Filename, Err: err})
			continue
		}
		// A hand-placed file identified by hash has no record for Install to replace
		if u.Item.BaseFilename() != item.Filename {
			if err := ci.Delete(profile, u.Item.Kind, u.Item.Filename); err != nil && !errors.Is(err, domain.ErrContentNotFound) {
				result.Failed = append(result.Failed, ItemError{Filename: u.Item.Filename, Err: err})
				continue
			}
		}
		result.Succeeded = append(result.Succeeded, item.Filename)
	}
	return result, result.err()
}
