package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// MigrationStatus says whether an installed mod loads after a profile switches loaders
type MigrationStatus string

const (
	MigrationNative     MigrationStatus = "native"      // a build for the target loader exists
	MigrationForgeBuild MigrationStatus = "forge-build" // only the Forge build, which NeoForge loads on this line
	MigrationMissing    MigrationStatus = "missing"
	MigrationUnknown    MigrationStatus = "unknown" // not found in any registry
)

// ModMigration is the outlook of one installed mod
type ModMigration struct {
	Item    domain.ContentItem
	Status  MigrationStatus
	Version *domain.ContentVersion // the target build when Status is MigrationNative
}

// MigrationReport describes what switching a profile to another loader would do to its mods
type MigrationReport struct {
	ProfileID   string
	GameVersion string
	From        domain.LoaderKind
	To          domain.LoaderKind
	Available   bool // the target loader has builds for the game version
	Recommended bool
	Notes       []string
	Mods        []ModMigration
}

// Ready reports whether the target loader exists and every identified mod will load under it
func (r *MigrationReport) Ready() bool {
	if !r.Available {
		return false
	}
	for _, m := range r.Mods {
		if m.Status == MigrationMissing {
			return false
		}
	}
	return true
}

// LoaderSupport checks whether a loader has builds for a game version
type LoaderSupport interface {
	SupportsLoader(ctx context.Context, gameVersion string, loader domain.Loader) error
}

// NeoForgeLoadsForgeMods reports whether NeoForge on gameVersion runs mods built for Forge.
// The 1.20.x line does; from 1.21 the two have diverged.
func NeoForgeLoadsForgeMods(gameVersion string) bool {
	return domain.CompareVersions(gameVersion, "1.20.1") >= 0 && domain.CompareVersions(gameVersion, "1.21") < 0
}

// PreferredForgeLoader returns the Forge-family loader to use for a game version.
// NeoForge exists from 1.20.1.
func PreferredForgeLoader(gameVersion string) domain.LoaderKind {
	if domain.CompareVersions(gameVersion, "1.20.1") >= 0 {
		return domain.LoaderNeoForge
	}
	return domain.LoaderForge
}

func forgeFamily(k domain.LoaderKind) bool {
	return k == domain.LoaderForge || k == domain.LoaderNeoForge
}

// CheckMigration reports whether the profile's mods would load after switching to target.
// Each mod is looked up in its registry; mods that could not be checked are reported in the
// returned error alongside the report.
func (ci *ContentInstaller) CheckMigration(ctx context.Context, profile *domain.Profile, target domain.LoaderKind, loaders LoaderSupport) (*MigrationReport, error) {
	if target == domain.LoaderVanilla {
		return nil, fmt.Errorf("%w: vanilla cannot load mods", domain.ErrInvalidProfile)
	}
	if profile.Loader.Kind == target {
		return nil, fmt.Errorf("%w: %s already uses %s", domain.ErrInvalidProfile, profile.Name, target)
	}

	gv := profile.GameVersion
	report := &MigrationReport{
		ProfileID:   profile.ID,
		GameVersion: gv,
		From:        profile.Loader.Kind,
		To:          target,
	}

	err := loaders.SupportsLoader(ctx, gv, domain.Loader{Kind: target})
	switch {
	case err == nil:
		report.Available = true
	case errors.Is(err, domain.ErrInvalidProfile):
		report.Notes = append(report.Notes, fmt.Sprintf("%s has no builds for %s.", target, gv))
	default:
		return nil, err
	}

	forgeBuildsLoad := profile.Loader.Kind == domain.LoaderForge && target == domain.LoaderNeoForge && NeoForgeLoadsForgeMods(gv)
	if forgeFamily(profile.Loader.Kind) && forgeFamily(target) {
		report.Recommended = report.Available && target == PreferredForgeLoader(gv)
	}
	if forgeBuildsLoad {
		report.Notes = append(report.Notes, "NeoForge on this version loads most Forge mods. Some mods ship separate NeoForge builds.")
	}

	items, err := ci.List(profile, domain.ContentMod)
	if err != nil {
		return nil, err
	}

	var checkErrs []error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		m := ModMigration{Item: item, Status: MigrationUnknown}
		if item.RegistryID == "" && !ci.identify(ctx, profile, &item) {
			report.Mods = append(report.Mods, m)
			continue
		}
		m.Item = item

		src, err := ci.sources.Get(item.SourceID)
		if err != nil {
			checkErrs = append(checkErrs, fmt.Errorf("%s: %w", item.BaseFilename(), err))
			report.Mods = append(report.Mods, m)
			continue
		}
		versions, err := src.GetVersions(ctx, item.RegistryID)
		if err != nil {
			checkErrs = append(checkErrs, fmt.Errorf("%s: %w", item.BaseFilename(), err))
			report.Mods = append(report.Mods, m)
			continue
		}

		v, err := SelectVersion(versions, gv, domain.Loader{Kind: target}, domain.ContentMod)
		switch {
		case err == nil:
			m.Status = MigrationNative
			m.Version = v
		case forgeBuildsLoad:
			m.Status = MigrationForgeBuild
		default:
			m.Status = MigrationMissing
		}
		report.Mods = append(report.Mods, m)
	}

	if len(checkErrs) > 0 {
		return report, fmt.Errorf("migration check skipped %d mod(s): %w", len(checkErrs), errors.Join(checkErrs...))
	}
	return report, nil
}
