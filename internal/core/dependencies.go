package core

import (
	"context"
	"fmt"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/source"
)

// plannedInstall is one project version scheduled for installation
type plannedInstall struct {
	projectID string
	version   *domain.ContentVersion
}

// resolveDependencies walks the required dependencies of root and returns the versions to install
// in dependency order (dependencies first). Projects already installed are skipped, and a project
// reached again while it is being visited ends that branch, so mutual requirements terminate.
func resolveDependencies(ctx context.Context, src source.ContentSource, profile *domain.Profile, root *domain.ContentVersion, installed *IDIndex) ([]plannedInstall, error) {
	// 0 = unvisited, 1 = visiting (in stack), 2 = visited
	state := map[string]int{root.ProjectID: 1}
	var plan []plannedInstall

	var visit func(v *domain.ContentVersion) error
	visit = func(v *domain.ContentVersion) error {
		for _, dep := range v.Dependencies {
			if dep.Type != domain.DependencyRequired || dep.ProjectID == "" {
				continue
			}
			if state[dep.ProjectID] != 0 {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if isDependencyInstalled(ctx, src, dep.ProjectID, installed) {
				state[dep.ProjectID] = 2
				continue
			}

			state[dep.ProjectID] = 1
			versions, err := src.GetVersions(ctx, dep.ProjectID)
			if err != nil {
				return fmt.Errorf("listing versions of dependency %s: %w", dep.ProjectID, err)
			}
			depVersion, err := SelectVersion(versions, profile.GameVersion, profile.Loader, domain.ContentMod)
			if err != nil {
				return fmt.Errorf("dependency %s: %w", dep.ProjectID, err)
			}

			// Collect transitive dependencies first
			if err := visit(depVersion); err != nil {
				return err
			}
			state[dep.ProjectID] = 2
			plan = append(plan, plannedInstall{projectID: dep.ProjectID, version: depVersion})
		}
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return plan, nil
}

// isDependencyInstalled matches by registry id first, then by the project's slug and name so
// hand-placed copies count
func isDependencyInstalled(ctx context.Context, src source.ContentSource, projectID string, installed *IDIndex) bool {
	if installed.IsInstalled(domain.ContentProject{ID: projectID, SourceID: src.ID()}) {
		return true
	}
	project, err := src.GetProject(ctx, projectID)
	if err != nil {
		return false
	}
	p := *project
	p.SourceID = src.ID()
	return installed.IsInstalled(p)
}
