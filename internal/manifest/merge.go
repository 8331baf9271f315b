package manifest

import "github.com/DonovanMods/lion-launcher/internal/domain"

// merge layers a loader over a vanilla graph and returns a new graph.
//
// A loader artifact at the same path replaces the vanilla one in place. A vanilla library with
// the same identity as a loader library (another version of the same Maven artifact) is dropped.
// Remaining loader artifacts are appended in their published order.
func merge(vanilla *domain.VersionGraph, loader *loaderDescriptor) *domain.VersionGraph {
	out := *vanilla
	out.Artifacts = make([]domain.Artifact, 0, len(vanilla.Artifacts)+len(loader.Artifacts))
	out.Stale = vanilla.Stale || loader.Stale
	if loader.MainClass != "" {
		out.MainClass = loader.MainClass
	}
	out.JVMArgs = append(append([]string(nil), vanilla.JVMArgs...), loader.JVMArgs...)
	out.GameArgs = append(append([]string(nil), vanilla.GameArgs...), loader.GameArgs...)

	byPath := make(map[string]int, len(loader.Artifacts))
	byIdentity := make(map[string]bool, len(loader.Artifacts))
	for i, a := range loader.Artifacts {
		if _, dup := byPath[a.Path]; !dup {
			byPath[a.Path] = i
		}
		if a.Kind != domain.ArtifactNative {
			byIdentity[a.Identity()] = true
		}
	}

	placed := make(map[string]bool, len(loader.Artifacts))
	for _, a := range vanilla.Artifacts {
		if i, ok := byPath[a.Path]; ok {
			if !placed[a.Path] {
				out.Artifacts = append(out.Artifacts, loader.Artifacts[i])
				placed[a.Path] = true
			}
			continue
		}
		if a.Kind == domain.ArtifactLibrary && byIdentity[a.Identity()] {
			continue
		}
		out.Artifacts = append(out.Artifacts, a)
	}

	for _, a := range loader.Artifacts {
		if placed[a.Path] {
			continue
		}
		placed[a.Path] = true
		out.Artifacts = append(out.Artifacts, a)
	}

	return &out
}
