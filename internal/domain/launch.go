package domain

// LaunchState is a stage of the launch state machine
type LaunchState int

const (
	LaunchPreparing LaunchState = iota
	LaunchResolvingManifest
	LaunchDownloading
	LaunchAssemblingCommand
	LaunchSpawning
	LaunchRunning
	LaunchExited
	LaunchFailed
)

func (s LaunchState) String() string {
	switch s {
	case LaunchPreparing:
		return "preparing"
	case LaunchResolvingManifest:
		return "resolving manifest"
	case LaunchDownloading:
		return "downloading"
	case LaunchAssemblingCommand:
		return "assembling command"
	case LaunchSpawning:
		return "spawning"
	case LaunchRunning:
		return "running"
	case LaunchExited:
		return "exited"
	case LaunchFailed:
		return "launch failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow this state
func (s LaunchState) Terminal() bool {
	return s == LaunchExited || s == LaunchFailed
}

// LinkMethod determines how cached artifacts are placed into a profile
type LinkMethod int

const (
	LinkHardlink LinkMethod = iota // Default: hardlink (no extra disk space)
	LinkSymlink                    // Symlink into the cache
	LinkCopy                       // Copy (maximum compatibility)
)

func (m LinkMethod) String() string {
	switch m {
	case LinkHardlink:
		return "hardlink"
	case LinkSymlink:
		return "symlink"
	case LinkCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// ParseLinkMethod converts a string to LinkMethod
func ParseLinkMethod(s string) LinkMethod {
	switch s {
	case "symlink":
		return LinkSymlink
	case "copy":
		return LinkCopy
	default:
		return LinkHardlink
	}
}
