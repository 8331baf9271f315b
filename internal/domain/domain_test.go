package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1   string
		v2   string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.0.1", "1.0.0", 1},
		{"1.0", "1.0.0", 0},
		{"2.0", "1.9.9", 1},
		{"v1.2.3", "1.2.3", 0},
		{"V1.2.3", "1.2.3", 0},
		{"1.0.0-beta", "1.0.0", -1},
		{"1.2", "1.10", -1},
		{"0.5.8+mc1.20.4", "0.5.11+mc1.20.4", -1},
		{"1.20.1-47.2.0", "1.20.1-47.1.0", 1},
		{"", "", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareVersions(tt.v1, tt.v2), "CompareVersions(%q, %q)", tt.v1, tt.v2)
	}
}

func TestIsNewerVersion(t *testing.T) {
	assert.True(t, IsNewerVersion("1.0.0", "1.0.1"))
	assert.False(t, IsNewerVersion("1.0.1", "1.0.0"))
	assert.False(t, IsNewerVersion("1.0.0", "1.0.0"))
}

func TestGameVersionLine(t *testing.T) {
	assert.Equal(t, "1.20", GameVersionLine("1.20.4"))
	assert.Equal(t, "1.20", GameVersionLine("1.20"))
	assert.Equal(t, "23w45a", GameVersionLine("23w45a"))
	assert.Equal(t, "1.20.2-rc1", GameVersionLine("1.20.2-rc1"))
}

func TestMavenPath(t *testing.T) {
	tests := []struct {
		coord string
		want  string
	}{
		{"net.fabricmc:fabric-loader:0.15.7", "net/fabricmc/fabric-loader/0.15.7/fabric-loader-0.15.7.jar"},
		{"org.lwjgl:lwjgl:3.3.1:natives-linux", "org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1-natives-linux.jar"},
		{"de.oceanlabs.mcp:mcp_config:1.20.1@zip", "de/oceanlabs/mcp/mcp_config/1.20.1/mcp_config-1.20.1.zip"},
	}
	for _, tt := range tests {
		got, err := MavenPath(tt.coord)
		require.NoError(t, err, tt.coord)
		assert.Equal(t, tt.want, got)
	}

	_, err := MavenPath("net.fabricmc:fabric-loader")
	assert.Error(t, err)
	_, err = MavenPath("a::1.0")
	assert.Error(t, err)
}

func TestArtifact_Identity(t *testing.T) {
	asm := Artifact{Path: "libraries/org/ow2/asm/asm/9.6/asm-9.6.jar", Kind: ArtifactLibrary}
	asmOld := Artifact{Path: "libraries/org/ow2/asm/asm/9.3/asm-9.3.jar", Kind: ArtifactLoaderJar}
	assert.Equal(t, "org/ow2/asm/asm", asm.Identity())
	assert.Equal(t, asm.Identity(), asmOld.Identity())

	natives := Artifact{Path: "libraries/org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1-natives-linux.jar", Kind: ArtifactLibrary}
	plain := Artifact{Path: "libraries/org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1.jar", Kind: ArtifactLibrary}
	assert.Equal(t, "org/lwjgl/lwjgl-natives-linux", natives.Identity())
	assert.NotEqual(t, natives.Identity(), plain.Identity())

	asset := Artifact{Path: "assets/objects/ab/abcdef", Kind: ArtifactAsset}
	assert.Equal(t, asset.Path, asset.Identity())
}

func TestVersionGraph_ID(t *testing.T) {
	g := &VersionGraph{GameVersion: "1.20.1"}
	assert.Equal(t, "1.20.1", g.ID())

	g.Loader = Loader{Kind: LoaderFabric, Version: "0.15.7"}
	assert.Equal(t, "1.20.1-fabric-0.15.7", g.ID())
}

func TestParseLoaderKind(t *testing.T) {
	for _, k := range []LoaderKind{LoaderVanilla, LoaderFabric, LoaderForge, LoaderNeoForge, LoaderQuilt} {
		got, ok := ParseLoaderKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}

	got, ok := ParseLoaderKind("NeoForge")
	assert.True(t, ok)
	assert.Equal(t, LoaderNeoForge, got)

	_, ok = ParseLoaderKind("rift")
	assert.False(t, ok)
}

func TestLoader_Accepts(t *testing.T) {
	quilt := Loader{Kind: LoaderQuilt}
	assert.True(t, quilt.Accepts("quilt"))
	assert.True(t, quilt.Accepts("fabric"))
	assert.False(t, quilt.Accepts("forge"))

	fabric := Loader{Kind: LoaderFabric}
	assert.True(t, fabric.Accepts("Fabric"))
	assert.False(t, fabric.Accepts("quilt"))
}

func TestAccount_NeedsRefresh(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	acc := &Account{Kind: AccountMicrosoft, AccessToken: "tok", ExpiresAt: now.Add(time.Hour)}
	assert.False(t, acc.NeedsRefresh(now))

	acc.ExpiresAt = now.Add(4 * time.Minute)
	assert.True(t, acc.NeedsRefresh(now))

	offline := &Account{Kind: AccountOffline, AccessToken: "0"}
	assert.False(t, offline.NeedsRefresh(now))
	assert.Equal(t, "legacy", offline.UserType())
	assert.Equal(t, "msa", acc.UserType())
}

func TestContentKind_Dir(t *testing.T) {
	assert.Equal(t, "mods", ContentMod.Dir())
	assert.Equal(t, "resourcepacks", ContentResourcePack.Dir())
	assert.Equal(t, "shaderpacks", ContentShaderPack.Dir())
	assert.True(t, ContentMod.NeedsLoader())
	assert.False(t, ContentShaderPack.NeedsLoader())
}

func TestContentVersion_PrimaryFile(t *testing.T) {
	v := ContentVersion{Files: []ContentFile{{Filename: "a.jar"}, {Filename: "b.jar", Primary: true}}}
	f, ok := v.PrimaryFile()
	require.True(t, ok)
	assert.Equal(t, "b.jar", f.Filename)

	v.Files[1].Primary = false
	f, _ = v.PrimaryFile()
	assert.Equal(t, "a.jar", f.Filename)

	_, ok = (&ContentVersion{}).PrimaryFile()
	assert.False(t, ok)
}

func TestErrors_Is(t *testing.T) {
	integrity := fmt.Errorf("fetching: %w", &IntegrityError{Path: "x.jar", Expected: "a", Actual: "b"})
	assert.True(t, errors.Is(integrity, ErrIntegrity))
	assert.False(t, errors.Is(integrity, ErrNetwork))

	network := &NetworkError{URL: "https://example.com", StatusCode: 503, Attempts: 3}
	assert.True(t, errors.Is(network, ErrNetwork))
	assert.Contains(t, network.Error(), "503")

	launch := &LaunchError{ProfileID: "p1", Stage: LaunchDownloading, Err: network}
	assert.True(t, errors.Is(launch, ErrLaunchFailed))
	assert.True(t, errors.Is(launch, ErrNetwork))
	assert.Contains(t, launch.Error(), "downloading")
}
