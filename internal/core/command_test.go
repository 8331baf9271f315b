package core_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forgeGraph() *domain.VersionGraph {
	return &domain.VersionGraph{
		GameVersion: "1.20.1",
		VersionType: "release",
		Loader:      domain.Loader{Kind: domain.LoaderForge, Version: "47.2.0"},
		MainClass:   "cpw.mods.bootstraplauncher.BootstrapLauncher",
		AssetIndex:  "5",
		Artifacts: []domain.Artifact{
			{Path: "libraries/org/ow2/asm/asm/9.3/asm-9.3.jar", Kind: domain.ArtifactLibrary},
			{Path: "libraries/com/mojang/brigadier/1.1.8/brigadier-1.1.8.jar", Kind: domain.ArtifactLibrary},
			{Path: "versions/1.20.1/1.20.1.jar", Kind: domain.ArtifactClientJar},
			{Path: "assets/indexes/5.json", Kind: domain.ArtifactAssetIndex},
			{Path: "assets/objects/ab/abcdef", Kind: domain.ArtifactAsset},
			{Path: "libraries/org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1-natives-linux.jar", Kind: domain.ArtifactNative},
			{Path: "libraries/net/minecraftforge/fmlloader/1.20.1-47.2.0/fmlloader-1.20.1-47.2.0.jar", Kind: domain.ArtifactLoaderJar},
			{Path: "libraries/org/ow2/asm/asm/9.6/asm-9.6.jar", Kind: domain.ArtifactLoaderJar},
		},
		JVMArgs:  []string{"-DlibraryDirectory=${library_directory}", "-p", "${library_directory}/a.jar${classpath_separator}${library_directory}/b.jar"},
		GameArgs: []string{"--launchTarget", "forgeclient", "--fml.forgeVersion", "47.2.0"},
	}
}

func TestClasspath_LoaderFirstAndDeduplicated(t *testing.T) {
	runtime := "/rt"
	cp := strings.Split(core.Classpath(forgeGraph(), runtime), string(filepath.ListSeparator))

	assert.Equal(t, []string{
		filepath.Join(runtime, "libraries/net/minecraftforge/fmlloader/1.20.1-47.2.0/fmlloader-1.20.1-47.2.0.jar"),
		filepath.Join(runtime, "libraries/org/ow2/asm/asm/9.6/asm-9.6.jar"),
		filepath.Join(runtime, "libraries/com/mojang/brigadier/1.1.8/brigadier-1.1.8.jar"),
		filepath.Join(runtime, "versions/1.20.1/1.20.1.jar"),
	}, cp)
}

func TestBuildCommand(t *testing.T) {
	runtime := "/rt"
	profile := &domain.Profile{ID: "p1", GameDir: "/game", JavaArgs: []string{"-Dprofile=1"}}
	account := &domain.Account{UUID: "069a79f444e94726a5befca90e38aaf5", Username: "Notch", Kind: domain.AccountMicrosoft, AccessToken: "token"}

	argv, err := core.BuildCommand(core.CommandSpec{
		JavaPath:        "/usr/bin/java",
		Profile:         profile,
		Graph:           forgeGraph(),
		Account:         account,
		RuntimeDir:      runtime,
		NativesDir:      "/rt/natives/1.20.1",
		JavaArgs:        []string{"-XX:+UseG1GC"},
		DefaultMemoryMB: 2048,
		Width:           854,
		Height:          480,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/usr/bin/java", "-Xms1024M", "-Xmx2048M", "-XX:+UseG1GC", "-Dprofile=1", "-Djava.library.path=/rt/natives/1.20.1"}, argv[:6])

	libs := filepath.Join(runtime, "libraries")
	assert.Equal(t, "-DlibraryDirectory="+libs, argv[6])
	assert.Equal(t, libs+"/a.jar"+string(filepath.ListSeparator)+libs+"/b.jar", argv[8])

	cpAt := indexOf(argv, "-cp")
	require.Positive(t, cpAt)
	assert.Equal(t, core.Classpath(forgeGraph(), runtime), argv[cpAt+1])
	assert.Equal(t, "cpw.mods.bootstraplauncher.BootstrapLauncher", argv[cpAt+2])

	game := argv[cpAt+3:]
	assert.Equal(t, []string{
		"--username", "Notch",
		"--version", "1.20.1-forge-47.2.0",
		"--gameDir", "/game",
		"--assetsDir", filepath.Join(runtime, "assets"),
		"--assetIndex", "5",
		"--uuid", "069a79f444e94726a5befca90e38aaf5",
		"--accessToken", "token",
		"--userType", "msa",
		"--versionType", "release",
		"--width", "854", "--height", "480",
		"--launchTarget", "forgeclient", "--fml.forgeVersion", "47.2.0",
	}, game)
}

func TestBuildCommand_OfflineAndProfileMemory(t *testing.T) {
	graph := &domain.VersionGraph{
		GameVersion: "1.20.1",
		MainClass:   "net.minecraft.client.main.Main",
		Artifacts:   []domain.Artifact{{Path: "versions/1.20.1/1.20.1.jar", Kind: domain.ArtifactClientJar}},
	}
	argv, err := core.BuildCommand(core.CommandSpec{
		Profile:         &domain.Profile{GameDir: "/game", MemoryMB: 6000},
		Graph:           graph,
		Account:         &domain.Account{Username: "Steve", UUID: "u", Kind: domain.AccountOffline, AccessToken: "0"},
		RuntimeDir:      "/rt",
		DefaultMemoryMB: 2048,
	})
	require.NoError(t, err)

	assert.Equal(t, "java", argv[0])
	assert.Equal(t, "-Xms3000M", argv[1])
	assert.Equal(t, "-Xmx6000M", argv[2])
	assert.Equal(t, "legacy", argv[indexOf(argv, "--userType")+1])
	assert.Equal(t, -1, indexOf(argv, "--width"))
}

func TestBuildCommand_RequiresAccountAndMainClass(t *testing.T) {
	_, err := core.BuildCommand(core.CommandSpec{Profile: &domain.Profile{}, Graph: forgeGraph()})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	_, err = core.BuildCommand(core.CommandSpec{Profile: &domain.Profile{}, Graph: &domain.VersionGraph{}, Account: &domain.Account{}})
	assert.Error(t, err)
}

func indexOf(argv []string, s string) int {
	for i, a := range argv {
		if a == s {
			return i
		}
	}
	return -1
}
