package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/source"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentCmd_Structure(t *testing.T) {
	assert.Equal(t, "content", contentCmd.Use)
	assert.Contains(t, contentCmd.Aliases, "mods")

	var subCmds []string
	for _, cmd := range contentCmd.Commands() {
		subCmds = append(subCmds, cmd.Name())
	}
	for _, want := range []string{"search", "install", "list", "enable", "disable", "toggle", "remove", "update"} {
		assert.Contains(t, subCmds, want)
	}
}

func TestContentListCmd_NoProfile(t *testing.T) {
	useTempDirs(t)
	contentProfile = ""

	cmd := &cobra.Command{Use: "test"}
	cmd.AddCommand(contentCmd)

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"content", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no profile specified")
}

func TestParseKindFlag(t *testing.T) {
	t.Cleanup(func() { contentKind = "mods" })

	for in, want := range map[string]domain.ContentKind{
		"mods":          domain.ContentMod,
		"resourcepacks": domain.ContentResourcePack,
		"shaders":       domain.ContentShaderPack,
	} {
		contentKind = in
		got, err := parseKindFlag()
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}

	contentKind = "worlds"
	_, err := parseKindFlag()
	assert.ErrorContains(t, err, "unknown content kind")
}

func TestParseSort(t *testing.T) {
	got, err := parseSort("Downloads")
	require.NoError(t, err)
	assert.Equal(t, source.SortDownloads, got)

	_, err = parseSort("random")
	assert.Error(t, err)
}

func TestMatchAllAndBulk(t *testing.T) {
	svc := newCLIService(t)
	p := seedProfile(t, svc, "0b7d2c1e-aaaa-4000-8000-000000000001", "Modded")

	mods := filepath.Join(p.GameDir, "mods")
	require.NoError(t, os.MkdirAll(mods, 0755))
	for _, name := range []string{"sodium-0.5.8.jar", "sodium-extra-0.5.4.jar", "lithium-0.11.2.jar"} {
		require.NoError(t, os.WriteFile(filepath.Join(mods, name), []byte(name), 0644))
	}

	files, err := matchAll(svc.Content(), p, domain.ContentMod, []string{"sodium*", "sodium-0*"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sodium-0.5.8.jar", "sodium-extra-0.5.4.jar"}, files)

	_, err = matchAll(svc.Content(), p, domain.ContentMod, []string{"iris*"})
	assert.ErrorIs(t, err, domain.ErrContentNotFound)

	result, err := svc.Content().BulkToggle(p, domain.ContentMod, files, false)
	require.NoError(t, err)
	assert.NoError(t, reportBulk("Disabled", result))
	assert.FileExists(t, filepath.Join(mods, "sodium-0.5.8.jar"+domain.DisabledSuffix))

	// Disabled files still match on their base name
	files, err = matchAll(svc.Content(), p, domain.ContentMod, []string{"*extra*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sodium-extra-0.5.4.jar" + domain.DisabledSuffix}, files)
}
