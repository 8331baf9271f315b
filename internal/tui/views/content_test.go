package views_test

import (
	"testing"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/tui/views"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []domain.ContentItem {
	return []domain.ContentItem{
		{Kind: domain.ContentMod, Filename: "sodium.jar", Name: "Sodium", Version: "0.5.8", SourceID: "modrinth", RegistryID: "AANobbMI", Enabled: true},
		{Kind: domain.ContentMod, Filename: "local.jar.disabled", Name: "local", Enabled: false},
	}
}

func TestContent_InitialState(t *testing.T) {
	profile := &domain.Profile{ID: "p", Name: "Modded"}
	model := views.NewContent(profile, domain.ContentMod, testItems())

	assert.Equal(t, domain.ContentMod, model.Kind())
	assert.Equal(t, 2, model.ItemCount())
	view := model.View()
	assert.Contains(t, view, "Installed mods")
	assert.Contains(t, view, "[✓] Sodium 0.5.8")
	assert.Contains(t, view, "[ ] local")
	assert.Contains(t, view, "Source: modrinth")
}

func TestContent_Empty(t *testing.T) {
	model := views.NewContent(&domain.Profile{Name: "Empty"}, domain.ContentShaderPack, nil)

	assert.Nil(t, model.SelectedItem())
	assert.Contains(t, model.View(), "Installed shaderpacks")
	assert.Contains(t, model.View(), "Nothing installed here.")

	_, cmd := model.Update(runeKey(' '))
	assert.Nil(t, cmd)
}

func TestContent_ToggleAndDelete(t *testing.T) {
	profile := &domain.Profile{ID: "p"}
	model := views.NewContent(profile, domain.ContentMod, testItems())
	newModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyDown})

	_, cmd := newModel.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	require.NotNil(t, cmd)
	toggle, ok := cmd().(views.ToggleContentMsg)
	require.True(t, ok)
	assert.Equal(t, "local.jar.disabled", toggle.Item.Filename)
	assert.Equal(t, "p", toggle.Profile.ID)

	_, cmd = newModel.Update(runeKey('d'))
	require.NotNil(t, cmd)
	del, ok := cmd().(views.DeleteContentMsg)
	require.True(t, ok)
	assert.Equal(t, "local.jar.disabled", del.Item.Filename)
}

func TestContent_TabCyclesKinds(t *testing.T) {
	model := views.NewContent(&domain.Profile{ID: "p"}, domain.ContentShaderPack, nil)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.NotNil(t, cmd)
	load, ok := cmd().(views.LoadContentMsg)
	require.True(t, ok)
	assert.Equal(t, domain.ContentMod, load.Kind)
}

func TestContent_EscGoesBack(t *testing.T) {
	model := views.NewContent(nil, domain.ContentMod, nil)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	_, ok := cmd().(views.BackMsg)
	assert.True(t, ok)
}

func TestContent_SetItemsClampsSelection(t *testing.T) {
	model := views.NewContent(nil, domain.ContentMod, testItems())
	newModel, _ := model.Update(runeKey('G'))
	updated := newModel.(views.Content)
	require.Equal(t, 1, updated.Selected())

	updated = updated.SetItems(domain.ContentMod, testItems()[:1])
	assert.Equal(t, 0, updated.Selected())

	updated = updated.SetItems(domain.ContentResourcePack, nil)
	assert.Equal(t, domain.ContentResourcePack, updated.Kind())
	assert.Equal(t, 0, updated.ItemCount())
}
