package tui_test

import (
	"errors"
	"testing"

	"github.com/DonovanMods/lion-launcher/internal/tui"
	"github.com/DonovanMods/lion-launcher/internal/tui/views"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApp_InitialState(t *testing.T) {
	app := tui.NewApp(nil)

	assert.Equal(t, tui.ViewProfiles, app.CurrentView())
	assert.Contains(t, app.View(), "No profiles yet")
}

func TestApp_QuitOnQ(t *testing.T) {
	app := tui.NewApp(nil)

	newModel, cmd := app.Update(runeKey('q'))
	require.NotNil(t, newModel)
	require.NotNil(t, cmd)

	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok, "expected quit command")
}

func TestApp_ErrorShownAndCleared(t *testing.T) {
	app := tui.NewApp(nil)

	newModel, _ := app.Update(tui.ErrorMsg{Err: errors.New("disk full")})
	assert.Contains(t, newModel.View(), "disk full")

	newModel, _ = newModel.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotContains(t, newModel.View(), "disk full")
}

func TestApp_BackReturnsToProfiles(t *testing.T) {
	app := tui.NewApp(nil)

	newModel, _ := app.Update(views.ShowContentMsg{})
	assert.Equal(t, tui.ViewContent, newModel.(tui.App).CurrentView())

	newModel, _ = newModel.Update(views.BackMsg{})
	assert.Equal(t, tui.ViewProfiles, newModel.(tui.App).CurrentView())
}

func TestApp_LaunchWithoutServiceStaysOnProfiles(t *testing.T) {
	app := tui.NewApp(nil)

	newModel, cmd := app.Update(views.LaunchProfileMsg{})
	assert.Nil(t, cmd)
	assert.Equal(t, tui.ViewProfiles, newModel.(tui.App).CurrentView())
}
