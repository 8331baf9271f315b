package views

import (
	"fmt"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// LaunchProfileMsg is sent to launch a profile
type LaunchProfileMsg struct {
	Profile *domain.Profile
}

// RepairProfileMsg is sent to re-verify a profile's runtime
type RepairProfileMsg struct {
	Profile *domain.Profile
}

// ShowContentMsg is sent to open a profile's installed content
type ShowContentMsg struct {
	Profile *domain.Profile
}

// Profiles is the profile picker
type Profiles struct {
	profiles []*domain.Profile
	selected int
	width    int
	height   int
}

// NewProfiles creates a new profiles view. Profiles are shown in the given order.
func NewProfiles(profiles []*domain.Profile) Profiles {
	return Profiles{
		profiles: profiles,
		width:    80,
		height:   24,
	}
}

// Selected returns the currently selected index
func (p Profiles) Selected() int {
	return p.selected
}

// ProfileCount returns the number of profiles
func (p Profiles) ProfileCount() int {
	return len(p.profiles)
}

// SelectedProfile returns the currently selected profile
func (p Profiles) SelectedProfile() *domain.Profile {
	if len(p.profiles) == 0 || p.selected >= len(p.profiles) {
		return nil
	}
	return p.profiles[p.selected]
}

// SetProfiles replaces the list, keeping the selection on the same profile when it still exists
func (p Profiles) SetProfiles(profiles []*domain.Profile) Profiles {
	var current string
	if sel := p.SelectedProfile(); sel != nil {
		current = sel.ID
	}
	p.profiles = profiles
	p.selected = 0
	for i, prof := range profiles {
		if prof.ID == current {
			p.selected = i
		}
	}
	return p
}

// Init implements tea.Model
func (p Profiles) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (p Profiles) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil
	}

	return p, nil
}

func (p Profiles) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if len(p.profiles) > 0 {
			p.selected--
			if p.selected < 0 {
				p.selected = len(p.profiles) - 1
			}
		}
		return p, nil

	case "down", "j":
		if len(p.profiles) > 0 {
			p.selected++
			if p.selected >= len(p.profiles) {
				p.selected = 0
			}
		}
		return p, nil

	case "enter":
		return p, p.send(func(prof *domain.Profile) tea.Msg { return LaunchProfileMsg{Profile: prof} })

	case "r":
		return p, p.send(func(prof *domain.Profile) tea.Msg { return RepairProfileMsg{Profile: prof} })

	case "c", "tab":
		return p, p.send(func(prof *domain.Profile) tea.Msg { return ShowContentMsg{Profile: prof} })

	case "home", "g":
		p.selected = 0
		return p, nil

	case "end", "G":
		if len(p.profiles) > 0 {
			p.selected = len(p.profiles) - 1
		}
		return p, nil
	}

	return p, nil
}

func (p Profiles) send(build func(*domain.Profile) tea.Msg) tea.Cmd {
	prof := p.SelectedProfile()
	if prof == nil {
		return nil
	}
	return func() tea.Msg {
		return build(prof)
	}
}

// View implements tea.Model
func (p Profiles) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("69")).
		MarginBottom(1)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	itemStyle := lipgloss.NewStyle().
		PaddingLeft(2)

	selectedStyle := lipgloss.NewStyle().
		PaddingLeft(2).
		Foreground(lipgloss.Color("205")).
		Bold(true)

	loaderStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	detailStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		PaddingLeft(4)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Profiles") + "\n")

	if len(p.profiles) == 0 {
		b.WriteString(itemStyle.Render("No profiles yet.") + "\n\n")
		b.WriteString(infoStyle.Render("Create one with: lion profile create <name> --version <game version>") + "\n")
		return b.String()
	}

	for i, prof := range p.profiles {
		cursor := "  "
		style := itemStyle
		if i == p.selected {
			cursor = "▸ "
			style = selectedStyle
		}

		line := fmt.Sprintf("%s%s %s", cursor, prof.Name, loaderStyle.Render(prof.GameVersion+" "+prof.Loader.String()))
		b.WriteString(style.Render(line) + "\n")

		if i == p.selected {
			played := "never"
			if !prof.LastPlayed.IsZero() {
				played = humanize.Time(prof.LastPlayed)
			}
			b.WriteString(detailStyle.Render(fmt.Sprintf("Last played: %s", played)) + "\n")
			b.WriteString(detailStyle.Render(fmt.Sprintf("Memory: %d MB", prof.MemoryMB)) + "\n")
			b.WriteString(detailStyle.Render(fmt.Sprintf("Game dir: %s", prof.GameDir)) + "\n\n")
		}
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		MarginTop(1)
	b.WriteString(helpStyle.Render("enter: launch  r: repair  c: content"))

	return b.String()
}
