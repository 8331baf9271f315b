package views

import (
	"fmt"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ToggleContentMsg is sent to enable or disable a content file
type ToggleContentMsg struct {
	Profile *domain.Profile
	Item    domain.ContentItem
}

// DeleteContentMsg is sent to remove a content file
type DeleteContentMsg struct {
	Profile *domain.Profile
	Item    domain.ContentItem
}

// LoadContentMsg asks for a profile's content of one kind to be (re)loaded
type LoadContentMsg struct {
	Profile *domain.Profile
	Kind    domain.ContentKind
}

// BackMsg returns to the previous view
type BackMsg struct{}

var contentKinds = []domain.ContentKind{domain.ContentMod, domain.ContentResourcePack, domain.ContentShaderPack}

// Content lists a profile's installed mods, resource packs or shader packs
type Content struct {
	profile  *domain.Profile
	kind     domain.ContentKind
	items    []domain.ContentItem
	selected int
	width    int
	height   int
}

// NewContent creates a new content view
func NewContent(profile *domain.Profile, kind domain.ContentKind, items []domain.ContentItem) Content {
	return Content{
		profile: profile,
		kind:    kind,
		items:   items,
		width:   80,
		height:  24,
	}
}

// Kind returns the content kind shown
func (m Content) Kind() domain.ContentKind {
	return m.kind
}

// Selected returns the currently selected index
func (m Content) Selected() int {
	return m.selected
}

// ItemCount returns the number of listed files
func (m Content) ItemCount() int {
	return len(m.items)
}

// SelectedItem returns the currently selected file
func (m Content) SelectedItem() *domain.ContentItem {
	if len(m.items) == 0 || m.selected >= len(m.items) {
		return nil
	}
	return &m.items[m.selected]
}

// SetItems replaces the listed files, clamping the selection
func (m Content) SetItems(kind domain.ContentKind, items []domain.ContentItem) Content {
	if kind != m.kind {
		m.selected = 0
	}
	m.kind = kind
	m.items = items
	if m.selected >= len(items) {
		m.selected = max(len(items)-1, 0)
	}
	return m
}

// Init implements tea.Model
func (m Content) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Content) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m, nil
}

func (m Content) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, func() tea.Msg { return BackMsg{} }

	case "tab":
		next := contentKinds[0]
		for i, k := range contentKinds {
			if k == m.kind {
				next = contentKinds[(i+1)%len(contentKinds)]
			}
		}
		profile := m.profile
		return m, func() tea.Msg { return LoadContentMsg{Profile: profile, Kind: next} }
	}

	if len(m.items) == 0 {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		m.selected--
		if m.selected < 0 {
			m.selected = len(m.items) - 1
		}
		return m, nil

	case "down", "j":
		m.selected++
		if m.selected >= len(m.items) {
			m.selected = 0
		}
		return m, nil

	case " ":
		item := *m.SelectedItem()
		profile := m.profile
		return m, func() tea.Msg { return ToggleContentMsg{Profile: profile, Item: item} }

	case "d", "delete":
		item := *m.SelectedItem()
		profile := m.profile
		return m, func() tea.Msg { return DeleteContentMsg{Profile: profile, Item: item} }

	case "home", "g":
		m.selected = 0
		return m, nil

	case "end", "G":
		m.selected = len(m.items) - 1
		return m, nil
	}

	return m, nil
}

// View implements tea.Model
func (m Content) View() string {
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

	disabledStyle := lipgloss.NewStyle().
		PaddingLeft(2).
		Foreground(lipgloss.Color("241"))

	detailStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		PaddingLeft(4)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Installed "+m.kind.Dir()) + "\n")

	profileName := "No profile"
	if m.profile != nil {
		profileName = m.profile.Name
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf("Profile: %s", profileName)) + "\n\n")

	if len(m.items) == 0 {
		b.WriteString(itemStyle.Render("Nothing installed here.") + "\n\n")
		b.WriteString(infoStyle.Render("Install with 'lion content install <project>'") + "\n")
		return b.String()
	}

	for i, item := range m.items {
		cursor := "  "
		style := itemStyle
		if i == m.selected {
			cursor = "▸ "
			style = selectedStyle
		} else if !item.Enabled {
			style = disabledStyle
		}

		status := "[✓]"
		if !item.Enabled {
			status = "[ ]"
		}

		line := fmt.Sprintf("%s%s %s", cursor, status, item.Name)
		if item.Version != "" {
			line += " " + item.Version
		}
		b.WriteString(style.Render(line) + "\n")

		if i == m.selected {
			b.WriteString(detailStyle.Render(item.Filename) + "\n")
			if item.SourceID != "" {
				b.WriteString(detailStyle.Render(fmt.Sprintf("Source: %s  ID: %s", item.SourceID, item.RegistryID)) + "\n")
			} else {
				b.WriteString(detailStyle.Render("Added by hand") + "\n")
			}
			b.WriteString("\n")
		}
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		MarginTop(1)
	b.WriteString(helpStyle.Render("↑/↓: navigate  space: toggle  d: delete  tab: next kind  esc: back"))

	return b.String()
}
