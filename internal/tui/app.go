// Package tui is the interactive front end: a profile picker, installed content and live launch progress.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/tui/views"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ViewType represents different screens in the TUI
type ViewType int

const (
	ViewProfiles ViewType = iota
	ViewContent
	ViewProgress
)

// ErrInterrupted is returned by RunProgress when the user quits before the stream ends
var ErrInterrupted = errors.New("interrupted")

// ErrorMsg is sent when an error occurs
type ErrorMsg struct {
	Err error
}

type contentLoadedMsg struct {
	profile *domain.Profile
	kind    domain.ContentKind
	items   []domain.ContentItem
}

type profilesLoadedMsg struct {
	profiles []*domain.Profile
}

// App is the main TUI application model
type App struct {
	service     *core.Service
	keys        *KeyMap
	currentView ViewType
	width       int
	height      int
	err         error

	profiles views.Profiles
	content  views.Content
	progress views.Progress
}

// NewApp creates a new TUI application. A nil service shows an empty profile list.
func NewApp(service *core.Service) App {
	var profiles []*domain.Profile
	var loadErr error
	if service != nil {
		profiles, loadErr = service.Profiles().List()
	}
	return App{
		service:     service,
		keys:        NewKeyMap("vim"),
		currentView: ViewProfiles,
		width:       80,
		height:      24,
		err:         loadErr,
		profiles:    views.NewProfiles(profiles),
	}
}

// CurrentView returns the current view type
func (a App) CurrentView() ViewType {
	return a.currentView
}

// Init implements tea.Model
func (a App) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a.updateCurrentView(msg)

	case ErrorMsg:
		a.err = msg.Err
		return a, nil

	case views.BackMsg:
		a.err = nil
		a.currentView = ViewProfiles
		return a, a.reloadProfiles()

	case profilesLoadedMsg:
		a.profiles = a.profiles.SetProfiles(msg.profiles)
		return a, nil

	case views.LaunchProfileMsg:
		return a.startLaunch(msg.Profile)

	case views.RepairProfileMsg:
		return a.startRepair(msg.Profile)

	case views.ShowContentMsg:
		a.content = views.NewContent(msg.Profile, domain.ContentMod, nil)
		a.currentView = ViewContent
		return a, a.loadContent(msg.Profile, domain.ContentMod)

	case views.LoadContentMsg:
		return a, a.loadContent(msg.Profile, msg.Kind)

	case contentLoadedMsg:
		a.content = a.content.SetItems(msg.kind, msg.items)
		return a, nil

	case views.ToggleContentMsg:
		return a, a.contentAction(msg.Profile, msg.Item, func(p *domain.Profile, item domain.ContentItem) error {
			_, err := a.service.Content().Toggle(p, item.Kind, item.Filename)
			return err
		})

	case views.DeleteContentMsg:
		return a, a.contentAction(msg.Profile, msg.Item, func(p *domain.Profile, item domain.ContentItem) error {
			return a.service.Content().Delete(p, item.Kind, item.Filename)
		})
	}

	return a.updateCurrentView(msg)
}

func (a App) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.keys.IsQuit(msg) {
		return a, tea.Quit
	}
	if a.err != nil && a.keys.IsCancel(msg) {
		a.err = nil
		return a, nil
	}
	return a.updateCurrentView(msg)
}

func (a App) updateCurrentView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var model tea.Model
	var cmd tea.Cmd

	switch a.currentView {
	case ViewProfiles:
		model, cmd = a.profiles.Update(msg)
		a.profiles = model.(views.Profiles)
	case ViewContent:
		model, cmd = a.content.Update(msg)
		a.content = model.(views.Content)
	case ViewProgress:
		model, cmd = a.progress.Update(msg)
		a.progress = model.(views.Progress)
	}

	return a, cmd
}

func (a App) startLaunch(p *domain.Profile) (tea.Model, tea.Cmd) {
	if a.service == nil {
		return a, nil
	}
	h, err := a.service.Launcher().Launch(context.Background(), p.ID, core.LaunchOptions{})
	if err != nil {
		a.err = err
		return a, nil
	}
	a.progress = views.NewProgress("Launching "+p.Name, views.LaunchStream(h), false, false)
	a.currentView = ViewProgress
	return a, a.progress.Init()
}

func (a App) startRepair(p *domain.Profile) (tea.Model, tea.Cmd) {
	if a.service == nil {
		return a, nil
	}
	if a.service.Launcher().InProgress(p.ID) {
		a.err = fmt.Errorf("%s is running; stop the game before repairing", p.Name)
		return a, nil
	}
	stream := RepairStream(context.Background(), a.service.Launcher(), p.ID)
	a.progress = views.NewProgress("Repairing "+p.Name, stream, true, false)
	a.currentView = ViewProgress
	return a, a.progress.Init()
}

// RepairStream runs a profile repair in the background and reports it as a progress stream
func RepairStream(ctx context.Context, l *core.Launcher, profileID string) views.Stream {
	events := make(chan core.LaunchEvent, 64)
	done := make(chan struct{})
	var result error

	go func() {
		defer close(done)
		events <- core.LaunchEvent{State: domain.LaunchDownloading}
		result = l.Repair(ctx, profileID, func(p core.Progress) {
			select {
			case events <- core.LaunchEvent{State: domain.LaunchDownloading, Progress: p}:
			default:
			}
		})
		close(events)
	}()

	return views.Stream{
		Events: events,
		Wait: func() (int, error) {
			<-done
			return 0, result
		},
	}
}

func (a App) reloadProfiles() tea.Cmd {
	if a.service == nil {
		return nil
	}
	pm := a.service.Profiles()
	return func() tea.Msg {
		profiles, err := pm.List()
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return profilesLoadedMsg{profiles: profiles}
	}
}

func (a App) loadContent(p *domain.Profile, kind domain.ContentKind) tea.Cmd {
	if a.service == nil || p == nil {
		return nil
	}
	ci := a.service.Content()
	return func() tea.Msg {
		items, err := ci.List(p, kind)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return contentLoadedMsg{profile: p, kind: kind, items: items}
	}
}

func (a App) contentAction(p *domain.Profile, item domain.ContentItem, action func(*domain.Profile, domain.ContentItem) error) tea.Cmd {
	if a.service == nil || p == nil {
		return nil
	}
	reload := a.loadContent(p, item.Kind)
	return func() tea.Msg {
		if err := action(p, item); err != nil {
			return ErrorMsg{Err: fmt.Errorf("%s: %w", item.Filename, err)}
		}
		return reload()
	}
}

// View implements tea.Model
func (a App) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	header := titleStyle.Render("lion - Minecraft launcher")

	content := a.renderCurrentView()

	if a.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		content = errStyle.Render(fmt.Sprintf("Error: %v", a.err)) + "\n\n" + content
	}

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		MarginTop(1)
	footer := footerStyle.Render(a.keys.NavigationHelp() + "  q: quit")

	return fmt.Sprintf("%s\n%s\n\n%s", header, content, footer)
}

func (a App) renderCurrentView() string {
	switch a.currentView {
	case ViewContent:
		return a.content.View()
	case ViewProgress:
		return a.progress.View()
	default:
		return a.profiles.View()
	}
}

// Run starts the TUI application
func Run(service *core.Service) error {
	app := NewApp(service)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RunProgress shows a single progress view until the stream ends and returns its outcome
func RunProgress(title string, stream views.Stream, repair bool) (int, error) {
	p := tea.NewProgram(views.NewProgress(title, stream, repair, true))
	final, err := p.Run()
	if err != nil {
		return -1, err
	}
	view := final.(views.Progress)
	if !view.Finished() {
		return -1, ErrInterrupted
	}
	return view.Result()
}
