package views

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Stream is the event source a progress view follows. Events is closed after the terminal event;
// Wait then returns the outcome. Stop is optional and ends a running game.
type Stream struct {
	Events <-chan core.LaunchEvent
	Wait   func() (int, error)
	Stop   func() error
}

// LaunchStream follows a launch
func LaunchStream(h *core.LaunchHandle) Stream {
	return Stream{Events: h.Events(), Wait: h.Wait, Stop: h.Kill}
}

// EventMsg carries one event from the stream
type EventMsg struct {
	Event core.LaunchEvent
}

// FinishedMsg is sent once the stream is exhausted
type FinishedMsg struct {
	ExitCode int
	Err      error
}

// Next returns a command that reads the next event from s
func (s Stream) Next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-s.Events
		if !ok {
			code, err := s.Wait()
			return FinishedMsg{ExitCode: code, Err: err}
		}
		return EventMsg{Event: ev}
	}
}

// Progress follows a launch or a repair through to its end
type Progress struct {
	title        string
	repair       bool
	stream       Stream
	state        domain.LaunchState
	current      core.Progress
	spinner      spinner.Model
	bar          progress.Model
	finished     bool
	exitCode     int
	err          error
	quitOnFinish bool
	width        int
	stopping     bool
	stopErr      error
}

// NewProgress creates a progress view titled title. A repair view reports completion instead of
// a game exit code. With quitOnFinish the program quits when the stream ends.
func NewProgress(title string, stream Stream, repair, quitOnFinish bool) Progress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Progress{
		title:        title,
		repair:       repair,
		stream:       stream,
		state:        domain.LaunchPreparing,
		spinner:      s,
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		quitOnFinish: quitOnFinish,
		width:        80,
	}
}

// State returns the last reported state
func (p Progress) State() domain.LaunchState {
	return p.state
}

// Finished reports whether the stream has ended
func (p Progress) Finished() bool {
	return p.finished
}

// Result returns the exit code and error once finished
func (p Progress) Result() (int, error) {
	return p.exitCode, p.err
}

// Init implements tea.Model
func (p Progress) Init() tea.Cmd {
	return tea.Batch(p.spinner.Tick, p.stream.Next())
}

// Update implements tea.Model
func (p Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		p.state = msg.Event.State
		if msg.Event.State == domain.LaunchDownloading && msg.Event.Progress.BytesTotal > 0 {
			p.current = msg.Event.Progress
		}
		return p, p.stream.Next()

	case FinishedMsg:
		p.finished = true
		p.exitCode = msg.ExitCode
		p.err = msg.Err
		if msg.Err != nil {
			p.state = domain.LaunchFailed
		} else if !p.repair {
			p.state = domain.LaunchExited
		}
		if p.quitOnFinish {
			return p, tea.Quit
		}
		return p, nil

	case spinner.TickMsg:
		if p.finished {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.bar.Width = min(max(msg.Width-10, 10), 80)
		return p, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC && p.quitOnFinish {
			return p, tea.Quit
		}
		if msg.String() == "esc" && p.finished {
			return p, func() tea.Msg { return BackMsg{} }
		}
		if msg.String() == "x" && p.canStop() {
			p.stopping = true
			p.stopErr = p.stream.Stop()
			return p, nil
		}
	}

	return p, nil
}

// View implements tea.Model
func (p Progress) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("69")).
		MarginBottom(1)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	okStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("82"))

	errStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	var b strings.Builder
	b.WriteString(titleStyle.Render(p.title) + "\n")

	if !p.finished {
		b.WriteString(p.spinner.View() + " " + stateLabel(p.state, p.repair) + "\n")
		if p.state == domain.LaunchDownloading && p.current.BytesTotal > 0 {
			b.WriteString("\n" + p.bar.ViewAs(p.current.Percent()/100) + "\n")
			b.WriteString(infoStyle.Render(fmt.Sprintf("%s / %s",
				humanize.Bytes(uint64(p.current.BytesCompleted)),
				humanize.Bytes(uint64(p.current.BytesTotal)))) + "\n")
		}
		switch {
		case p.stopErr != nil:
			b.WriteString("\n" + errStyle.Render("Stopping game failed: "+p.stopErr.Error()) + "\n")
		case p.stopping:
			b.WriteString("\n" + infoStyle.Render("Stopping game...") + "\n")
		case p.canStop():
			b.WriteString("\n" + infoStyle.Render("x: stop game") + "\n")
		}
		return b.String()
	}

	switch {
	case p.err != nil:
		b.WriteString(errStyle.Render(failureText(p.err)) + "\n")
	case p.repair:
		b.WriteString(okStyle.Render("Runtime verified") + "\n")
	case p.exitCode == 0:
		b.WriteString(okStyle.Render("Game exited normally") + "\n")
	default:
		b.WriteString(errStyle.Render(fmt.Sprintf("Game exited with code %d", p.exitCode)) + "\n")
	}
	if !p.quitOnFinish {
		b.WriteString("\n" + infoStyle.Render("esc: back"))
	}
	return b.String()
}

// canStop reports whether the game is running and the stream can end it
func (p Progress) canStop() bool {
	return !p.finished && !p.stopping && p.state == domain.LaunchRunning && p.stream.Stop != nil
}

func stateLabel(s domain.LaunchState, repair bool) string {
	if repair {
		return "Verifying files"
	}
	label := s.String()
	return strings.ToUpper(label[:1]) + label[1:]
}

func failureText(err error) string {
	var launchErr *domain.LaunchError
	if errors.As(err, &launchErr) {
		return fmt.Sprintf("Failed while %s: %v", launchErr.Stage, launchErr.Err)
	}
	return "Failed: " + err.Error()
}
