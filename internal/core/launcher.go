package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/logging"
)

// LaunchLogFile receives the game's stdout and stderr, inside the game's logs directory
const LaunchLogFile = "launcher.log"

// eventBuffer bounds queued events per launch. Progress events are dropped when a reader falls
// behind; state events always fit because there are fewer states than reserved slots.
const (
	eventBuffer    = 64
	reservedEvents = 16
)

// CredentialSource provides the account to launch with, refreshing it when needed
type CredentialSource interface {
	Credentials(ctx context.Context) (*domain.Account, error)
}

// LaunchEvent reports a state change or download progress of a launch
type LaunchEvent struct {
	State    domain.LaunchState
	Progress Progress // Set while downloading
	ExitCode int      // Set on LaunchExited
	Err      error    // Set on LaunchFailed
}

// LaunchOptions adjusts a single launch
type LaunchOptions struct {
	JavaPath         string // Overrides the configured java executable
	SkipSettingsSync bool
}

// LauncherConfig holds the launch settings taken from the global configuration
type LauncherConfig struct {
	JavaPath        string
	JavaArgs        []string
	DefaultMemoryMB int
	Width, Height   int
	Hooks           LaunchHooks
}

// Launcher drives a profile from definition to running game process.
// At most one launch per profile is in flight.
type Launcher struct {
	profiles *ProfileManager
	creds    CredentialSource
	cfg      LauncherConfig
	log      zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]*LaunchHandle
}

// NewLauncher creates a launcher
func NewLauncher(profiles *ProfileManager, creds CredentialSource, cfg LauncherConfig) *Launcher {
	return &Launcher{
		profiles: profiles,
		creds:    creds,
		cfg:      cfg,
		log:      logging.Get("launcher"),
		inFlight: make(map[string]*LaunchHandle),
	}
}

// LaunchHandle observes one launch
type LaunchHandle struct {
	ProfileID string

	events chan LaunchEvent
	done   chan struct{}

	mu       sync.Mutex
	state    domain.LaunchState
	exitCode int
	err      error
	process  *os.Process
}

// Events returns the launch's event stream. It is closed after the terminal event.
func (h *LaunchHandle) Events() <-chan LaunchEvent {
	return h.events
}

// State returns the current state
func (h *LaunchHandle) State() domain.LaunchState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed when the launch reaches a terminal state
func (h *LaunchHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the launch ends and returns the game's exit code, or the *domain.LaunchError
// that stopped it
func (h *LaunchHandle) Wait() (int, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.err
}

// Kill terminates a running game process
func (h *LaunchHandle) Kill() error {
	h.mu.Lock()
	p := h.process
	h.mu.Unlock()
	if p == nil {
		return errors.New("game process is not running")
	}
	return p.Kill()
}

func (h *LaunchHandle) setState(s domain.LaunchState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
	h.events <- LaunchEvent{State: s}
}

func (h *LaunchHandle) progress(p Progress) {
	if len(h.events) >= eventBuffer-reservedEvents {
		return
	}
	select {
	case h.events <- LaunchEvent{State: domain.LaunchDownloading, Progress: p}:
	default:
	}
}

// Launch starts launching a profile and returns immediately. Progress and the outcome are reported
// through the handle. Cancelling ctx stops a launch that has not spawned the game yet; a running
// game is unaffected.
func (l *Launcher) Launch(ctx context.Context, profileID string, opts LaunchOptions) (*LaunchHandle, error) {
	l.mu.Lock()
	if _, busy := l.inFlight[profileID]; busy {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrLaunchInProgress, profileID)
	}
	h := &LaunchHandle{
		ProfileID: profileID,
		events:    make(chan LaunchEvent, eventBuffer),
		done:      make(chan struct{}),
		state:     domain.LaunchPreparing,
	}
	l.inFlight[profileID] = h
	l.mu.Unlock()

	go l.run(ctx, h, opts)
	return h, nil
}

// InProgress reports whether a profile has a launch that has not reached a terminal state,
// or a repair that is still running
func (l *Launcher) InProgress(profileID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inFlight[profileID]
	return ok
}

// Repair re-verifies a profile's runtime. It refuses while the profile is launching or running,
// and holds off launches of the profile until it returns.
func (l *Launcher) Repair(ctx context.Context, profileID string, progressFn PipelineProgressFunc) error {
	l.mu.Lock()
	if _, busy := l.inFlight[profileID]; busy {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrLaunchInProgress, profileID)
	}
	l.inFlight[profileID] = nil
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.inFlight, profileID)
		l.mu.Unlock()
	}()
	return l.profiles.Repair(ctx, profileID, progressFn)
}

func (l *Launcher) run(ctx context.Context, h *LaunchHandle, opts LaunchOptions) {
	log := l.log.With().Str("profile", h.ProfileID).Logger()
	h.events <- LaunchEvent{State: domain.LaunchPreparing}

	cmd, logFile, err := l.prepare(ctx, h, opts, log)
	if err == nil {
		h.setState(domain.LaunchSpawning)
		err = l.spawn(h, cmd, logFile)
	}
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		l.fail(h, err, log)
		return
	}

	h.setState(domain.LaunchRunning)
	log.Info().Int("pid", cmd.Process.Pid).Msg("Game running")
	if err := l.profiles.MarkPlayed(h.ProfileID, time.Now()); err != nil {
		log.Warn().Err(err).Msg("Could not record last played")
	}

	waitErr := cmd.Wait()

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		log.Warn().Err(waitErr).Msg("Waiting for game process")
	}
	log.Info().Int("exitCode", code).Msg("Game exited")

	if l.cfg.Hooks.PostExit != "" {
		if profile, err := l.profiles.Get(h.ProfileID); err == nil {
			hc := NewHookContext(profile, HookPostExit)
			hc.ExitCode = code
			if err := l.runHook(context.Background(), l.cfg.Hooks.PostExit, hc, logFile); err != nil {
				log.Warn().Err(err).Msg("post_exit hook failed")
			}
		}
	}
	logFile.Close()

	h.mu.Lock()
	h.state = domain.LaunchExited
	h.exitCode = code
	h.process = nil
	h.mu.Unlock()
	l.finish(h, LaunchEvent{State: domain.LaunchExited, ExitCode: code})
}

// prepare walks the states up to the assembled command. Every failure is a *domain.LaunchError.
func (l *Launcher) prepare(ctx context.Context, h *LaunchHandle, opts LaunchOptions, log zerolog.Logger) (*exec.Cmd, *os.File, error) {
	stageErr := func(stage domain.LaunchState, err error) error {
		return &domain.LaunchError{ProfileID: h.ProfileID, Stage: stage, Err: err}
	}

	profile, err := l.profiles.Get(h.ProfileID)
	if err != nil {
		return nil, nil, stageErr(domain.LaunchPreparing, err)
	}
	account, err := l.creds.Credentials(ctx)
	if err != nil {
		return nil, nil, stageErr(domain.LaunchPreparing, err)
	}
	if profile.SettingsSync && !opts.SkipSettingsSync {
		if _, err := l.profiles.SyncSettings(ctx); err != nil {
			log.Warn().Err(err).Msg("Settings sync incomplete")
		}
	}

	h.setState(domain.LaunchResolvingManifest)
	graph, err := l.profiles.Resolve(ctx, profile)
	if err != nil {
		return nil, nil, stageErr(domain.LaunchResolvingManifest, err)
	}
	if graph.Stale {
		log.Warn().Str("graph", graph.ID()).Msg("Launching from cached metadata")
	}

	h.setState(domain.LaunchDownloading)
	if err := l.profiles.Build(ctx, profile, graph, false, h.progress); err != nil {
		return nil, nil, stageErr(domain.LaunchDownloading, err)
	}

	h.setState(domain.LaunchAssemblingCommand)
	runtimeDir := l.profiles.RuntimeDir(profile.ID)
	nativesDir := filepath.Join(runtimeDir, "natives", graph.GameVersion)
	if err := ExtractNatives(runtimeDir, graph, nativesDir); err != nil {
		return nil, nil, stageErr(domain.LaunchAssemblingCommand, err)
	}

	javaPath := opts.JavaPath
	if javaPath == "" {
		javaPath = l.cfg.JavaPath
	}
	argv, err := BuildCommand(CommandSpec{
		JavaPath:        javaPath,
		Profile:         profile,
		Graph:           graph,
		Account:         account,
		RuntimeDir:      runtimeDir,
		NativesDir:      nativesDir,
		JavaArgs:        l.cfg.JavaArgs,
		DefaultMemoryMB: l.cfg.DefaultMemoryMB,
		Width:           l.cfg.Width,
		Height:          l.cfg.Height,
	})
	if err != nil {
		return nil, nil, stageErr(domain.LaunchAssemblingCommand, err)
	}

	logsDir := filepath.Join(profile.GameDir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, nil, stageErr(domain.LaunchAssemblingCommand, err)
	}
	logFile, err := os.OpenFile(filepath.Join(logsDir, LaunchLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, stageErr(domain.LaunchAssemblingCommand, fmt.Errorf("opening game log: %w", err))
	}

	if l.cfg.Hooks.PreLaunch != "" {
		if err := l.runHook(ctx, l.cfg.Hooks.PreLaunch, NewHookContext(profile, HookPreLaunch), logFile); err != nil {
			logFile.Close()
			return nil, nil, stageErr(domain.LaunchAssemblingCommand, err)
		}
	}

	// The game outlives the launch context
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = profile.GameDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	log.Debug().Strs("argv", redact(argv, account.AccessToken)).Msg("Assembled command")
	return cmd, logFile, nil
}

// runHook runs one launch hook, appending its output to the game log
func (l *Launcher) runHook(ctx context.Context, script string, hc HookContext, logFile *os.File) error {
	res, err := l.cfg.Hooks.runner().Run(ctx, script, hc)
	if res != nil {
		fmt.Fprintf(logFile, "--- %s hook %s\n%s%s", hc.HookName, script, res.Stdout, res.Stderr)
	}
	if err != nil {
		return fmt.Errorf("%s hook: %w", hc.HookName, err)
	}
	l.log.Debug().Str("profile", hc.ProfileID).Str("hook", hc.HookName).Msg("Hook finished")
	return nil
}

func (l *Launcher) spawn(h *LaunchHandle, cmd *exec.Cmd, logFile *os.File) error {
	fmt.Fprintf(logFile, "--- %s launching %s\n", time.Now().Format(time.RFC3339), h.ProfileID)
	if err := cmd.Start(); err != nil {
		return &domain.LaunchError{ProfileID: h.ProfileID, Stage: domain.LaunchSpawning, Err: err}
	}
	h.mu.Lock()
	h.process = cmd.Process
	h.mu.Unlock()
	return nil
}

func (l *Launcher) fail(h *LaunchHandle, err error, log zerolog.Logger) {
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Launch cancelled")
	} else {
		log.Error().Err(err).Msg("Launch failed")
	}
	h.mu.Lock()
	h.state = domain.LaunchFailed
	h.err = err
	h.exitCode = -1
	h.mu.Unlock()
	l.finish(h, LaunchEvent{State: domain.LaunchFailed, Err: err})
}

// finish publishes the terminal event and frees the profile for another launch
func (l *Launcher) finish(h *LaunchHandle, ev LaunchEvent) {
	l.mu.Lock()
	delete(l.inFlight, h.ProfileID)
	l.mu.Unlock()

	h.events <- ev
	close(h.events)
	close(h.done)
}

// redact hides the access token in logged command lines
func redact(argv []string, token string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		if token != "" && a == token {
			a = "********"
		}
		out[i] = a
	}
	return out
}
