package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// Launch hook names, exported to scripts as LION_HOOK
const (
	HookPreLaunch = "pre_launch"
	HookPostExit  = "post_exit"
)

// HookContext provides environment information for hook scripts
type HookContext struct {
	ProfileID   string
	ProfileName string
	GameDir     string
	GameVersion string
	Loader      string
	HookName    string
	ExitCode    int // post_exit only
}

// NewHookContext describes a launch of p for the named hook
func NewHookContext(p *domain.Profile, hook string) HookContext {
	return HookContext{
		ProfileID:   p.ID,
		ProfileName: p.Name,
		GameDir:     p.GameDir,
		GameVersion: p.GameVersion,
		Loader:      p.Loader.String(),
		HookName:    hook,
	}
}

func (hc HookContext) env() []string {
	env := []string{
		"LION_PROFILE_ID=" + hc.ProfileID,
		"LION_PROFILE_NAME=" + hc.ProfileName,
		"LION_GAME_DIR=" + hc.GameDir,
		"LION_GAME_VERSION=" + hc.GameVersion,
		"LION_LOADER=" + hc.Loader,
		"LION_HOOK=" + hc.HookName,
	}
	if hc.HookName == HookPostExit {
		env = append(env, "LION_EXIT_CODE="+strconv.Itoa(hc.ExitCode))
	}
	return env
}

// HookResult contains the output from running a hook
type HookResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// HookRunner executes hook scripts with timeout and environment
type HookRunner struct {
	timeout time.Duration
}

// NewHookRunner creates a new hook runner with the given timeout
func NewHookRunner(timeout time.Duration) *HookRunner {
	return &HookRunner{timeout: timeout}
}

// Run executes a hook script and returns its output. The script runs in the game directory.
func (r *HookRunner) Run(ctx context.Context, scriptPath string, hc HookContext) (*HookResult, error) {
	result := &HookResult{}

	info, err := os.Stat(scriptPath)
	if errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("hook script not found: %s", scriptPath)
	}
	if err != nil {
		return result, fmt.Errorf("checking hook script: %w", err)
	}
	if info.Mode()&0111 == 0 {
		return result, fmt.Errorf("hook script not executable: %s", scriptPath)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, scriptPath)
	cmd.WaitDelay = 100 * time.Millisecond // Allow graceful shutdown after context cancel
	cmd.Env = append(os.Environ(), hc.env()...)
	if hc.GameDir != "" {
		cmd.Dir = hc.GameDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("hook timed out after %v: %s", r.timeout, scriptPath)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("hook failed with exit code %d: %s", result.ExitCode, scriptPath)
		}
		return result, fmt.Errorf("running hook: %w", err)
	}

	return result, nil
}

// LaunchHooks are the scripts run around a launch. Empty paths are skipped.
type LaunchHooks struct {
	PreLaunch string
	PostExit  string
	Timeout   time.Duration
}

func (h LaunchHooks) runner() *HookRunner {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return NewHookRunner(timeout)
}
