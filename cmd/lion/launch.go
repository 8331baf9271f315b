package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/tui"
	"github.com/DonovanMods/lion-launcher/internal/tui/views"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	launchJava     string
	launchNoSync   bool
	launchDetached bool
)

var launchCmd = &cobra.Command{
	Use:   "launch <profile>",
	Short: "Launch a profile",
	Long: `Launch a profile. Missing game files are downloaded first.

The game's exit code becomes lion's exit code.

Examples:
  lion launch Survival
  lion launch Survival --java /usr/lib/jvm/java-21/bin/java`,
	Args: cobra.ExactArgs(1),
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().StringVar(&launchJava, "java", "", "java executable for this launch")
	launchCmd.Flags().BoolVar(&launchNoSync, "no-settings-sync", false, "skip settings sync for this launch")
	launchCmd.Flags().BoolVarP(&launchDetached, "detach", "d", false, "return once the game is running")

	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}

	// Interrupting cancels preparation; a running game is left alone
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := svc.Launcher().Launch(ctx, p.ID, core.LaunchOptions{
		JavaPath:         launchJava,
		SkipSettingsSync: launchNoSync,
	})
	if err != nil {
		return err
	}

	var code int
	if plainOutput() || launchDetached {
		code, err = followLaunch(p, h)
	} else {
		code, err = tui.RunProgress("Launching "+p.Name, views.LaunchStream(h), false)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := printJSON(map[string]any{"profile": p.ID, "exit_code": code}); err != nil {
			return err
		}
	}
	if code != 0 {
		return &exitCodeError{code: code}
	}
	return nil
}

// followLaunch prints state changes as lines. With --detach it returns once the game is running.
func followLaunch(p *domain.Profile, h *core.LaunchHandle) (int, error) {
	var last domain.LaunchState = -1
	printer := newProgressPrinter()

	for ev := range h.Events() {
		if ev.State == domain.LaunchDownloading {
			printer.update(ev.Progress)
		}
		if ev.State == last {
			continue
		}
		last = ev.State
		if !jsonOutput {
			fmt.Printf("%s %s\n", colorYellow("→"), ev.State)
		}
		if ev.State == domain.LaunchRunning && launchDetached {
			if !jsonOutput {
				fmt.Printf("%s %s is running (log: %s)\n", colorGreen("✓"), p.Name, gameLogHint(p))
			}
			return 0, nil
		}
	}

	code, err := h.Wait()
	if err != nil {
		return code, err
	}
	if !jsonOutput {
		if code == 0 {
			fmt.Printf("%s Game exited normally\n", colorGreen("✓"))
		} else {
			fmt.Printf("%s Game exited with code %d\n", colorRed("✗"), code)
		}
	}
	return code, nil
}

func gameLogHint(p *domain.Profile) string {
	path := filepath.Join(p.GameDir, "logs", core.LaunchLogFile)
	if info, err := os.Stat(path); err == nil {
		return fmt.Sprintf("%s, %s", path, humanize.Bytes(uint64(info.Size())))
	}
	return path
}
