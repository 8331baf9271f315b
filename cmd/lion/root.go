package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/logging"
	"github.com/DonovanMods/lion-launcher/internal/storage/config"

	"github.com/spf13/cobra"
)

// ErrCancelled is returned when the user cancels an operation (e.g. prompt declined).
// When returned from a command, Execute exits with code 2.
var ErrCancelled = errors.New("cancelled")

var (
	version = "0.3.0"

	// Global flags
	configDir  string
	dataDir    string
	cacheDir   string
	logFile    string
	verbosity  int
	jsonOutput bool
	noColor    bool
	noTUI      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lion",
	Short: "lion - Minecraft launcher for the terminal",
	Long: `lion is a terminal Minecraft launcher. It keeps isolated profiles, resolves and
downloads game versions and mod loaders, signs in with Microsoft accounts, and installs
mods, resource packs and shader packs from Modrinth and CurseForge.

Use subcommands for operations, or 'lion tui' for the interactive interface.`,
	Version:       version,
	SilenceUsage:  true, // Runtime errors should not print usage
	SilenceErrors: true, // We handle error output in Execute()
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbosity, logFile, !colorEnabled())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default: ~/.config/lion)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default: ~/.local/share/lion)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache", "", "artifact cache directory (default: ~/.cache/lion)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file (default: ~/.local/state/lion/lion.log)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "verbose output (repeat for more)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noTUI, "no-tui", false, "print progress as plain lines instead of a live view")
}

// colorEnabled returns true if colored output should be used (respects --no-color and NO_COLOR env).
// NO_COLOR: if set (any value), color is disabled per https://no-color.org
func colorEnabled() bool {
	if noColor {
		return false
	}
	return os.Getenv("NO_COLOR") == ""
}

const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
)

func colorize(color, s string) string {
	if !colorEnabled() {
		return s
	}
	return color + s + ansiReset
}

func colorGreen(s string) string  { return colorize(ansiGreen, s) }
func colorRed(s string) string    { return colorize(ansiRed, s) }
func colorYellow(s string) string { return colorize(ansiYellow, s) }

// Execute runs the root command. Exit codes: 0 = success, 1 = error, 2 = user cancelled.
// A launched game's non-zero exit code is passed through.
// When --json is set and an error occurs, prints {"error":"..."} to stdout before exiting.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitCodeError
		switch {
		case errors.Is(err, ErrCancelled):
			os.Exit(2)
		case errors.As(err, &exit):
			os.Exit(exit.code)
		}
		if jsonOutput {
			fmt.Printf(`{"error":%q}`+"\n", err.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// exitCodeError carries a game's exit code out of a command without printing an error
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("game exited with code %d", e.code)
}

// servicePaths returns the default XDG paths with any directory flags applied
func servicePaths() config.Paths {
	paths := config.DefaultPaths()
	if configDir != "" {
		paths.ConfigDir = configDir
	}
	if dataDir != "" {
		paths.DataDir = dataDir
	}
	if cacheDir != "" {
		paths.CacheDir = cacheDir
	}
	return paths
}

// initService creates and initializes the core service
func initService() (*core.Service, error) {
	paths := servicePaths()
	for _, dir := range []string{paths.ConfigDir, paths.DataDir, paths.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	svc, err := core.NewService(core.ServiceConfig{Paths: paths})
	if err != nil {
		return nil, fmt.Errorf("initializing service: %w", err)
	}
	return svc, nil
}

func closeService(svc *core.Service) {
	if err := svc.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing service: %v\n", err)
	}
}

// findProfile resolves a profile by id, unique id prefix, or case-insensitive name
func findProfile(svc *core.Service, ref string) (*domain.Profile, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty profile reference", domain.ErrProfileNotFound)
	}

	profiles, err := svc.Profiles().List()
	if err != nil {
		return nil, err
	}

	var byName, byPrefix []*domain.Profile
	for _, p := range profiles {
		if p.ID == ref {
			return p, nil
		}
		if strings.EqualFold(p.Name, ref) {
			byName = append(byName, p)
		}
		if len(ref) >= 4 && strings.HasPrefix(p.ID, strings.ToLower(ref)) {
			byPrefix = append(byPrefix, p)
		}
	}

	for _, matches := range [][]*domain.Profile{byName, byPrefix} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			ids := make([]string, len(matches))
			for i, p := range matches {
				ids[i] = shortID(p.ID)
			}
			return nil, fmt.Errorf("%q matches several profiles (%s); use the id", ref, strings.Join(ids, ", "))
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, ref)
}

// shortID returns the first eight characters of an id
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// printJSON writes v to stdout as indented JSON
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// confirm asks a yes/no question on stdin. Anything but y/yes is a no.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
