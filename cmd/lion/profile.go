package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/storage/config"
	"github.com/DonovanMods/lion-launcher/internal/tui"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	profileVersion       string
	profileLoader        string
	profileLoaderVersion string
	profileMemory        int
	profileJavaArgs      []string
	profileIcon          string
	profileNoSync        bool
	profileName          string
	profileSettingsSync  bool
	profileOutput        string
	profileDeleteYes     bool
	profileMigrateTo     string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage game profiles",
	Long: `Manage game profiles.

A profile is an isolated Minecraft installation: a game version, an optional mod loader,
JVM settings and its own game directory for saves, mods and packs.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new profile",
	Long: `Create a new profile.

Without --loader-version the newest stable loader build is pinned at creation.

Examples:
  lion profile create Vanilla --version 1.20.1
  lion profile create "Fabric Survival" --version 1.20.1 --loader fabric --memory 6144`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileCreate,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <profile>",
	Short: "Show a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

var profileEditCmd = &cobra.Command{
	Use:   "edit <profile>",
	Short: "Change a profile",
	Long: `Change a profile's settings. Only the flags given are changed.

Changing the game version or loader drops the profile's runtime; it is rebuilt on the next launch.

Examples:
  lion profile edit Survival --memory 8192
  lion profile edit Survival --version 1.20.4 --loader fabric`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileEdit,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <profile>",
	Short: "Delete a profile",
	Long: `Delete a profile, its game directory (including saves) and its runtime.

Cached downloads are kept; use 'lion cache prune' to reclaim them.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileDelete,
}

var profileExportCmd = &cobra.Command{
	Use:   "export <profile>",
	Short: "Export a profile definition",
	Long: `Export a profile definition to YAML. Saves and content are not included.

Examples:
  lion profile export Survival > survival.yaml
  lion profile export Survival -o survival.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileExport,
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create a profile from an exported definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileImport,
}

var profileRepairCmd = &cobra.Command{
	Use:   "repair <profile>",
	Short: "Re-verify and re-download a profile's runtime",
	Long: `Re-verify every runtime file of a profile against its checksum, downloading
anything missing or corrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileRepair,
}

var profileClearCacheCmd = &cobra.Command{
	Use:   "clear-cache <profile>",
	Short: "Drop a profile's runtime so it is rebuilt on the next launch",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileClearCache,
}

var profileSyncCmd = &cobra.Command{
	Use:   "sync-settings",
	Short: "Share the newest options.txt across sync-enabled profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileSync,
}

var profileWorldsCmd = &cobra.Command{
	Use:   "worlds <profile>",
	Short: "List a profile's singleplayer worlds",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileWorlds,
}

var profileServersCmd = &cobra.Command{
	Use:   "servers <profile>",
	Short: "List a profile's multiplayer servers",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileServers,
}

var profileMigrationCmd = &cobra.Command{
	Use:   "migration <profile>",
	Short: "Check whether a profile's mods would load under another loader",
	Long: `Check whether a profile's mods would load under another loader. Nothing is changed.

A Forge profile is checked against NeoForge unless --to is given. Each mod is looked up
in its registry; NeoForge on 1.20.x also loads Forge builds.

Examples:
  lion profile migration "Forge Pack"
  lion profile migration Survival --to quilt`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileMigration,
}

func init() {
	profileCreateCmd.Flags().StringVar(&profileVersion, "version", "", "game version (required)")
	profileCreateCmd.Flags().StringVarP(&profileLoader, "loader", "l", "vanilla", "mod loader (vanilla, fabric, quilt, forge, neoforge)")
	profileCreateCmd.Flags().StringVar(&profileLoaderVersion, "loader-version", "", "loader version (default: latest stable)")
	profileCreateCmd.Flags().IntVarP(&profileMemory, "memory", "m", 0, "maximum heap in MB (default: from config)")
	profileCreateCmd.Flags().StringArrayVar(&profileJavaArgs, "java-arg", nil, "extra JVM argument (repeatable)")
	profileCreateCmd.Flags().StringVar(&profileIcon, "icon", "", "icon path")
	profileCreateCmd.Flags().BoolVar(&profileNoSync, "no-settings-sync", false, "keep this profile's options.txt to itself")
	_ = profileCreateCmd.MarkFlagRequired("version")

	profileEditCmd.Flags().StringVar(&profileName, "name", "", "new name")
	profileEditCmd.Flags().StringVar(&profileVersion, "version", "", "game version")
	profileEditCmd.Flags().StringVarP(&profileLoader, "loader", "l", "", "mod loader")
	profileEditCmd.Flags().StringVar(&profileLoaderVersion, "loader-version", "", "loader version")
	profileEditCmd.Flags().IntVarP(&profileMemory, "memory", "m", 0, "maximum heap in MB")
	profileEditCmd.Flags().StringArrayVar(&profileJavaArgs, "java-arg", nil, "extra JVM argument (repeatable; replaces the list)")
	profileEditCmd.Flags().StringVar(&profileIcon, "icon", "", "icon path")
	profileEditCmd.Flags().BoolVar(&profileSettingsSync, "settings-sync", true, "share options.txt with other profiles")

	profileExportCmd.Flags().StringVarP(&profileOutput, "output", "o", "", "write to file instead of stdout")
	profileDeleteCmd.Flags().BoolVarP(&profileDeleteYes, "yes", "y", false, "skip confirmation prompt")
	profileMigrationCmd.Flags().StringVar(&profileMigrateTo, "to", "", "target loader (default: neoforge for Forge profiles)")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileEditCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileExportCmd)
	profileCmd.AddCommand(profileImportCmd)
	profileCmd.AddCommand(profileRepairCmd)
	profileCmd.AddCommand(profileClearCacheCmd)
	profileCmd.AddCommand(profileSyncCmd)
	profileCmd.AddCommand(profileWorldsCmd)
	profileCmd.AddCommand(profileServersCmd)
	profileCmd.AddCommand(profileMigrationCmd)

	rootCmd.AddCommand(profileCmd)
}

type profileJSON struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	GameVersion  string    `json:"game_version"`
	Loader       string    `json:"loader"`
	LoaderVer    string    `json:"loader_version,omitempty"`
	MemoryMB     int       `json:"memory_mb"`
	JavaArgs     []string  `json:"java_args,omitempty"`
	GameDir      string    `json:"game_dir"`
	SettingsSync bool      `json:"settings_sync"`
	CreatedAt    time.Time `json:"created_at"`
	LastPlayed   time.Time `json:"last_played,omitzero"`
}

func toProfileJSON(p *domain.Profile) profileJSON {
	return profileJSON{
		ID:           p.ID,
		Name:         p.Name,
		GameVersion:  p.GameVersion,
		Loader:       p.Loader.Kind.String(),
		LoaderVer:    p.Loader.Version,
		MemoryMB:     p.MemoryMB,
		JavaArgs:     p.JavaArgs,
		GameDir:      p.GameDir,
		SettingsSync: p.SettingsSync,
		CreatedAt:    p.CreatedAt,
		LastPlayed:   p.LastPlayed,
	}
}

// parseLoader builds a loader selection from flag values
func parseLoader(kind, version string) (domain.Loader, error) {
	k, ok := domain.ParseLoaderKind(kind)
	if !ok {
		return domain.Loader{}, fmt.Errorf("unknown loader %q (supported: vanilla, fabric, quilt, forge, neoforge)", kind)
	}
	if k == domain.LoaderVanilla && version != "" {
		return domain.Loader{}, fmt.Errorf("vanilla has no loader version")
	}
	return domain.Loader{Kind: k, Version: version}, nil
}

// pinLoader fills an empty loader version with the newest stable build
func pinLoader(ctx context.Context, svc *core.Service, gameVersion string, loader domain.Loader) (domain.Loader, error) {
	if loader.Kind == domain.LoaderVanilla || loader.Version != "" {
		return loader, nil
	}
	v, err := svc.Resolver().LatestLoaderVersion(ctx, loader.Kind, gameVersion)
	if err != nil {
		return loader, err
	}
	loader.Version = v
	return loader, nil
}

func lastPlayed(p *domain.Profile) string {
	if p.LastPlayed.IsZero() {
		return "never"
	}
	return humanize.Time(p.LastPlayed)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	profiles, err := svc.Profiles().List()
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}

	if jsonOutput {
		out := make([]profileJSON, 0, len(profiles))
		for _, p := range profiles {
			out = append(out, toProfileJSON(p))
		}
		return printJSON(out)
	}

	if len(profiles) == 0 {
		fmt.Println("No profiles found. Create one with 'lion profile create <name> --version <version>'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION\tLOADER\tLAST PLAYED")
	fmt.Fprintln(w, "--\t----\t-------\t------\t-----------")
	for _, p := range profiles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID(p.ID), truncate(p.Name, 30), p.GameVersion, p.Loader, lastPlayed(p))
	}
	return w.Flush()
}

func runProfileCreate(cmd *cobra.Command, args []string) error {
	loader, err := parseLoader(profileLoader, profileLoaderVersion)
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	ctx := context.Background()
	loader, err = pinLoader(ctx, svc, profileVersion, loader)
	if err != nil {
		return fmt.Errorf("resolving loader version: %w", err)
	}

	req := core.CreateProfile{
		Name:        args[0],
		GameVersion: profileVersion,
		Loader:      loader,
		MemoryMB:    profileMemory,
		JavaArgs:    profileJavaArgs,
		IconPath:    profileIcon,
	}
	if profileNoSync {
		off := false
		req.SettingsSync = &off
	}

	p, err := svc.Profiles().Create(ctx, req)
	if err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}

	if jsonOutput {
		return printJSON(toProfileJSON(p))
	}
	fmt.Printf("%s Created profile %s (%s, %s %s)\n", colorGreen("✓"), p.Name, shortID(p.ID), p.GameVersion, p.Loader)
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(toProfileJSON(p))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", p.Name)
	fmt.Fprintf(w, "ID:\t%s\n", p.ID)
	fmt.Fprintf(w, "Version:\t%s\n", p.GameVersion)
	fmt.Fprintf(w, "Loader:\t%s\n", p.Loader)
	fmt.Fprintf(w, "Memory:\t%d MB\n", p.MemoryMB)
	if len(p.JavaArgs) > 0 {
		fmt.Fprintf(w, "Java args:\t%s\n", strings.Join(p.JavaArgs, " "))
	}
	fmt.Fprintf(w, "Game dir:\t%s\n", p.GameDir)
	fmt.Fprintf(w, "Settings sync:\t%t\n", p.SettingsSync)
	fmt.Fprintf(w, "Created:\t%s\n", humanize.Time(p.CreatedAt))
	fmt.Fprintf(w, "Last played:\t%s\n", lastPlayed(p))
	return w.Flush()
}

// profileUpdateFromFlags builds an update from the edit flags that were set
func profileUpdateFromFlags(cmd *cobra.Command, current *domain.Profile) (core.ProfileUpdate, error) {
	var upd core.ProfileUpdate
	flags := cmd.Flags()

	if flags.Changed("name") {
		upd.Name = &profileName
	}
	if flags.Changed("version") {
		upd.GameVersion = &profileVersion
	}
	if flags.Changed("loader") || flags.Changed("loader-version") {
		kind := current.Loader.Kind.String()
		if flags.Changed("loader") {
			kind = profileLoader
		}
		loader, err := parseLoader(kind, profileLoaderVersion)
		if err != nil {
			return upd, err
		}
		upd.Loader = &loader
	}
	if flags.Changed("memory") {
		upd.MemoryMB = &profileMemory
	}
	if flags.Changed("java-arg") {
		upd.JavaArgs = append([]string{}, profileJavaArgs...)
	}
	if flags.Changed("icon") {
		upd.IconPath = &profileIcon
	}
	if flags.Changed("settings-sync") {
		upd.SettingsSync = &profileSettingsSync
	}
	return upd, nil
}

func runProfileEdit(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}

	upd, err := profileUpdateFromFlags(cmd, p)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if upd.Loader != nil || upd.GameVersion != nil {
		gameVersion := p.GameVersion
		if upd.GameVersion != nil {
			gameVersion = *upd.GameVersion
		}
		loader := p.Loader
		if upd.Loader != nil {
			loader = *upd.Loader
		} else if upd.GameVersion != nil {
			// The pinned build may not exist for the new game version
			loader.Version = ""
		}
		loader, err = pinLoader(ctx, svc, gameVersion, loader)
		if err != nil {
			return fmt.Errorf("resolving loader version: %w", err)
		}
		upd.Loader = &loader
	}

	updated, err := svc.Profiles().Update(ctx, p.ID, upd)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}

	if jsonOutput {
		return printJSON(toProfileJSON(updated))
	}
	fmt.Printf("%s Updated profile %s\n", colorGreen("✓"), updated.Name)
	return nil
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}

	if !profileDeleteYes && !jsonOutput {
		fmt.Printf("This deletes %s and everything in %s, including saves.\n", p.Name, p.GameDir)
		if !confirm("Continue?") {
			fmt.Println("Aborted.")
			return ErrCancelled
		}
	}

	if err := svc.Profiles().Delete(p.ID); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}

	if jsonOutput {
		return printJSON(map[string]string{"deleted": p.ID})
	}
	fmt.Printf("%s Deleted profile %s\n", colorGreen("✓"), p.Name)
	return nil
}

func runProfileExport(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}

	data, err := svc.Profiles().Export(p.ID)
	if err != nil {
		return fmt.Errorf("exporting profile: %w", err)
	}

	if profileOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(profileOutput, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", profileOutput, err)
	}
	fmt.Printf("%s Exported %s to %s\n", colorGreen("✓"), p.Name, profileOutput)
	return nil
}

func runProfileImport(cmd *cobra.Command, args []string) error {
	path, err := config.ParseProfilePath(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := svc.Profiles().Import(context.Background(), data)
	if err != nil {
		return fmt.Errorf("importing profile: %w", err)
	}

	if jsonOutput {
		return printJSON(toProfileJSON(p))
	}
	fmt.Printf("%s Imported profile %s (%s)\n", colorGreen("✓"), p.Name, shortID(p.ID))
	return nil
}

func runProfileRepair(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	if plainOutput() {
		printer := newProgressPrinter()
		if err := svc.Launcher().Repair(ctx, p.ID, printer.update); err != nil {
			return fmt.Errorf("repairing profile: %w", err)
		}
		printer.done()
		if jsonOutput {
			return printJSON(map[string]string{"repaired": p.ID})
		}
		fmt.Printf("%s Runtime of %s verified\n", colorGreen("✓"), p.Name)
		return nil
	}

	_, err = tui.RunProgress("Repairing "+p.Name, tui.RepairStream(ctx, svc.Launcher(), p.ID), true)
	if err != nil {
		return fmt.Errorf("repairing profile: %w", err)
	}
	return nil
}

func runProfileClearCache(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}

	if err := svc.Profiles().ClearCache(p.ID); err != nil {
		return fmt.Errorf("clearing runtime: %w", err)
	}
	fmt.Printf("%s Cleared runtime of %s; it is rebuilt on the next launch\n", colorGreen("✓"), p.Name)
	return nil
}

func runProfileSync(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	source, err := svc.Profiles().SyncSettings(context.Background())
	if err != nil {
		return fmt.Errorf("syncing settings: %w", err)
	}
	if source == "" {
		fmt.Println("No options.txt to share yet.")
		return nil
	}
	fmt.Printf("%s Shared settings from %s\n", colorGreen("✓"), source)
	return nil
}

func runProfileWorlds(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}

	worlds, err := svc.Profiles().Worlds(p.ID)
	if err != nil {
		return fmt.Errorf("listing worlds: %w", err)
	}

	if jsonOutput {
		if worlds == nil {
			worlds = []core.World{}
		}
		return printJSON(worlds)
	}
	if len(worlds) == 0 {
		fmt.Printf("%s has no worlds yet.\n", p.Name)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODE\tDIFFICULTY\tVERSION\tSIZE\tLAST PLAYED")
	fmt.Fprintln(w, "----\t----\t----------\t-------\t----\t-----------")
	for _, wd := range worlds {
		mode := wd.GameMode
		if wd.Hardcore {
			mode = colorRed("hardcore")
		}
		played := "never"
		if !wd.LastPlayed.IsZero() {
			played = humanize.Time(wd.LastPlayed)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", truncate(wd.Name, 30), mode, wd.Difficulty, wd.Version,
			humanize.Bytes(uint64(wd.SizeBytes)), played)
	}
	return w.Flush()
}

func runProfileServers(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}

	servers, err := svc.Profiles().Servers(p.ID)
	if err != nil {
		return fmt.Errorf("listing servers: %w", err)
	}

	if jsonOutput {
		if servers == nil {
			servers = []core.Server{}
		}
		return printJSON(servers)
	}
	if len(servers) == 0 {
		fmt.Printf("%s has no saved servers.\n", p.Name)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS")
	fmt.Fprintln(w, "----\t-------")
	for _, s := range servers {
		fmt.Fprintf(w, "%s\t%s\n", truncate(s.Name, 40), s.Address)
	}
	return w.Flush()
}

// migrationTarget picks the loader to check a profile against. Forge profiles default to NeoForge.
func migrationTarget(p *domain.Profile, flag string) (domain.LoaderKind, error) {
	if flag == "" {
		if p.Loader.Kind != domain.LoaderForge {
			return 0, fmt.Errorf("--to is required for %s profiles", p.Loader.Kind)
		}
		return domain.LoaderNeoForge, nil
	}
	k, ok := domain.ParseLoaderKind(flag)
	if !ok {
		return 0, fmt.Errorf("unknown loader %q (supported: fabric, quilt, forge, neoforge)", flag)
	}
	return k, nil
}

type migrationModJSON struct {
	File    string `json:"file"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type migrationJSON struct {
	Profile     string             `json:"profile"`
	GameVersion string             `json:"game_version"`
	From        string             `json:"from"`
	To          string             `json:"to"`
	Available   bool               `json:"available"`
	Recommended bool               `json:"recommended"`
	Ready       bool               `json:"ready"`
	Notes       []string           `json:"notes,omitempty"`
	Mods        []migrationModJSON `json:"mods"`
}

func toMigrationJSON(r *core.MigrationReport) migrationJSON {
	out := migrationJSON{
		Profile:     r.ProfileID,
		GameVersion: r.GameVersion,
		From:        r.From.String(),
		To:          r.To.String(),
		Available:   r.Available,
		Recommended: r.Recommended,
		Ready:       r.Ready(),
		Notes:       r.Notes,
		Mods:        make([]migrationModJSON, 0, len(r.Mods)),
	}
	for _, m := range r.Mods {
		mj := migrationModJSON{File: m.Item.BaseFilename(), Name: m.Item.Name, Status: string(m.Status)}
		if m.Version != nil {
			mj.Version = m.Version.VersionNumber
		}
		out.Mods = append(out.Mods, mj)
	}
	return out
}

func migrationStatusLabel(s core.MigrationStatus) string {
	switch s {
	case core.MigrationNative:
		return colorGreen("ok")
	case core.MigrationForgeBuild:
		return colorYellow("forge build")
	case core.MigrationMissing:
		return colorRed("missing")
	default:
		return "unknown"
	}
}

func runProfileMigration(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	p, err := findProfile(svc, args[0])
	if err != nil {
		return err
	}
	target, err := migrationTarget(p, profileMigrateTo)
	if err != nil {
		return err
	}

	report, checkErr := svc.CheckMigration(context.Background(), p.ID, target)
	if report == nil {
		return fmt.Errorf("checking migration: %w", checkErr)
	}

	if jsonOutput {
		if err := printJSON(toMigrationJSON(report)); err != nil {
			return err
		}
		return checkErr
	}

	fmt.Printf("%s %s: %s -> %s\n", p.Name, report.GameVersion, report.From, report.To)
	for _, n := range report.Notes {
		fmt.Printf("  %s\n", n)
	}
	if !report.Available {
		fmt.Printf("%s %s is not available for %s\n", colorRed("✗"), report.To, report.GameVersion)
		return checkErr
	}

	if len(report.Mods) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tSTATUS\tTARGET BUILD")
		fmt.Fprintln(w, "----\t------\t------------")
		for _, m := range report.Mods {
			build := ""
			if m.Version != nil {
				build = m.Version.VersionNumber
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", truncate(m.Item.BaseFilename(), 40), migrationStatusLabel(m.Status), build)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println()
	}

	switch {
	case report.Ready() && report.Recommended:
		fmt.Printf("%s Ready to move to %s (recommended for %s)\n", colorGreen("✓"), report.To, report.GameVersion)
	case report.Ready():
		fmt.Printf("%s Ready to move to %s\n", colorGreen("✓"), report.To)
	default:
		fmt.Printf("%s Some mods have no %s build for %s\n", colorYellow("!"), report.To, report.GameVersion)
	}
	if checkErr != nil {
		fmt.Printf("%s %v\n", colorYellow("!"), checkErr)
	}
	return nil
}

// plainOutput reports whether progress should be printed as lines instead of a live view
func plainOutput() bool {
	return noTUI || jsonOutput
}

// progressPrinter prints download progress in ten percent steps
type progressPrinter struct {
	mu   sync.Mutex
	last int
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{last: -1}
}

func (p *progressPrinter) update(pr core.Progress) {
	if jsonOutput || pr.BytesTotal <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	step := int(pr.Percent()) / 10 * 10
	if step <= p.last {
		return
	}
	p.last = step
	fmt.Printf("  %3d%%  %s / %s\n", step, humanize.Bytes(uint64(pr.BytesCompleted)), humanize.Bytes(uint64(pr.BytesTotal)))
}

func (p *progressPrinter) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !jsonOutput && p.last >= 0 && p.last < 100 {
		fmt.Println("  100%")
	}
}
