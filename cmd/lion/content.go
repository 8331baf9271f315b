package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/source"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	contentProfile string
	contentKind    string
	contentSource  string
	searchLimit    int
	searchOffset   int
	searchSort     string
	searchCategory string
	searchVersion  string
	searchLoader   string
	installVersion string
	installNoDeps  bool
	removeYes      bool
	updateApply    bool
)

var contentCmd = &cobra.Command{
	Use:     "content",
	Aliases: []string{"mod", "mods"},
	Short:   "Search, install and manage mods, resource packs and shader packs",
	Long: `Search, install and manage a profile's content.

--kind selects mods (default), resourcepacks or shaders. --profile selects the profile;
search works without one.`,
}

var contentSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a content registry",
	Long: `Search Modrinth or CurseForge. With --profile, results are filtered to the
profile's game version and loader and installed projects are marked.

Examples:
  lion content search sodium --profile Survival
  lion content search "faithful" --kind resourcepacks --source curseforge`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContentSearch,
}

var contentInstallCmd = &cobra.Command{
	Use:   "install <project>",
	Short: "Install content into a profile",
	Long: `Install a project by id or slug. The newest version compatible with the profile's
game version and loader is chosen unless --version-id pins one. Required dependencies
are installed too unless --no-deps is given.

Examples:
  lion content install sodium --profile Survival
  lion content install iris --profile Survival --no-deps`,
	Args: cobra.ExactArgs(1),
	RunE: runContentInstall,
}

var contentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed content",
	Args:  cobra.NoArgs,
	RunE:  runContentList,
}

var contentEnableCmd = &cobra.Command{
	Use:   "enable <pattern>...",
	Short: "Enable content files matching glob patterns",
	Long: `Enable content files. Patterns are case-insensitive globs matched against the
file name, e.g. 'sodium*' or '*.zip'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error { return runContentSetEnabled(args, true) },
}

var contentDisableCmd = &cobra.Command{
	Use:   "disable <pattern>...",
	Short: "Disable content files matching glob patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runContentSetEnabled(args, false) },
}

var contentToggleCmd = &cobra.Command{
	Use:   "toggle <file>",
	Short: "Flip a content file between enabled and disabled",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentToggle,
}

var contentRemoveCmd = &cobra.Command{
	Use:     "remove <pattern>...",
	Aliases: []string{"rm", "uninstall"},
	Short:   "Remove content files matching glob patterns",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runContentRemove,
}

var contentUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check installed content for updates",
	Long: `Check a profile's installed content for newer compatible versions.
Hand-added files are identified by their hash when the registry knows them.

Examples:
  lion content update --profile Survival
  lion content update --profile Survival --apply`,
	Args: cobra.NoArgs,
	RunE: runContentUpdate,
}

func init() {
	contentCmd.PersistentFlags().StringVarP(&contentProfile, "profile", "p", "", "profile name or id")
	contentCmd.PersistentFlags().StringVarP(&contentKind, "kind", "k", "mods", "content kind (mods, resourcepacks, shaders)")

	contentSearchCmd.Flags().StringVarP(&contentSource, "source", "s", "modrinth", "registry to search (modrinth, curseforge)")
	contentSearchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 20, "maximum number of results")
	contentSearchCmd.Flags().IntVar(&searchOffset, "offset", 0, "skip this many results")
	contentSearchCmd.Flags().StringVar(&searchSort, "sort", "relevance", "sort order (relevance, downloads, follows, newest, updated)")
	contentSearchCmd.Flags().StringVar(&searchCategory, "category", "", "category filter")
	contentSearchCmd.Flags().StringVar(&searchVersion, "game-version", "", "game version filter (default: the profile's)")
	contentSearchCmd.Flags().StringVar(&searchLoader, "loader", "", "loader filter (default: the profile's)")

	contentInstallCmd.Flags().StringVarP(&contentSource, "source", "s", "modrinth", "registry to install from")
	contentInstallCmd.Flags().StringVar(&installVersion, "version-id", "", "install this exact version")
	contentInstallCmd.Flags().BoolVar(&installNoDeps, "no-deps", false, "skip required dependencies")

	contentRemoveCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "skip confirmation prompt")
	contentUpdateCmd.Flags().BoolVar(&updateApply, "apply", false, "install the available updates")

	contentCmd.AddCommand(contentSearchCmd)
	contentCmd.AddCommand(contentInstallCmd)
	contentCmd.AddCommand(contentListCmd)
	contentCmd.AddCommand(contentEnableCmd)
	contentCmd.AddCommand(contentDisableCmd)
	contentCmd.AddCommand(contentToggleCmd)
	contentCmd.AddCommand(contentRemoveCmd)
	contentCmd.AddCommand(contentUpdateCmd)

	rootCmd.AddCommand(contentCmd)
}

func parseKindFlag() (domain.ContentKind, error) {
	kind, ok := domain.ParseContentKind(contentKind)
	if !ok {
		return kind, fmt.Errorf("unknown content kind %q (supported: mods, resourcepacks, shaders)", contentKind)
	}
	return kind, nil
}

// requireProfile resolves --profile, which every command but search needs
func requireProfile(svc *core.Service) (*domain.Profile, error) {
	if contentProfile == "" {
		return nil, fmt.Errorf("no profile specified; use --profile or -p")
	}
	return findProfile(svc, contentProfile)
}

func parseSort(s string) (source.SortOrder, error) {
	order := source.SortOrder(strings.ToLower(s))
	switch order {
	case source.SortRelevance, source.SortDownloads, source.SortFollows, source.SortNewest, source.SortUpdated:
		return order, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

type projectJSON struct {
	ID        string   `json:"id"`
	Source    string   `json:"source"`
	Slug      string   `json:"slug,omitempty"`
	Name      string   `json:"name"`
	Author    string   `json:"author,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Downloads int64    `json:"downloads"`
	Loaders   []string `json:"loaders,omitempty"`
	Installed bool     `json:"installed"`
}

type itemJSON struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Source   string `json:"source,omitempty"`
	Project  string `json:"project,omitempty"`
	Enabled  bool   `json:"enabled"`
}

func toItemJSON(item domain.ContentItem) itemJSON {
	return itemJSON{
		Filename: item.Filename,
		Name:     item.Name,
		Version:  item.Version,
		Source:   item.SourceID,
		Project:  item.RegistryID,
		Enabled:  item.Enabled,
	}
}

func runContentSearch(cmd *cobra.Command, args []string) error {
	kind, err := parseKindFlag()
	if err != nil {
		return err
	}
	sort, err := parseSort(searchSort)
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	var profile *domain.Profile
	if contentProfile != "" {
		if profile, err = findProfile(svc, contentProfile); err != nil {
			return err
		}
	}

	query := source.SearchQuery{
		Query:       strings.Join(args, " "),
		Kind:        kind,
		GameVersion: searchVersion,
		Loader:      searchLoader,
		Category:    searchCategory,
		Sort:        sort,
		Offset:      searchOffset,
		Limit:       searchLimit,
	}
	profileID := ""
	if profile != nil {
		profileID = profile.ID
	}

	ctx := context.Background()
	result, err := svc.Search(ctx, contentSource, profileID, query)
	if err != nil {
		if errors.Is(err, domain.ErrAuthRequired) {
			return fmt.Errorf("%s needs an API key; set curseforge_api_key in config.yaml or %s", contentSource, core.EnvCurseForgeAPIKey)
		}
		return fmt.Errorf("search failed: %w", err)
	}

	installed := core.NewIDIndex(nil)
	if profile != nil {
		if idx, err := svc.Content().Index(profile, kind); err == nil {
			installed = idx
		}
	}

	if jsonOutput {
		out := make([]projectJSON, 0, len(result.Projects))
		for _, p := range result.Projects {
			out = append(out, projectJSON{
				ID: p.ID, Source: p.SourceID, Slug: p.Slug, Name: p.Name, Author: p.Author,
				Summary: p.Summary, Downloads: p.Downloads, Loaders: p.Loaders,
				Installed: installed.IsInstalled(p),
			})
		}
		return printJSON(out)
	}

	if len(result.Projects) == 0 {
		fmt.Println("No results.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAUTHOR\tDOWNLOADS\t")
	fmt.Fprintln(w, "--\t----\t------\t---------\t")
	for _, p := range result.Projects {
		mark := ""
		if installed.IsInstalled(p) {
			mark = colorGreen("[installed]")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, truncate(p.Name, 40), truncate(p.Author, 20),
			humanize.Comma(p.Downloads), mark)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if result.TotalCount > 0 {
		fmt.Printf("\nShowing %d-%d of %s results.\n", result.Offset+1, result.Offset+len(result.Projects),
			humanize.Comma(int64(result.TotalCount)))
	}
	return nil
}

func runContentInstall(cmd *cobra.Command, args []string) error {
	kind, err := parseKindFlag()
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	profile, err := requireProfile(svc)
	if err != nil {
		return err
	}

	items, err := svc.Install(context.Background(), profile.ID, core.InstallRequest{
		Kind:         kind,
		SourceID:     contentSource,
		ContentID:    args[0],
		VersionID:    installVersion,
		Dependencies: !installNoDeps,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoCompatibleVersion) {
			return fmt.Errorf("%s has no version for %s %s", args[0], profile.GameVersion, profile.Loader)
		}
		return fmt.Errorf("installing %s: %w", args[0], err)
	}

	if jsonOutput {
		out := make([]itemJSON, 0, len(items))
		for _, item := range items {
			out = append(out, toItemJSON(item))
		}
		return printJSON(out)
	}
	for i, item := range items {
		note := ""
		if i > 0 {
			note = " (dependency)"
		}
		fmt.Printf("%s Installed %s %s%s\n", colorGreen("✓"), item.Name, item.Version, note)
	}
	return nil
}

func runContentList(cmd *cobra.Command, args []string) error {
	kind, err := parseKindFlag()
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	profile, err := requireProfile(svc)
	if err != nil {
		return err
	}

	items, err := svc.Content().List(profile, kind)
	if err != nil {
		return fmt.Errorf("listing %s: %w", kind.Dir(), err)
	}

	if jsonOutput {
		out := make([]itemJSON, 0, len(items))
		for _, item := range items {
			out = append(out, toItemJSON(item))
		}
		return printJSON(out)
	}

	if len(items) == 0 {
		fmt.Printf("No %s installed in %s.\n", kind.Dir(), profile.Name)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tSOURCE\tENABLED\tFILE")
	fmt.Fprintln(w, "----\t-------\t------\t-------\t----")
	for _, item := range items {
		enabled := colorGreen("yes")
		if !item.Enabled {
			enabled = colorYellow("no")
		}
		src := item.SourceID
		if src == "" {
			src = "local"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", truncate(item.Name, 40), item.Version, src, enabled, item.Filename)
	}
	return w.Flush()
}

// matchAll expands glob patterns to distinct on-disk filenames
func matchAll(ci *core.ContentInstaller, profile *domain.Profile, kind domain.ContentKind, patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matched, err := ci.Match(profile, kind, pattern)
		if err != nil {
			return nil, err
		}
		for _, f := range matched {
			if !slices.Contains(files, f) {
				files = append(files, f)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: nothing matches %s", domain.ErrContentNotFound, strings.Join(patterns, ", "))
	}
	return files, nil
}

// reportBulk prints per-file outcomes and returns an error when any file failed
func reportBulk(verb string, result core.BulkResult) error {
	if jsonOutput {
		failed := make(map[string]string, len(result.Failed))
		for _, f := range result.Failed {
			failed[f.Filename] = f.Err.Error()
		}
		if err := printJSON(map[string]any{"succeeded": result.Succeeded, "failed": failed}); err != nil {
			return err
		}
	} else {
		for _, name := range result.Succeeded {
			fmt.Printf("%s %s %s\n", colorGreen("✓"), verb, name)
		}
		for _, f := range result.Failed {
			fmt.Printf("%s %s: %v\n", colorRed("✗"), f.Filename, f.Err)
		}
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d failed", len(result.Failed), len(result.Failed)+len(result.Succeeded))
	}
	return nil
}

func runContentSetEnabled(patterns []string, enabled bool) error {
	kind, err := parseKindFlag()
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	profile, err := requireProfile(svc)
	if err != nil {
		return err
	}

	files, err := matchAll(svc.Content(), profile, kind, patterns)
	if err != nil {
		return err
	}

	result, _ := svc.Content().BulkToggle(profile, kind, files, enabled)
	verb := "Disabled"
	if enabled {
		verb = "Enabled"
	}
	return reportBulk(verb, result)
}

func runContentToggle(cmd *cobra.Command, args []string) error {
	kind, err := parseKindFlag()
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	profile, err := requireProfile(svc)
	if err != nil {
		return err
	}

	newName, err := svc.Content().Toggle(profile, kind, args[0])
	if err != nil {
		return fmt.Errorf("toggling %s: %w", args[0], err)
	}

	state := "enabled"
	if strings.HasSuffix(newName, domain.DisabledSuffix) {
		state = "disabled"
	}
	if jsonOutput {
		return printJSON(map[string]string{"filename": newName, "state": state})
	}
	fmt.Printf("%s %s is now %s\n", colorGreen("✓"), strings.TrimSuffix(newName, domain.DisabledSuffix), state)
	return nil
}

func runContentRemove(cmd *cobra.Command, args []string) error {
	kind, err := parseKindFlag()
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	profile, err := requireProfile(svc)
	if err != nil {
		return err
	}

	files, err := matchAll(svc.Content(), profile, kind, args)
	if err != nil {
		return err
	}

	if !removeYes && !jsonOutput {
		fmt.Printf("This removes %d file(s) from %s:\n", len(files), profile.Name)
		for _, f := range files {
			fmt.Printf("  %s\n", f)
		}
		if !confirm("Continue?") {
			fmt.Println("Aborted.")
			return ErrCancelled
		}
	}

	result, _ := svc.Content().BulkDelete(profile, kind, files)
	return reportBulk("Removed", result)
}

func runContentUpdate(cmd *cobra.Command, args []string) error {
	kind, err := parseKindFlag()
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	profile, err := requireProfile(svc)
	if err != nil {
		return err
	}

	ctx := context.Background()
	progress := func(current, total int, name string) {
		if verbosity > 0 && !jsonOutput {
			fmt.Printf("  [%d/%d] %s\n", current, total, name)
		}
	}
	updates, err := svc.Content().CheckUpdates(ctx, profile, kind, progress)
	if err != nil {
		return fmt.Errorf("checking updates: %w", err)
	}

	if len(updates) == 0 {
		if jsonOutput {
			return printJSON([]any{})
		}
		fmt.Println("Everything is up to date.")
		return nil
	}

	if !jsonOutput {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tINSTALLED\tAVAILABLE")
		fmt.Fprintln(w, "----\t---------\t---------")
		for _, u := range updates {
			fmt.Fprintf(w, "%s\t%s\t%s\n", truncate(u.Item.Name, 40), u.Item.Version, colorGreen(u.LatestVersion.VersionNumber))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if !updateApply {
		if jsonOutput {
			type updateJSON struct {
				Filename  string `json:"filename"`
				Installed string `json:"installed"`
				Available string `json:"available"`
			}
			out := make([]updateJSON, 0, len(updates))
			for _, u := range updates {
				out = append(out, updateJSON{u.Item.Filename, u.Item.Version, u.LatestVersion.VersionNumber})
			}
			return printJSON(out)
		}
		fmt.Println("\nRun with --apply to install these updates.")
		return nil
	}

	result, _ := svc.Content().ApplyUpdates(ctx, profile, updates)
	return reportBulk("Updated", result)
}
