package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/DonovanMods/lion-launcher/internal/domain"

	"github.com/spf13/cobra"
)

var (
	versionsSnapshots bool
	versionsAll       bool
	versionsLimit     int
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List game and loader versions",
	Long: `List published Minecraft versions, newest first.

Snapshots are included with --snapshots or when include_snapshots is set in config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runVersions,
}

var versionsLoadersCmd = &cobra.Command{
	Use:   "loaders <loader> <game version>",
	Short: "List a loader's builds for a game version",
	Long: `List a loader's builds for a game version, newest first.

Examples:
  lion versions loaders fabric 1.20.1
  lion versions loaders neoforge 1.21.1`,
	Args: cobra.ExactArgs(2),
	RunE: runVersionsLoaders,
}

func init() {
	versionsCmd.PersistentFlags().IntVarP(&versionsLimit, "limit", "l", 20, "maximum number of versions to show (0 for all)")
	versionsCmd.Flags().BoolVar(&versionsSnapshots, "snapshots", false, "include snapshots")
	versionsLoadersCmd.Flags().BoolVar(&versionsAll, "all", false, "include unstable builds")

	versionsCmd.AddCommand(versionsLoadersCmd)
	rootCmd.AddCommand(versionsCmd)
}

func limitN[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func runVersions(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	snapshots := versionsSnapshots || svc.Config().IncludeSnapshots
	entries, err := svc.Resolver().ListGameVersions(context.Background(), snapshots)
	if err != nil {
		return fmt.Errorf("listing versions: %w", err)
	}
	entries = limitN(entries, versionsLimit)

	if jsonOutput {
		return printJSON(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tTYPE\tRELEASED")
	fmt.Fprintln(w, "-------\t----\t--------")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Type, e.ReleaseTime.Format("2006-01-02"))
	}
	return w.Flush()
}

func runVersionsLoaders(cmd *cobra.Command, args []string) error {
	kind, ok := domain.ParseLoaderKind(args[0])
	if !ok || kind == domain.LoaderVanilla {
		return fmt.Errorf("unknown loader %q (supported: fabric, quilt, forge, neoforge)", args[0])
	}

	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	versions, err := svc.Resolver().ListLoaderVersions(context.Background(), kind, args[1])
	if err != nil {
		return fmt.Errorf("listing %s versions: %w", kind, err)
	}

	if !versionsAll {
		stable := versions[:0:0]
		for _, v := range versions {
			if v.Stable {
				stable = append(stable, v)
			}
		}
		versions = stable
	}
	versions = limitN(versions, versionsLimit)

	if jsonOutput {
		return printJSON(versions)
	}

	if len(versions) == 0 {
		fmt.Printf("No %s builds for %s.\n", kind, args[1])
		return nil
	}
	for _, v := range versions {
		mark := ""
		if !v.Stable {
			mark = colorYellow(" (unstable)")
		}
		fmt.Printf("%s%s\n", v.Version, mark)
	}
	return nil
}
