package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and prune the shared download cache",
	Long: `Every downloaded file is kept once in a shared cache and linked into profiles.
Prune removes files that no profile runtime or installed content still uses.`,
}

var cacheSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show the cache's disk usage",
	Args:  cobra.NoArgs,
	RunE:  runCacheSize,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cached files nothing uses",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

func init() {
	cacheCmd.AddCommand(cacheSizeCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheSize(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	size, err := svc.CacheUsage()
	if err != nil {
		return fmt.Errorf("measuring cache: %w", err)
	}

	if jsonOutput {
		return printJSON(map[string]any{"path": svc.Paths().CacheDir, "bytes": size})
	}
	fmt.Printf("%s in %s\n", humanize.Bytes(uint64(size)), svc.Paths().CacheDir)
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	removed, freed, err := svc.PruneCache()
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{"removed": removed, "bytes": freed})
	}
	if removed == 0 {
		fmt.Println("Nothing to prune.")
		return nil
	}
	fmt.Printf("%s Removed %d file(s), freed %s\n", colorGreen("✓"), removed, humanize.Bytes(uint64(freed)))
	return nil
}
