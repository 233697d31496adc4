package main

import (
	"github.com/santoscsolutions/site/internal/observability"
	"github.com/spf13/cobra"
)

var (
	precacheUpstream string
	precacheInstall  bool
	precacheCacheDB  string
)

var precacheCmd = &cobra.Command{
	Use:   "precache",
	Short: "Show or install the precache list for the current deploy",
	Long: `Fetch the upstream asset manifest and print the cache generation and the
URLs stored at install. With --install the resources are fetched into the
cache store and stale generations are removed.`,
	RunE: runPrecache,
}

func init() {
	precacheCmd.Flags().StringVar(&precacheUpstream, "upstream", "", "Origin to inspect (default from config)")
	precacheCmd.Flags().BoolVar(&precacheInstall, "install", false, "Install and activate the generation")
	precacheCmd.Flags().StringVar(&precacheCacheDB, "cache-db", "", "SQLite file to install into (in-memory when empty)")
	rootCmd.AddCommand(precacheCmd)
}

func runPrecache(cmd *cobra.Command, _ []string) error {
	upstream, err := resolveUpstream(precacheUpstream)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cacheDB := precacheCacheDB
	if cacheDB == "" && precacheInstall {
		cacheDB = cfg.CacheDB
	}
	store, closeStore, err := openCacheStore(ctx, cacheDB)
	if err != nil {
		return err
	}
	defer closeStore()

	factory, err := managerFactory(upstream, store)
	if err != nil {
		return err
	}
	manager, err := factory()
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	if !precacheInstall {
		printer.PrintPrecacheList(manager.ResolveGeneration(ctx), manager.PrecacheList(ctx))
		return nil
	}

	report, err := manager.Install(ctx)
	if err != nil {
		return err
	}
	deleted, err := manager.Activate(ctx)
	if err != nil {
		return err
	}
	printer.PrintInstallReport(report, deleted)
	return nil
}
