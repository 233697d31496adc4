package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/santoscsolutions/site/internal/edge"
	"github.com/santoscsolutions/site/internal/fetch"
	"github.com/santoscsolutions/site/internal/offline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	edgePort     int
	edgeUpstream string
	edgeCacheDB  string
)

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Serve the static site through the offline cache",
	Long: `Serve the site from an upstream origin through a generation-scoped cache.

Build assets listed in the upstream asset manifest are stored at startup.
Pages fall back to the last visited copy, then to the offline page, when the
upstream is unreachable. The manifest is rechecked periodically and a new
generation replaces the old one when a deploy changes it.`,
	RunE: runEdge,
}

func init() {
	edgeCmd.Flags().IntVar(&edgePort, "port", 0, "Port to listen on (default from config, 8080)")
	edgeCmd.Flags().StringVar(&edgeUpstream, "upstream", "", "Origin to mirror, e.g. https://santoscsolutions.com")
	edgeCmd.Flags().StringVar(&edgeCacheDB, "cache-db", "", "SQLite file for cached responses (in-memory when empty)")
	rootCmd.AddCommand(edgeCmd)
}

// openCacheStore opens the SQLite store at path, or an in-memory store when
// path is empty. The returned close func is never nil.
func openCacheStore(ctx context.Context, path string) (offline.Store, func(), error) {
	if path == "" {
		return offline.NewMemoryStore(), func() {}, nil
	}
	store, err := offline.OpenSQLiteStore(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// managerFactory builds managers sharing one store and HTTP client.
func managerFactory(upstream string, store offline.Store) (edge.ManagerFactory, error) {
	client := fetch.NewClient(nil)
	fetcher, err := offline.NewNetworkFetcher(upstream, client)
	if err != nil {
		return nil, err
	}
	managerCfg := offline.Config{
		Origin:        upstream,
		Prefix:        cfg.CachePrefix,
		ExtraPrecache: cfg.ExtraPrecache,
	}
	return func() (*offline.Manager, error) {
		return offline.NewManager(managerCfg, store, fetcher, logger)
	}, nil
}

func resolveUpstream(flag string) (string, error) {
	upstream := flag
	if upstream == "" {
		upstream = cfg.Upstream
	}
	if upstream == "" {
		return "", fmt.Errorf("upstream origin is required (--upstream or UPSTREAM_ORIGIN)")
	}
	return upstream, nil
}

func runEdge(cmd *cobra.Command, _ []string) error {
	upstream, err := resolveUpstream(edgeUpstream)
	if err != nil {
		return err
	}
	cacheDB := edgeCacheDB
	if cacheDB == "" {
		cacheDB = cfg.CacheDB
	}
	port := edgePort
	if port == 0 {
		port = cfg.EdgePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openCacheStore(ctx, cacheDB)
	if err != nil {
		return err
	}
	defer closeStore()

	factory, err := managerFactory(upstream, store)
	if err != nil {
		return err
	}
	edgeServer := edge.New(factory, cfg.Interval(), logger)
	if err := edgeServer.Start(ctx); err != nil {
		return err
	}
	logger.Info("edge cache ready",
		zap.String("upstream", upstream),
		zap.String("generation", edgeServer.Generation(ctx)),
	)

	go func() {
		_ = edgeServer.Run(ctx)
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           edgeServer,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("edge listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("edge shutdown failed: %w", err)
	}
	logger.Info("edge stopped")
	return nil
}
