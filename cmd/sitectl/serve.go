package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/santoscsolutions/site/internal/config"
	"github.com/santoscsolutions/site/internal/db"
	"github.com/santoscsolutions/site/internal/pricing"
	"github.com/santoscsolutions/site/internal/server"
	"github.com/santoscsolutions/site/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the site API server",
	Long: `Start the HTTP API used by the site: price estimates, service areas,
reviews, the contact form and the admin lead dashboard.

Without DATABASE_URL the server still answers pricing and review requests;
contact and lead endpoints return 503. Without JWT_SECRET the admin endpoints
are disabled.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8001)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, cleanup, err := serverOptions(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(ctx)
}

// serverOptions assembles server dependencies from cfg and the environment.
// The returned cleanup closes the database.
func serverOptions(ctx context.Context) (server.Options, func(), error) {
	opts := server.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		WebhookSecret:  cfg.WebhookSecret,
		RateLimit:      ratelimit.LoadConfig(),
		Logger:         logger,
	}
	if servePort != 0 {
		opts.Port = servePort
	}
	cleanup := func() {}

	if cfg.PricingFile != "" {
		table, err := pricing.LoadTable(cfg.PricingFile)
		if err != nil {
			return opts, cleanup, err
		}
		for _, w := range table.MonotonicityWarnings() {
			logger.Warn("price table", zap.String("warning", w))
		}
		opts.PriceTable = &table
	}

	jwtConfig, err := config.NewJWTConfig()
	switch {
	case err == nil:
		opts.JWT = jwtConfig
		if opts.Admin, err = config.NewAdminCredentials(); err != nil {
			return opts, cleanup, err
		}
		if opts.Passwords, err = config.NewPasswordConfig(); err != nil {
			return opts, cleanup, err
		}
	case os.Getenv("JWT_SECRET") == "":
		logger.Warn("JWT_SECRET not set; admin endpoints disabled")
	default:
		return opts, cleanup, err
	}

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; running without a database")
		return opts, cleanup, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return opts, cleanup, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return opts, cleanup, err
	}
	opts.Store = database
	return opts, database.Close, nil
}
