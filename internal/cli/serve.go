package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aqasim81/crm-updater/internal/cache"
	"github.com/aqasim81/crm-updater/internal/config"
	"github.com/aqasim81/crm-updater/internal/server"
)

var serveCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "serve",
	Short: "Run the update routine, then serve the HTTP endpoints",
	Long: `Run the boot-time update routine and then serve the pending-action
state and the webform element renderer over HTTP until interrupted.`,
	RunE: runServe,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	serveCmd.Flags().String("addr", "", "listen address (overrides http_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cmd.Flags().Changed("addr") {
		cfg.HTTPAddr, _ = cmd.Flags().GetString("addr")
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.runner.Run(ctx)
	if err != nil {
		return err
	}

	printReport(cmd.ErrOrStderr(), report)

	srv := server.New(server.Deps{
		Settings:  a.settings,
		Tasks:     a.tasks,
		Publisher: a.runner,
		Renderer:  a.renderer,
		Logger:    logger,
	})

	if err := writeSnapshots(srv, cfg); err != nil {
		return err
	}

	return srv.ListenAndServe(ctx, cfg.HTTPAddr)
}

// configSnapshot is the resolved configuration with secrets removed.
type configSnapshot struct {
	DatabaseURL      string `json:"database_url"`
	UpdatesDir       string `json:"updates_dir"`
	SetupCompleted   bool   `json:"setup_completed"`
	LockTimeout      string `json:"lock_timeout"`
	StatementTimeout string `json:"statement_timeout"`
	HTTPAddr         string `json:"http_addr"`
	RedisAddress     string `json:"redis_address,omitempty"`
	RedisPrefix      string `json:"redis_prefix,omitempty"`
}

// writeSnapshots stores the compiled route table and configuration. They
// are removed by the route and config flushers on the next update.
func writeSnapshots(srv *server.Server, cfg *config.Config) error {
	routes, err := srv.Routes()
	if err != nil {
		return err
	}

	if err := cache.WriteSnapshot(cfg.CompiledDir, cache.RoutesSnapshot, routes); err != nil {
		return fmt.Errorf("writing route snapshot: %w", err)
	}

	snap := configSnapshot{
		DatabaseURL:      config.RedactDSN(cfg.DatabaseURL),
		UpdatesDir:       cfg.UpdatesDir,
		SetupCompleted:   cfg.SetupCompleted(),
		LockTimeout:      cfg.LockTimeout.String(),
		StatementTimeout: cfg.StatementTimeout.String(),
		HTTPAddr:         cfg.HTTPAddr,
		RedisAddress:     cfg.Redis.Address,
		RedisPrefix:      cfg.Redis.Prefix,
	}

	if err := cache.WriteSnapshot(cfg.CompiledDir, cache.ConfigSnapshot, snap); err != nil {
		return fmt.Errorf("writing config snapshot: %w", err)
	}

	return nil
}
