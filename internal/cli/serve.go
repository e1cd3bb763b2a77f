package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"excel-mcp/internal/config"
	"excel-mcp/internal/identity"
	"excel-mcp/internal/mcp"
	"excel-mcp/internal/resilience"
	"excel-mcp/internal/server"
	"excel-mcp/internal/sheets"
	"excel-mcp/internal/sheets/sheetsobs"
	"excel-mcp/internal/store"
	"excel-mcp/internal/tools"
	"excel-mcp/internal/tracing"
	"excel-mcp/internal/trades"
)

func newServeCmd(app *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP endpoint over HTTP",
		Long: `Serve the Excel tools over MCP streamable HTTP at /mcp, with a liveness
route at /health.

With --dry-run, tools write to in-memory workbooks instead of Microsoft Graph.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := tracing.Init(app.Config.Tracing.Enabled, Version, os.Stderr)
			if err != nil {
				return fmt.Errorf("initializing tracing: %w", err)
			}
			defer shutdownTracing(context.Background())

			registry, checks, err := buildRegistry(app, dryRun)
			if err != nil {
				return err
			}

			mcpServer := mcp.NewServer(registry, Version, app.Logger)
			router := server.NewRouter(mcpServer, app.Config.Server, app.Logger, checks...)
			srv := server.New(app.Config.Server, app.Config.Addr(), router, app.Logger)

			app.Logger.Info().
				Str("addr", app.Config.Addr()).
				Bool("dry_run", dryRun).
				Int("tools", len(registry.List())).
				Msg("MCP Excel server ready")
			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "use in-memory workbooks instead of Microsoft Graph")
	return cmd
}

// buildRegistry wires the tool registry from configuration, along with the
// health checks of the backend it talks to.
func buildRegistry(app *App, dryRun bool) (*tools.Registry, []server.HealthCheck, error) {
	cfg := app.Config

	mapping, err := columnMapping(cfg)
	if err != nil {
		return nil, nil, err
	}

	backend, checks, err := newBackend(cfg, dryRun, app.Logger)
	if err != nil {
		return nil, nil, err
	}
	backend = sheetsobs.Wrap(backend, tracing.Tracer(), app.Logger)

	if cfg.Journal.Enabled && app.Journal == nil {
		journal, err := store.NewSQLiteJournal(cfg.Journal.Path)
		if err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to open journal, tool calls will not be recorded")
		} else {
			app.Journal = journal
		}
	}

	return tools.New(tools.Deps{
		Backend:      backend,
		Orchestrator: trades.NewOrchestrator(mapping, cfg.Tracker.SearchColumn, app.Logger),
		Tracker:      cfg.Tracker,
		Journal:      app.Journal,
		Logger:       app.Logger,
	}), checks, nil
}

func columnMapping(cfg *config.Config) (trades.ColumnMapping, error) {
	if len(cfg.Columns) == 0 {
		return trades.DefaultColumnMapping(), nil
	}
	return trades.NewColumnMapping(cfg.Columns)
}

// newBackend returns the Graph backend, or in-memory workbooks for dry runs.
func newBackend(cfg *config.Config, dryRun bool, logger zerolog.Logger) (sheets.Backend, []server.HealthCheck, error) {
	if dryRun {
		logger.Warn().Msg("Dry run: writes go to in-memory workbooks")
		return sheets.NewMemoryBackend(true), nil, nil
	}

	creds, err := credentials(cfg)
	if err != nil {
		return nil, nil, err
	}
	graph := sheets.NewGraphClient(sheets.GraphOptions{
		BaseURL:        cfg.Graph.BaseURL,
		RequestTimeout: cfg.Graph.RequestTimeout,
		RetryAttempts:  cfg.Graph.RetryAttempts,
		LocatorTTL:     cfg.Graph.LocatorTTL,
	}, creds, logger)
	return graph, []server.HealthCheck{breakerCheck(graph)}, nil
}

// breakerCheck reports the Graph circuit breaker; an open circuit is degraded.
func breakerCheck(graph *sheets.GraphClient) server.HealthCheck {
	return server.HealthCheck{
		Name: "graph",
		Check: func() (bool, any) {
			stats := graph.BreakerStats()
			return stats.State != resilience.CircuitOpen, stats
		},
	}
}

func credentials(cfg *config.Config) (identity.CredentialProvider, error) {
	if cfg.Graph.AccessToken != "" {
		return identity.StaticToken(cfg.Graph.AccessToken), nil
	}
	if !cfg.HasClientCredentials() {
		return nil, fmt.Errorf("missing required environment variables: %s (or set GRAPH_ACCESS_TOKEN, or use --dry-run)",
			strings.Join(cfg.MissingCredentials(), ", "))
	}
	return identity.NewClientCredentials(identity.ClientCredentialsConfig{
		AuthorityURL: cfg.Graph.AuthorityURL,
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Scope:        cfg.Graph.Scope,
	})
}
