// Package cli provides the command-line interface for the workbook tool server.
package cli

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"excel-mcp/internal/config"
	"excel-mcp/internal/logging"
	"excel-mcp/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-01-01"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Journal store.Journal
}

// Close releases resources opened by commands.
func (a *App) Close() {
	if a.Journal != nil {
		a.Journal.Close()
		a.Journal = nil
	}
}

// NewRootCmd creates the root command for the CLI. Configuration is loaded
// before any subcommand runs.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "excel-mcp",
		Short: "MCP tool server for Excel workbooks in SharePoint and OneDrive",
		Long: `excel-mcp serves Excel tools to AI agents over the Model Context Protocol.

Tools write ranges, update rows found by lookup, append table rows and log
option trades to a trade tracker workbook through Microsoft Graph.

Use 'excel-mcp serve --dry-run' to try the tools against an in-memory workbook.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(logConfig(cfg))

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/excel-mcp)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newToolsCmd(app))
	rootCmd.AddCommand(newCallCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))

	return rootCmd
}

func logConfig(cfg *config.Config) logging.LogConfig {
	return logging.LogConfig{
		Level:      cfg.Log.Level,
		Console:    cfg.Log.Console,
		JSON:       cfg.Log.JSON,
		File:       cfg.Log.File,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("excel-mcp v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := masked(app.Config)
			if output.IsJSON() {
				return output.JSON(cfg)
			}
			showConfig(output, cfg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Dir})
			} else {
				output.Println(app.Config.Dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if _, err := columnMapping(app.Config); err != nil {
				output.Error("Column mapping is invalid: %v", err)
				return err
			}

			missing := app.Config.MissingCredentials()
			hasToken := app.Config.Graph.AccessToken != ""
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"valid":               true,
					"client_credentials":  len(missing) == 0,
					"static_access_token": hasToken,
					"missing":             missing,
				})
			}
			output.Success("✓ Configuration is valid")
			if len(missing) > 0 && !hasToken {
				output.Warning("Graph credentials missing: %s (only 'serve --dry-run' will work)", strings.Join(missing, ", "))
			}
			return nil
		},
	})

	return cmd
}

func masked(cfg *config.Config) *config.Config {
	out := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.Graph.ClientSecret = mask(cfg.Graph.ClientSecret)
	out.Graph.AccessToken = mask(cfg.Graph.AccessToken)
	out.Server.AuthSecret = mask(cfg.Server.AuthSecret)
	return &out
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Server")
	output.Printf("  Listen:          %s\n", cfg.Addr())
	output.Printf("  Rate Limit:      %.1f req/s (burst %d)\n", cfg.Server.RateLimit, cfg.Server.RateBurst)
	output.Printf("  Bearer Auth:     %v\n", cfg.Server.AuthSecret != "")
	output.Println()

	output.Bold("Microsoft Graph")
	output.Printf("  Base URL:        %s\n", cfg.Graph.BaseURL)
	output.Printf("  Tenant:          %s\n", orDash(cfg.Graph.TenantID))
	output.Printf("  Client:          %s\n", orDash(cfg.Graph.ClientID))
	output.Printf("  Client Secret:   %s\n", orDash(cfg.Graph.ClientSecret))
	output.Printf("  Request Timeout: %s\n", cfg.Graph.RequestTimeout)
	output.Printf("  Retry Attempts:  %d\n", cfg.Graph.RetryAttempts)
	output.Println()

	output.Bold("Trade Tracker")
	output.Printf("  URL:             %s\n", orDash(cfg.Tracker.URL))
	output.Printf("  File:            %s\n", orDash(cfg.Tracker.FileName))
	output.Printf("  Default Sheet:   %s\n", cfg.Tracker.DefaultSheet)
	output.Printf("  Search Column:   %s\n", cfg.Tracker.SearchColumn)
	output.Println()

	output.Bold("Journal")
	output.Printf("  Enabled:         %v\n", cfg.Journal.Enabled)
	output.Printf("  Path:            %s\n", cfg.Journal.Path)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Log.Level)
	output.Printf("  File:            %v\n", cfg.Log.File)
	output.Printf("  Tracing:         %v\n", cfg.Tracing.Enabled)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	app := &App{Logger: logging.NewLogger()}
	rootCmd := NewRootCmd(app)
	if err := rootCmd.Execute(); err != nil {
		app.Close()
		output := NewOutput(rootCmd)
		output.writer = os.Stderr
		output.Error("Error: %v", err)
		return 1
	}
	return 0
}
