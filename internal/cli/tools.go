package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"excel-mcp/internal/tracing"
)

func newToolsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools served over MCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			registry, _, err := buildRegistry(quiet(app), true)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(registry.Definitions())
			}

			table := NewTable(output, "Name", "Required", "Description")
			for _, t := range registry.List() {
				table.AddRow(cyan(t.Name), fmt.Sprint(t.Parameters.Required), firstLine(t.Description))
			}
			table.Render()
			return nil
		},
	}
}

func newCallCmd(app *App) *cobra.Command {
	var (
		rawArgs string
		dryRun  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Call a tool once and print its result",
		Long: `Call a tool with JSON arguments and print the structured result.

Examples:
  excel-mcp call excel.updateRange --dry-run --args '{"url":"https://contoso.sharepoint.com/sites/ops","file_name":"Book.xlsx","sheet_name":"Sheet1","address":"A1:B1","values":[[1,2]]}'
  excel-mcp call excel.logTrades --args '{"trades":[{"ticker":"SPY","open_date":"2025-03-14"}]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !json.Valid([]byte(rawArgs)) {
				return fmt.Errorf("--args is not valid JSON")
			}

			registry, _, err := buildRegistry(quiet(app), dryRun)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			shutdown, err := tracing.Init(app.Config.Tracing.Enabled, Version, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdown(context.Background())

			result, err := registry.Call(ctx, args[0], json.RawMessage(rawArgs))
			if err != nil {
				return err
			}

			output.Println(result.Text())
			if result.IsError {
				return fmt.Errorf("tool %s reported an error", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rawArgs, "args", "{}", "tool arguments as a JSON object")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "use in-memory workbooks instead of Microsoft Graph")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall call timeout")
	return cmd
}

// quiet keeps info-level logs out of command output unless --debug is set.
func quiet(app *App) *App {
	if zerolog.GlobalLevel() == zerolog.InfoLevel {
		app.Logger = app.Logger.Level(zerolog.WarnLevel)
	}
	return app
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '.' {
			return s[:i]
		}
	}
	return s
}
