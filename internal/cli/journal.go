package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"excel-mcp/internal/store"
)

func newJournalCmd(app *App) *cobra.Command {
	var (
		limit  int
		tool   string
		errors bool
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Review recorded tool calls",
		Long:  "List tool calls recorded in the local journal, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			journal, err := openJournal(app)
			if err != nil {
				return err
			}

			filter := store.CallFilter{Tool: tool, Limit: limit}
			if errors {
				filter.Status = "error"
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			calls, err := journal.RecentCalls(ctx, filter)
			if err != nil {
				output.Error("Failed to read journal: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(calls)
			}
			if len(calls) == 0 {
				output.Info("No tool calls recorded.")
				return nil
			}

			table := NewTable(output, "Time", "ID", "Tool", "Status", "Duration", "Message")
			for _, c := range calls {
				table.AddRow(
					c.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					c.ID,
					c.Tool,
					output.Status(c.Status),
					c.Duration.Round(time.Millisecond).String(),
					shorten(c.Message, 60),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum calls to list")
	cmd.Flags().StringVar(&tool, "tool", "", "only calls to this tool")
	cmd.Flags().BoolVar(&errors, "errors", false, "only failed calls")
	cmd.Flags().DurationVar(&since, "since", 0, "only calls within this window (e.g. 24h)")

	cmd.AddCommand(newJournalShowCmd(app))
	return cmd
}

func newJournalShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <call-id>",
		Short: "Show the trade rows written by a logTrades call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			journal, err := openJournal(app)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			writes, err := journal.TradeWrites(ctx, args[0])
			if err != nil {
				output.Error("Failed to read journal: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(writes)
			}
			if len(writes) == 0 {
				output.Info("No trade writes recorded for %s.", args[0])
				return nil
			}

			output.Bold("Trade writes for %s", args[0])
			table := NewTable(output, "#", "Sheet", "Row", "Status", "Error", "Message")
			for _, w := range writes {
				row := "-"
				if w.Row > 0 {
					row = fmt.Sprint(w.Row)
				}
				table.AddRow(fmt.Sprint(w.TradeIndex), w.Sheet, row, output.Status(w.Status), orDash(w.ErrorType), shorten(w.Message, 60))
			}
			table.Render()
			return nil
		},
	}
}

func openJournal(app *App) (store.Journal, error) {
	if app.Journal != nil {
		return app.Journal, nil
	}
	if !app.Config.Journal.Enabled {
		return nil, fmt.Errorf("journal is disabled (set journal.enabled in config)")
	}
	journal, err := store.NewSQLiteJournal(app.Config.Journal.Path)
	if err != nil {
		return nil, err
	}
	app.Journal = journal
	return journal, nil
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
