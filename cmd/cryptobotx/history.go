package main

import (
	"fmt"
	"time"

	"cryptobotx-go/internal/app"
	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/history"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func historyCmd() *cobra.Command {
	var (
		search, side, status, dateRange, sortBy, order string
		export                                         bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse, filter and export the trade history",
		Long: `Fetch the most recent trades for the current mode, filter and sort them,
and optionally export the shown rows as CSV.

Example:
  cryptobotx history --side SELL --range 30d --sort profit --order asc
  cryptobotx history --search btc --export`,
		Args: cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error {
			filter, err := history.ParseFilterState(search, side, status, dateRange, sortBy, order)
			if err != nil {
				return err
			}

			mode := a.Mode()
			ctrl := history.NewController(history.NewSource(a.Backend, &a.Config.History, a.Log), a.Log)
			snap, err := ctrl.Show(cmd.Context(), sess, mode)
			if err != nil {
				return err
			}
			if snap.State == history.StateError {
				return fmt.Errorf("failed to load trade history: %s", snap.Reason)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Trade history"), mutedStyle.Render("("+string(mode)+")"))
			if snap.Origin == history.OriginFallback {
				fmt.Fprintln(w, warnStyle.Render("Backend unavailable, showing sample trades: "+snap.Reason))
			}

			_, view := ctrl.View(filter)
			if msg := history.EmptyMessage(len(snap.Records), len(view.Trades)); msg != "" {
				fmt.Fprintln(w, mutedStyle.Render(msg))
			} else {
				printTrades(w, view.Trades, a.Exporter.Location)
			}
			printSummary(w, view.Summary)

			if export {
				path, err := a.Export(view.Trades, mode, snap.Origin, time.Now())
				if err != nil {
					return err
				}
				a.Log.Info("Exported trade history", zap.String("path", path), zap.Int("rows", len(view.Trades)))
				fmt.Fprintf(w, "Exported %d trades to %s\n", len(view.Trades), path)
			}
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVarP(&search, "search", "s", "", "Case-insensitive match on symbol or strategy")
	f.StringVar(&side, "side", "all", "all, BUY or SELL")
	f.StringVar(&status, "status", "all", "all, filled, pending or cancelled")
	f.StringVarP(&dateRange, "range", "r", "7d", "1d, 7d, 30d or all")
	f.StringVar(&sortBy, "sort", "timestamp", "timestamp, profit or amount")
	f.StringVar(&order, "order", "desc", "asc or desc")
	f.BoolVarP(&export, "export", "x", false, "Write the shown trades to a CSV file")
	return cmd
}

func exportsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List past trade history exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.RecentExports(limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, titleStyle.Render("Exports"))
			if len(recs) == 0 {
				fmt.Fprintln(w, mutedStyle.Render("No exports yet."))
				return nil
			}
			printExports(w, recs, a.Exporter.Location)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of exports to list")
	return cmd
}
