package main

import (
	"errors"
	"fmt"

	"cryptobotx-go/internal/app"
	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/mode"
	"cryptobotx-go/internal/models"

	"github.com/spf13/cobra"
)

type sessionRunner func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error

// withSession opens the app and restores the signed-in session.
func withSession(run sessionRunner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.Session()
		if err != nil {
			return err
		}
		return run(cmd, args, a, sess)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the bot is configured and running",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error {
			status, err := a.Backend.BotStatus(cmd.Context(), sess)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			state := lossStyle.Render("stopped")
			if status.Running {
				state = gainStyle.Render("running")
			}
			field(w, "Configured", status.Configured)
			field(w, "Bot", state)
			field(w, "Mode", a.Mode())
			return nil
		}),
	}
}

func performanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "performance",
		Short: "Show daily risk counters and P&L",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error {
			perf, err := a.Backend.Performance(cmd.Context(), sess)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			field(w, "Daily trades", fmt.Sprintf("%d/%d", perf.DailyTrades, perf.MaxDailyTrades))
			field(w, "Daily risk", fmt.Sprintf("$%.2f/$%.2f", perf.DailyRisk, perf.MaxDailyRisk))
			field(w, "Total P&L", money(perf.TotalPnL))
			field(w, "Win rate", fmt.Sprintf("%.1f%%", perf.WinRate))
			field(w, "Portfolio", fmt.Sprintf("$%.2f", perf.PortfolioValue))
			if perf.Error != "" {
				field(w, "Warning", warnStyle.Render(perf.Error))
			}
			return nil
		}),
	}
}

func permissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "Check what the exchange API key may do",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error {
			perms, err := a.Backend.Permissions(cmd.Context(), sess)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			health := perms.Health()
			field(w, "Health", healthStyles[health].Render(string(health)))
			field(w, "Connected", perms.IsConnected)
			field(w, "Read", perms.CanRead)
			field(w, "Trade", perms.CanTrade)
			if perms.Exchange != "" {
				field(w, "Exchange", perms.Exchange)
			}
			if rl := perms.RateLimit; rl != nil {
				field(w, "Rate limit", fmt.Sprintf("%d/%d (resets %s)", rl.Remaining, rl.Limit, rl.ResetTime.Local().Format("15:04:05")))
			}
			return nil
		}),
	}
}

func setupCmd() *cobra.Command {
	var req models.SetupRequest

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure the bot with exchange keys and risk limits",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error {
			applyBotDefaults(cmd, &req, a)
			if err := a.Backend.Setup(cmd.Context(), sess, req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Bot configured")
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVar(&req.APIKey, "api-key", "", "Exchange API key")
	f.StringVar(&req.APISecret, "api-secret", "", "Exchange API secret")
	f.StringVar(&req.Strategy, "strategy", "", "Strategy description")
	f.Float64Var(&req.MinConfidence, "min-confidence", 0, "Minimum AI confidence (0-100)")
	f.Float64Var(&req.TradeAmount, "trade-amount", 0, "Amount per trade in USDT")
	f.Float64Var(&req.MaxPortfolioPercent, "max-portfolio-percent", 0, "Maximum share of portfolio per trade")
	f.Float64Var(&req.MaxDailyRisk, "max-daily-risk", 0, "Maximum daily risk in USDT")
	f.IntVar(&req.MaxTradesPerDay, "max-trades-per-day", 0, "Maximum trades per day")
	f.BoolVar(&req.EnableStopLoss, "stop-loss", false, "Enable stop loss")
	f.Float64Var(&req.StopLossPercent, "stop-loss-percent", 0, "Stop loss percent")
	f.BoolVar(&req.EnableTakeProfit, "take-profit", false, "Enable take profit")
	f.Float64Var(&req.TakeProfitPercent, "take-profit-percent", 0, "Take profit percent")
	_ = cmd.MarkFlagRequired("api-key")
	_ = cmd.MarkFlagRequired("api-secret")
	return cmd
}

// applyBotDefaults fills every flag the user did not set from bot.* config.
func applyBotDefaults(cmd *cobra.Command, req *models.SetupRequest, a *app.App) {
	d := a.Config.Bot
	set := cmd.Flags().Changed
	if !set("strategy") {
		req.Strategy = d.Strategy
	}
	if !set("min-confidence") {
		req.MinConfidence = d.MinConfidence
	}
	if !set("trade-amount") {
		req.TradeAmount = d.TradeAmount
	}
	if !set("max-portfolio-percent") {
		req.MaxPortfolioPercent = d.MaxPortfolioPercent
	}
	if !set("max-daily-risk") {
		req.MaxDailyRisk = d.MaxDailyRisk
	}
	if !set("max-trades-per-day") {
		req.MaxTradesPerDay = d.MaxTradesPerDay
	}
	if !set("stop-loss") {
		req.EnableStopLoss = d.EnableStopLoss
	}
	if !set("stop-loss-percent") {
		req.StopLossPercent = d.StopLossPercent
	}
	if !set("take-profit") {
		req.EnableTakeProfit = d.EnableTakeProfit
	}
	if !set("take-profit-percent") {
		req.TakeProfitPercent = d.TakeProfitPercent
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bot",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error {
			if err := a.Backend.Start(cmd.Context(), sess); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Bot started")
			return nil
		}),
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the bot",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error {
			if err := a.Backend.Stop(cmd.Context(), sess); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Bot stopped")
			return nil
		}),
	}
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Ask the bot for a market analysis",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error {
			an, err := a.Backend.Analyze(cmd.Context(), sess)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			field(w, "Recommendation", titleStyle.Render(an.Recommendation))
			field(w, "Confidence", fmt.Sprintf("%.0f%%", an.Confidence))
			field(w, "Entry", fmt.Sprintf("$%.2f", an.EntryPrice))
			field(w, "Stop loss", fmt.Sprintf("$%.2f", an.StopLoss))
			field(w, "Target", fmt.Sprintf("$%.2f", an.Target))
			fmt.Fprintln(w, an.Reasoning)
			return nil
		}),
	}
}

func modeCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:       "mode [demo|live]",
		Short:     "Show or switch the trading mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(models.ModeDemo), string(models.ModeLive)},
		RunE: withSession(func(cmd *cobra.Command, args []string, a *app.App, sess *auth.Session) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				field(w, "Mode", a.Mode())
				return nil
			}

			target, err := models.ParseTradingMode(args[0])
			if err != nil {
				return err
			}
			sw := mode.NewSwitcher(a.Backend, a.Mode(), a.Log)
			got, err := sw.Switch(cmd.Context(), sess, target, confirm)
			if errors.Is(err, mode.ErrConfirmationRequired) {
				return fmt.Errorf("%w: re-run with --confirm to trade with real funds", err)
			}
			if err != nil {
				return err
			}

			field(w, "Mode", got)
			if got == models.ModeLive {
				fmt.Fprintln(w, warnStyle.Render("Live trading uses real funds. Set trading.mode or pass --mode live to keep it."))
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm switching to live trading")
	return cmd
}
