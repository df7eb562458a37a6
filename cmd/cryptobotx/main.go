// cryptobotx - command-line client for the CryptoBotX trading bot
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cryptobotx-go/internal/app"
	"cryptobotx-go/internal/models"

	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0"
	configDir string
	modeFlag  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cryptobotx",
		Short: "Client for the CryptoBotX trading bot",
		Long: `cryptobotx signs in to CryptoBotX, controls the remote trading bot
and browses, filters and exports its trade history.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "./configs", "Directory containing config.yml")
	rootCmd.PersistentFlags().StringVarP(&modeFlag, "mode", "m", "", "Trading mode: demo or live (defaults to trading.mode)")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(loginCmd(), signupCmd(), logoutCmd())
	rootCmd.AddCommand(statusCmd(), performanceCmd(), permissionsCmd())
	rootCmd.AddCommand(setupCmd(), startCmd(), stopCmd(), analyzeCmd(), modeCmd())
	rootCmd.AddCommand(historyCmd(), exportsCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cryptobotx version %s\n", version)
		},
	}
}

// openApp wires the application for one command invocation.
func openApp() (*app.App, error) {
	a, err := app.New(configDir)
	if err != nil {
		return nil, err
	}
	if modeFlag != "" {
		if _, err := models.ParseTradingMode(modeFlag); err != nil {
			a.Close()
			return nil, err
		}
		a.Config.Trading.Mode = modeFlag
	}
	return a, nil
}
