package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tgienger/todosky/internal/ui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "todosky",
		Short:         "Terminal client for a todosky server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, ui.Start{Screen: ui.ScreenBoard})
		},
	}
	cmd.SetVersionTemplate(fmt.Sprintf("todosky %s (commit: %s, built: %s)\n", version, commit, date))
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/todosky/config.yaml)")

	cmd.AddCommand(taskCmd())
	cmd.AddCommand(storiesCmd())
	cmd.AddCommand(loginCmd())
	cmd.AddCommand(bulkCmd())
	cmd.AddCommand(sessionCmd())
	return cmd
}
