// Canbridge-cfg is a configuration utility for ESP32 socketcand CAN adapters.
//
// It finds adapters on the local network, shows their live status, and
// edits their Ethernet, Wi-Fi and CAN settings through the adapter's
// /api/status and /api/config endpoints. It can also emulate an adapter
// for testing without hardware.
//
// Usage:
//
//	canbridge-cfg [command] [flags]
//
// Running without arguments launches the interactive console.
// See 'canbridge-cfg --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/canbridge/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "canbridge-cfg",
	Short: "CAN Adapter Configuration Utility",
	Long: `A standalone utility for configuring ESP32 socketcand CAN adapters.

Provides adapter discovery (CANBeacon and mDNS), live status, an interactive
settings console, and direct configuration commands. Only the settings you
change are sent to the adapter.

If no command is specified, the interactive console will launch automatically.`,
	Version:      version.Version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the console when no subcommand is given
		return runWizard(cmd, args)
	},
}

func init() {
	// Assigned here rather than in the literal: setup refers to rootCmd
	rootCmd.PersistentPreRunE = setup

	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// The version command needs neither the registry nor logging
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "canbridge-cfg %s\n", version.Full())
	},
}
