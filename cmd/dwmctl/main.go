// Dwmctl is a configuration utility for DWM1001 ultra-wideband positioning
// modules.
//
// It provides BLE device discovery, declarative network configuration from
// YAML plans, direct configuration commands, anchor autocalibration, and a
// small gateway that streams tag positions over WebSocket.
//
// Usage:
//
//	dwmctl [command] [flags]
//
// See 'dwmctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uwbtools/dwmctl/internal/logging"
	"github.com/uwbtools/dwmctl/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dwmctl",
	Short: "DWM1001 UWB Module Configuration Utility",
	Long: `A standalone utility for configuring DWM1001 ultra-wideband positioning
modules over Bluetooth Low Energy.

Provides device discovery, batch configuration from YAML network plans,
direct per-device commands, anchor autocalibration, and a location gateway
that streams tag positions to WebSocket subscribers.`,
	Version:      version.Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless DWMCTL_LOG_LEVEL is set
		return logging.InitializeFromEnv()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dwmctl %s\n", version.Full())
	},
}
