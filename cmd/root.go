// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Catalog
	dbcPath string

	// Serial connection flags
	portName   string
	baudRate   int
	canBitrate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// SocketCAN and replay
	canIface    string
	candumpPath string
	candumpPace bool

	// Logging
	logLevel  string
	logFormat string

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "canstat",
	Short: "CAN bus logger and DBC signal analyzer",
	Long: `Canstat - A CLI tool for decoding and recording CAN bus traffic.

Frames are decoded with the signal definitions of a DBC file (--dbc) into
named, scaled physical values and recorded together with the raw bytes.

Frame sources:
  SocketCAN: --iface can0
  SLCAN:     --port /dev/ttyACM0 [--baud 115200] [--can-bitrate 500000]
  WebSocket: --url ws://host/path [--username user]
  Replay:    --candump capture.log [--pace]

For WebSocket authentication, the password is read from the CANSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbcPath, "dbc", "d", "", "DBC file with message and signal definitions")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port of an SLCAN adapter")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().IntVar(&canBitrate, "can-bitrate", 0, "CAN bitrate to configure on the SLCAN adapter (0 = leave as is)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL of an SLCAN bridge (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&canIface, "iface", "i", "", "SocketCAN interface (linux only)")
	rootCmd.PersistentFlags().StringVar(&candumpPath, "candump", "", "Replay frames from a candump -l log")
	rootCmd.PersistentFlags().BoolVar(&candumpPace, "pace", false, "Replay a candump log with its recorded timing")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
}

// setupLogging configures the shared logger from the persistent flags
func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)

	switch logFormat {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid --log-format %q (use text or json)", logFormat)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
