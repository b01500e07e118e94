// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/spf13/cobra"
)

var (
	sendCount    int
	sendInterval int
	sendDryRun   bool
)

var sendCmd = &cobra.Command{
	Use:   "send MESSAGE [SIGNAL=VALUE...]",
	Short: "Encode a DBC message from physical values and transmit it",
	Long: `Build the payload of a DBC message from physical signal values and send it.

Signals not given are sent as raw zero. Values are converted with the signal's
scale and offset, rounded, and clamped to what the signal can hold.

  canstat send --dbc car.dbc --iface can0 EngineData RPM=2500 Throttle=12.5

Transmission is supported on SocketCAN, SLCAN serial adapters and SLCAN
WebSocket bridges. Use --dry-run to print the frame without sending it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVarP(&sendCount, "count", "c", 1, "Number of times to send the frame")
	sendCmd.Flags().IntVar(&sendInterval, "interval", 100, "Milliseconds between repeated frames")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "Print the encoded frame without sending")
}

// parseSignalValues parses NAME=VALUE arguments
func parseSignalValues(args []string) (map[string]float64, error) {
	values := make(map[string]float64, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected SIGNAL=VALUE, got %q", arg)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}

// buildFrame encodes a catalog message into a frame
func buildFrame(catalog *dbc.Catalog, name string, values map[string]float64) (dbc.Frame, *dbc.MessageDef, error) {
	msg, ok := catalog.MessageByName(name)
	if !ok {
		return dbc.Frame{}, nil, fmt.Errorf("message %q not in catalog", name)
	}
	payload, err := dbc.EncodeMessage(msg, values)
	if err != nil {
		return dbc.Frame{}, nil, err
	}
	return dbc.Frame{
		ID:       msg.FrameID(),
		Payload:  payload,
		Extended: msg.IsExtended() || msg.FrameID() > 0x7FF,
	}, msg, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	values, err := parseSignalValues(args[1:])
	if err != nil {
		return err
	}

	f, msg, err := buildFrame(catalog, args[0], values)
	if err != nil {
		return err
	}

	fmt.Print(dbc.FormatOutcome(dbc.DecodeFrame(catalog, &f)))
	if sendDryRun {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, closeFn, connInfo, err := OpenTransmitter(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	for i := 0; i < sendCount; i++ {
		if i > 0 {
			time.Sleep(time.Duration(sendInterval) * time.Millisecond)
		}
		if err := tx.WriteFrame(ctx, f); err != nil {
			return fmt.Errorf("failed to send %s: %w", msg.Name, err)
		}
		logger.WithFields(map[string]interface{}{
			"id":      f.ID,
			"message": msg.Name,
			"seq":     i + 1,
		}).Debug("frame sent")
	}

	fmt.Printf("Sent %s (0x%X) %d time(s) via %s\n", msg.Name, f.ID, sendCount, connInfo)
	return nil
}
