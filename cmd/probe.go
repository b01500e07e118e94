// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/spf13/cobra"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test a frame source by waiting for one valid frame",
	Long: `Wait for a valid CAN frame on the selected source until timeout.

Malformed adapter output is skipped. When --dbc is given the frame is also
decoded and shown with its signal values.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a frame
  2 - Connection error

Useful for checking adapter wiring and bus bitrate before logging.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runProbe(cmd *cobra.Command, args []string) error {
	var catalog *dbc.Catalog
	if dbcPath != "" {
		var err error
		if catalog, err = loadCatalog(); err != nil {
			fmt.Fprintf(os.Stderr, "Catalog error: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(probeTimeout)*time.Second)
	defer cancel()

	src, connInfo, err := OpenSource(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Canstat - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for a CAN frame...\n\n")

	// Reader goroutine
	frameChan := make(chan dbc.Frame, 1)
	errChan := make(chan error, 1)
	go func() {
		f, err := src.ReadFrame(ctx)
		if err != nil {
			errChan <- err
			return
		}
		frameChan <- f
	}()

	select {
	case f := <-frameChan:
		src.Close()
		fmt.Printf("SUCCESS: Received frame\n")
		fmt.Printf("  ID: 0x%X", f.ID)
		if f.Extended {
			fmt.Printf(" (extended)")
		}
		fmt.Printf("\n  Length: %d bytes\n", len(f.Payload))
		fmt.Printf("  Data: %s\n", dbc.FormatHexBytes(f.Payload))
		if catalog != nil {
			out := dbc.DecodeFrame(catalog, &f)
			if out.Matched {
				fmt.Println()
				fmt.Print(dbc.FormatOutcome(out))
			} else {
				fmt.Printf("  (no DBC message for this ID)\n")
			}
		}
		os.Exit(0)

	case err := <-errChan:
		src.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "TIMEOUT: No frame received within %d seconds\n", probeTimeout)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-ctx.Done():
		src.Close()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No frame received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
