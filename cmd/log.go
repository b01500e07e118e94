// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/Thermoquad/canstat/pkg/recorder"
	"github.com/Thermoquad/canstat/pkg/sink"
	"github.com/spf13/cobra"
)

var (
	logOutPath       string
	logFormatName    string
	logEcho          bool
	logStatsInterval int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Decode frames and append raw and decoded records to a file",
	Long: `Continuously decode CAN frames with the DBC catalog and record them.

For every frame matching a DBC message one record is written per signal,
followed by a raw record with the frame ID and payload bytes. Frames without a
DBC entry are recorded raw only. Records are appended and flushed after every
frame, so an interrupted session keeps everything written before it.

Formats:
  text - SignalName,RawValue,PhysicalValue,Units lines and ID: ... Data: lines
  cbor - one CBOR map per frame
  json - one JSON object per line`,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().StringVarP(&logOutPath, "out", "o", "canstat.txt", "Record file (appended)")
	logCmd.Flags().StringVarP(&logFormatName, "format", "f", "text", "Record format (text, cbor, json)")
	logCmd.Flags().BoolVar(&logEcho, "echo", false, "Also print every decoded frame to the console")
	logCmd.Flags().IntVar(&logStatsInterval, "stats-interval", 0, "Log statistics every N seconds (0 = only at exit)")
}

func runLog(cmd *cobra.Command, args []string) error {
	format, err := sink.ParseFormat(logFormatName)
	if err != nil {
		return err
	}

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, connInfo, err := OpenSource(ctx)
	if err != nil {
		return err
	}

	out, err := sink.OpenFile(logOutPath, format)
	if err != nil {
		src.Close()
		return err
	}

	fmt.Printf("Canstat - Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Records: %s (%s)\n", logOutPath, format)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	rec := recorder.New(logger, catalog, out)
	rec.StatsInterval = time.Duration(logStatsInterval) * time.Second
	if logEcho {
		rec.Observer = func(o dbc.Outcome, _ []dbc.ValidationError) {
			fmt.Print(dbc.FormatOutcome(o))
		}
	}

	err = rec.Run(ctx, src)

	stats := rec.Stats()
	fmt.Println()
	fmt.Print(stats.String())
	return err
}
