// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/Thermoquad/canstat/pkg/recorder"
	"github.com/Thermoquad/canstat/pkg/sink"
	"github.com/Thermoquad/canstat/pkg/source"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll        bool
	statsInterval  int
	useTUI         bool
	monitorOutPath string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch decoded signals, anomalies and bus statistics live",
	Long: `Decode frames as they arrive and track anomalies with statistics.

Each frame is checked for:
  - Payloads shorter than the DLC declared in the DBC
  - Signals that cannot be read from the payload
  - Physical values outside the DBC [min|max] range
  - Adapter receive overruns

By default, only anomalies are displayed. Use --show-all to display every
frame too. The terminal UI lists the latest value of every message; press '/'
to filter by signal name.

Use --out to keep a text record of the session while monitoring.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just anomalies)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().StringVarP(&monitorOutPath, "out", "o", "", "Also append text records to this file")
}

func runMonitor(cmd *cobra.Command, args []string) error {
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

	var out sink.Sink
	if monitorOutPath != "" {
		if out, err = sink.OpenFile(monitorOutPath, sink.FormatText); err != nil {
			src.Close()
			return err
		}
	}

	rec := recorder.New(logger, catalog, out)

	if useTUI {
		return runTUIMode(ctx, rec, src, connInfo)
	}
	return runTextMode(ctx, rec, src, connInfo)
}

// printAnomalies prints the anomalies of a frame in highlighted format
func printAnomalies(o dbc.Outcome, anomalies []dbc.ValidationError) {
	timestamp := time.Now().Format("15:04:05.000")
	name := o.MessageName()
	if name == "" {
		name = "UNKNOWN"
	}

	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s (0x%X)\n", timestamp, name, o.Frame.ID)
	for i, a := range anomalies {
		switch a.Type {
		case dbc.AnomalyShortPayload:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
			if received, ok := a.Details["received"].(int); ok {
				if expected, ok := a.Details["expected"].(int); ok {
					fmt.Printf("    Length: received=%d, expected=%d\n", received, expected)
				}
			}

		case dbc.AnomalySignalError:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)

		case dbc.AnomalyOutOfRange:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, a.Message)
		}
	}
	fmt.Printf("  Data: %s\n\n", dbc.FormatHexBytes(o.Frame.Payload))
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(ctx context.Context, rec *recorder.Recorder, src source.Source, connInfo string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialModel(connInfo, statsInterval, showAll, rec.Stats)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Frames are batched so a busy bus does not flood the UI
	batchChan := make(chan frameMsg, 1000)
	rec.Observer = func(o dbc.Outcome, anomalies []dbc.ValidationError) {
		select {
		case batchChan <- frameMsg{outcome: o, anomalies: anomalies}:
		default:
		}
	}

	// Recording goroutine
	done := make(chan error, 1)
	go func() {
		err := rec.Run(ctx, src)
		p.Send(sourceDoneMsg{err: err})
		done <- err
	}()

	// Batch sender goroutine
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var batch batchMsg
			drainLoop:
				for len(batch.frames) < cap(batchChan) {
					select {
					case f := <-batchChan:
						batch.frames = append(batch.frames, f)
					default:
						break drainLoop
					}
				}
				if len(batch.frames) > 0 {
					p.Send(batch)
				}
			}
		}
	}()

	// Log lines would corrupt the alternate screen
	logger.SetOutput(io.Discard)

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("TUI error: %w", err)
	}

	cancel()
	err := <-done
	logger.SetOutput(os.Stderr)

	stats := rec.Stats()
	fmt.Print(stats.String())
	return err
}

// runTextMode runs the monitor in text mode
func runTextMode(ctx context.Context, rec *recorder.Recorder, src source.Source, connInfo string) error {
	fmt.Printf("Canstat - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	rec.Observer = func(o dbc.Outcome, anomalies []dbc.ValidationError) {
		if len(anomalies) > 0 {
			printAnomalies(o, anomalies)
		} else if showAll {
			fmt.Print(dbc.FormatOutcome(o))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Statistics ticker
	if statsInterval > 0 {
		go func() {
			statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
			defer statsTicker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-statsTicker.C:
					stats := rec.Stats()
					fmt.Println()
					fmt.Print(stats.String())
					fmt.Println()
				}
			}
		}()
	}

	err := rec.Run(ctx, src)
	stats := rec.Stats()
	fmt.Println()
	fmt.Print(stats.String())
	return err
}
