// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/Thermoquad/canstat/pkg/source"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var (
	discoveryTimeout int
	discoveryListen  bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find serial ports with SLCAN adapters",
	Long: `List the serial ports of this machine with their USB identifiers.

With --listen every port is opened as an SLCAN adapter (using --baud and
--can-bitrate) and watched for a CAN frame until the timeout. Ports are
checked one after another.

Examples:
  # List ports
  canstat discovery

  # Find the adapter connected to a live 500 kbit/s bus
  canstat discovery --listen --can-bitrate 500000

Exit codes:
  0 - At least one port found (with --listen: at least one port received a frame)
  1 - No ports found (with --listen: no frames on any port)
  2 - Port enumeration error`,
	Args: cobra.NoArgs,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 2, "Seconds to listen on each port")
	discoveryCmd.Flags().BoolVar(&discoveryListen, "listen", false, "Open each port and wait for a CAN frame")
}

// discoveredPort is one serial port and what was heard on it
type discoveredPort struct {
	name   string
	usb    string
	frame  *dbc.Frame
	errMsg string
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enumeration error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Canstat - Adapter Discovery\n")
	fmt.Printf("Ports: %d\n", len(ports))
	if discoveryListen {
		fmt.Printf("Listening %d seconds per port\n", discoveryTimeout)
	}
	fmt.Println()

	found := 0
	for _, p := range ports {
		d := discoveredPort{name: p.Name}
		if p.IsUSB {
			d.usb = fmt.Sprintf("USB %s:%s", p.VID, p.PID)
			if p.SerialNumber != "" {
				d.usb += " serial " + p.SerialNumber
			}
		}

		if discoveryListen {
			d.frame, err = listenPort(p.Name)
			if err != nil {
				d.errMsg = err.Error()
			}
			if d.frame != nil {
				found++
			}
		} else {
			found++
		}
		printDiscoveredPort(d)
	}

	if found == 0 {
		if discoveryListen {
			fmt.Printf("\nNo CAN frames received on any port\n")
		} else {
			fmt.Printf("No serial ports found\n")
		}
		os.Exit(1)
	}
	return nil
}

// listenPort opens a port as an SLCAN adapter and waits for one frame
func listenPort(name string) (*dbc.Frame, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(discoveryTimeout)*time.Second)
	defer cancel()

	s, err := source.OpenSerial(source.SerialConfig{
		Port:     name,
		BaudRate: baudRate,
		Bitrate:  canBitrate,
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	f, err := s.ReadFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, err
	}
	logger.WithField("port", name).Debug("frame received during discovery")
	return &f, nil
}

func printDiscoveredPort(d discoveredPort) {
	fmt.Printf("%s", d.name)
	if d.usb != "" {
		fmt.Printf("  (%s)", d.usb)
	}
	fmt.Println()

	switch {
	case d.frame != nil:
		fmt.Printf("  SLCAN frame: ID 0x%X [%s]\n", d.frame.ID, dbc.FormatHexBytes(d.frame.Payload))
	case d.errMsg != "":
		fmt.Printf("  Error: %s\n", d.errMsg)
	case discoveryListen:
		fmt.Printf("  No frames\n")
	}
}
