// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/spf13/cobra"
)

var (
	decodeExtended bool
	decodeRecords  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode ID DATA",
	Short: "Decode a single frame",
	Long: `Decode one frame given on the command line.

ID is the arbitration ID in hex (0x prefix optional). DATA is the payload in
hex, with or without spaces, dots or colons between bytes:

  canstat decode --dbc car.dbc 100 "10 27 00 00 00 00 00 00"

With --records the frame is printed in the text record format used by
"canstat log".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVarP(&decodeExtended, "extended", "x", false, "Treat the ID as a 29-bit extended identifier")
	decodeCmd.Flags().BoolVar(&decodeRecords, "records", false, "Print text records instead of the console view")
}

// parseFrameArgs builds a frame from an ID and an optional hex payload
func parseFrameArgs(idArg string, dataArgs []string, extended bool) (dbc.Frame, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(idArg), "0x"), 16, 32)
	if err != nil {
		return dbc.Frame{}, fmt.Errorf("invalid frame ID %q: %w", idArg, err)
	}

	data := strings.NewReplacer(" ", "", ".", "", ":", "").Replace(strings.Join(dataArgs, ""))
	payload, err := hex.DecodeString(data)
	if err != nil {
		return dbc.Frame{}, fmt.Errorf("invalid payload %q: %w", data, err)
	}
	if len(payload) > dbc.MaxPayloadSize {
		return dbc.Frame{}, fmt.Errorf("payload of %d bytes exceeds %d", len(payload), dbc.MaxPayloadSize)
	}

	return dbc.Frame{
		ID:       uint32(id),
		Payload:  payload,
		Extended: extended || id > 0x7FF,
	}, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	f, err := parseFrameArgs(args[0], args[1:], decodeExtended)
	if err != nil {
		return err
	}

	out := dbc.DecodeFrame(catalog, &f)

	if decodeRecords {
		if out.Matched && len(out.Signals) > 0 {
			fmt.Println(dbc.RecordHeader)
		}
		for i := range out.Signals {
			fmt.Println(dbc.FormatSignalRecord(&out.Signals[i]))
		}
		fmt.Println(dbc.FormatRawRecord(out))
		return nil
	}

	fmt.Print(dbc.FormatOutcome(out))
	for _, a := range dbc.ValidateOutcome(out) {
		fmt.Printf("  \033[1;33m%s:\033[0m %s\n", a.Type, a.Message)
	}
	return nil
}
