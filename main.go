// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Canstat - DBC-driven CAN signal decoder and logger
//
// A CLI tool for decoding CAN frames against a DBC catalog and recording
// the signal values in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/canstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
