// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/Thermoquad/canstat/pkg/source"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("CANSTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenSource opens the frame source selected by the connection flags
func OpenSource(ctx context.Context) (source.Source, string, error) {
	selected := 0
	for _, s := range []string{canIface, portName, wsURL, candumpPath} {
		if s != "" {
			selected++
		}
	}
	if selected > 1 {
		return nil, "", errors.New("only one of --iface, --port, --url or --candump may be specified")
	}

	switch {
	case canIface != "":
		src, err := source.DialSocketCAN(ctx, canIface)
		if err != nil {
			return nil, "", err
		}
		return src, fmt.Sprintf("SocketCAN: %s", canIface), nil

	case portName != "":
		src, err := source.OpenSerial(source.SerialConfig{
			Port:     portName,
			BaudRate: baudRate,
			Bitrate:  canBitrate,
		})
		if err != nil {
			return nil, "", err
		}
		info := fmt.Sprintf("SLCAN: %s @ %d baud", portName, baudRate)
		if canBitrate != 0 {
			info += fmt.Sprintf(", bus %d bit/s", canBitrate)
		}
		return src, info, nil

	case wsURL != "":
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		src, err := source.DialWebSocket(ctx, source.WebSocketConfig{
			URL:           wsURL,
			Username:      wsUsername,
			Password:      password,
			SkipSSLVerify: wsNoSSLVerify,
		})
		if err != nil {
			return nil, "", err
		}
		return src, fmt.Sprintf("WebSocket: %s", wsURL), nil

	case candumpPath != "":
		src, err := source.OpenCandump(candumpPath)
		if err != nil {
			return nil, "", err
		}
		src.Pace = candumpPace
		src.Log = logger
		return src, fmt.Sprintf("Replay: %s", candumpPath), nil
	}

	return nil, "", errors.New("one of --iface, --port, --url or --candump must be specified")
}

// OpenTransmitter opens a source that can also send frames
func OpenTransmitter(ctx context.Context) (source.Transmitter, func() error, string, error) {
	if candumpPath != "" {
		return nil, nil, "", errors.New("cannot transmit to a candump replay")
	}
	src, info, err := OpenSource(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	tx, ok := src.(source.Transmitter)
	if !ok {
		src.Close()
		return nil, nil, "", fmt.Errorf("%s cannot transmit", info)
	}
	return tx, src.Close, info, nil
}

// loadCatalog loads the --dbc file, logging every dropped line
func loadCatalog() (*dbc.Catalog, error) {
	catalog, _, err := loadCatalogReport()
	return catalog, err
}

func loadCatalogReport() (*dbc.Catalog, *dbc.ParseReport, error) {
	if dbcPath == "" {
		return nil, nil, errors.New("--dbc must be specified")
	}

	catalog, report, err := dbc.LoadFile(dbcPath)
	if err != nil {
		return nil, nil, err
	}

	for _, perr := range report.Errors {
		logger.WithFields(logrus.Fields{
			"line": perr.Line,
			"text": perr.Text,
		}).Warn(perr.Err)
	}
	for _, dup := range report.Duplicates {
		logger.WithField("definition", dup).Warn("duplicate definition replaced")
	}

	logger.WithFields(logrus.Fields{
		"file":     dbcPath,
		"messages": catalog.Len(),
		"signals":  catalog.SignalCount(),
		"dropped":  report.Dropped(),
	}).Info("catalog loaded")

	return catalog, report, nil
}
