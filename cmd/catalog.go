// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Thermoquad/canstat/pkg/dbc"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var catalogJSON bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Show the messages and signals parsed from a DBC file",
	Long: `Parse the DBC file and print every message with its signal layout,
followed by the lines that were rejected and the definitions that replaced
earlier ones.

With --json the same content is written as a single JSON document.`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Write the catalog as JSON")
}

type catalogSignalJSON struct {
	Name      string   `json:"name"`
	StartBit  int      `json:"start_bit"`
	Length    int      `json:"length"`
	ByteOrder string   `json:"byte_order"`
	Signed    bool     `json:"signed"`
	Scale     float64  `json:"scale"`
	Offset    float64  `json:"offset"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	Unit      string   `json:"unit"`
	Receivers []string `json:"receivers,omitempty"`
}

type catalogMessageJSON struct {
	ID          uint32              `json:"id"`
	FrameID     uint32              `json:"frame_id"`
	Extended    bool                `json:"extended"`
	Name        string              `json:"name"`
	DLC         int                 `json:"dlc"`
	Transmitter string              `json:"transmitter,omitempty"`
	Signals     []catalogSignalJSON `json:"signals"`
}

type catalogErrorJSON struct {
	Line  int    `json:"line"`
	Text  string `json:"text"`
	Error string `json:"error"`
}

type catalogJSONDoc struct {
	Source     string               `json:"source"`
	Messages   []catalogMessageJSON `json:"messages"`
	Errors     []catalogErrorJSON   `json:"errors"`
	Duplicates []string             `json:"duplicates"`
}

func runCatalog(cmd *cobra.Command, args []string) error {
	catalog, report, err := loadCatalogReport()
	if err != nil {
		return err
	}

	if catalogJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(buildCatalogDoc(catalog, report))
	}

	fmt.Printf("Catalog: %s\n", dbcPath)
	fmt.Printf("Messages: %d, Signals: %d\n\n", catalog.Len(), catalog.SignalCount())

	for _, m := range catalog.Messages() {
		ext := ""
		if m.IsExtended() {
			ext = " ext"
		}
		fmt.Printf("0x%X%s %s (BO_ %d) DLC %d", m.FrameID(), ext, m.Name, m.ID, m.DLC)
		if m.Transmitter != "" {
			fmt.Printf(" from %s", m.Transmitter)
		}
		fmt.Println()
		for _, s := range m.Signals {
			fmt.Printf("  %s", dbc.FormatSignalDef(s))
			if len(s.Receivers) > 0 {
				fmt.Printf(" -> %s", strings.Join(s.Receivers, ","))
			}
			fmt.Println()
		}
	}

	if report.Dropped() > 0 {
		fmt.Printf("\nRejected lines (%d):\n", report.Dropped())
		for _, e := range report.Errors {
			fmt.Printf("  %v\n", e)
		}
	}
	if len(report.Duplicates) > 0 {
		fmt.Printf("\nReplaced definitions (%d):\n", len(report.Duplicates))
		for _, d := range report.Duplicates {
			fmt.Printf("  %s\n", d)
		}
	}
	return nil
}

func buildCatalogDoc(catalog *dbc.Catalog, report *dbc.ParseReport) catalogJSONDoc {
	doc := catalogJSONDoc{
		Source:     dbcPath,
		Messages:   []catalogMessageJSON{},
		Errors:     []catalogErrorJSON{},
		Duplicates: report.Duplicates,
	}
	if doc.Duplicates == nil {
		doc.Duplicates = []string{}
	}

	for _, m := range catalog.Messages() {
		mj := catalogMessageJSON{
			ID:          m.ID,
			FrameID:     m.FrameID(),
			Extended:    m.IsExtended(),
			Name:        m.Name,
			DLC:         m.DLC,
			Transmitter: m.Transmitter,
			Signals:     make([]catalogSignalJSON, 0, len(m.Signals)),
		}
		for _, s := range m.Signals {
			mj.Signals = append(mj.Signals, catalogSignalJSON{
				Name:      s.Name,
				StartBit:  s.StartBit,
				Length:    s.Length,
				ByteOrder: s.ByteOrder.String(),
				Signed:    s.Signed,
				Scale:     s.Scale,
				Offset:    s.Offset,
				Min:       s.Min,
				Max:       s.Max,
				Unit:      s.Unit,
				Receivers: s.Receivers,
			})
		}
		doc.Messages = append(doc.Messages, mj)
	}

	for _, e := range report.Errors {
		doc.Errors = append(doc.Errors, catalogErrorJSON{Line: e.Line, Text: e.Text, Error: e.Err.Error()})
	}
	return doc
}
