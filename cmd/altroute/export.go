// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/H0llyW00dzZ/altroute/src/doh"
)

const reportSheet = "Discovery"

var reportHeader = []any{"Base URL", "Service", "Status", "Latency (ms)", "Alternatives"}

// saveReports writes reports to an XLSX file at path.
func saveReports(path, baseURL string, reports []doh.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("altroute: create report: %w", err)
	}
	if err := writeReports(f, baseURL, reports); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeReports encodes reports as an XLSX workbook with one row per
// discovery service.
func writeReports(w io.Writer, baseURL string, reports []doh.Report) error {
	x := excelize.NewFile()
	defer x.Close()

	if err := x.SetSheetName("Sheet1", reportSheet); err != nil {
		return fmt.Errorf("altroute: rename sheet: %w", err)
	}

	bold, err := x.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("altroute: header style: %w", err)
	}
	if err := x.SetSheetRow(reportSheet, "A1", &reportHeader); err != nil {
		return fmt.Errorf("altroute: write header: %w", err)
	}
	if err := x.SetCellStyle(reportSheet, "A1", "E1", bold); err != nil {
		return fmt.Errorf("altroute: header style: %w", err)
	}

	for i, r := range reports {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		row := []any{baseURL, r.Service, status, r.Latency.Milliseconds(), strings.Join(r.Alternatives, "\n")}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := x.SetSheetRow(reportSheet, cell, &row); err != nil {
			return fmt.Errorf("altroute: write row %d: %w", i+2, err)
		}
	}

	if err := x.SetColWidth(reportSheet, "A", "B", 40); err != nil {
		return err
	}
	if err := x.SetColWidth(reportSheet, "E", "E", 60); err != nil {
		return err
	}
	return x.Write(w)
}
