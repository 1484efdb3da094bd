package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"quotepulse/pkg/contracts/domain"
)

// Sheet names of the XLSX export
const (
	WindowSheet  = "Window"
	SummarySheet = "Summary"
)

// WriteXLSX writes a workbook with the window table and a summary sheet
func WriteXLSX(w io.Writer, result domain.AlignmentResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", WindowSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeWindowSheet(f, result); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, result); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeWindowSheet(f *excelize.File, result domain.AlignmentResult) error {
	header := make([]interface{}, len(WindowHeaders))
	for i, h := range WindowHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(WindowSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(WindowSheet, "A1", "D1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range WindowRows(result) {
		row := []interface{}{r.Date, r.Close, r.Role, nil}
		if r.PctFromEvent != nil {
			row[3] = *r.PctFromEvent
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(WindowSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
		if r.Role == RoleEvent {
			if err := f.SetCellStyle(WindowSheet, cell, fmt.Sprintf("D%d", i+2), bold); err != nil {
				return fmt.Errorf("failed to style event row: %w", err)
			}
		}
	}

	return f.SetColWidth(WindowSheet, "A", "D", 16)
}

func writeSummarySheet(f *excelize.File, result domain.AlignmentResult) error {
	m := result.Market
	rows := [][]interface{}{
		{"article_datetime", result.Earliest.Datetime},
		{"article_title", result.Earliest.Title},
		{"article_url", result.Earliest.URL},
		{"event_trading_date", m.EventTradingDate},
		{"prev_trading_date", m.PrevTradingDate},
		{"prev_close", m.PrevClose},
		{"event_close", m.EventClose},
		{"next_trading_date", m.NextTradingDate},
		{"next_close", floatOrNil(m.NextClose)},
		{"ret_prev_to_event_pct", floatOrNil(m.RetPrevToEventPct)},
		{"ret_event_to_next_pct", floatOrNil(m.RetEventToNextPct)},
	}

	for i, row := range rows {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i, err)
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 24)
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
