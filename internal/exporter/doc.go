// Package exporter writes the price window around an event to CSV and XLSX.
//
// Rows carry the trading date, the close, the role of the day relative to
// the event (prev, event, next) and the percent change from the event close.
// CSV output is written with encoding/csv and an optional UTF-8 BOM so Excel
// detects the encoding. XLSX output is built with excelize and carries a
// second "Summary" sheet with the article and the computed returns.
//
// Example usage:
//
//	var buf bytes.Buffer
//	if err := exporter.Write(&buf, exporter.FormatXLSX, result); err != nil {
//		return err
//	}
//
//	// or pick the format from the file extension
//	err := exporter.WriteFile("out/reaction.csv", result)
package exporter
