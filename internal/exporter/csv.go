package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"quotepulse/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures CSV writing behavior
type CSVOptions struct {
	BOMPrefix bool // UTF-8 BOM for Excel
}

// WriteCSV writes the window table of result to w
func WriteCSV(w io.Writer, result domain.AlignmentResult, opts CSVOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(WindowHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range records(WindowRows(result)) {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Write dispatches to the writer for f
func Write(w io.Writer, f Format, result domain.AlignmentResult) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, result, CSVOptions{BOMPrefix: true})
	case FormatXLSX:
		return WriteXLSX(w, result)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteFile writes result to path, choosing the format from the extension.
// Missing parent directories are created.
func WriteFile(path string, result domain.AlignmentResult) (err error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	return Write(file, f, result)
}
