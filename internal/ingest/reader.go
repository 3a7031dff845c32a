package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RecordReader yields raw records from one tabular source, one row at a
// time, so no source is ever materialized whole. Read returns io.EOF after
// the last record.
type RecordReader interface {
	Header() []string
	Read() ([]string, error)
	Close() error
}

// OpenReader opens the right reader for a source file by extension.
func OpenReader(path string) (RecordReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return openCSVReader(path)
	case ".xlsx":
		return openXLSXReader(path)
	default:
		return nil, fmt.Errorf("unsupported source file format: %s", path)
	}
}

type csvReader struct {
	file   *os.File
	reader *csv.Reader
	header []string
}

func openCSVReader(path string) (*csvReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}

	r := csv.NewReader(file)
	// Field-count mismatches are handled per row as coercion rejects, not as
	// hard parse failures.
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read source header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	return &csvReader{file: file, reader: r, header: header}, nil
}

func (r *csvReader) Header() []string {
	return r.header
}

func (r *csvReader) Read() ([]string, error) {
	return r.reader.Read()
}

func (r *csvReader) Close() error {
	return r.file.Close()
}

type xlsxReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	header []string
}

func openXLSXReader(path string) (*xlsxReader, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open source workbook: %w", err)
	}

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		file.Close()
		return nil, fmt.Errorf("source workbook has no sheets: %s", path)
	}

	// The data drop convention is a single data sheet per workbook.
	rows, err := file.Rows(sheets[0])
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open sheet row cursor: %w", err)
	}

	if !rows.Next() {
		rows.Close()
		file.Close()
		return nil, fmt.Errorf("source workbook is empty: %s", path)
	}
	header, err := rows.Columns()
	if err != nil {
		rows.Close()
		file.Close()
		return nil, fmt.Errorf("read source header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	return &xlsxReader{file: file, rows: rows, header: header}, nil
}

func (r *xlsxReader) Header() []string {
	return r.header
}

func (r *xlsxReader) Read() ([]string, error) {
	if !r.rows.Next() {
		if err := r.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	record, err := r.rows.Columns()
	if err != nil {
		return nil, err
	}
	// excelize drops trailing empty cells; pad to the header width so the
	// coercion path sees a full record.
	for len(record) < len(r.header) {
		record = append(record, "")
	}
	return record, nil
}

func (r *xlsxReader) Close() error {
	r.rows.Close()
	return r.file.Close()
}
