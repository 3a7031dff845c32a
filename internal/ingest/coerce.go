package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "vendorperf/internal/errors"
	"vendorperf/internal/schema"
)

// dateLayouts are the formats accepted in raw date columns. Values are
// normalized to ISO-8601 before they reach the store.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
}

const storedDateLayout = "2006-01-02"

// headerMap maps declared source columns to their position in the raw
// header.
type headerMap map[string]int

// ValidateHeader checks the raw header against the declared shape. A
// missing or extra column is a schema violation, fatal for the source; the
// error names the source and the offending column.
func ValidateHeader(tbl schema.Table, header []string) (headerMap, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[name] = i
	}

	hm := make(headerMap, len(header))
	for _, col := range tbl.SourceColumns() {
		pos, ok := positions[col.Name]
		if !ok {
			return nil, apperrors.NewSchemaError(tbl.Name,
				fmt.Sprintf("source %s is missing column %q", tbl.Name, col.Name)).
				WithContext("column", col.Name)
		}
		hm[col.Name] = pos
		delete(positions, col.Name)
	}

	for name := range positions {
		return nil, apperrors.NewSchemaError(tbl.Name,
			fmt.Sprintf("source %s has undeclared column %q", tbl.Name, name)).
			WithContext("column", name)
	}

	return hm, nil
}

// CoerceRow converts one raw record into store values in declared column
// order. Synthetic columns receive seq. Any unparsable or illegally-empty
// value fails the whole row; the caller skips and counts it.
func CoerceRow(tbl schema.Table, hm headerMap, record []string, seq int64) ([]interface{}, error) {
	values := make([]interface{}, 0, len(tbl.Columns))
	for _, col := range tbl.Columns {
		if col.Synthetic {
			values = append(values, seq)
			continue
		}

		pos := hm[col.Name]
		if pos >= len(record) {
			return nil, apperrors.NewCoercionError(tbl.Name, col.Name,
				fmt.Errorf("record has %d fields, column at position %d", len(record), pos))
		}

		v, err := coerceValue(col, strings.TrimSpace(record[pos]))
		if err != nil {
			return nil, apperrors.NewCoercionError(tbl.Name, col.Name, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func coerceValue(col schema.Column, raw string) (interface{}, error) {
	if raw == "" {
		if col.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("empty value in non-nullable column")
	}

	switch col.Type {
	case schema.TypeInteger:
		return coerceInteger(raw)
	case schema.TypeDecimal:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("not a decimal: %q", raw)
		}
		return v, nil
	case schema.TypeDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Format(storedDateLayout), nil
			}
		}
		return nil, fmt.Errorf("not a date: %q", raw)
	default:
		return raw, nil
	}
}

// coerceInteger accepts plain integers and integral decimals ("12.0"),
// which some upstream exports emit for count columns.
func coerceInteger(raw string) (int64, error) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return int64(f), nil
}
