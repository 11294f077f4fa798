package eeg

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
)

// Table is an unvalidated upload: a header row plus string cells.
type Table struct {
	Header  []string
	Records [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// ReadCSV parses a CSV upload. Malformed CSV and a missing header are
// reported as schema errors. Ragged records are kept so the validator can
// point at the rows that are short.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Issues: []Issue{{Reason: ReasonNoHeader}}}
	}
	if err != nil {
		return nil, malformed(err)
	}

	t := &Table{Header: normalizeHeader(header)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// TableFromRecords builds a table from decoded JSON rows. The header is the
// sorted union of keys across rows; a key absent from a row yields an empty cell.
func TableFromRecords(rows []map[string]any) (*Table, error) {
	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			seen[strings.TrimSpace(k)] = true
		}
	}
	header := make([]string, 0, len(seen))
	for k := range seen {
		header = append(header, k)
	}
	slices.Sort(header)

	t := &Table{Header: header, Records: make([][]string, 0, len(rows))}
	// badRows[i] lists the rows whose header[i] cell is not a scalar.
	badRows := make([][]int, len(header))
	for r, row := range rows {
		trimmed := make(map[string]any, len(row))
		for k, v := range row {
			trimmed[strings.TrimSpace(k)] = v
		}
		rec := make([]string, len(header))
		for i, col := range header {
			cell, ok := cellString(trimmed[col])
			if !ok {
				badRows[i] = append(badRows[i], r)
			}
			rec[i] = cell
		}
		t.Records = append(t.Records, rec)
	}

	var issues []Issue
	for i, r := range badRows {
		if len(r) > 0 {
			issues = append(issues, Issue{Column: header[i], Reason: ReasonUnsupported, Rows: r})
		}
	}
	if len(issues) > 0 {
		return nil, &SchemaError{Issues: issues}
	}
	return t, nil
}

func cellString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func malformed(err error) *SchemaError {
	return &SchemaError{Issues: []Issue{{Reason: "malformed csv: " + err.Error()}}}
}
