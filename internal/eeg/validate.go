package eeg

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/neurotunes/neurotunes-server/internal/genre"
)

// Validate checks the whole table and returns typed rows, or a *SchemaError
// listing every problem found. No partial result is returned.
func Validate(t *Table) ([]Row, error) {
	if t == nil || len(t.Header) == 0 {
		return nil, &SchemaError{Issues: []Issue{{Reason: ReasonNoHeader}}}
	}

	var issues []Issue
	positions := make(map[string]int, len(t.Header))
	dups := make(map[string]bool)
	for i, h := range t.Header {
		if _, ok := positions[h]; ok {
			dups[h] = true
			continue
		}
		positions[h] = i
	}

	for _, col := range columns {
		if _, ok := positions[col]; !ok {
			issues = append(issues, Issue{Column: col, Reason: ReasonMissingColumn})
		}
		if dups[col] {
			issues = append(issues, Issue{Column: col, Reason: ReasonDuplicate})
		}
	}
	if dups[LabelColumn] {
		issues = append(issues, Issue{Column: LabelColumn, Reason: ReasonDuplicate})
	}

	if len(t.Records) == 0 {
		issues = append(issues, Issue{Reason: ReasonNoRows})
	}
	if len(issues) > 0 {
		return nil, &SchemaError{Issues: issues}
	}

	labelPos, hasLabel := positions[LabelColumn]

	var emptyRows []int
	type key struct {
		col    int
		reason string
	}
	bad := make(map[key][]int)
	rows := make([]Row, len(t.Records))

	for r, rec := range t.Records {
		if isEmptyRecord(rec) {
			emptyRows = append(emptyRows, r)
			continue
		}
		for c, col := range columns {
			v, reason := parseMeasurement(cell(rec, positions[col]))
			if reason != "" {
				bad[key{c, reason}] = append(bad[key{c, reason}], r)
				continue
			}
			rows[r].Values[c/NumElectrodes][c%NumElectrodes] = v
		}
		if hasLabel {
			g, ok := parseLabel(cell(rec, labelPos))
			if !ok {
				bad[key{FeatureCount, ReasonLabelOutOfSet}] = append(bad[key{FeatureCount, ReasonLabelOutOfSet}], r)
				continue
			}
			rows[r].Label = g
		}
	}

	if len(emptyRows) > 0 {
		issues = append(issues, Issue{Reason: ReasonEmptyRow, Rows: emptyRows})
	}
	for c := 0; c <= FeatureCount; c++ {
		name := LabelColumn
		if c < FeatureCount {
			name = columns[c]
		}
		for _, reason := range []string{ReasonMissingValue, ReasonNotNumeric, ReasonNotFinite, ReasonLabelOutOfSet} {
			if rs, ok := bad[key{c, reason}]; ok {
				issues = append(issues, Issue{Column: name, Reason: reason, Rows: rs})
			}
		}
	}
	if len(issues) > 0 {
		return nil, &SchemaError{Issues: issues}
	}
	return rows, nil
}

func cell(rec []string, pos int) string {
	if pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func isEmptyRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseMeasurement(s string) (float64, string) {
	if s == "" {
		return 0, ReasonMissingValue
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Overflow comes back as ±Inf with ErrRange.
		if errors.Is(err, strconv.ErrRange) {
			return 0, ReasonNotFinite
		}
		return 0, ReasonNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ReasonNotFinite
	}
	return v, ""
}

// parseLabel accepts integers 1-5, including integral decimals such as "3.0".
func parseLabel(s string) (genre.Genre, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) {
		return 0, false
	}
	g, err := genre.FromLabel(int(v))
	if err != nil {
		return 0, false
	}
	return g, true
}
