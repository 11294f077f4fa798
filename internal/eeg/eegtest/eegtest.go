// Package eegtest builds measurement rows and uploads for tests.
package eegtest

import (
	"strconv"
	"strings"

	"github.com/neurotunes/neurotunes-server/internal/eeg"
	"github.com/neurotunes/neurotunes-server/internal/genre"
)

// Uniform returns a row where every electrode of a band reads the same value.
func Uniform(delta, theta, alpha, beta, gamma float64) eeg.Row {
	var r eeg.Row
	for b, v := range []float64{delta, theta, alpha, beta, gamma} {
		for e := range eeg.NumElectrodes {
			r.Values[b][e] = v
		}
	}
	return r
}

// Labelled returns r with its Melody # set.
func Labelled(r eeg.Row, g genre.Genre) eeg.Row {
	r.Label = g
	return r
}

// Table renders rows as an upload table. A Melody # column is added when
// any row is labelled.
func Table(rows ...eeg.Row) *eeg.Table {
	labelled := false
	for _, r := range rows {
		if r.HasLabel() {
			labelled = true
		}
	}

	header := eeg.Columns()
	if labelled {
		header = append(header, eeg.LabelColumn)
	}
	t := &eeg.Table{Header: header}
	for _, r := range rows {
		rec := make([]string, 0, len(header))
		for _, v := range r.Features() {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if labelled {
			rec = append(rec, strconv.Itoa(r.Label.Label()))
		}
		t.Records = append(t.Records, rec)
	}
	return t
}

// CSV renders rows as CSV text.
func CSV(rows ...eeg.Row) string {
	t := Table(rows...)
	var b strings.Builder
	b.WriteString(quoteAll(t.Header))
	for _, rec := range t.Records {
		b.WriteString(quoteAll(rec))
	}
	return b.String()
}

// Records renders rows as decoded JSON objects.
func Records(rows ...eeg.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	cols := eeg.Columns()
	for _, r := range rows {
		m := make(map[string]any, len(cols)+1)
		for i, v := range r.Features() {
			m[cols[i]] = v
		}
		if r.HasLabel() {
			m[eeg.LabelColumn] = float64(r.Label.Label())
		}
		out = append(out, m)
	}
	return out
}

func quoteAll(fields []string) string {
	q := make([]string, len(fields))
	for i, f := range fields {
		if strings.ContainsAny(f, ",\"# ") {
			f = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
		q[i] = f
	}
	return strings.Join(q, ",") + "\n"
}
