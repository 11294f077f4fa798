package eeg

import "github.com/neurotunes/neurotunes-server/internal/genre"

// Row is one validated observation: all band measurements plus an
// optional genre label.
type Row struct {
	Values [NumBands][NumElectrodes]float64 `json:"values"`
	// Label is zero when the upload carried no Melody # column.
	Label genre.Genre `json:"label,omitzero"`
}

// Value returns a single measurement.
func (r Row) Value(b Band, e Electrode) float64 {
	return r.Values[b][e]
}

// BandMean is the arithmetic mean over the four electrodes.
func (r Row) BandMean(b Band) float64 {
	v := r.Values[b]
	return (v[0] + v[1] + v[2] + v[3]) / NumElectrodes
}

// HasLabel reports whether the row carries a supervised genre label.
func (r Row) HasLabel() bool {
	return r.Label.Valid()
}

// Features returns the measurements in canonical column order.
func (r Row) Features() []float64 {
	out := make([]float64, 0, FeatureCount)
	for b := range NumBands {
		out = append(out, r.Values[b][:]...)
	}
	return out
}

// Feature looks up a measurement by column name.
func (r Row) Feature(column string) (float64, bool) {
	i, ok := columnIndex[column]
	if !ok {
		return 0, false
	}
	return r.Values[i/NumElectrodes][i%NumElectrodes], true
}

// RowFromFeatures builds a Row from FeatureCount values in canonical order.
func RowFromFeatures(features []float64, label genre.Genre) (Row, bool) {
	if len(features) != FeatureCount {
		return Row{}, false
	}
	var r Row
	for i, v := range features {
		r.Values[i/NumElectrodes][i%NumElectrodes] = v
	}
	r.Label = label
	return r, true
}
