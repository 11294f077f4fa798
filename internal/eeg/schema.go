// Package eeg models band-power measurement batches and validates them
// against the band x electrode recording schema.
package eeg

// Band is a brain-wave frequency band.
type Band int

// Bands in canonical order.
const (
	Delta Band = iota
	Theta
	Alpha
	Beta
	Gamma
)

// Electrode is a sensor placement site.
type Electrode int

// Electrodes in canonical order.
const (
	TP9 Electrode = iota
	AF7
	AF8
	TP10
)

const (
	// NumBands is the number of frequency bands.
	NumBands = 5
	// NumElectrodes is the number of electrode sites.
	NumElectrodes = 4
	// FeatureCount is the number of required measurement columns.
	FeatureCount = NumBands * NumElectrodes

	// LabelColumn is the optional supervised genre label (1-5).
	LabelColumn = "Melody #"
)

var (
	bandNames      = [NumBands]string{"Delta", "Theta", "Alpha", "Beta", "Gamma"}
	electrodeNames = [NumElectrodes]string{"TP9", "AF7", "AF8", "TP10"}

	// columns holds every required column in band-major order.
	columns = func() []string {
		out := make([]string, 0, FeatureCount)
		for b := range NumBands {
			for e := range NumElectrodes {
				out = append(out, ColumnName(Band(b), Electrode(e)))
			}
		}
		return out
	}()

	columnIndex = func() map[string]int {
		m := make(map[string]int, FeatureCount)
		for i, c := range columns {
			m[c] = i
		}
		return m
	}()
)

func (b Band) String() string { return bandNames[b] }

func (e Electrode) String() string { return electrodeNames[e] }

// ColumnName returns the upload column for a band/electrode pair, e.g. "Beta_AF7_mean".
func ColumnName(b Band, e Electrode) string {
	return bandNames[b] + "_" + electrodeNames[e] + "_mean"
}

// Columns returns the required columns in canonical band-major order
// (Delta_TP9_mean, Delta_AF7_mean, ... Gamma_TP10_mean).
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// FeatureIndex returns the canonical position of a column, or false if it is
// not a measurement column.
func FeatureIndex(column string) (int, bool) {
	i, ok := columnIndex[column]
	return i, ok
}
