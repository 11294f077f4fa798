package scoring

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Metric is a score that may be undefined (focus with a zero Beta mean).
// The zero value is Undefined. Undefined encodes as JSON null.
type Metric struct {
	value   float64
	defined bool
}

// Undefined is the sentinel for a score that cannot be computed.
var Undefined = Metric{}

// Defined wraps v. Non-finite values are treated as undefined.
func Defined(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Metric{value: v, defined: true}
}

// Value returns the score and whether it is defined.
func (m Metric) Value() (float64, bool) {
	return m.value, m.defined
}

// IsDefined reports whether the score has a value.
func (m Metric) IsDefined() bool {
	return m.defined
}

// Or returns the value, or fallback when undefined.
func (m Metric) Or(fallback float64) float64 {
	if !m.defined {
		return fallback
	}
	return m.value
}

// Ptr returns nil for undefined, which is how API payloads carry it.
func (m Metric) Ptr() *float64 {
	if !m.defined {
		return nil
	}
	v := m.value
	return &v
}

func (m Metric) String() string {
	if !m.defined {
		return "undefined"
	}
	return strconv.FormatFloat(m.value, 'g', -1, 64)
}

// MarshalJSON encodes a number or null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = Defined(v)
	return nil
}
