package eeg

import (
	"fmt"
	"strconv"
	"strings"

	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
)

// Issue reasons.
const (
	ReasonNoHeader       = "upload has no header row"
	ReasonNoRows         = "batch contains no rows"
	ReasonMissingColumn  = "missing column"
	ReasonDuplicate      = "duplicate column"
	ReasonEmptyRow       = "row is empty"
	ReasonMissingValue   = "missing value"
	ReasonNotNumeric     = "not a number"
	ReasonNotFinite      = "not a finite number"
	ReasonLabelOutOfSet  = "label must be an integer 1-5"
	ReasonUnsupported    = "value must be a number or string"
	maxRowsInDescription = 5
)

// Issue is one problem with an upload. Rows holds 0-based data-row indices;
// it is empty for column-level problems.
type Issue struct {
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
	Rows   []int  `json:"rows,omitempty"`
}

func (i Issue) String() string {
	var b strings.Builder
	if i.Column != "" {
		b.WriteString(i.Column + ": ")
	}
	b.WriteString(i.Reason)
	if len(i.Rows) > 0 {
		b.WriteString(" (rows ")
		for n, r := range i.Rows {
			if n == maxRowsInDescription {
				fmt.Fprintf(&b, ", +%d more", len(i.Rows)-n)
				break
			}
			if n > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Itoa(r))
		}
		b.WriteString(")")
	}
	return b.String()
}

// SchemaError rejects a whole batch. It matches errors.ErrSchema.
type SchemaError struct {
	Issues []Issue
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return "schema invalid: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match the domain sentinel.
func (e *SchemaError) Unwrap() error {
	return domainerrors.ErrSchema
}

// DomainError converts to the API-facing error with issues as details.
func (e *SchemaError) DomainError() *domainerrors.Error {
	return domainerrors.Wrap(e, domainerrors.CodeSchema, "upload does not match the measurement schema").
		WithDetails(e.Issues)
}

// HasRows reports whether any issue names the given data row.
func (e *SchemaError) HasRows(row int) bool {
	for _, is := range e.Issues {
		for _, r := range is.Rows {
			if r == row {
				return true
			}
		}
	}
	return false
}
