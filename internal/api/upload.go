package api

import (
	"bytes"
	"encoding/json/v2"
	"mime"
	"strings"

	"github.com/neurotunes/neurotunes-server/internal/eeg"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
)

// jsonUpload is the JSON form of a batch: one object per row keyed by column.
type jsonUpload struct {
	Rows []map[string]any `json:"rows"`
}

// parseUpload turns a raw request body into an unvalidated table. A missing
// content type is sniffed from the first non-space byte.
func parseUpload(contentType string, body []byte) (*eeg.Table, error) {
	mediaType := ""
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, domainerrors.Validationf("invalid Content-Type %q", contentType)
		}
		mediaType = mt
	} else if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		mediaType = contentTypeJSON
	} else {
		mediaType = contentTypeCSV
	}

	switch {
	case mediaType == contentTypeJSON || strings.HasSuffix(mediaType, "+json"):
		var upload jsonUpload
		if err := json.Unmarshal(body, &upload); err != nil {
			return nil, domainerrors.Validationf("invalid JSON upload: %v", err)
		}
		if upload.Rows == nil {
			return nil, domainerrors.Validation(`JSON upload must have a "rows" array`)
		}
		return eeg.TableFromRecords(upload.Rows)
	case mediaType == contentTypeCSV, mediaType == "application/csv", mediaType == "text/plain":
		return eeg.ReadCSV(bytes.NewReader(body))
	default:
		return nil, domainerrors.Validationf("unsupported Content-Type %q: use text/csv or application/json", mediaType)
	}
}
