package api

// API limits and constants.
const (
	// defaultMaxUploadBytes caps batch upload bodies (8 MB) when unset.
	defaultMaxUploadBytes = 8 << 20

	// maxPageSize bounds list and search results.
	maxPageSize = 100
)

// Upload content types.
const (
	contentTypeCSV  = "text/csv"
	contentTypeJSON = "application/json"
)

var bearerSecurity = []map[string][]string{{"bearer": {}}}
