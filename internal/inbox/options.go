package inbox

import (
	"path/filepath"
	"strings"
	"time"
)

// Subdirectories that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Options configures the drop folder.
type Options struct {
	// Path is the watched directory. Only its top level is watched.
	Path string
	// Caregiver owns every patient created through the folder.
	Caregiver string
	// SettleDelay is how long a file's size and mtime must stay unchanged
	// before it is imported.
	SettleDelay    time.Duration
	IgnorePatterns []string
	IgnoreHidden   bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}

	// nil means defaults; an explicit empty slice keeps IgnoreHidden as given.
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.part",
			"*.crdownload",
			"~$*",
		}
		o.IgnoreHidden = true
	}
}

// shouldIgnore reports whether a file name is skipped. Only .csv files are
// ever imported.
func (o *Options) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if o.IgnoreHidden && strings.HasPrefix(base, ".") {
		return true
	}
	for _, pattern := range o.IgnorePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return !strings.EqualFold(filepath.Ext(base), ".csv")
}

// patientID derives the patient id from "<patient-id>.csv".
func patientID(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
