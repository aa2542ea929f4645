package workflows

import (
	"path/filepath"
	"strings"
)

// Supported reports whether name ends in one of exts, ignoring case.
// Extensions may be given with or without the leading dot.
func Supported(name string, exts []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
