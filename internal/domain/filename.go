package domain

import "strings"

// ValidFilename reports whether name is an acceptable single path
// segment. The rules apply uniformly to outbound listings and inbound
// events:
//   - non-empty
//   - no ".." substring (path traversal)
//   - does not start with '/' or '\'
//   - no drive-letter prefix ("X:")
//   - no '/' or '\' anywhere (single-level only)
func ValidFilename(name string) bool {
	if name == "" {
		return false
	}

	if strings.Contains(name, "..") {
		return false
	}

	if name[0] == '/' || name[0] == '\\' {
		return false
	}

	// Windows drive letter (C:, D:, ...)
	if len(name) >= 2 && name[1] == ':' {
		return false
	}

	if strings.ContainsAny(name, "/\\") {
		return false
	}

	return true
}
