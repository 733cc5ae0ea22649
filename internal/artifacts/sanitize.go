package artifacts

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

const maxBaseLen = 48

// SanitizeName turns an uploaded filename stem into something safe to use
// in artifact names and inside engine filter arguments.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	if cleaned == "" {
		return "video"
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
		return true
	}
	switch r {
	case '-', '_', '.':
		return true
	default:
		return false
	}
}

// BaseName is the sanitized stem of an upload's original filename.
func BaseName(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return SanitizeName(stem, maxBaseLen)
}

// ValidateFilename accepts a bare file name only: no separators, no
// traversal, nothing hidden.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("filename is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("filename cannot contain path separators or traversal")
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("filename cannot be hidden")
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("filename must be a bare name")
	}
	return nil
}
