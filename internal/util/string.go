package util

import "strings"

// TruncateString truncates s to maxRunes runes, appending "..." when cut.
func TruncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// GenreSlug lowercases a genre label and hyphenates only its first space,
// so "Massively Multiplayer Online" becomes "massively-multiplayer online".
// Dashboard clients key chart series on this exact format.
func GenreSlug(label string) string {
	return strings.Replace(strings.ToLower(label), " ", "-", 1)
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
