package app

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+62|62|0)8[1-9][0-9]{6,10}`)
)

// extractCandidateName derives a display name from the uploaded filename:
// "budi_santoso-cv.pdf" becomes "Budi Santoso Cv".
func extractCandidateName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	words := strings.Fields(base)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		if len(runes) > 0 {
			runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// extractEmail returns the first email address in text, or "Not found".
func extractEmail(text string) string {
	if m := emailPattern.FindString(text); m != "" {
		return m
	}
	return "Not found"
}

// extractPhone returns the first Indonesian mobile number in text, or
// "Not found".
func extractPhone(text string) string {
	if m := phonePattern.FindString(text); m != "" {
		return m
	}
	return "Not found"
}
