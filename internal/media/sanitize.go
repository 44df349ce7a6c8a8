package media

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	unsafeChars         = regexp.MustCompile(`[^\w.-]`)
	underscoreRuns      = regexp.MustCompile(`_+`)
	ordinalSuffix       = regexp.MustCompile(`_\d+$`)
	duplicateWordSuffix = regexp.MustCompile(`(?i)_(copy|final|new|old|backup)$`)
)

// SanitizeFilename rewrites a filename so it satisfies the staging host's
// naming constraints: whitespace and special characters become underscores,
// runs of underscores collapse, and the extension is lowercased.
func SanitizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)

	ext := filepath.Ext(filename)
	name := strings.TrimSpace(strings.TrimSuffix(filename, ext))

	name = unsafeChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	return name + strings.ToLower(ext)
}

// CleanCaptionSeed strips suffixes that file managers append to duplicated
// files, so "sunset_2" and "sunset_copy" both caption as "sunset".
func CleanCaptionSeed(name string) string {
	cleaned := ordinalSuffix.ReplaceAllString(name, "")
	cleaned = duplicateWordSuffix.ReplaceAllString(cleaned, "")
	return cleaned
}
