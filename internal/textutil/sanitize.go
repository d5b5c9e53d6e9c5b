package textutil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSegment is returned for user, project or folder names that
// cannot be used as a single path element.
var ErrInvalidSegment = errors.New("invalid path segment")

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	out := strings.TrimSpace(fileNameReplacer.Replace(name))
	if out == "." || out == ".." {
		return ""
	}
	return out
}

// UnderscoreSpaces replaces every space with an underscore.
func UnderscoreSpaces(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// ValidateSegment checks that value names exactly one directory below its
// parent. kind is used in the error message ("user", "project").
func ValidateSegment(kind, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalidSegment, kind)
	case value == "." || value == "..":
		return fmt.Errorf("%w: %s %q", ErrInvalidSegment, kind, value)
	case strings.ContainsAny(value, "/\\\x00"):
		return fmt.Errorf("%w: %s %q contains a path separator", ErrInvalidSegment, kind, value)
	}
	return nil
}
