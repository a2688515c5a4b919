package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// coordinatePartRegex matches groupId, artifactId, classifier and extension
// tokens as they appear in repository paths.
var coordinatePartRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]*$`)

// ValidateCoordinatePart validates one component of an artifact coordinate.
// Components end up as local repository path segments, so the rules reject
// anything that could escape the repository directory:
//   - No empty values
//   - No control characters or path separators
//   - No ".." sequences
//   - Maximum length of 256 characters
func ValidateCoordinatePart(field, value string) error {
	if value == "" {
		return New(ErrCodeInvalidCoordinate, "%s cannot be empty", field)
	}
	if len(value) > 256 {
		return New(ErrCodeInvalidCoordinate, "%s too long (max 256 characters)", field)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidCoordinate, "%s contains invalid control characters", field)
		}
	}
	if strings.Contains(value, "..") {
		return New(ErrCodeInvalidCoordinate, "%s contains invalid characters: %q", field, "..")
	}
	if !coordinatePartRegex.MatchString(value) {
		return New(ErrCodeInvalidCoordinate, "invalid %s: %q", field, value)
	}
	return nil
}

// ValidateVersionString validates a version token before it is used as a
// path segment. Ranges are allowed here since they are resolved before any
// path is formed.
func ValidateVersionString(value string) error {
	if value == "" {
		return New(ErrCodeInvalidCoordinate, "version cannot be empty")
	}
	for _, r := range value {
		if unicode.IsControl(r) || r == '/' || r == '\\' {
			return New(ErrCodeInvalidCoordinate, "version contains invalid characters: %q", value)
		}
	}
	if strings.Contains(value, "..") {
		return New(ErrCodeInvalidCoordinate, "version contains invalid characters: %q", "..")
	}
	return nil
}

// ValidatePath validates a file path within a repository for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a repository URL.
// Remote repositories must use http, https or file.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	for _, scheme := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(rawURL, scheme) {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "URL must use http, https or file scheme")
}
