// Package utils contains general helper functions used across contextkit.
package utils

import (
	"os"
	"path"
	"strings"
)

// Workspace file constants used across the project.
const (
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// GitDirectoryName is the name of the Git repository directory; it is never listed.
	GitDirectoryName = ".git"
)

const pathSegmentSeparator = "/"

// ToPosix converts backslashes to forward slashes and collapses repeated separators.
func ToPosix(value string) string {
	normalized := strings.ReplaceAll(value, "\\", pathSegmentSeparator)
	for strings.Contains(normalized, "//") {
		normalized = strings.ReplaceAll(normalized, "//", pathSegmentSeparator)
	}
	return normalized
}

// JoinRelative appends name to a workspace-relative parent path.
// An empty parent denotes the workspace root.
func JoinRelative(parent string, name string) string {
	if parent == "" {
		return ToPosix(name)
	}
	return ToPosix(parent + pathSegmentSeparator + name)
}

// SplitPathSegments splits a path on either separator and drops empty segments.
func SplitPathSegments(value string) []string {
	rawSegments := strings.Split(ToPosix(value), pathSegmentSeparator)
	segments := make([]string, 0, len(rawSegments))
	for _, segment := range rawSegments {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

// BaseName returns the last segment of a slash-separated path.
func BaseName(value string) string {
	return path.Base(ToPosix(value))
}

// CompareNames orders names case-insensitively, falling back to a byte comparison
// so that the order is total.
func CompareNames(left string, right string) int {
	if comparison := strings.Compare(strings.ToLower(left), strings.ToLower(right)); comparison != 0 {
		return comparison
	}
	return strings.Compare(left, right)
}

// DeduplicateStrings removes duplicate values from a slice while preserving order.
// The first occurrence of each unique value is kept.
func DeduplicateStrings(values []string) []string {
	encounteredValues := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, exists := encounteredValues[value]; !exists {
			encounteredValues[value] = struct{}{}
			result = append(result, value)
		}
	}
	return result
}

func directoryExists(directoryPath string) bool {
	info, statError := os.Stat(directoryPath)
	return statError == nil && info.IsDir()
}
