package utils

import (
	"fmt"
	"strings"
)

// FormatFileSize converts a byte length into a human-readable unit string.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(bytes)
	unitIndex := 0
	for value >= 1024 && unitIndex < len(units)-1 {
		value /= 1024
		unitIndex++
	}
	if unitIndex == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	if value < 100 {
		formatted := fmt.Sprintf("%.1f", value)
		formatted = strings.TrimSuffix(formatted, ".0")
		return formatted + " " + units[unitIndex]
	}
	return fmt.Sprintf("%.0f %s", value, units[unitIndex])
}

// EstimateTokens approximates a token count from a byte total.
func EstimateTokens(totalBytes int64) int {
	if totalBytes <= 0 {
		return 0
	}
	return int((totalBytes + BytesPerToken - 1) / BytesPerToken)
}
