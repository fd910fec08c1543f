// Package utils provides shared formatting helpers and request constants
package utils

import (
	"fmt"
	"time"
)

// FormatBytes converts bytes to human-readable format (e.g., "1.5 GB").
// Used for bucket usage and quota figures.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders an object size for the listing and the Info tab:
// two decimals, units up to TB, and "-" for empty objects and folders.
func FormatSize(size int64) string {
	if size <= 0 {
		return "-"
	}
	value := float64(size)
	n := 0
	for value >= 1024 && n < len(sizeUnits)-1 {
		value /= 1024
		n++
	}
	return fmt.Sprintf("%.2f %s", value, sizeUnits[n])
}

// FormatTime renders a timestamp for display, "-" when unknown.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// Percent returns part as a percentage of whole, 0 when whole is 0.
func Percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
