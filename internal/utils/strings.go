// Package utils holds small helpers shared by handlers and services.
package utils

import "strings"

// ParseCSV splits a comma-separated query value into trimmed, non-empty,
// lowercased items. Returns nil when nothing remains.
func ParseCSV(s string) []string {
	var result []string
	for _, v := range strings.Split(s, ",") {
		if trimmed := strings.ToLower(strings.TrimSpace(v)); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
