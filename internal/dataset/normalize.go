package dataset

import "strings"

var columnReplacer = strings.NewReplacer(" ", "_", "/", "_")

// NormalizeColumn trims, lowercases and replaces spaces and slashes with
// underscores. The same rule applies to every storage format.
func NormalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return columnReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}
