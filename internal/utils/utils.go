package utils

import (
	"strings"

	"github.com/apex/log/handlers/cli"
)

var normalPadding = cli.Default.Padding

// Indent indents apex log line to supplied level
func Indent(f func(s string), level int) func(string) {
	return func(s string) {
		cli.Default.Padding = normalPadding * level
		f(s)
		cli.Default.Padding = normalPadding
	}
}

// StrSliceHas returns true if string slice has an exact given string (ignoring case)
func StrSliceHas(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// Difference returns the elements of a that are not in b, keeping duplicates
// beyond the number of matches b provides.
func Difference(a, b []string) []string {
	seen := make(map[string]int, len(b))
	for _, x := range b {
		seen[x]++
	}
	diff := []string{}
	for _, x := range a {
		if seen[x] > 0 {
			seen[x]--
			continue
		}
		diff = append(diff, x)
	}
	return diff
}
