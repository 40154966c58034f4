package shared

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldUsername returns the case-folded form used for username comparisons.
// A Caser keeps state, so one is built per call.
func FoldUsername(username string) string {
	return cases.Fold().String(strings.TrimSpace(username))
}

// IsAdministrator reports whether username is the reserved administrator,
// compared case-insensitively.
func IsAdministrator(username string) bool {
	folded := FoldUsername(username)
	return folded != "" && folded == FoldUsername(AdminUsername)
}
