package app

import "strings"

// rowKeywords start statements that produce a result set.
var rowKeywords = []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES"}

func returnsRows(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	if strings.Contains(q, " RETURNING ") {
		return true
	}
	for _, kw := range rowKeywords {
		if strings.HasPrefix(q, kw) {
			return true
		}
	}
	return false
}
