// Package utils holds small helpers shared by the HTTP handlers,
// mostly around parsing optional query parameters.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// LimitParam parses an optional `limit` query value. Absent, malformed
// or negative values all collapse to 0, which callers treat as "no
// limit" when slicing a message window.
func LimitParam(s string) int {
	n := AtoiDefault(s, 0)
	if n < 0 {
		return 0
	}
	return n
}
