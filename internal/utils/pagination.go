// Package utils holds small helpers shared by the HTTP layer.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// not a valid int. Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Window returns the [start, end) bounds of 1-based page within total items,
// plus the page count. Pages past the end yield an empty window. page and
// pageSize must be >= 1.
func Window(total, page, pageSize int) (start, end, pages int) {
	pages = (total + pageSize - 1) / pageSize
	start = min((page-1)*pageSize, total)
	end = min(start+pageSize, total)
	return start, end, pages
}
