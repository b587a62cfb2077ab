package utils

import "time"

// PageInfo is the cursor-pagination envelope shared by every paged listing.
type PageInfo struct {
	HasMore    bool    `json:"hasMore"`
	NextCursor *string `json:"nextCursor"`
}

const cursorLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatCursor renders a createdAt timestamp as the wire cursor.
func FormatCursor(t time.Time) string {
	return t.UTC().Format(cursorLayout)
}

// BuildPageInfo computes hasMore/nextCursor for a page fetched with
// limit+1. last is the createdAt of the final item kept on the page.
func BuildPageInfo(fetched, limit int, last time.Time) PageInfo {
	if fetched <= limit {
		return PageInfo{}
	}
	cursor := FormatCursor(last)
	return PageInfo{HasMore: true, NextCursor: &cursor}
}
