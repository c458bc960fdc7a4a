package types

// PageInfo carries cursor-pagination state for list endpoints.
// NextCursor is an opaque token (an RFC3339Nano created_at timestamp for the
// job history listing); clients pass it back verbatim to fetch the next page.
type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}
