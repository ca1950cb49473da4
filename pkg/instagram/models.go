package instagram

// HashtagResponse is the top-level response for a hashtag feed request
type HashtagResponse struct {
	RequiresToLogin bool        `json:"requires_to_login"`
	Data            HashtagData `json:"data"`
	Status          string      `json:"status"`
}

// HashtagData wraps the hashtag payload
type HashtagData struct {
	Hashtag Hashtag `json:"hashtag"`
}

// Hashtag holds the media feed for a tag
type Hashtag struct {
	Name               string             `json:"name"`
	EdgeHashtagToMedia EdgeHashtagToMedia `json:"edge_hashtag_to_media"`
}

// EdgeHashtagToMedia contains the paginated media edges for a hashtag
type EdgeHashtagToMedia struct {
	Count    int      `json:"count"`
	PageInfo PageInfo `json:"page_info"`
	Edges    []Edge   `json:"edges"`
}

// PageInfo holds cursor-based pagination state
type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

// Edge wraps a single media node
type Edge struct {
	Node Node `json:"node"`
}

// Node represents a single post in a hashtag feed
type Node struct {
	ID         string `json:"id"`
	Shortcode  string `json:"shortcode"`
	DisplayURL string `json:"display_url"`
	IsVideo    bool   `json:"is_video"`
	Owner      Owner  `json:"owner"`
}

// Owner identifies the account that published a post
type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ActionResponse is the response body for like/follow/comment mutations
type ActionResponse struct {
	Status string `json:"status"`
}

// OK reports whether the mutation was accepted
func (r *ActionResponse) OK() bool {
	return r.Status == "ok"
}
