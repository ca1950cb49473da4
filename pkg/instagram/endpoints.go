package instagram

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// HashtagEndpoint is the endpoint pattern for hashtag feeds
	HashtagEndpoint = "/api/v1/tags/web_info/"

	// LikeEndpoint is the endpoint pattern for liking a post
	LikeEndpoint = "/api/v1/web/likes/%s/like/"

	// FollowEndpoint is the endpoint pattern for following a user
	FollowEndpoint = "/api/v1/friendships/create/%s/"

	// UnfollowEndpoint is the endpoint pattern for unfollowing a user
	UnfollowEndpoint = "/api/v1/friendships/destroy/%s/"

	// CommentEndpoint is the endpoint pattern for commenting on a post
	CommentEndpoint = "/api/v1/web/comments/%s/add/"
)

// GetHashtagFeedURL constructs the URL for fetching a hashtag's media feed
func GetHashtagFeedURL(tag string, after string) string {
	params := url.Values{}
	params.Set("tag_name", NormalizeHashtag(tag))
	if after != "" {
		params.Set("max_id", after)
	}

	return fmt.Sprintf("%s%s?%s", BaseURL, HashtagEndpoint, params.Encode())
}

// GetLikeURL constructs the URL for liking a post by media ID
func GetLikeURL(mediaID string) string {
	return BaseURL + fmt.Sprintf(LikeEndpoint, mediaID)
}

// GetFollowURL constructs the URL for following a user by ID
func GetFollowURL(userID string) string {
	return BaseURL + fmt.Sprintf(FollowEndpoint, userID)
}

// GetUnfollowURL constructs the URL for unfollowing a user by ID
func GetUnfollowURL(userID string) string {
	return BaseURL + fmt.Sprintf(UnfollowEndpoint, userID)
}

// GetCommentURL constructs the URL for commenting on a post by media ID
func GetCommentURL(mediaID string) string {
	return BaseURL + fmt.Sprintf(CommentEndpoint, mediaID)
}

// GetPostURL constructs the public URL for a specific post
func GetPostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// NormalizeHashtag strips a leading # and lowercases the tag
func NormalizeHashtag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "#")
	return strings.ToLower(tag)
}

// IsValidHashtag checks whether a normalized tag is usable in a feed request
func IsValidHashtag(tag string) bool {
	tag = NormalizeHashtag(tag)
	if tag == "" || len(tag) > 100 {
		return false
	}

	for _, char := range tag {
		if !((char >= 'a' && char <= 'z') ||
			(char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}

	return true
}
