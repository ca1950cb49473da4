package engagement

import (
	"igengage/pkg/instagram"
)

// FeedClient is the platform surface the engager needs: one feed read and
// the four engagement mutations. *instagram.Client satisfies it; tests
// substitute fakes.
type FeedClient interface {
	FetchHashtagFeed(tag string, after string) (*instagram.HashtagResponse, error)
	LikePost(mediaID string) error
	FollowUser(userID string) error
	UnfollowUser(userID string) error
	CommentPost(mediaID string, text string) error
}
