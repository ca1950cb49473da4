package engagement

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igengage/pkg/config"
	"igengage/pkg/instagram"
	"igengage/pkg/logger"
	"igengage/pkg/quota"
	"igengage/pkg/report"
	"igengage/pkg/schedule"
)

// fakeClient serves a canned feed and counts mutations.
type fakeClient struct {
	feed *instagram.HashtagResponse

	likes     []string
	follows   []string
	unfollows []string
	comments  map[string]string

	likeErr      error
	failFollow   map[string]bool
	failUnfollow map[string]bool
}

func newFakeClient(posts int) *fakeClient {
	feed := &instagram.HashtagResponse{Status: "ok"}
	for i := 0; i < posts; i++ {
		feed.Data.Hashtag.EdgeHashtagToMedia.Edges = append(feed.Data.Hashtag.EdgeHashtagToMedia.Edges, instagram.Edge{
			Node: instagram.Node{
				ID:        fmt.Sprintf("media%d", i),
				Shortcode: fmt.Sprintf("SC%d", i),
				Owner:     instagram.Owner{ID: fmt.Sprintf("user%d", i), Username: fmt.Sprintf("owner%d", i)},
			},
		})
	}
	return &fakeClient{
		feed:         feed,
		comments:     make(map[string]string),
		failFollow:   make(map[string]bool),
		failUnfollow: make(map[string]bool),
	}
}

func (f *fakeClient) FetchHashtagFeed(tag string, after string) (*instagram.HashtagResponse, error) {
	return f.feed, nil
}

func (f *fakeClient) LikePost(mediaID string) error {
	if f.likeErr != nil {
		return f.likeErr
	}
	f.likes = append(f.likes, mediaID)
	return nil
}

func (f *fakeClient) FollowUser(userID string) error {
	if f.failFollow[userID] {
		return fmt.Errorf("follow rejected for %s", userID)
	}
	f.follows = append(f.follows, userID)
	return nil
}

func (f *fakeClient) UnfollowUser(userID string) error {
	if f.failUnfollow[userID] {
		return fmt.Errorf("unfollow rejected for %s", userID)
	}
	f.unfollows = append(f.unfollows, userID)
	return nil
}

func (f *fakeClient) CommentPost(mediaID string, text string) error {
	f.comments[mediaID] = text
	return nil
}

// memorySink captures records for assertions.
type memorySink struct {
	attempts []schedule.Attempt
	sessions []report.SessionSummary
}

func (m *memorySink) RecordAttempt(a schedule.Attempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memorySink) RecordSession(s report.SessionSummary) error {
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *memorySink) Close() error { return nil }

func noWait(ctx context.Context, d time.Duration) error { return ctx.Err() }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Targeting.Hashtags = []string{"sunset"}
	cfg.Targeting.MaxLikesPerTag = 10
	cfg.Targeting.MaxFollowsPerTag = 10
	cfg.Targeting.MaxCommentsPerTag = 10
	cfg.Engagement.LikeProbability = 1
	cfg.Engagement.FollowProbability = 1
	cfg.Engagement.CommentProbability = 0
	cfg.Engagement.CommentsEnabled = false
	return cfg
}

func newTestEngager(client FeedClient, sink report.Sink, cfg *config.Config, limits quota.Limits) *Engager {
	tracker := quota.NewTracker(limits)
	sched := schedule.New(tracker, 0, 0)
	return New(client, sched, sink, cfg, logger.NewNopLogger(),
		WithWait(noWait),
		WithRand(rand.New(rand.NewSource(1))),
		WithSessionID("session-test"),
	)
}

func TestRunSessionLikesAndFollows(t *testing.T) {
	client := newFakeClient(3)
	sink := &memorySink{}
	engager := newTestEngager(client, sink, testConfig(), quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})

	summary, err := engager.RunSession(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "session-test", summary.SessionID)
	assert.Equal(t, 3, summary.Likes)
	assert.Equal(t, 3, summary.Follows)
	assert.Equal(t, []string{"media0", "media1", "media2"}, client.likes)
	assert.Equal(t, []string{"user0", "user1", "user2"}, client.follows)
	assert.Len(t, sink.attempts, 6)
	require.Len(t, sink.sessions, 1)
	assert.Equal(t, 3, sink.sessions[0].Likes)

	// Every successful follow is exposed for the unfollow backlog
	followedUsers := engager.FollowedUsers()
	require.Len(t, followedUsers, 3)
	assert.Equal(t, FollowedUser{UserID: "user0", Username: "owner0"}, followedUsers[0])
}

func TestFailedFollowNotExposedForBacklog(t *testing.T) {
	client := newFakeClient(3)
	client.failFollow["user1"] = true
	cfg := testConfig()
	cfg.Engagement.LikeProbability = 0
	engager := newTestEngager(client, &memorySink{}, cfg, quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})

	summary, err := engager.RunSession(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Follows)
	assert.Equal(t, 1, summary.Failures)
	followedUsers := engager.FollowedUsers()
	require.Len(t, followedUsers, 2)
	assert.Equal(t, "user0", followedUsers[0].UserID)
	assert.Equal(t, "user2", followedUsers[1].UserID)
}

func TestPerTagLikeCap(t *testing.T) {
	client := newFakeClient(5)
	cfg := testConfig()
	cfg.Targeting.MaxLikesPerTag = 2
	cfg.Engagement.FollowProbability = 0
	engager := newTestEngager(client, &memorySink{}, cfg, quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})

	summary, err := engager.RunSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Likes)
	assert.Len(t, client.likes, 2)
}

func TestQuotaStopsCategoryNotSession(t *testing.T) {
	client := newFakeClient(4)
	engager := newTestEngager(client, &memorySink{}, testConfig(), quota.Limits{
		quota.CategoryLike: 1, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})

	summary, err := engager.RunSession(context.Background())
	require.NoError(t, err)

	// One like fits the quota, the next post marks the category exhausted,
	// and follows keep flowing for the remaining posts.
	assert.Equal(t, 1, summary.Likes)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, client.likes, 1)
	assert.Equal(t, 4, summary.Follows)
}

func TestFollowDedupesOwners(t *testing.T) {
	client := newFakeClient(3)
	for i := range client.feed.Data.Hashtag.EdgeHashtagToMedia.Edges {
		client.feed.Data.Hashtag.EdgeHashtagToMedia.Edges[i].Node.Owner = instagram.Owner{ID: "user0", Username: "owner0"}
	}
	cfg := testConfig()
	cfg.Engagement.LikeProbability = 0
	engager := newTestEngager(client, &memorySink{}, cfg, quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})

	summary, err := engager.RunSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Follows)
	assert.Equal(t, []string{"user0"}, client.follows)
}

func TestCommentsDisabled(t *testing.T) {
	client := newFakeClient(3)
	cfg := testConfig()
	cfg.Engagement.CommentsEnabled = false
	cfg.Engagement.CommentProbability = 1
	engager := newTestEngager(client, &memorySink{}, cfg, quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})

	summary, err := engager.RunSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Comments)
	assert.Empty(t, client.comments)
}

func TestCommentsUseTemplate(t *testing.T) {
	client := newFakeClient(2)
	cfg := testConfig()
	cfg.Engagement.LikeProbability = 0
	cfg.Engagement.FollowProbability = 0
	cfg.Engagement.CommentsEnabled = true
	cfg.Engagement.CommentProbability = 1
	cfg.Engagement.CommentTemplates = []string{"Great shot!"}
	engager := newTestEngager(client, &memorySink{}, cfg, quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})

	summary, err := engager.RunSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Comments)
	assert.Equal(t, "Great shot!", client.comments["media0"])
}

func TestFailureLeavesQuotaUntouched(t *testing.T) {
	client := newFakeClient(2)
	client.likeErr = fmt.Errorf("network down")
	cfg := testConfig()
	cfg.Engagement.FollowProbability = 0
	sink := &memorySink{}

	tracker := quota.NewTracker(quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})
	sched := schedule.New(tracker, 0, 0)
	engager := New(client, sched, sink, cfg, logger.NewNopLogger(),
		WithWait(noWait), WithRand(rand.New(rand.NewSource(1))), WithSessionID("s"))

	summary, err := engager.RunSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Likes)
	assert.Equal(t, 2, summary.Failures)
	assert.Equal(t, 0, tracker.Counts()[quota.CategoryLike])
}

func TestUnfollowRespectsQuota(t *testing.T) {
	client := newFakeClient(0)
	engager := newTestEngager(client, &memorySink{}, testConfig(), quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 2, quota.CategoryComment: 10,
	})

	var summary report.SessionSummary
	removed, err := engager.Unfollow(context.Background(), []string{"u1", "u2", "u3", "u4"}, &summary)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Unfollows)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"u1", "u2"}, client.unfollows)
	assert.Equal(t, []string{"u1", "u2"}, removed)
}

func TestUnfollowReturnsOnlySucceededIDs(t *testing.T) {
	client := newFakeClient(0)
	client.failUnfollow["u2"] = true
	engager := newTestEngager(client, &memorySink{}, testConfig(), quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})

	var summary report.SessionSummary
	removed, err := engager.Unfollow(context.Background(), []string{"u1", "u2", "u3"}, &summary)
	require.NoError(t, err)

	// u2 failed mid-list: it must stay in the caller's backlog while u3,
	// which succeeded after it, must be pruned.
	assert.Equal(t, []string{"u1", "u3"}, removed)
	assert.Equal(t, []string{"u1", "u3"}, client.unfollows)
	assert.Equal(t, 2, summary.Unfollows)
	assert.Equal(t, 1, summary.Failures)
}

func TestRunSessionPrefetched(t *testing.T) {
	client := newFakeClient(2)
	sink := &memorySink{}
	cfg := testConfig()
	cfg.Targeting.Hashtags = []string{"sunset", "travel", "food"}
	cfg.Engagement.FollowProbability = 0

	tracker := quota.NewTracker(quota.Limits{
		quota.CategoryLike: 100, quota.CategoryFollow: 100,
		quota.CategoryUnfollow: 100, quota.CategoryComment: 100,
	})
	sched := schedule.New(tracker, 0, 0)
	engager := New(client, sched, sink, cfg, logger.NewNopLogger(),
		WithWait(noWait), WithRand(rand.New(rand.NewSource(1))),
		WithSessionID("s"), WithPrefetchWorkers(2))

	summary, err := engager.RunSession(context.Background())
	require.NoError(t, err)

	// 3 tags x 2 posts, every post liked
	assert.Equal(t, 6, summary.Likes)
	require.Len(t, sink.sessions, 1)
}

func TestRunSessionCancelled(t *testing.T) {
	client := newFakeClient(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engager := newTestEngager(client, &memorySink{}, testConfig(), quota.Limits{
		quota.CategoryLike: 10, quota.CategoryFollow: 10,
		quota.CategoryUnfollow: 10, quota.CategoryComment: 10,
	})

	summary, err := engager.RunSession(ctx)
	assert.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Likes)
}
