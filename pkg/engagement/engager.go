package engagement

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"igengage/internal/feed"
	"igengage/pkg/config"
	"igengage/pkg/instagram"
	"igengage/pkg/logger"
	"igengage/pkg/quota"
	"igengage/pkg/report"
	"igengage/pkg/retry"
	"igengage/pkg/schedule"
)

// Engager runs engagement sessions against hashtag feeds. All pacing and
// quota decisions are delegated to the scheduler; the engager only chooses
// which actions to attempt and in what order.
type Engager struct {
	client FeedClient
	sched  *schedule.Scheduler
	sink   report.Sink
	cfg    *config.Config
	log    logger.Logger

	rng             *rand.Rand
	wait            func(ctx context.Context, d time.Duration) error
	newID           func() string
	prefetchWorkers int

	followedUsers []FollowedUser
}

// FollowedUser identifies an account followed during the session, for the
// caller to persist into its unfollow backlog.
type FollowedUser struct {
	UserID   string
	Username string
}

// Option configures an Engager.
type Option func(*Engager)

// WithRand sets the source used for probability gates and comment selection.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engager) {
		e.rng = rng
	}
}

// WithWait replaces the inter-action pause, letting tests run without
// sleeping.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engager) {
		e.wait = wait
	}
}

// WithSessionID fixes the session identifier instead of generating one.
func WithSessionID(id string) Option {
	return func(e *Engager) {
		e.newID = func() string { return id }
	}
}

// WithPrefetchWorkers fetches hashtag feeds concurrently with the given
// number of workers. Engagement itself stays sequential so pacing delays
// hold; only the network reads overlap.
func WithPrefetchWorkers(n int) Option {
	return func(e *Engager) {
		e.prefetchWorkers = n
	}
}

// New creates an Engager. The sink may be report.NopSink{} when no
// recording is wanted.
func New(client FeedClient, sched *schedule.Scheduler, sink report.Sink, cfg *config.Config, log logger.Logger, opts ...Option) *Engager {
	e := &Engager{
		client: client,
		sched:  sched,
		sink:   sink,
		cfg:    cfg,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		wait:   retry.Wait,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunSession engages every configured hashtag in order and returns the
// aggregated summary. A cancelled context ends the session early but still
// yields the summary accumulated so far; per-tag failures are logged and do
// not abort the remaining tags.
func (e *Engager) RunSession(ctx context.Context) (*report.SessionSummary, error) {
	start := time.Now()
	summary := &report.SessionSummary{
		SessionID: e.newID(),
		StartedAt: start,
		Hashtags:  e.cfg.Targeting.Hashtags,
	}

	e.log.InfoWithFields("session started", map[string]interface{}{
		"session_id": summary.SessionID,
		"hashtags":   summary.Hashtags,
	})

	var sessionErr error
	if e.prefetchWorkers > 1 {
		sessionErr = e.runPrefetched(ctx, summary)
	} else {
		for _, tag := range summary.Hashtags {
			if err := e.EngageHashtag(ctx, tag, summary); err != nil {
				if ctx.Err() != nil {
					sessionErr = err
					break
				}
				e.log.WithError(err).WithField("hashtag", tag).Warn("hashtag engagement failed, moving on")
			}
		}
	}

	summary.Duration = time.Since(start)
	if err := e.sink.RecordSession(*summary); err != nil {
		e.log.WithError(err).Warn("failed to record session summary")
	}

	e.log.InfoWithFields("session finished", map[string]interface{}{
		"session_id": summary.SessionID,
		"likes":      summary.Likes,
		"follows":    summary.Follows,
		"comments":   summary.Comments,
		"failures":   summary.Failures,
		"skipped":    summary.Skipped,
		"duration":   summary.Duration.Round(time.Second).String(),
	})
	return summary, sessionErr
}

// runPrefetched overlaps feed fetches with engagement: a worker pool pulls
// all configured feeds while posts from already-fetched feeds are worked
// through one at a time.
func (e *Engager) runPrefetched(ctx context.Context, summary *report.SessionSummary) error {
	pool := feed.NewPrefetcher(e.prefetchWorkers, e.client, nil, e.log)
	pool.Start()

	go func() {
		for _, tag := range summary.Hashtags {
			if err := pool.Submit(feed.FetchJob{Hashtag: tag}); err != nil {
				return
			}
		}
		pool.Stop()
	}()

	for result := range pool.Results() {
		if ctx.Err() != nil {
			// Drain remaining results so the pool goroutines can exit.
			continue
		}
		if result.Error != nil {
			e.log.WithError(result.Error).WithField("hashtag", result.Job.Hashtag).Warn("hashtag engagement failed, moving on")
			continue
		}
		if err := e.EngageFeed(ctx, result.Job.Hashtag, result.Response, summary); err != nil {
			if ctx.Err() != nil {
				continue
			}
			e.log.WithError(err).WithField("hashtag", result.Job.Hashtag).Warn("hashtag engagement failed, moving on")
		}
	}
	return ctx.Err()
}

// EngageHashtag fetches one hashtag feed and works through its posts.
func (e *Engager) EngageHashtag(ctx context.Context, tag string, summary *report.SessionSummary) error {
	resp, err := e.client.FetchHashtagFeed(tag, "")
	if err != nil {
		return fmt.Errorf("fetching feed for #%s: %w", tag, err)
	}
	return e.EngageFeed(ctx, tag, resp, summary)
}

// EngageFeed works through an already-fetched feed, attempting likes,
// follows and comments subject to probability gates, per-tag caps and the
// scheduler's quota decisions. Callers that prefetch feeds concurrently
// hand them here.
func (e *Engager) EngageFeed(ctx context.Context, tag string, resp *instagram.HashtagResponse, summary *report.SessionSummary) error {
	var likes, follows, comments int
	followed := make(map[string]bool)
	exhausted := make(map[quota.Category]bool)

	for _, edge := range resp.Data.Hashtag.EdgeHashtagToMedia.Edges {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.tagDone(likes, follows, comments, exhausted) {
			break
		}
		node := edge.Node

		if likes < e.cfg.Targeting.MaxLikesPerTag && !exhausted[quota.CategoryLike] &&
			e.roll(e.cfg.Engagement.LikeProbability) {
			ok, err := e.attempt(ctx, quota.CategoryLike, node.ID, exhausted, summary, schedule.ExecutorFunc(
				func(ctx context.Context, _ quota.Category, target string) error {
					return e.client.LikePost(target)
				}))
			if err != nil {
				return err
			}
			if ok {
				likes++
			}
		}

		owner := node.Owner
		if owner.ID != "" && !followed[owner.ID] &&
			follows < e.cfg.Targeting.MaxFollowsPerTag && !exhausted[quota.CategoryFollow] &&
			e.roll(e.cfg.Engagement.FollowProbability) {
			followed[owner.ID] = true
			ok, err := e.attempt(ctx, quota.CategoryFollow, owner.ID, exhausted, summary, schedule.ExecutorFunc(
				func(ctx context.Context, _ quota.Category, target string) error {
					return e.client.FollowUser(target)
				}))
			if err != nil {
				return err
			}
			if ok {
				follows++
				e.followedUsers = append(e.followedUsers, FollowedUser{UserID: owner.ID, Username: owner.Username})
			}
		}

		if e.cfg.Engagement.CommentsEnabled &&
			comments < e.cfg.Targeting.MaxCommentsPerTag && !exhausted[quota.CategoryComment] &&
			e.roll(e.cfg.Engagement.CommentProbability) {
			text := e.pickComment()
			ok, err := e.attempt(ctx, quota.CategoryComment, node.ID, exhausted, summary, schedule.ExecutorFunc(
				func(ctx context.Context, _ quota.Category, target string) error {
					return e.client.CommentPost(target, text)
				}))
			if err != nil {
				return err
			}
			if ok {
				comments++
			}
		}
	}

	e.log.InfoWithFields("hashtag done", map[string]interface{}{
		"hashtag":  tag,
		"likes":    likes,
		"follows":  follows,
		"comments": comments,
	})
	return nil
}

// Unfollow works through a list of user IDs, unfollowing each subject to the
// unfollow quota. IDs past the quota ceiling are recorded as skipped and left
// for a later session. It returns the IDs actually unfollowed, so the caller
// prunes exactly those from its backlog even when some unfollows fail.
func (e *Engager) Unfollow(ctx context.Context, userIDs []string, summary *report.SessionSummary) ([]string, error) {
	exhausted := make(map[quota.Category]bool)
	var done []string
	for _, id := range userIDs {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if exhausted[quota.CategoryUnfollow] {
			break
		}
		ok, err := e.attempt(ctx, quota.CategoryUnfollow, id, exhausted, summary, schedule.ExecutorFunc(
			func(ctx context.Context, _ quota.Category, target string) error {
				return e.client.UnfollowUser(target)
			}))
		if ok {
			done = append(done, id)
		}
		if err != nil {
			return done, err
		}
	}
	return done, nil
}

// FollowedUsers returns the accounts successfully followed so far, in the
// order they were followed.
func (e *Engager) FollowedUsers() []FollowedUser {
	return e.followedUsers
}

// attempt routes one action through the scheduler, records the outcome, and
// pauses after a successful action. It reports whether the action succeeded;
// the error return carries contract violations and cancelled pauses only.
func (e *Engager) attempt(ctx context.Context, category quota.Category, target string, exhausted map[quota.Category]bool, summary *report.SessionSummary, exec schedule.Executor) (bool, error) {
	attempt, err := e.sched.Attempt(ctx, category, target, exec)
	summary.CountAttempt(attempt)
	logger.LogAttempt(e.log, string(category), target, string(attempt.Outcome))
	if sinkErr := e.sink.RecordAttempt(attempt); sinkErr != nil {
		e.log.WithError(sinkErr).Warn("failed to record attempt")
	}
	if err != nil {
		return attempt.Outcome == schedule.OutcomeSuccess, err
	}

	switch attempt.Outcome {
	case schedule.OutcomeSkippedQuota:
		exhausted[category] = true
		logger.LogQuotaExhausted(e.log, string(category), e.limitFor(category))
		return false, nil
	case schedule.OutcomeFailure:
		return false, nil
	}

	if err := e.wait(ctx, e.sched.NextDelay()); err != nil {
		return true, err
	}
	return true, nil
}

// limitFor looks up the configured daily ceiling for a category.
func (e *Engager) limitFor(category quota.Category) int {
	switch category {
	case quota.CategoryLike:
		return e.cfg.Limits.Like
	case quota.CategoryFollow:
		return e.cfg.Limits.Follow
	case quota.CategoryUnfollow:
		return e.cfg.Limits.Unfollow
	case quota.CategoryComment:
		return e.cfg.Limits.Comment
	}
	return 0
}

// tagDone reports whether nothing more can happen for the current tag.
func (e *Engager) tagDone(likes, follows, comments int, exhausted map[quota.Category]bool) bool {
	likesDone := likes >= e.cfg.Targeting.MaxLikesPerTag || exhausted[quota.CategoryLike]
	followsDone := follows >= e.cfg.Targeting.MaxFollowsPerTag || exhausted[quota.CategoryFollow]
	commentsDone := !e.cfg.Engagement.CommentsEnabled ||
		comments >= e.cfg.Targeting.MaxCommentsPerTag || exhausted[quota.CategoryComment]
	return likesDone && followsDone && commentsDone
}

func (e *Engager) roll(probability float64) bool {
	if probability >= 1 {
		return true
	}
	if probability <= 0 {
		return false
	}
	return e.rng.Float64() < probability
}

func (e *Engager) pickComment() string {
	templates := e.cfg.Engagement.CommentTemplates
	if len(templates) == 0 {
		return ""
	}
	return templates[e.rng.Intn(len(templates))]
}
