package report

import (
	"time"

	"igengage/pkg/quota"
	"igengage/pkg/schedule"
)

// SessionSummary aggregates the results of one engagement session
type SessionSummary struct {
	SessionID string        `json:"session_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Hashtags  []string      `json:"hashtags"`
	Likes     int           `json:"likes"`
	Follows   int           `json:"follows"`
	Unfollows int           `json:"unfollows"`
	Comments  int           `json:"comments"`
	Failures  int           `json:"failures"`
	Skipped   int           `json:"skipped"`
}

// TotalActions returns the number of successful actions in the session
func (s *SessionSummary) TotalActions() int {
	return s.Likes + s.Follows + s.Unfollows + s.Comments
}

// CountAttempt folds one attempt outcome into the summary
func (s *SessionSummary) CountAttempt(attempt schedule.Attempt) {
	switch attempt.Outcome {
	case schedule.OutcomeSuccess:
		switch attempt.Category {
		case quota.CategoryLike:
			s.Likes++
		case quota.CategoryFollow:
			s.Follows++
		case quota.CategoryUnfollow:
			s.Unfollows++
		case quota.CategoryComment:
			s.Comments++
		}
	case schedule.OutcomeFailure:
		s.Failures++
	case schedule.OutcomeSkippedQuota:
		s.Skipped++
	}
}

// Sink receives attempt and session records from the engagement loop.
// Every attempt is recorded, including quota skips, so the activity trail
// stays complete.
type Sink interface {
	RecordAttempt(attempt schedule.Attempt) error
	RecordSession(summary SessionSummary) error
	Close() error
}

// NopSink discards all records. Useful for tests and dry runs.
type NopSink struct{}

func (NopSink) RecordAttempt(schedule.Attempt) error { return nil }
func (NopSink) RecordSession(SessionSummary) error   { return nil }
func (NopSink) Close() error                         { return nil }

// MultiSink fans records out to several sinks, returning the first error
type MultiSink []Sink

func (m MultiSink) RecordAttempt(attempt schedule.Attempt) error {
	for _, s := range m {
		if err := s.RecordAttempt(attempt); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) RecordSession(summary SessionSummary) error {
	for _, s := range m {
		if err := s.RecordSession(summary); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
