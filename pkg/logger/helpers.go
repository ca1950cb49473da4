package logger

import (
	"github.com/rs/zerolog"
)

// LogAttempt logs the outcome of a single engagement attempt
func LogAttempt(log Logger, category, target, outcome string) {
	fields := map[string]interface{}{
		"category": category,
		"target":   target,
		"outcome":  outcome,
	}

	switch outcome {
	case "success":
		log.InfoWithFields("engagement action completed", fields)
	case "failure":
		log.WarnWithFields("engagement action failed", fields)
	default:
		log.DebugWithFields("engagement action skipped", fields)
	}
}

// LogQuotaExhausted logs that a category has hit its daily ceiling
func LogQuotaExhausted(log Logger, category string, limit int) {
	log.WithFields(map[string]interface{}{
		"category": category,
		"limit":    limit,
	}).Warn("daily quota exhausted, skipping remaining actions")
}

// LogSessionSummary logs the aggregate results of an engagement session
func LogSessionSummary(log Logger, likes, follows, comments int, hashtags []string) {
	log.InfoWithFields("session completed", map[string]interface{}{
		"likes":    likes,
		"follows":  follows,
		"comments": comments,
		"hashtags": hashtags,
	})
}

// LogRateLimit logs HTTP rate limiting events
func LogRateLimit(log Logger, endpoint string, retryAfter int) {
	log.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("rate limit reached, backing off")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
