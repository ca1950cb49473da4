package report

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver
	"igengage/pkg/logger"
	"igengage/pkg/schedule"
)

// SQLSink persists attempt and session records to a PostgreSQL database
type SQLSink struct {
	db     *sql.DB
	logger logger.Logger
}

// NewSQLSink connects to the database and ensures the schema exists
func NewSQLSink(dsn string, log logger.Logger) (*SQLSink, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to SQL database: %w", err)
	}

	s := &SQLSink{db: db, logger: log}

	if err := s.ensureSchema(); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	s.logger.Info("SQL report sink initialized")
	return s, nil
}

// ensureSchema creates the tables if they don't already exist
func (s *SQLSink) ensureSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS engagement_attempts (
		id SERIAL PRIMARY KEY,
		category VARCHAR(20) NOT NULL,
		target VARCHAR(255) NOT NULL,
		outcome VARCHAR(20) NOT NULL,
		error TEXT,
		timestamp TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_engagement_attempts_timestamp ON engagement_attempts (timestamp DESC);

	CREATE TABLE IF NOT EXISTS engagement_sessions (
		session_id VARCHAR(64) PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		duration_minutes DOUBLE PRECISION NOT NULL,
		hashtags TEXT NOT NULL,
		likes INT NOT NULL,
		follows INT NOT NULL,
		unfollows INT NOT NULL,
		comments INT NOT NULL,
		failures INT NOT NULL,
		skipped INT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to execute schema creation query: %w", err)
	}
	return nil
}

// RecordAttempt inserts one attempt row
func (s *SQLSink) RecordAttempt(attempt schedule.Attempt) error {
	errMsg := sql.NullString{}
	if attempt.Err != nil {
		errMsg = sql.NullString{String: attempt.Err.Error(), Valid: true}
	}

	query := `INSERT INTO engagement_attempts (category, target, outcome, error, timestamp) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.Exec(query, string(attempt.Category), attempt.Target, string(attempt.Outcome), errMsg, attempt.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert attempt record: %w", err)
	}
	return nil
}

// RecordSession inserts one session row
func (s *SQLSink) RecordSession(summary SessionSummary) error {
	query := `INSERT INTO engagement_sessions
		(session_id, started_at, duration_minutes, hashtags, likes, follows, unfollows, comments, failures, skipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.Exec(query,
		summary.SessionID,
		summary.StartedAt.UTC(),
		summary.Duration.Minutes(),
		strings.Join(summary.Hashtags, " "),
		summary.Likes,
		summary.Follows,
		summary.Unfollows,
		summary.Comments,
		summary.Failures,
		summary.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session record: %w", err)
	}

	s.logger.InfoWithFields("session recorded", map[string]interface{}{
		"session_id": summary.SessionID,
		"actions":    summary.TotalActions(),
	})
	return nil
}

// Close closes the database connection
func (s *SQLSink) Close() error {
	return s.db.Close()
}
