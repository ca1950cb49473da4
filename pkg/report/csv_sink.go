package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"igengage/pkg/logger"
	"igengage/pkg/schedule"
)

const (
	attemptsFileName = "attempts.csv"
	sessionsFileName = "sessions.csv"
)

var attemptsHeader = []string{"timestamp", "category", "target", "outcome", "error"}
var sessionsHeader = []string{"session_id", "started_at", "duration_minutes", "hashtags", "likes", "follows", "unfollows", "comments", "failures", "skipped"}

// CSVSink appends attempt and session records to CSV files under a report
// directory.
type CSVSink struct {
	mu     sync.Mutex
	dir    string
	logger logger.Logger
}

// NewCSVSink creates the report directory and returns a CSV-backed sink
func NewCSVSink(dir string, log logger.Logger) (*CSVSink, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	return &CSVSink{dir: dir, logger: log}, nil
}

// RecordAttempt appends one attempt row to attempts.csv
func (s *CSVSink) RecordAttempt(attempt schedule.Attempt) error {
	errMsg := ""
	if attempt.Err != nil {
		errMsg = attempt.Err.Error()
	}

	row := []string{
		attempt.Timestamp.Format(time.RFC3339),
		string(attempt.Category),
		attempt.Target,
		string(attempt.Outcome),
		errMsg,
	}
	return s.appendRow(attemptsFileName, attemptsHeader, row)
}

// RecordSession appends one session row to sessions.csv
func (s *CSVSink) RecordSession(summary SessionSummary) error {
	row := []string{
		summary.SessionID,
		summary.StartedAt.Format(time.RFC3339),
		strconv.FormatFloat(summary.Duration.Minutes(), 'f', 2, 64),
		strings.Join(summary.Hashtags, " "),
		strconv.Itoa(summary.Likes),
		strconv.Itoa(summary.Follows),
		strconv.Itoa(summary.Unfollows),
		strconv.Itoa(summary.Comments),
		strconv.Itoa(summary.Failures),
		strconv.Itoa(summary.Skipped),
	}
	return s.appendRow(sessionsFileName, sessionsHeader, row)
}

// Close is a no-op; files are opened and closed per append
func (s *CSVSink) Close() error {
	return nil
}

// appendRow opens the CSV file, writing the header first on a fresh file
func (s *CSVSink) appendRow(name string, header, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name)

	writeHeader := false
	if info, err := os.Stat(path); os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		writeHeader = true
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	w.Flush()

	return w.Error()
}
