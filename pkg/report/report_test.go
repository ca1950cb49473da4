package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igengage/pkg/logger"
	"igengage/pkg/quota"
	"igengage/pkg/schedule"
)

func testAttempt(category quota.Category, outcome schedule.Outcome, ts time.Time) schedule.Attempt {
	return schedule.Attempt{
		Category:  category,
		Target:    "target1",
		Outcome:   outcome,
		Timestamp: ts,
	}
}

func TestCSVSinkRecordAttempt(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, logger.NewNopLogger())
	require.NoError(t, err)
	defer sink.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.RecordAttempt(testAttempt(quota.CategoryLike, schedule.OutcomeSuccess, now)))
	require.NoError(t, sink.RecordAttempt(schedule.Attempt{
		Category:  quota.CategoryComment,
		Target:    "post2",
		Outcome:   schedule.OutcomeFailure,
		Err:       fmt.Errorf("boom"),
		Timestamp: now,
	}))

	file, err := os.Open(filepath.Join(dir, attemptsFileName))
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3) // header + 2 records
	assert.Equal(t, attemptsHeader, rows[0])
	assert.Equal(t, "like", rows[1][1])
	assert.Equal(t, "success", rows[1][3])
	assert.Equal(t, "boom", rows[2][4])
}

func TestCSVSinkRecordSession(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, logger.NewNopLogger())
	require.NoError(t, err)

	summary := SessionSummary{
		SessionID: "abc",
		StartedAt: time.Now(),
		Duration:  30 * time.Minute,
		Hashtags:  []string{"sunset", "travel"},
		Likes:     5,
		Follows:   2,
	}
	require.NoError(t, sink.RecordSession(summary))

	data, err := os.ReadFile(filepath.Join(dir, sessionsFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "abc")
	assert.Contains(t, string(data), "sunset travel")
}

func TestCSVSinkAppendsWithoutDuplicateHeader(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	for i := 0; i < 2; i++ {
		sink, err := NewCSVSink(dir, logger.NewNopLogger())
		require.NoError(t, err)
		require.NoError(t, sink.RecordAttempt(testAttempt(quota.CategoryLike, schedule.OutcomeSuccess, now)))
		require.NoError(t, sink.Close())
	}

	data, err := os.ReadFile(filepath.Join(dir, attemptsFileName))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "timestamp,"))
}

func TestSessionSummaryCountAttempt(t *testing.T) {
	var summary SessionSummary
	now := time.Now()

	summary.CountAttempt(testAttempt(quota.CategoryLike, schedule.OutcomeSuccess, now))
	summary.CountAttempt(testAttempt(quota.CategoryFollow, schedule.OutcomeSuccess, now))
	summary.CountAttempt(testAttempt(quota.CategoryLike, schedule.OutcomeFailure, now))
	summary.CountAttempt(testAttempt(quota.CategoryLike, schedule.OutcomeSkippedQuota, now))

	assert.Equal(t, 1, summary.Likes)
	assert.Equal(t, 1, summary.Follows)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.TotalActions())
}

func TestReporterDaily(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, logger.NewNopLogger())
	require.NoError(t, err)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inDay := day.Add(10 * time.Hour)
	otherDay := day.Add(30 * time.Hour)

	require.NoError(t, sink.RecordAttempt(testAttempt(quota.CategoryLike, schedule.OutcomeSuccess, inDay)))
	require.NoError(t, sink.RecordAttempt(testAttempt(quota.CategoryLike, schedule.OutcomeSuccess, inDay)))
	require.NoError(t, sink.RecordAttempt(testAttempt(quota.CategoryComment, schedule.OutcomeFailure, inDay)))
	require.NoError(t, sink.RecordAttempt(testAttempt(quota.CategoryFollow, schedule.OutcomeSkippedQuota, inDay)))
	require.NoError(t, sink.RecordAttempt(testAttempt(quota.CategoryLike, schedule.OutcomeSuccess, otherDay)))

	reporter := NewReporter(dir)
	summary, err := reporter.Daily(day)
	require.NoError(t, err)

	assert.Equal(t, "2025-06-01", summary.Period)
	assert.Equal(t, 4, summary.Attempts)
	assert.Equal(t, 2, summary.Likes)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.Skipped)
	// 2 successes out of 3 executed attempts
	assert.InDelta(t, 66.6, summary.SuccessRate, 1.0)
}

func TestReporterWeekly(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, logger.NewNopLogger())
	require.NoError(t, err)

	now := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.RecordAttempt(testAttempt(quota.CategoryFollow, schedule.OutcomeSuccess, now.Add(-2*24*time.Hour))))
	require.NoError(t, sink.RecordAttempt(testAttempt(quota.CategoryFollow, schedule.OutcomeSuccess, now.Add(-10*24*time.Hour))))

	reporter := NewReporter(dir)
	summary, err := reporter.Weekly(now)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Follows)
}

func TestReporterNoData(t *testing.T) {
	reporter := NewReporter(t.TempDir())
	_, err := reporter.Daily(time.Now())
	assert.Error(t, err)
}

func TestSaveJSONAndRenderTable(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir)

	summary := &Summary{Period: "2025-06-01", Likes: 3, SuccessRate: 100, ByCategory: map[string]int{"like": 3}}

	path, err := reporter.SaveJSON(summary, "daily_report_2025-06-01.json")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success_rate": 100`)

	var buf strings.Builder
	RenderTable(&buf, summary)
	assert.Contains(t, buf.String(), "2025-06-01")
}

func TestMultiSink(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	s1, err := NewCSVSink(dir1, logger.NewNopLogger())
	require.NoError(t, err)
	s2, err := NewCSVSink(dir2, logger.NewNopLogger())
	require.NoError(t, err)

	multi := MultiSink{s1, s2}
	require.NoError(t, multi.RecordAttempt(testAttempt(quota.CategoryLike, schedule.OutcomeSuccess, time.Now())))
	require.NoError(t, multi.Close())

	for _, dir := range []string{dir1, dir2} {
		if _, err := os.Stat(filepath.Join(dir, attemptsFileName)); err != nil {
			t.Errorf("expected attempts file in %s: %v", dir, err)
		}
	}
}
