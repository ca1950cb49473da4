package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"igengage/pkg/quota"
	"igengage/pkg/schedule"
)

// Summary is an aggregate report over a period of recorded attempts
type Summary struct {
	Period      string         `json:"period"`
	Attempts    int            `json:"attempts"`
	Likes       int            `json:"likes"`
	Follows     int            `json:"follows"`
	Unfollows   int            `json:"unfollows"`
	Comments    int            `json:"comments"`
	Failures    int            `json:"failures"`
	Skipped     int            `json:"skipped"`
	SuccessRate float64        `json:"success_rate"`
	ByCategory  map[string]int `json:"by_category"`
}

// Reporter builds summaries from the CSV records written by CSVSink
type Reporter struct {
	dir string
}

// NewReporter creates a reporter over the given report directory
func NewReporter(dir string) *Reporter {
	return &Reporter{dir: dir}
}

// Daily builds a summary of one calendar day (UTC)
func (r *Reporter) Daily(day time.Time) (*Summary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	summary, err := r.buildSummary(start, end)
	if err != nil {
		return nil, err
	}
	summary.Period = start.Format("2006-01-02")
	return summary, nil
}

// Weekly builds a summary of the seven days ending at now
func (r *Reporter) Weekly(now time.Time) (*Summary, error) {
	start := now.Add(-7 * 24 * time.Hour)
	summary, err := r.buildSummary(start, now)
	if err != nil {
		return nil, err
	}
	summary.Period = fmt.Sprintf("%s to %s", start.Format("2006-01-02"), now.Format("2006-01-02"))
	return summary, nil
}

// buildSummary folds all attempts within [start, end) into a summary
func (r *Reporter) buildSummary(start, end time.Time) (*Summary, error) {
	path := filepath.Join(r.dir, attemptsFileName)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no recorded activity: %s does not exist", attemptsFileName)
		}
		return nil, fmt.Errorf("failed to open attempts file: %w", err)
	}
	defer file.Close()

	summary := &Summary{ByCategory: make(map[string]int)}

	reader := csv.NewReader(file)
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read attempts file: %w", err)
		}
		if first {
			first = false
			continue // header
		}
		if len(row) < 4 {
			continue
		}

		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			continue
		}
		if ts.Before(start) || !ts.Before(end) {
			continue
		}

		summary.Attempts++
		category := row[1]
		outcome := schedule.Outcome(row[3])

		switch outcome {
		case schedule.OutcomeSuccess:
			summary.ByCategory[category]++
			switch quota.Category(category) {
			case quota.CategoryLike:
				summary.Likes++
			case quota.CategoryFollow:
				summary.Follows++
			case quota.CategoryUnfollow:
				summary.Unfollows++
			case quota.CategoryComment:
				summary.Comments++
			}
		case schedule.OutcomeFailure:
			summary.Failures++
		case schedule.OutcomeSkippedQuota:
			summary.Skipped++
		}
	}

	if executed := summary.Attempts - summary.Skipped; executed > 0 {
		successes := summary.Likes + summary.Follows + summary.Unfollows + summary.Comments
		summary.SuccessRate = float64(successes) / float64(executed) * 100
	}

	return summary, nil
}

// SaveJSON writes the summary as JSON next to the CSV records
func (r *Reporter) SaveJSON(summary *Summary, name string) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}

	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

// RenderTable writes the summary as a table
func RenderTable(w io.Writer, summary *Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Period", "Likes", "Follows", "Unfollows", "Comments", "Failures", "Skipped", "Success Rate"})
	table.SetBorder(false)

	table.Append([]string{
		summary.Period,
		strconv.Itoa(summary.Likes),
		strconv.Itoa(summary.Follows),
		strconv.Itoa(summary.Unfollows),
		strconv.Itoa(summary.Comments),
		strconv.Itoa(summary.Failures),
		strconv.Itoa(summary.Skipped),
		fmt.Sprintf("%.1f%%", summary.SuccessRate),
	})

	table.Render()
}
