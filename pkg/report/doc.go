// Package report records every engagement decision and produces aggregate
// summaries.
//
// Attempts and session summaries flow into a Sink: CSV files under a report
// directory by default, or PostgreSQL when a DSN is configured. The
// Reporter reads the CSV trail back to build daily and weekly summaries for
// the CLI.
package report
