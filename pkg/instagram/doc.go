// Package instagram implements the web API client used for hashtag feed
// reads and engagement writes (like, follow, unfollow, comment).
//
// The client authenticates with a browser session cookie and CSRF token,
// paces every request through a shared rate limiter, and maps HTTP failures
// onto the typed errors in pkg/errors. Feed reads retry transient failures;
// engagement writes are issued exactly once.
package instagram
