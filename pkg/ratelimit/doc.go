// Package ratelimit paces outgoing HTTP requests to Instagram.
//
// This is transport-level pacing, distinct from the per-category engagement
// quotas in pkg/quota: the token bucket here caps how fast requests leave
// the process, while quota caps how many engagement actions run per day.
//
//	// 30 requests per minute
//	limiter := ratelimit.NewTokenBucket(30, time.Minute)
//	limiter.Wait()
//	// proceed with request
package ratelimit
