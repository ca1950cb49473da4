// Package engagement drives automated engagement sessions: it walks hashtag
// feeds, applies per-action probability gates and per-tag caps, and funnels
// every action through the quota-aware scheduler so daily ceilings hold no
// matter how rich the feeds are. Attempt records flow to the reporting sinks
// as they happen.
package engagement
