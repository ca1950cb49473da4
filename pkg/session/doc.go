// Package session persists engagement state between runs: the quota window
// snapshot, the backlog of accounts followed by the bot, and the last
// session identifier. State is written atomically so an interrupted run
// never leaves a truncated file behind, which matters because a lost quota
// snapshot would let the next run start from zero and overshoot the daily
// ceilings.
package session
