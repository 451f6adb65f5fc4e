// Package ratelimit paces requests to the remote API.
//
// Pacer inserts the fixed pause between pages. RateLimiter wraps
// golang.org/x/time/rate for an optional requests-per-second ceiling on top
// of that pause.
package ratelimit
