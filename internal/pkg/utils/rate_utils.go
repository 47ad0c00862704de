package utils

import (
	"time"

	"golang.org/x/time/rate"
)

// NewLimiter returns a limiter admitting one call per minDelay.
// A non-positive delay admits every call immediately.
func NewLimiter(minDelay time.Duration) *rate.Limiter {
	if minDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(minDelay), 1)
}
