// Package system provides the wall clock used outside tests.
package system

import (
	"context"
	"time"

	"github.com/JakeFAU/curation-crawler/internal/retry"
)

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Sleep pauses for d or until ctx is done.
func (Clock) Sleep(ctx context.Context, d time.Duration) error {
	return retry.SleepContext(ctx, d)
}
