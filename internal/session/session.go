// Package session tracks the server session's remaining lifetime between
// check_session polls.
package session

import (
	"fmt"
	"time"

	"github.com/tgienger/todosky/internal/models"
)

// FormatSeconds renders s as "Hh Mm Ss". Components truncate toward zero,
// so a lapsed session shows negative parts.
func FormatSeconds(s int) string {
	return fmt.Sprintf("%dh %dm %ds", s/3600, (s%3600)/60, s%60)
}

// Countdown extrapolates the remaining seconds from the last status seen
type Countdown struct {
	remaining int
	at        time.Time
	known     bool
}

// Observe records a fresh status from the server
func (c *Countdown) Observe(status models.SessionStatus, now time.Time) {
	c.remaining = status.TimeRemainingSeconds
	c.at = now
	c.known = true
}

// Known reports whether any status has been observed
func (c *Countdown) Known() bool { return c.known }

// Remaining is the extrapolated count of seconds left at now
func (c *Countdown) Remaining(now time.Time) int {
	if !c.known {
		return 0
	}
	return c.remaining - int(now.Sub(c.at)/time.Second)
}

// Expired reports whether the countdown has reached zero
func (c *Countdown) Expired(now time.Time) bool {
	return c.known && c.Remaining(now) <= 0
}

// Format renders the countdown at the current time
func (c *Countdown) Format(now time.Time) string {
	if !c.known {
		return "--"
	}
	return FormatSeconds(c.Remaining(now))
}
