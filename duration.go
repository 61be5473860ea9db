package cache

import (
	"time"

	"github.com/go-contract-cache/cache/expiry"
)

// Duration is an ExpiryPolicy callback's answer: leave expiry alone, never
// expire, or expire after a concrete time-to-live. See expiry.Duration.
type Duration = expiry.Duration

// Unchanged means "do not modify the current expiry".
var Unchanged = expiry.Unchanged

// Eternal means the entry never expires.
var Eternal = expiry.EternalDuration

// Immediate means the entry is expired the instant it is installed.
var Immediate = expiry.Immediate

// TTL returns a Duration that expires after d.
func TTL(d time.Duration) Duration { return expiry.TTL(d) }
