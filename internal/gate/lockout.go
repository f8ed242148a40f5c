package gate

import (
	"fmt"
	"time"
)

const (
	// FreeAttempts is the number of failures tolerated before the first lockout.
	FreeAttempts = 5

	// BaseLockout is the lockout applied from the FreeAttempts-th failure on.
	BaseLockout = 30 * time.Second

	// lockoutStep is how many further failures it takes to double the lockout.
	lockoutStep = 5

	// maxLockoutDoublings keeps BaseLockout << n inside time.Duration.
	maxLockoutDoublings = 28
)

// Lockout returns how long submissions are rejected after the given number of
// cumulative failures: nothing below FreeAttempts, then 30s doubling every five
// failures (30s for 5-9, 60s for 10-14, 120s for 15-19, ...).
func Lockout(failures int) time.Duration {
	if failures < FreeAttempts {
		return 0
	}

	doublings := (failures - FreeAttempts) / lockoutStep
	if doublings > maxLockoutDoublings {
		doublings = maxLockoutDoublings
	}

	return BaseLockout << doublings
}

// TimeoutPeriods returns how many lockout tiers the failure count has reached.
func TimeoutPeriods(failures int) int {
	if failures < FreeAttempts {
		return 0
	}
	return (failures-FreeAttempts)/lockoutStep + 1
}

// FormatRemaining renders whole seconds as "42s" or "2m 5s".
func FormatRemaining(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// ceilSeconds rounds a positive duration up to whole seconds.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
