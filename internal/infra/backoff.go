package infra

import "time"

// CalculateBackoff returns the delay before retry attempt (1-based):
// base, 2*base, 4*base, ... capped at ceiling.
func CalculateBackoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if ceiling > 0 && delay >= ceiling {
			return ceiling
		}
	}
	if ceiling > 0 && delay > ceiling {
		return ceiling
	}
	return delay
}
