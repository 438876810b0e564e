package realtime

import (
	"math"
	"time"
)

// Backoff returns min(max, base × factor^attempt). There is no jitter.
func Backoff(attempt int, base time.Duration, factor float64, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(factor, float64(attempt))
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(max) {
		return max
	}
	return time.Duration(d)
}
