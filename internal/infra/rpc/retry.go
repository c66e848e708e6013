package rpc

import (
	"math"
	"time"
)

// RetryConfig defines per-operator retry behavior. MaxRetries counts extra
// attempts after the first, so an operator sees MaxRetries+1 attempts before
// failover moves on.
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	BackoffMultiple float64
	MaxElapsed      time.Duration
}

// DefaultRetryConfig bounds each operator to ~10s of wall time:
// delays of 2s, 3s and 4.5s between four attempts.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      3,
	InitialDelay:    2 * time.Second,
	BackoffMultiple: 1.5,
	MaxElapsed:      10 * time.Second,
}

// delay returns the sleep before retry number attempt (1-based).
func (c RetryConfig) delay(attempt int) time.Duration {
	return time.Duration(float64(c.InitialDelay) * math.Pow(c.BackoffMultiple, float64(attempt-1)))
}
