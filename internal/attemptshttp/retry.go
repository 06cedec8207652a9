package attemptshttp

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"
)

type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2,
	}
}

// retryable reports whether a failed request is worth repeating now.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	// network and token errors
	return true
}

// backoff computes the wait before the next attempt, with ±20% jitter.
func (r RetryConfig) backoff(n int) time.Duration {
	mult := r.Multiplier
	if mult <= 0 {
		mult = 2
	}
	wait := float64(r.InitialWait) * math.Pow(mult, float64(n))
	if r.MaxWait > 0 && wait > float64(r.MaxWait) {
		wait = float64(r.MaxWait)
	}
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
