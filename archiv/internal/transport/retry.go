package transport

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy parameterizes the retry state machine.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first. Default: 5.
	BaseDelay   time.Duration // delay after the first failure. Default: 1s.
	Multiplier  float64       // growth factor per attempt. Default: 2.
	MaxDelay    time.Duration // cap on a single delay. Default: 30s.
}

func (p *RetryPolicy) defaults() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
}

// Delay returns the backoff after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

type retryState int

const (
	stateIdle retryState = iota
	stateAttempting
	stateBackoff
	stateSucceeded
	stateEscalated
)

func (s retryState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAttempting:
		return "attempting"
	case stateBackoff:
		return "backoff"
	case stateSucceeded:
		return "succeeded"
	case stateEscalated:
		return "escalated"
	}
	return "unknown"
}

type attemptFunc func(ctx context.Context) (*Response, error)

// runRetry drives Idle -> Attempting -> Backoff -> Succeeded|Escalated.
// Cancellation is observed only in Idle and Backoff.
func (g *Governor) runRetry(ctx context.Context, locator string, attempt attemptFunc) (*Response, int, error) {
	var (
		state    = stateIdle
		attempts int
		resp     *Response
		lastErr  error
		lastTE   *TransientError
		wait     time.Duration
	)
	for {
		switch state {
		case stateIdle:
			if err := ctx.Err(); err != nil {
				return nil, attempts, err
			}
			state = stateAttempting

		case stateAttempting:
			attempts++
			resp, lastErr = attempt(ctx)
			if lastErr == nil {
				state = stateSucceeded
				continue
			}
			if !errors.As(lastErr, &lastTE) {
				return nil, attempts, lastErr
			}
			if attempts >= g.cfg.Retry.MaxAttempts {
				state = stateEscalated
				continue
			}
			wait = g.cfg.Retry.Delay(attempts)
			if lastTE.RetryAfter > wait {
				wait = lastTE.RetryAfter
			}
			g.metrics.Retries.Inc()
			g.logger.Warn("transport: retry",
				"url", locator, "attempt", attempts, "status", lastTE.StatusCode,
				"backoff", wait.String(), "error", lastErr)
			state = stateBackoff

		case stateBackoff:
			if err := g.sleep(ctx, wait); err != nil {
				return nil, attempts, err
			}
			state = stateIdle

		case stateSucceeded:
			resp.Attempts = attempts
			return resp, attempts, nil

		case stateEscalated:
			return nil, attempts, &PermanentError{
				Locator:    locator,
				StatusCode: lastTE.StatusCode,
				Attempts:   attempts,
				Escalated:  true,
				Err:        lastErr,
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseRetryAfter reads a Retry-After header in delta-seconds or HTTP-date form.
func parseRetryAfter(h string, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
