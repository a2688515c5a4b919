package httputil

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// RetryableError marks a transient transfer failure. After, when set, is
// the server's requested wait from a Retry-After header.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Policy bounds how often and how long a request is retried.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration

	// MaxDelay caps a single wait, including server-requested ones.
	// Zero means no cap.
	MaxDelay time.Duration
}

// DefaultPolicy is three attempts starting at one second.
var DefaultPolicy = Policy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

// wait returns the pause before attempt n+1 (n counts from zero).
func (p Policy) wait(n int, err error) time.Duration {
	d := p.BaseDelay << n
	d += time.Duration(float64(d) * rand.Float64() * 0.1)
	var re *RetryableError
	if errors.As(err, &re) && re.After > d {
		d = re.After
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Retry runs fn until it succeeds, fails with an error that is not a
// [RetryableError], or the attempts run out. The last error is returned,
// or ctx.Err() when the context ends during a wait.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	attempts := max(p.Attempts, 1)
	var err error
	for n := 0; n < attempts; n++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if n == attempts-1 {
			break
		}
		timer := time.NewTimer(p.wait(n, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// IsRetryable reports whether err is marked as transient.
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// RetryAfter parses a Retry-After header given either as seconds or as an
// HTTP date. It returns zero when the header is absent or unparseable.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
