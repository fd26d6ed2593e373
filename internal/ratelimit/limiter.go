package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

const (
	minuteWindow = 60
	dayWindow    = 24 * 60 * 60
)

// Window names the rate-limit window a request tripped.
type Window string

const (
	WindowMinute Window = "minute"
	WindowDay    Window = "day"
)

// Limits holds the request ceilings for the shared credential.
type Limits struct {
	PerMinute int64
	PerDay    int64
}

// DefaultLimits mirrors the shared Gemini key budget: 15 requests per minute,
// 1500 per day.
var DefaultLimits = Limits{PerMinute: 15, PerDay: 1500}

// Counter is the shared atomic counter store the limiter runs on.
type Counter interface {
	Incr(ctx context.Context, key string, now time.Time, ttl time.Duration) (int64, error)
}

// Result reports a rate-limit decision.
type Result struct {
	Allowed bool
	// Limit names the window that was exceeded; empty when allowed.
	Limit           Window
	MinuteRemaining int64
	DayRemaining    int64
	// ResetAt is when the tripped window resets, or the nearer of the two
	// windows when allowed.
	ResetAt time.Time
	// Bypassed is set when no counters were consulted: a user-supplied
	// credential, development mode, or a fail-open on store errors.
	Bypassed bool
}

// Limiter bounds use of the shared upstream credential across concurrent
// callers. Requests under user-supplied credentials bypass it entirely.
//
// Policy: increment-then-check. Both the minute and the day counter are
// incremented before either ceiling is compared, so a rejected request still
// consumes quota and the two windows never drift apart.
type Limiter struct {
	counters  Counter
	sharedKey string
	limits    Limits
	disabled  bool
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a limiter protecting sharedKey. When disabled (development mode)
// every check succeeds without touching the counter store.
func New(counters Counter, sharedKey string, limits Limits, disabled bool, logger *slog.Logger) *Limiter {
	if limits.PerMinute <= 0 {
		limits.PerMinute = DefaultLimits.PerMinute
	}
	if limits.PerDay <= 0 {
		limits.PerDay = DefaultLimits.PerDay
	}
	return &Limiter{
		counters:  counters,
		sharedKey: sharedKey,
		limits:    limits,
		disabled:  disabled,
		logger:    logger,
		now:       time.Now,
	}
}

// Check records one pending request under apiKey and decides whether it may
// proceed. If the counter store is unreachable the limiter fails open: the
// request is allowed and the outage logged, so generation traffic survives an
// infrastructure problem.
func (l *Limiter) Check(ctx context.Context, apiKey string) Result {
	if apiKey != l.sharedKey {
		return Result{Allowed: true, Bypassed: true}
	}
	if l.disabled {
		return Result{Allowed: true, Bypassed: true}
	}

	now := l.now()
	epoch := now.Unix()
	keyHash := hashKey(apiKey)

	minuteBucket := epoch / minuteWindow
	dayBucket := epoch / dayWindow
	minuteReset := time.Unix((minuteBucket+1)*minuteWindow, 0).UTC()
	dayReset := time.Unix((dayBucket+1)*dayWindow, 0).UTC()

	minuteCount, err := l.counters.Incr(ctx,
		fmt.Sprintf("rl:%s:minute:%d", keyHash, minuteBucket), now, minuteWindow*time.Second)
	if err != nil {
		l.logger.Warn("rate limit counter unreachable, failing open", "window", WindowMinute, "error", err)
		return Result{Allowed: true, Bypassed: true}
	}
	dayCount, err := l.counters.Incr(ctx,
		fmt.Sprintf("rl:%s:day:%d", keyHash, dayBucket), now, dayWindow*time.Second)
	if err != nil {
		l.logger.Warn("rate limit counter unreachable, failing open", "window", WindowDay, "error", err)
		return Result{Allowed: true, Bypassed: true}
	}

	res := Result{
		MinuteRemaining: max(l.limits.PerMinute-minuteCount, 0),
		DayRemaining:    max(l.limits.PerDay-dayCount, 0),
	}

	if minuteCount > l.limits.PerMinute {
		res.Limit = WindowMinute
		res.ResetAt = minuteReset
		return res
	}
	if dayCount > l.limits.PerDay {
		res.Limit = WindowDay
		res.ResetAt = dayReset
		return res
	}

	res.Allowed = true
	res.ResetAt = minuteReset
	return res
}

// Message renders a denied result for callers. It names the exceeded window,
// when it resets, and the bring-your-own-key escape hatch.
func (r Result) Message(now time.Time) string {
	switch r.Limit {
	case WindowMinute:
		wait := int(r.ResetAt.Sub(now).Seconds())
		if wait < 1 {
			wait = 1
		}
		return fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds or use your own API key.", wait)
	case WindowDay:
		return fmt.Sprintf("Daily rate limit exceeded. Please try again after %s or use your own API key.",
			r.ResetAt.Format("15:04 MST, Jan 2"))
	default:
		return "Rate limit error. Please try again later or use your own API key."
	}
}

func hashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}
