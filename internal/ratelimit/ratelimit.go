// Package ratelimit implements a sliding-window counter rate limiter.
//
// The trailing window W is divided into sub-windows of duration W/k for a
// configured granularity k. The estimated count for the trailing window is
// the sum of the current sub-window counter plus older counters weighted by
// the fraction of each sub-window still inside [now-W, now). A request is
// admitted iff the estimate is below the limit.
//
// The estimate is approximate at sub-window boundaries, with error bounded
// by the granularity; it never over-admits without bound. Counters expire
// after 2×W, and absent state is treated as a zero count, so garbage
// collection can never cause a false admit.
package ratelimit

import (
	"errors"
	"math"
	"sort"
	"time"
)

// Class identifies an endpoint class with an independent request budget.
type Class string

const (
	// ClassRedirect covers the high-volume redirect path, keyed per IP.
	ClassRedirect Class = "redirect"
	// ClassCreate covers the link-creation path, keyed per principal.
	ClassCreate Class = "create"
)

// ErrUnavailable is returned when the limiter backing store can't be
// reached. The accompanying Decision reflects the configured failure policy
// (fail-open or fail-closed), so callers can log the error and proceed.
var ErrUnavailable = errors.New("rate limiter unavailable")

// Budget is the request budget for one endpoint class.
type Budget struct {
	// Limit is the maximum number of admitted requests per trailing window.
	Limit int64
	// Window is the trailing window duration.
	Window time.Duration
	// Buckets is the sliding-window granularity k. Higher values smooth
	// boundary error at the cost of more counters per client.
	Buckets int
}

func (b Budget) bucketDuration() time.Duration {
	if b.Buckets < 1 {
		return b.Window
	}
	return b.Window / time.Duration(b.Buckets)
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int64
	// RetryAfter is a hint for denied requests: the time until the estimate
	// is projected to drop below the limit, floored at the time remaining in
	// the current sub-window. Zero when Allowed.
	RetryAfter time.Duration
}

// projectRetryAfter returns the time until the sliding-window estimate,
// absent further requests, first decays to the limit. The trailing edge of
// the window passes through buckets oldest first, draining each linearly
// over one sub-window, so the projection walks buckets in start order and
// solves the crossing bucket linearly. The result is floored at the time
// remaining in the current sub-window.
func projectRetryAfter(buckets map[int64]int64, nowMs, bucketMs, windowMs, limit int64, est float64) time.Duration {
	starts := make([]int64, 0, len(buckets))
	for start, count := range buckets {
		if count > 0 && start+bucketMs > nowMs-windowMs {
			starts = append(starts, start)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	edge := nowMs - windowMs
	dt := 0.0
	rem := est - float64(limit)

	for _, start := range starts {
		count := float64(buckets[start])

		exit := float64(start + bucketMs - edge)
		if exit <= dt {
			continue
		}

		entry := math.Max(dt, float64(start-edge))
		avail := count * (exit - entry) / float64(bucketMs)
		if avail >= rem {
			dt = entry + rem*float64(bucketMs)/count
			break
		}

		rem -= avail
		dt = exit
	}

	if floor := float64(bucketMs - nowMs%bucketMs); dt < floor {
		dt = floor
	}

	return time.Duration(math.Ceil(dt)) * time.Millisecond
}
