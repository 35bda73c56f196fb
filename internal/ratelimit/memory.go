package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLimiter is an in-process implementation of the same sliding-window
// estimator as RedisLimiter. Its state is not shared between instances, so
// it is suitable for tests and single-node deployments only.
type MemoryLimiter struct {
	mu      sync.Mutex
	budgets map[Class]Budget
	// counts maps (class, clientKey) to sub-window start (ms) to count.
	counts map[string]map[int64]int64
}

func NewMemoryLimiter(budgets map[Class]Budget) *MemoryLimiter {
	return &MemoryLimiter{
		budgets: budgets,
		counts:  make(map[string]map[int64]int64),
	}
}

// Admit checks whether a request from clientKey on the given endpoint class
// fits the class budget at instant now.
func (l *MemoryLimiter) Admit(_ context.Context, clientKey string, class Class, now time.Time) (Decision, error) {
	const op = "ratelimit.MemoryLimiter.Admit"

	budget, ok := l.budgets[class]
	if !ok {
		return Decision{}, fmt.Errorf("%s: no budget configured for class %q", op, class)
	}

	bucketMs := budget.bucketDuration().Milliseconds()
	windowMs := budget.Window.Milliseconds()
	nowMs := now.UnixMilli()
	curStart := nowMs - nowMs%bucketMs

	l.mu.Lock()
	defer l.mu.Unlock()

	key := string(class) + ":" + clientKey
	buckets := l.counts[key]
	if buckets == nil {
		buckets = make(map[int64]int64)
		l.counts[key] = buckets
	}

	// Lazy cleanup. Dropping state older than 2×W is safe: absence counts
	// as zero, which never causes a false admit.
	for start := range buckets {
		if start+bucketMs <= nowMs-2*windowMs {
			delete(buckets, start)
		}
	}

	var est float64
	for start, count := range buckets {
		if start+bucketMs <= nowMs-windowMs || start > curStart {
			continue
		}

		weight := 1.0
		if start < nowMs-windowMs {
			weight = float64(start+bucketMs-(nowMs-windowMs)) / float64(bucketMs)
		}
		est += float64(count) * weight
	}

	if est < float64(budget.Limit) {
		buckets[curStart]++

		remaining := budget.Limit - int64(est) - 1
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Allowed: true, Remaining: remaining}, nil
	}

	return Decision{
		RetryAfter: projectRetryAfter(buckets, nowMs, bucketMs, windowMs, budget.Limit, est),
	}, nil
}
