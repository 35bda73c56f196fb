package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitScript evaluates the sliding-window estimate and conditionally
// increments the current sub-window counter in a single atomic step.
// Without the script, concurrent callers on different instances could read
// the same estimate and all admit past the limit.
//
// KEYS[1]: counter key prefix for the (class, clientKey) pair
// ARGV[1]: window in milliseconds
// ARGV[2]: sub-window (bucket) in milliseconds
// ARGV[3]: limit
// ARGV[4]: current time in milliseconds
//
// Returns {1, remaining} when allowed, where remaining is the budget left
// after this request, or {0, retry_ms} when denied, where retry_ms projects
// the first instant the estimate decays to the limit (same walk as
// projectRetryAfter: buckets drain oldest first, linearly over one
// sub-window each, floored at the time remaining in the current sub-window).
const admitScript = `
local prefix = KEYS[1]
local window = tonumber(ARGV[1])
local bucket = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
local now    = tonumber(ARGV[4])

local cur_start = now - (now % bucket)
local est = 0
local n = math.ceil(window / bucket)
local starts = {}
local counts = {}

for i = 0, n do
    local start = cur_start - i * bucket
    if start + bucket > now - window then
        local count = tonumber(redis.call('GET', prefix .. ':' .. start) or '0')
        if count > 0 then
            local weight = 1
            if start < now - window then
                weight = (start + bucket - (now - window)) / bucket
            end
            est = est + count * weight
            starts[#starts + 1] = start
            counts[#counts + 1] = count
        end
    end
end

if est < limit then
    local key = prefix .. ':' .. cur_start
    redis.call('INCR', key)
    redis.call('PEXPIRE', key, window * 2)
    local remaining = limit - math.floor(est) - 1
    if remaining < 0 then
        remaining = 0
    end
    return {1, remaining}
end

local edge = now - window
local dt = 0
local rem = est - limit

for j = #starts, 1, -1 do
    local s = starts[j]
    local c = counts[j]
    local leave = s + bucket - edge
    if leave > dt then
        local entry = math.max(dt, s - edge)
        local avail = c * (leave - entry) / bucket
        if avail >= rem then
            dt = entry + rem * bucket / c
            break
        end
        rem = rem - avail
        dt = leave
    end
end

local floor_ms = bucket - (now % bucket)
if dt < floor_ms then
    dt = floor_ms
end

return {0, math.ceil(dt)}
`

// RedisLimiter shares sliding-window state across all service instances
// through Redis. A single-process counter would let N instances admit N
// times the budget; the Lua script keeps increment-with-expiry atomic for
// concurrent callers on different instances.
type RedisLimiter struct {
	client    *redis.Client
	script    *redis.Script
	budgets   map[Class]Budget
	failOpen  bool
	opTimeout time.Duration
	namespace string
}

// NewRedisLimiter creates a limiter with the given per-class budgets.
// failOpen selects the behavior on backing-store failure: true admits the
// request (availability over strict limiting), false denies it. The choice
// is deliberate configuration, not an accident of error handling.
func NewRedisLimiter(client *redis.Client, budgets map[Class]Budget, failOpen bool, opTimeout time.Duration, namespace string) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		script:    redis.NewScript(admitScript),
		budgets:   budgets,
		failOpen:  failOpen,
		opTimeout: opTimeout,
		namespace: namespace,
	}
}

func (l *RedisLimiter) key(class Class, clientKey string) string {
	key := fmt.Sprintf("rate:%s:%s", class, clientKey)
	if l.namespace != "" {
		key = l.namespace + ":" + key
	}
	return key
}

// Admit checks whether a request from clientKey on the given endpoint class
// fits the class budget at instant now. On backing-store failure it returns
// the configured fail-open/fail-closed decision along with an error wrapping
// ErrUnavailable for the caller to log.
func (l *RedisLimiter) Admit(ctx context.Context, clientKey string, class Class, now time.Time) (Decision, error) {
	const op = "ratelimit.RedisLimiter.Admit"

	budget, ok := l.budgets[class]
	if !ok {
		return Decision{}, fmt.Errorf("%s: no budget configured for class %q", op, class)
	}

	bucket := budget.bucketDuration()

	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	res, err := l.script.Run(ctx, l.client,
		[]string{l.key(class, clientKey)},
		budget.Window.Milliseconds(),
		bucket.Milliseconds(),
		budget.Limit,
		now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Decision{Allowed: l.failOpen}, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	if len(res) != 2 {
		return Decision{Allowed: l.failOpen}, fmt.Errorf("%s: %w: unexpected script result", op, ErrUnavailable)
	}

	if res[0] == 1 {
		return Decision{Allowed: true, Remaining: res[1]}, nil
	}

	return Decision{RetryAfter: time.Duration(res[1]) * time.Millisecond}, nil
}
