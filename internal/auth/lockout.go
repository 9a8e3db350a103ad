package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lockout counts failed logins per key in redis and locks the key once the
// threshold is reached inside the window. A nil *Lockout is valid and never locks.
type Lockout struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
	prefix      string
}

// NewLockout returns a lockout backed by client, or nil when client is nil.
func NewLockout(client *redis.Client, maxAttempts int, window time.Duration) *Lockout {
	if client == nil {
		return nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Lockout{
		client:      client,
		maxAttempts: int64(maxAttempts),
		window:      window,
		prefix:      "campus:login:failures:",
	}
}

func (l *Lockout) key(subject string) string {
	return l.prefix + strings.ToLower(strings.TrimSpace(subject))
}

// Locked reports whether subject is locked and for how long.
func (l *Lockout) Locked(ctx context.Context, subject string) (bool, time.Duration, error) {
	if l == nil {
		return false, 0, nil
	}

	count, err := l.client.Get(ctx, l.key(subject)).Int64()
	if err == redis.Nil {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("read login failures: %w", err)
	}
	if count < l.maxAttempts {
		return false, 0, nil
	}

	ttl, err := l.client.TTL(ctx, l.key(subject)).Result()
	if err != nil {
		return true, l.window, nil
	}
	if ttl < 0 {
		// A counter without expiry would lock the subject forever.
		set, err := l.client.Expire(ctx, l.key(subject), l.window).Result()
		if err != nil {
			return true, l.window, fmt.Errorf("set login failure window: %w", err)
		}
		if !set {
			return false, 0, nil
		}
		return true, l.window, nil
	}
	return true, ttl, nil
}

// failScript increments the counter and starts the window in one step. A key
// left without a TTL gets one on its next failure.
var failScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Fail records a failed attempt for subject and returns the running count.
// The window starts at the first failure.
func (l *Lockout) Fail(ctx context.Context, subject string) (int64, error) {
	if l == nil {
		return 0, nil
	}

	count, err := failScript.Run(ctx, l.client, []string{l.key(subject)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	return count, nil
}

// Reset clears the failure counter for subject.
func (l *Lockout) Reset(ctx context.Context, subject string) error {
	if l == nil {
		return nil
	}
	return l.client.Del(ctx, l.key(subject)).Err()
}
