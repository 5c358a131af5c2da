package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Purposes with their own counters
const (
	PurposeRegister = "register"
	PurposeLogin    = "login"
	PurposeUpload   = "upload"
)

// Policy is a fixed window: at most Limit requests per Window
type Policy struct {
	Limit  int
	Window time.Duration
}

var defaultPolicy = Policy{Limit: 10, Window: 15 * time.Minute}

// DefaultPolicies are applied when NewLimiter is given no overrides
var DefaultPolicies = map[string]Policy{
	PurposeRegister: {Limit: 10, Window: 15 * time.Minute},
	PurposeLogin:    {Limit: 10, Window: 15 * time.Minute},
	PurposeUpload:   {Limit: 30, Window: 15 * time.Minute},
}

// Limiter counts requests per client IP and purpose in Redis
type Limiter struct {
	client   redis.Cmdable
	policies map[string]Policy
}

func NewLimiter(client redis.Cmdable) *Limiter {
	return &Limiter{client: client, policies: DefaultPolicies}
}

// WithPolicy overrides the policy for one purpose
func (l *Limiter) WithPolicy(purpose string, p Policy) *Limiter {
	policies := make(map[string]Policy, len(l.policies)+1)
	for k, v := range l.policies {
		policies[k] = v
	}
	policies[purpose] = p
	return &Limiter{client: l.client, policies: policies}
}

func (l *Limiter) policy(purpose string) Policy {
	if p, ok := l.policies[purpose]; ok {
		return p
	}
	return defaultPolicy
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:%s:ip:%s", purpose, ip)
}

// incrWindow counts a hit and starts the window on the first one, in one
// round trip so concurrent requests see distinct counts
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// AllowIPRequestWithPurpose counts the request and reports whether it is
// within the window's limit. Requests over the limit are counted too.
func (l *Limiter) AllowIPRequestWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	p := l.policy(purpose)

	count, err := incrWindow.Run(ctx, l.client, []string{ipKey(ip, purpose)}, p.Window.Milliseconds()).Int64()
	if err != nil {
		return true, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return withinLimit(count, p), nil
}

func withinLimit(count int64, p Policy) bool {
	return count <= int64(p.Limit)
}
