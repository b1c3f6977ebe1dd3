package middleware

import (
	"context"
	"errors"
	"strconv"
	"time"

	"vibefeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when the counter store is unreachable.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	FailClosed
)

// RateRule is a fixed-window quota on one named action.
type RateRule struct {
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

var errNoRedis = errors.New("rate limiter: no redis client")

// Limiter enforces RateRules with Redis counters keyed "rl:<rule>:<subject>".
// A disabled limiter admits everything and never touches Redis.
type Limiter struct {
	rdb     *redis.Client
	enabled bool
}

func NewLimiter(rdb *redis.Client, enabled bool) *Limiter {
	return &Limiter{rdb: rdb, enabled: enabled}
}

// Allow counts one hit for subject under rule. It reports whether the hit is
// within quota and how long until the window resets.
func (l *Limiter) Allow(ctx context.Context, rule RateRule, subject string) (bool, time.Duration, error) {
	if !l.enabled {
		return true, 0, nil
	}
	if l.rdb == nil {
		return false, 0, errNoRedis
	}

	key := "rl:" + rule.Name + ":" + subject
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		// without a TTL the counter never resets
		if err := l.rdb.Expire(ctx, key, rule.Window).Err(); err != nil {
			Logger.WarnContext(ctx, "rate limit window not set", "key", key, "error", err)
		}
		return true, rule.Window, nil
	}
	if n <= int64(rule.Limit) {
		return true, 0, nil
	}
	reset, err := l.rdb.TTL(ctx, key).Result()
	if err != nil || reset < 0 {
		reset = rule.Window
	}
	return false, reset, nil
}

// Handler applies rule to each request. Authenticated requests are counted
// per user, anonymous ones per client IP.
func (l *Limiter) Handler(rule RateRule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok {
			subject = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		ok, reset, err := l.Allow(c.UserContext(), rule, subject)
		if err != nil {
			if rule.Policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				"rule", rule.Name, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.Envelope{
				Error: "Rate limit unavailable",
			})
		}
		if !ok {
			if reset > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(reset.Round(time.Second)/time.Second)))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(models.Envelope{
				Error: "Too many requests, please try again later",
				Code:  models.CodeRateLimited,
			})
		}
		return c.Next()
	}
}
