package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	loginWindow    = time.Minute
	loginKeyPrefix = "frizbank:login:"
	// Several customers may share one address, so the per-IP budget is larger.
	ipAttemptsFactor = 4
)

// LoginRateLimit counts login attempts per normalized email and per client IP
// over a one minute window and answers 429 with Retry-After once either budget
// is spent. A successful login clears the email counter. Without Redis it is a
// no-op, and Redis errors let the attempt through.
func LoginRateLimit(cache redis.Cmdable, perEmail int) fiber.Handler {
	if perEmail <= 0 {
		perEmail = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		ctx := c.UserContext()

		var req struct {
			Email string `json:"email"`
		}
		emailKey := ""
		if err := c.BodyParser(&req); err == nil {
			if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
				emailKey = loginKeyPrefix + "email:" + email
			}
		}

		if emailKey != "" {
			if wait, blocked := countAttempt(ctx, cache, emailKey, perEmail); blocked {
				return tooManyAttempts(c, wait)
			}
		}
		if wait, blocked := countAttempt(ctx, cache, loginKeyPrefix+"ip:"+c.IP(), perEmail*ipAttemptsFactor); blocked {
			return tooManyAttempts(c, wait)
		}

		if err := c.Next(); err != nil {
			return err
		}
		if emailKey != "" && c.Response().StatusCode() == http.StatusOK {
			cache.Del(ctx, emailKey)
		}
		return nil
	}
}

// countAttempt increments key and reports the remaining window and whether
// the count is over limit.
func countAttempt(ctx context.Context, cache redis.Cmdable, key string, limit int) (time.Duration, bool) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	if _, err := cache.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	}); err != nil {
		return 0, false
	}
	wait := ttl.Val()
	if wait <= 0 {
		cache.Expire(ctx, key, loginWindow)
		wait = loginWindow
	}
	return wait, incr.Val() > int64(limit)
}

func tooManyAttempts(c *fiber.Ctx, wait time.Duration) error {
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
}
