package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/frizbank/frizbank/internal/logging"
)

func setupTestApp(t *testing.T, required bool) (*fiber.App, *atomic.Int32) {
	t.Helper()
	mr := miniredis.RunT(t)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls atomic.Int32
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-Test-User"))
		return c.Next()
	})
	app.Use(Idempotency(cache, IdempotencyConfig{TTL: time.Minute, Required: required}, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "call": n})
	})
	app.Post("/rejected", func(c *fiber.Ctx) error {
		calls.Add(1)
		return fiber.NewError(fiber.StatusUnprocessableEntity, "insufficient funds")
	})

	return app, &calls
}

func post(t *testing.T, app *fiber.App, path, key, user string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeaderWhenConfigured(t *testing.T) {
	app, _ := setupTestApp(t, true)

	status, _ := post(t, app, "/resource", "", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyOptionalHeaderPassesThrough(t *testing.T) {
	app, calls := setupTestApp(t, false)

	post(t, app, "/resource", "", "")
	post(t, app, "/resource", "", "")
	if calls.Load() != 2 {
		t.Fatalf("expected handler to run twice without a key, got %d", calls.Load())
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupTestApp(t, false)

	status, payload := post(t, app, "/resource", "abc123", "user-1")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	// Second request should return the cached response without invoking handler again.
	status, cachedPayload := post(t, app, "/resource", "abc123", "user-1")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if cachedPayload != payload {
		t.Fatalf("expected cached payload %s got %s", payload, cachedPayload)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times", calls.Load())
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(cachedPayload), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	app, calls := setupTestApp(t, false)

	post(t, app, "/resource", "same-key", "user-1")
	post(t, app, "/resource", "same-key", "user-2")
	if calls.Load() != 2 {
		t.Fatalf("expected independent executions per user, got %d", calls.Load())
	}
}

func TestIdempotencyReplaysClientErrors(t *testing.T) {
	app, calls := setupTestApp(t, false)

	status, body := post(t, app, "/rejected", "k1", "user-1")
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", status)
	}
	status2, body2 := post(t, app, "/rejected", "k1", "user-1")
	if status2 != status || body2 != body {
		t.Fatalf("expected replay of %d %s, got %d %s", status, body, status2, body2)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times", calls.Load())
	}
}
