package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request trace id, echoed back to clients.
const RequestIDHeader = "X-Request-ID"

const (
	requestIDLocal  = "request_id"
	maxRequestIDLen = 64
)

// RequestID keeps a caller supplied X-Request-ID when it is a short token of
// letters, digits, '-', '_' or '.', and mints a UUID otherwise. The id is
// echoed on the response and read back with RequestIDOf.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Locals(requestIDLocal, id)
		return c.Next()
	}
}

// RequestIDOf returns the id assigned by RequestID, or "".
func RequestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDLocal).(string)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
