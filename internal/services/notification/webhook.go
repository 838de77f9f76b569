package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// WebhookSink posts each message as JSON to a downstream notification
// service.
type WebhookSink struct {
	url     string
	timeout time.Duration
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{url: url, timeout: timeout}
}

func (w *WebhookSink) Notify(ctx context.Context, msg Message) error {
	timeout := w.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout || timeout == 0 {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	code, body, errs := fiber.Post(w.url).JSON(msg).Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post notification: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("post notification: status %d: %s", code, truncate(body, 200))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
