package controller

import (
	"context"
	"time"
)

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout bounds every call on next by d and reports any failure as an
// *Error. A non-positive d leaves calls unbounded.
func WithTimeout(next Client, d time.Duration) Client {
	return &timeoutClient{next: next, timeout: d}
}

func (c *timeoutClient) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *timeoutClient) Authorize(ctx context.Context, mac string, minutes int) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return wrap("authorize", mac, c.next.Authorize(ctx, mac, minutes))
}

func (c *timeoutClient) Unauthorize(ctx context.Context, mac string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return wrap("unauthorize", mac, c.next.Unauthorize(ctx, mac))
}

func (c *timeoutClient) Kick(ctx context.Context, mac string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return wrap("kick", mac, c.next.Kick(ctx, mac))
}

func (c *timeoutClient) ListActive(ctx context.Context) ([]Station, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	stations, err := c.next.ListActive(ctx)
	if err != nil {
		return nil, wrap("list", "", err)
	}
	return stations, nil
}
