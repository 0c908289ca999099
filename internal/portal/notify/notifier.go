// Package notify delivers verification codes to guests.
package notify

import (
	"context"
	"time"
)

// Message is one verification code delivery.
type Message struct {
	Email     string
	Name      string
	Code      string
	ExpiresIn time.Duration
}

type Notifier interface {
	SendCode(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) SendCode(ctx context.Context, msg Message) error { return f(ctx, msg) }
