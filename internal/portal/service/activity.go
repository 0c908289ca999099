package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	defaultActivityLimit = 100
	maxActivityLimit     = 1000
)

// ActivityRecorder is the audit sink the other services write to.
type ActivityRecorder interface {
	Record(ctx context.Context, e domain.ActivityEvent) error
}

// ActivityService appends audit events to the store.
type ActivityService struct {
	Store store.Store
	Now   func() time.Time
}

// Record stamps e with an id and time when missing and appends it.
func (s *ActivityService) Record(ctx context.Context, e domain.ActivityEvent) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown event kind %q", ErrValidation, e.Kind)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = clock(s.Now)
	}
	if e.ID == "" {
		e.ID = idx.NewAt(e.CreatedAt).String()
	}
	if err := s.Store.Activity().AppendEvent(ctx, e); err != nil {
		return storeErr("append activity", err)
	}
	return nil
}

// Recent lists the newest events first.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	limit = min(limit, maxActivityLimit)

	events, err := s.Store.Activity().ListRecentEvents(ctx, limit)
	if err != nil {
		return nil, storeErr("list activity", err)
	}
	return events, nil
}

// recordActivity writes e and only logs a failure. Audit logging must never
// fail the operation that produced the event.
func recordActivity(ctx context.Context, r ActivityRecorder, e domain.ActivityEvent) {
	if r == nil {
		return
	}
	if err := r.Record(ctx, e); err != nil {
		slogx.FromContext(ctx).Warn("failed to record activity",
			slog.String("kind", string(e.Kind)),
			slog.Any("error", err),
		)
	}
}

// clock returns now from f, or the wall clock when f is nil, in UTC at the
// millisecond precision the store keeps.
func clock(f func() time.Time) time.Time {
	if f == nil {
		f = time.Now
	}
	return f().UTC().Truncate(time.Millisecond)
}
