package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/controller"
	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/notify"
	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/sqlite"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testClock is a settable clock shared by a test's services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: t0} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// codeInbox captures the codes a VerificationService sends.
type codeInbox struct {
	mu   sync.Mutex
	last map[string]notify.Message
	sent int
	err  error
}

func newCodeInbox() *codeInbox {
	return &codeInbox{last: map[string]notify.Message{}}
}

func (n *codeInbox) SendCode(_ context.Context, m notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.last[m.Email] = m
	n.sent++
	return nil
}

func (n *codeInbox) code(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.last[email]
	require.True(t, ok, "no code sent to %s", email)
	return m.Code
}

func (n *codeInbox) fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// fakeController records calls. A failing key is either a MAC, failing
// every operation on it, or "op mac" for a single operation.
type fakeController struct {
	mu         sync.Mutex
	failing    map[string]bool
	listErr    error
	stations   []controller.Station
	authorized map[string]int
	calls      []string
}

func newFakeController() *fakeController {
	return &fakeController{failing: map[string]bool{}, authorized: map[string]int{}}
}

var errControllerDown = errors.New("controller unreachable")

func (f *fakeController) record(op, mac string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+" "+mac)
	if f.failing[mac] || f.failing[op+" "+mac] {
		return errControllerDown
	}
	return nil
}

func (f *fakeController) Authorize(_ context.Context, mac string, minutes int) error {
	if err := f.record("authorize", mac); err != nil {
		return err
	}
	f.mu.Lock()
	f.authorized[mac] = minutes
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Unauthorize(_ context.Context, mac string) error {
	if err := f.record("unauthorize", mac); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.authorized, mac)
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Kick(_ context.Context, mac string) error {
	return f.record("kick", mac)
}

func (f *fakeController) ListActive(context.Context) ([]controller.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]controller.Station(nil), f.stations...), nil
}

func (f *fakeController) setFailing(mac string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[mac] = fail
}

func (f *fakeController) failOp(op, mac string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[op+" "+mac] = true
}

func (f *fakeController) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// failingRecorder rejects every event.
type failingRecorder struct{}

func (failingRecorder) Record(context.Context, domain.ActivityEvent) error {
	return errors.New("audit sink down")
}

func createGuestUser(t *testing.T, s *sqlite.Store, email string) domain.User {
	t.Helper()

	u := domain.User{
		ID:        idx.NewAt(t0).String(),
		Email:     email,
		Role:      domain.RoleGuest,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func eventKinds(t *testing.T, s *sqlite.Store) []domain.EventKind {
	t.Helper()

	events, err := s.Activity().ListRecentEvents(context.Background(), 1000)
	require.NoError(t, err)
	kinds := make([]domain.EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}
