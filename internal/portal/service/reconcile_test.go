package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/controller"
	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)
	ctx := context.Background()

	granted := f.seedGuest(t, "aa:bb:cc:dd:ee:60", t0.Add(time.Hour))
	f.seedGuest(t, "aa:bb:cc:dd:ee:61", t0.Add(-time.Hour))

	f.ctrl.stations = []controller.Station{
		{MAC: "AA:BB:CC:DD:EE:60", IP: "10.0.0.60", Signal: -50},
		{MAC: "aa:bb:cc:dd:ee:61", IP: "10.0.0.61", Authorized: true},
		{MAC: "garbage"},
	}
	f.clock.Advance(time.Minute)

	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, ReconcileReport{
		Stations:   3,
		Connected:  1,
		Evicted:    1,
		Reasserted: 1,
	}, report)

	calls := f.ctrl.callLog()
	require.Contains(t, calls, "unauthorize aa:bb:cc:dd:ee:61")
	require.Contains(t, calls, "kick aa:bb:cc:dd:ee:61")
	require.Equal(t, 59, f.ctrl.authorized[granted.MACAddress])

	got, err := f.svc.Get(ctx, granted.ID)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.60", got.IPAddress)
	require.Equal(t, f.clock.Now(), got.LastSeen)
	require.Contains(t, eventKinds(t, f.store), domain.EventConnect)

	t.Run("steady state records no transitions", func(t *testing.T) {
		f.ctrl.stations = f.ctrl.stations[:1]
		report, err := f.svc.Reconcile(ctx)
		require.NoError(t, err)
		require.Zero(t, report.Connected)
		require.Zero(t, report.Disconnected)
	})

	t.Run("departed station is a disconnect", func(t *testing.T) {
		f.ctrl.stations = nil
		report, err := f.svc.Reconcile(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, report.Disconnected)
		require.Equal(t, 1, report.Reasserted)
		require.Contains(t, eventKinds(t, f.store), domain.EventDisconnect)
	})
}

func TestReconcileLeavesPendingStationsAlone(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	f.ctrl.stations = []controller.Station{
		{MAC: "aa:bb:cc:dd:ee:99", IP: "10.0.0.99"},
	}

	report, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReconcileReport{Stations: 1}, report)
	require.Empty(t, f.ctrl.callLog())
}

func TestReconcileControllerDown(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)
	f.ctrl.listErr = errControllerDown

	_, err := f.svc.Reconcile(context.Background())
	require.ErrorIs(t, err, controller.ErrController)
	require.ErrorIs(t, err, errControllerDown)
}
