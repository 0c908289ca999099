package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/portal/internal/portal/controller"
	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// ReconcileReport summarises one sweep.
type ReconcileReport struct {
	Stations     int // guest stations the controller reported
	Connected    int // newly connected since the previous sweep
	Disconnected int
	Evicted      int // authorized stations removed for lacking an active grant
	Reasserted   int // active grants pushed to the controller
}

// Reconcile closes the drift between the store and the controller. It
// records sightings and connect/disconnect transitions, evicts authorized
// stations with no active grant, and re-asserts the remaining minutes of every
// active grant. A controller failure ends the sweep; the next one starts
// over.
func (s *GuestService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	log := slogx.FromContext(ctx)
	client := s.client()
	var report ReconcileReport

	stations, err := client.ListActive(ctx)
	if err != nil {
		return report, err
	}
	report.Stations = len(stations)

	now := clock(s.Now)
	active, err := s.Store.Guests().ListActiveGuests(ctx, now)
	if err != nil {
		return report, storeErr("list active guests", err)
	}

	// Active grants come back ordered by expiry, so the last grant per MAC
	// is the one that lasts longest.
	grants := make(map[string]domain.GuestAuthorization, len(active))
	for _, g := range active {
		grants[g.MACAddress] = g
	}

	connected := make(map[string]struct{}, len(stations))
	for _, st := range stations {
		mac, err := controller.NormalizeMAC(st.MAC)
		if err != nil {
			continue
		}

		g, ok := grants[mac]
		if !ok {
			// Still on the captive portal, possibly mid-verification.
			if !st.Authorized {
				continue
			}
			log.Info("evicting station without an active grant", slog.String("mac", mac))
			if err := client.Unauthorize(ctx, mac); err != nil {
				return report, err
			}
			if err := client.Kick(ctx, mac); err != nil {
				return report, err
			}
			report.Evicted++
			continue
		}

		connected[mac] = struct{}{}
		if _, err := s.Store.Guests().TouchGuestsByMAC(ctx, mac, st.IP, now); err != nil {
			log.Warn("failed to record sighting", slog.String("mac", mac), slog.Any("error", err))
		}

		if _, seen := s.connected[mac]; !seen {
			report.Connected++
			recordActivity(ctx, s.Activity, domain.ActivityEvent{
				Kind:       domain.EventConnect,
				UserID:     g.OwnerUserID,
				GuestID:    g.ID,
				MACAddress: mac,
				Detail:     map[string]any{"ip": st.IP, "signal": st.Signal},
				CreatedAt:  now,
			})
		}
	}

	for mac := range s.connected {
		if _, still := connected[mac]; still {
			continue
		}
		report.Disconnected++
		ev := domain.ActivityEvent{Kind: domain.EventDisconnect, MACAddress: mac, CreatedAt: now}
		if g, ok := grants[mac]; ok {
			ev.UserID, ev.GuestID = g.OwnerUserID, g.ID
		}
		recordActivity(ctx, s.Activity, ev)
	}
	s.connected = connected

	for mac, g := range grants {
		if err := client.Authorize(ctx, mac, g.MinutesUntilExpiry(now)); err != nil {
			return report, err
		}
		report.Reasserted++
	}
	return report, nil
}
