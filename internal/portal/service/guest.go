package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/controller"
	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultGuestAuthDays     = 7
	DefaultMaxExtendDays     = 30
	DefaultControllerTimeout = 5 * time.Second
	DefaultBatchConcurrency  = 4

	maxNicknameLength   = 64
	maxDeviceInfoLength = 512
	defaultGuestListing = 200
)

const day = 24 * time.Hour

// GuestService owns the guest authorisation lifecycle and mirrors it onto
// the network controller. The store is the system of record: every
// mutation commits locally first and the controller call that follows can
// fail without undoing it.
//
// A grant is Active while expiresAt > now and Expired otherwise. Authorize
// and ExtendMany move it to Active, RevokeMany or the passage of time move
// it to Expired. Rows are never deleted.
type GuestService struct {
	Store      store.Store
	Controller controller.Client
	Activity   ActivityRecorder
	Now        func() time.Time

	DefaultAuthDays   int
	MaxExtendDays     int
	ControllerTimeout time.Duration
	BatchConcurrency  int

	// reconcileMu serialises Reconcile sweeps and guards connected.
	reconcileMu sync.Mutex
	connected   map[string]struct{}
}

type AuthorizeRequest struct {
	OwnerUserID  string
	MACAddress   string
	IPAddress    string
	DeviceInfo   string
	DurationDays int // 0 uses DefaultAuthDays
}

type AuthorizeResult struct {
	Record      domain.GuestAuthorization
	IsReturning bool

	// ControllerSynced is false when the controller could not be told
	// about the grant. The grant is valid locally either way.
	ControllerSynced bool
}

// GuestView is a grant with its expiry evaluated at read time.
type GuestView struct {
	domain.GuestAuthorization
	IsExpired bool
}

// ItemError is the failure of one item in a batch. Committed is true when
// the local change succeeded and only the controller mirror failed.
type ItemError struct {
	ID        string
	Err       error
	Committed bool
}

// BatchResult aggregates a batch. Processed + Failed equals the number of
// ids that were found; NotFound lists the rest.
type BatchResult struct {
	Processed int
	Failed    int
	NotFound  []string
	Errors    []ItemError
}

func (s *GuestService) defaultDays() int {
	if s.DefaultAuthDays <= 0 {
		return DefaultGuestAuthDays
	}
	return s.DefaultAuthDays
}

func (s *GuestService) maxExtendDays() int {
	if s.MaxExtendDays <= 0 {
		return DefaultMaxExtendDays
	}
	return s.MaxExtendDays
}

func (s *GuestService) concurrency() int {
	if s.BatchConcurrency <= 0 {
		return DefaultBatchConcurrency
	}
	return s.BatchConcurrency
}

// client bounds every controller call and reports failures as
// *controller.Error.
func (s *GuestService) client() controller.Client {
	c := s.Controller
	if c == nil {
		c = controller.Noop{}
	}
	timeout := s.ControllerTimeout
	if timeout <= 0 {
		timeout = DefaultControllerTimeout
	}
	return controller.WithTimeout(c, timeout)
}

// mirrorContext detaches controller calls from the caller's cancellation.
// They are bounded by the controller timeout instead.
func mirrorContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func view(g domain.GuestAuthorization, now time.Time) GuestView {
	return GuestView{GuestAuthorization: g, IsExpired: g.IsExpired(now)}
}

// Authorize grants or renews access for (owner, mac). A returning device
// keeps its id and history; its expiry restarts from now.
func (s *GuestService) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	log := slogx.FromContext(ctx)

	mac, err := controller.NormalizeMAC(req.MACAddress)
	if err != nil {
		return AuthorizeResult{}, ErrInvalidMAC
	}
	if strings.TrimSpace(req.OwnerUserID) == "" {
		return AuthorizeResult{}, fmt.Errorf("%w: owner required", ErrValidation)
	}
	days := req.DurationDays
	if days == 0 {
		days = s.defaultDays()
	}
	if days < 0 {
		return AuthorizeResult{}, ErrInvalidDuration
	}
	deviceInfo := truncate(strings.TrimSpace(req.DeviceInfo), maxDeviceInfoLength)
	ip := strings.TrimSpace(req.IPAddress)

	now := clock(s.Now)
	expiresAt := now.Add(time.Duration(days) * day)

	var (
		rec       domain.GuestAuthorization
		returning bool
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.Guests().GetGuestByOwnerAndMAC(ctx, req.OwnerUserID, mac)
		switch {
		case err == nil:
			returning = true
			rec, err = tx.Guests().RenewGuest(ctx, store.RenewGuestParams{
				ID:         existing.ID,
				IPAddress:  ip,
				DeviceInfo: deviceInfo,
				LastSeen:   now,
				ExpiresAt:  expiresAt,
			})
			return err
		case errors.Is(err, store.ErrNotFound):
			rec = domain.GuestAuthorization{
				ID:           idx.NewAt(now).String(),
				MACAddress:   mac,
				OwnerUserID:  req.OwnerUserID,
				IPAddress:    ip,
				DeviceInfo:   deviceInfo,
				AuthorizedAt: now,
				ExpiresAt:    expiresAt,
				LastSeen:     now,
				AuthCount:    1,
			}
			return tx.Guests().CreateGuest(ctx, rec)
		default:
			return err
		}
	})
	if err != nil {
		return AuthorizeResult{}, storeErr("authorize guest", err)
	}

	ctrlErr := s.client().Authorize(mirrorContext(ctx), mac, rec.MinutesUntilExpiry(now))
	if ctrlErr != nil {
		log.Warn("controller authorize failed, guest authorised locally only",
			slog.String("guest_id", rec.ID),
			slog.String("mac", mac),
			slog.Any("error", ctrlErr),
		)
	}
	synced := ctrlErr == nil

	recordActivity(ctx, s.Activity, domain.ActivityEvent{
		Kind:       domain.EventAuthSuccess,
		UserID:     rec.OwnerUserID,
		GuestID:    rec.ID,
		MACAddress: mac,
		Detail: map[string]any{
			"mac":               mac,
			"ip":                ip,
			"returning":         returning,
			"controller_synced": synced,
			"expires_at":        rec.ExpiresAt,
			"auth_count":        rec.AuthCount,
		},
		CreatedAt: now,
	})

	return AuthorizeResult{Record: rec, IsReturning: returning, ControllerSynced: synced}, nil
}

type itemStatus int

const (
	itemProcessed itemStatus = iota
	itemFailed
	itemNotFound
)

type itemOutcome struct {
	status itemStatus
	err    error // store error when failed, controller error when processed
}

// runBatch applies fn to every id with bounded concurrency. Items never
// affect each other and no error escapes as the call's error.
func (s *GuestService) runBatch(ctx context.Context, ids []string, fn func(ctx context.Context, id string) itemOutcome) BatchResult {
	ids = dedupe(ids)
	outcomes := make([]itemOutcome, len(ids))

	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = fn(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	var res BatchResult
	for i, o := range outcomes {
		switch o.status {
		case itemNotFound:
			res.NotFound = append(res.NotFound, ids[i])
		case itemFailed:
			res.Failed++
			res.Errors = append(res.Errors, ItemError{ID: ids[i], Err: o.err})
		case itemProcessed:
			res.Processed++
			if o.err != nil {
				res.Errors = append(res.Errors, ItemError{ID: ids[i], Err: o.err, Committed: true})
			}
		}
	}
	return res
}

// ExtendMany pushes each grant's expiry to max(expiresAt, now) + days, so a
// still-valid grant is never shortened.
func (s *GuestService) ExtendMany(ctx context.Context, actorID string, ids []string, days int) (BatchResult, error) {
	if days < 1 || days > s.maxExtendDays() {
		return BatchResult{}, ErrInvalidDuration
	}
	client := s.client()

	res := s.runBatch(ctx, ids, func(ctx context.Context, id string) itemOutcome {
		log := slogx.FromContext(ctx).With(slog.String("guest_id", id))
		now := clock(s.Now)

		rec, err := s.Store.Guests().ExtendGuest(ctx, id, now, time.Duration(days)*day)
		if errors.Is(err, store.ErrNotFound) {
			return itemOutcome{status: itemNotFound}
		}
		if err != nil {
			log.Error("failed to extend guest", slog.Any("error", err))
			return itemOutcome{status: itemFailed, err: storeErr("extend guest", err)}
		}

		ctrlErr := client.Authorize(mirrorContext(ctx), rec.MACAddress, rec.MinutesUntilExpiry(now))
		if ctrlErr != nil {
			log.Warn("controller authorize failed after extend", slog.Any("error", ctrlErr))
		}

		recordActivity(ctx, s.Activity, domain.ActivityEvent{
			Kind:       domain.EventAdminExtend,
			UserID:     actorID,
			GuestID:    rec.ID,
			MACAddress: rec.MACAddress,
			Detail: map[string]any{
				"days":              days,
				"expires_at":        rec.ExpiresAt,
				"owner_user_id":     rec.OwnerUserID,
				"controller_synced": ctrlErr == nil,
			},
			CreatedAt: now,
		})
		return itemOutcome{status: itemProcessed, err: ctrlErr}
	})
	return res, nil
}

// RevokeMany ends each grant now and removes the device from the
// controller. Kick is attempted even when unauthorize fails.
func (s *GuestService) RevokeMany(ctx context.Context, actorID string, ids []string) (BatchResult, error) {
	client := s.client()

	res := s.runBatch(ctx, ids, func(ctx context.Context, id string) itemOutcome {
		log := slogx.FromContext(ctx).With(slog.String("guest_id", id))
		now := clock(s.Now)

		rec, err := s.Store.Guests().RevokeGuest(ctx, id, now)
		if errors.Is(err, store.ErrNotFound) {
			return itemOutcome{status: itemNotFound}
		}
		if err != nil {
			log.Error("failed to revoke guest", slog.Any("error", err))
			return itemOutcome{status: itemFailed, err: storeErr("revoke guest", err)}
		}

		mctx := mirrorContext(ctx)
		ctrlErr := errors.Join(
			client.Unauthorize(mctx, rec.MACAddress),
			client.Kick(mctx, rec.MACAddress),
		)
		if ctrlErr != nil {
			log.Warn("controller revoke failed", slog.Any("error", ctrlErr))
		}

		recordActivity(ctx, s.Activity, domain.ActivityEvent{
			Kind:       domain.EventAdminRevoke,
			UserID:     actorID,
			GuestID:    rec.ID,
			MACAddress: rec.MACAddress,
			Detail: map[string]any{
				"owner_user_id":     rec.OwnerUserID,
				"controller_synced": ctrlErr == nil,
			},
			CreatedAt: now,
		})
		return itemOutcome{status: itemProcessed, err: ctrlErr}
	})
	return res, nil
}

func (s *GuestService) Get(ctx context.Context, id string) (GuestView, error) {
	g, err := s.Store.Guests().GetGuestByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return GuestView{}, ErrRecordNotFound
	}
	if err != nil {
		return GuestView{}, storeErr("get guest", err)
	}
	return view(g, clock(s.Now)), nil
}

func (s *GuestService) ListForUser(ctx context.Context, ownerUserID string) ([]GuestView, error) {
	guests, err := s.Store.Guests().ListGuestsByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, storeErr("list guests by owner", err)
	}
	return views(guests, clock(s.Now)), nil
}

func (s *GuestService) ListActive(ctx context.Context) ([]GuestView, error) {
	now := clock(s.Now)
	guests, err := s.Store.Guests().ListActiveGuests(ctx, now)
	if err != nil {
		return nil, storeErr("list active guests", err)
	}
	return views(guests, now), nil
}

// ListRecent returns grants of any state, most recently seen first.
func (s *GuestService) ListRecent(ctx context.Context, limit int) ([]GuestView, error) {
	if limit <= 0 {
		limit = defaultGuestListing
	}
	guests, err := s.Store.Guests().ListGuests(ctx, limit)
	if err != nil {
		return nil, storeErr("list guests", err)
	}
	return views(guests, clock(s.Now)), nil
}

// Rename sets the nickname of a grant the caller owns. Grants owned by
// someone else read as not found.
func (s *GuestService) Rename(ctx context.Context, ownerUserID, id, nickname string) (GuestView, error) {
	nickname = strings.TrimSpace(nickname)
	if len(nickname) > maxNicknameLength {
		return GuestView{}, fmt.Errorf("%w: nickname too long", ErrValidation)
	}

	g, err := s.Store.Guests().RenameGuest(ctx, ownerUserID, id, nickname)
	if errors.Is(err, store.ErrNotFound) {
		return GuestView{}, ErrRecordNotFound
	}
	if err != nil {
		return GuestView{}, storeErr("rename guest", err)
	}
	return view(g, clock(s.Now)), nil
}

func views(guests []domain.GuestAuthorization, now time.Time) []GuestView {
	out := make([]GuestView, len(guests))
	for i, g := range guests {
		out[i] = view(g, now)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
