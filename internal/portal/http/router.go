package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	VerificationService *service.VerificationService
	UserService         *service.UserService
	GuestService        *service.GuestService
	SessionService      *service.AdminSessionService
	ActivityService     *service.ActivityService
}

func NewRouter(verifier jwtx.Verifier, buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerPortal()
	r.registerDevices()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerPortal() {
	h := &PortalHandler{
		Verification: r.VerificationService,
		Users:        r.UserService,
		Guests:       r.GuestService,
		Sessions:     r.SessionService,
	}

	// Code issuance sends email, so it is limited per IP and address.
	r.Mux.Handle("POST /v1/portal/code",
		httpx.Chain(http.HandlerFunc(h.HandleRequestCode),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/portal/code/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResend),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	// Attempts are also capped per challenge; this bounds guessing across emails.
	r.Mux.Handle("POST /v1/portal/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerDevices() {
	h := &DevicesHandler{Guests: r.GuestService}

	guest := func(next http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(jwtx.RoleGuest),
			httpx.RateLimitByUser(limit),
		)
	}

	r.Mux.Handle("GET /v1/me/devices", guest(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("PATCH /v1/me/devices/{id}", guest(h.HandleRename, httpx.ModerateLimit))
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		Sessions: r.SessionService,
		Guests:   r.GuestService,
		Activity: r.ActivityService,
	}

	// POST /admin/login - strict, keyed on IP and email to slow password guessing
	r.Mux.Handle("POST /v1/admin/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	admin := func(next http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(jwtx.RoleAdmin),
			httpx.RateLimitByUser(limit),
		)
	}

	r.Mux.Handle("POST /v1/admin/logout", admin(h.HandleLogout, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/admin/totp/enroll", admin(h.HandleEnrollTOTP, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/admin/totp/enable", admin(h.HandleEnableTOTP, httpx.StrictLimit))

	r.Mux.Handle("GET /v1/admin/guests", admin(h.HandleListGuests, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/admin/guests/extend", admin(h.HandleExtend, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/admin/guests/revoke", admin(h.HandleRevoke, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/admin/activity", admin(h.HandleActivity, httpx.LenientLimit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
