package httpx_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestAuthnAndRequireRole(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	keys, err := jwtx.NewSessionKeys(priv, "portal-test")
	require.NoError(t, err)

	token := func(role string) string {
		tok, err := keys.Sign(jwtx.NewSessionClaims("user-1", role, "", nil, "portal-test", time.Hour, time.Now()))
		require.NoError(t, err)
		return tok
	}

	var seenUser string
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = httpx.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := httpx.Chain(final, httpx.AuthnMiddleware(keys), httpx.RequireRole(jwtx.RoleAdmin))

	call := func(authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing token", func(t *testing.T) {
		rec := call("")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer"))
	})

	t.Run("bad token", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, call("Bearer nope").Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		require.Equal(t, http.StatusForbidden, call("Bearer "+token(jwtx.RoleGuest)).Code)
	})

	t.Run("admin passes", func(t *testing.T) {
		rec := call("Bearer " + token(jwtx.RoleAdmin))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", seenUser)
	})
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	t.Run("ok", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
		var b body
		require.NoError(t, httpx.DecodeJSON(httptest.NewRecorder(), req, &b))
		require.Equal(t, "a@b.c", b.Email)
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","x":1}`))
		var b body
		require.Error(t, httpx.DecodeJSON(httptest.NewRecorder(), req, &b))
	})

	t.Run("trailing data", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}{}`))
		var b body
		require.Error(t, httpx.DecodeJSON(httptest.NewRecorder(), req, &b))
	})
}
