package portalsdk

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyReturnsGuestSession(t *testing.T) {
	t.Parallel()

	expires := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/portal/verify", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "aa:bb:cc:dd:ee:ff", req.MACAddress)

		_ = json.NewEncoder(w).Encode(VerifyResponse{
			UserID:      "u1",
			Device:      Device{ID: "g1", MACAddress: req.MACAddress},
			AccessToken: "tok",
			ExpiresAt:   expires,
		})
	}))
	defer srv.Close()

	res, session, err := NewClient(srv.URL+"/").Verify(t.Context(), VerifyRequest{
		Email:      "sam@example.com",
		Code:       "123456",
		MACAddress: "aa:bb:cc:dd:ee:ff",
	})
	require.NoError(t, err)
	require.Equal(t, "g1", res.Device.ID)
	require.Equal(t, "tok", session.AccessToken())
	require.True(t, expires.Equal(session.ExpiresAt()))
}

func TestSessionSendsBearerToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "/v1/admin/guests", r.URL.Path)
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]Device{{ID: "g1"}, {ID: "g2"}})
	}))
	defer srv.Close()

	session := NewClient(srv.URL).NewSession("tok", time.Now().Add(time.Hour))
	guests, err := session.ListGuests(t.Context(), 5)
	require.NoError(t, err)
	require.Len(t, guests, 2)
}

func TestErrorResponses(t *testing.T) {
	t.Parallel()

	t.Run("rate limited", func(t *testing.T) {
		retryAt := time.Date(2025, 3, 1, 9, 31, 0, 0, time.UTC)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "42")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(ErrorResponse{
				Error:   ErrorCodeRateLimited,
				Details: map[string]any{"retry_at": retryAt},
			})
		}))
		defer srv.Close()

		err := NewClient(srv.URL).ResendCode(t.Context(), "sam@example.com")

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		require.Equal(t, ErrorCodeRateLimited, apiErr.Code)
		require.Equal(t, 42*time.Second, apiErr.RetryAfter)

		at, ok := apiErr.RetryAt()
		require.True(t, ok)
		require.True(t, retryAt.Equal(at))
	})

	t.Run("wrong code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(ErrorResponse{
				Error:   ErrorCodeInvalidCode,
				Details: map[string]any{"attempts_remaining": 3},
			})
		}))
		defer srv.Close()

		_, _, err := NewClient(srv.URL).Verify(t.Context(), VerifyRequest{Email: "a@example.com", Code: "000000", MACAddress: "aa:bb:cc:dd:ee:ff"})

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		left, ok := apiErr.AttemptsRemaining()
		require.True(t, ok)
		require.Equal(t, 3, left)
	})

	t.Run("non json body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).GetReadiness(t.Context())

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		require.Equal(t, "upstream unavailable", apiErr.Description)
	})
}

func TestNoContentEndpoints(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/admin/logout":
			w.WriteHeader(http.StatusNoContent)
		case "/v1/portal/code":
			w.WriteHeader(http.StatusAccepted)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.RequestCode(t.Context(), CodeRequest{Email: "a@example.com"}))
	require.NoError(t, client.NewSession("tok", time.Time{}).Logout(t.Context()))
}
