package portal_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestAdminGuestManagement(t *testing.T) {
	env := setupPortalContainer(t, relaxedRateLimits())
	ctx := t.Context()

	first, _ := env.connectGuest(t, "kim@example.com", "aa:bb:cc:00:00:01")
	second, _ := env.connectGuest(t, "lee@example.com", "aa:bb:cc:00:00:02")

	admin := env.adminSession(t)

	active, err := admin.ListActiveGuests(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	t.Run("extend", func(t *testing.T) {
		res, err := admin.ExtendGuests(ctx, []string{first.Device.ID, "missing"}, 3)
		require.NoError(t, err)
		require.Equal(t, 1, res.Processed)
		require.Equal(t, []string{"missing"}, res.NotFound)
		require.Empty(t, res.Errors)

		guests, err := admin.ListGuests(ctx, 10)
		require.NoError(t, err)
		for _, g := range guests {
			if g.ID == first.Device.ID {
				require.WithinDuration(t, first.Device.ExpiresAt.Add(3*24*time.Hour), g.ExpiresAt, time.Second)
			}
		}
	})

	t.Run("extend rejects out of range days", func(t *testing.T) {
		_, err := admin.ExtendGuests(ctx, []string{first.Device.ID}, 0)
		requireAPIError(t, err, http.StatusBadRequest, portalsdk.ErrorCodeInvalidRequest)
	})

	t.Run("revoke", func(t *testing.T) {
		res, err := admin.RevokeGuests(ctx, []string{second.Device.ID})
		require.NoError(t, err)
		require.Equal(t, 1, res.Processed)

		active, err := admin.ListActiveGuests(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		require.Equal(t, first.Device.ID, active[0].ID)
	})

	t.Run("activity", func(t *testing.T) {
		events, err := admin.Activity(ctx, 50)
		require.NoError(t, err)

		kinds := map[string]int{}
		for _, e := range events {
			kinds[e.Kind]++
		}
		require.Equal(t, 2, kinds["auth_success"])
		require.Equal(t, 1, kinds["admin_extend"])
		require.Equal(t, 1, kinds["admin_revoke"])
		require.Positive(t, kinds["admin_login"])
	})

	require.NoError(t, admin.Logout(ctx))
}

func TestAdminLoginFailures(t *testing.T) {
	env := setupPortalContainer(t, relaxedRateLimits())
	ctx := t.Context()

	_, err := env.client.AdminLogin(ctx, adminEmail, "wrong-password", "")
	requireAPIError(t, err, http.StatusUnauthorized, portalsdk.ErrorCodeInvalidCredentials)

	_, err = env.client.AdminLogin(ctx, "nobody@example.com", adminPassword, "")
	requireAPIError(t, err, http.StatusUnauthorized, portalsdk.ErrorCodeInvalidCredentials)

	// A guest account never has admin rights even with a valid session.
	_, guest := env.connectGuest(t, "pat@example.com", "aa:bb:cc:00:00:03")
	_, err = guest.Activity(ctx, 10)
	requireAPIError(t, err, http.StatusForbidden, portalsdk.ErrorCodeForbidden)

	_, err = env.client.NewSession("not-a-token", time.Time{}).ListGuests(ctx, 10)
	requireAPIError(t, err, http.StatusUnauthorized, portalsdk.ErrorCodeInvalidToken)
}

func TestAdminTOTP(t *testing.T) {
	env := setupPortalContainer(t, relaxedRateLimits())
	ctx := t.Context()

	admin := env.adminSession(t)

	enrol, err := admin.EnrollTOTP(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, enrol.Secret)
	require.Contains(t, enrol.URL, "otpauth://totp/")
	require.Equal(t, adminEmail, enrol.Account)

	code, err := totp.GenerateCode(enrol.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, admin.EnableTOTP(ctx, code))

	err = admin.EnableTOTP(ctx, code)
	requireAPIError(t, err, http.StatusConflict, portalsdk.ErrorCodeTOTPState)

	_, err = env.client.AdminLogin(ctx, adminEmail, adminPassword, "")
	requireAPIError(t, err, http.StatusUnauthorized, portalsdk.ErrorCodeTOTPRequired)

	code, err = totp.GenerateCode(enrol.Secret, time.Now())
	require.NoError(t, err)
	session, err := env.client.AdminLogin(ctx, adminEmail, adminPassword, code)
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken())
}
