/*
Package portalsdk is a client for the guest portal HTTP API.

A Client covers the unauthenticated captive portal flow and the health
probes. Verify and AdminLogin return a Session that carries the bearer
token for the guest device and admin endpoints:

	client := portalsdk.NewClient("https://portal.example.com")

	_ = client.RequestCode(ctx, portalsdk.CodeRequest{Email: "sam@example.com"})
	res, session, err := client.Verify(ctx, portalsdk.VerifyRequest{
		Email:      "sam@example.com",
		Code:       "123456",
		MACAddress: "aa:bb:cc:dd:ee:ff",
	})

	devices, err := session.ListDevices(ctx)

Non-2xx responses come back as *APIError. Use errors.As to read the error
code, the Retry-After hint on rate limited requests, or the remaining
verification attempts.
*/
package portalsdk
