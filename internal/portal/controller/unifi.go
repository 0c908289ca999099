package controller

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/portal/pkg/slogx"
	"github.com/sethvargo/go-retry"
)

const (
	msgLoginRequired  = "api.err.LoginRequired"
	msgUnknownStation = "api.err.UnknownStation"
)

var errLoginRequired = errors.New("login required")

// APIError is an explicit rejection reported in the controller's response
// envelope.
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Msg)
}

// UniFiClient talks to a UniFi Network controller's JSON API using a cookie
// session. The session is established lazily and re-established when the
// controller answers 401.
type UniFiClient struct {
	baseURL  string
	site     string
	username string
	password string

	httpClient *http.Client
	retries    uint64
	retryBase  time.Duration

	mu       sync.Mutex
	loggedIn bool
}

type Option func(*UniFiClient)

func WithHTTPClient(c *http.Client) Option {
	return func(u *UniFiClient) {
		u.httpClient = c
	}
}

func WithSite(site string) Option {
	return func(u *UniFiClient) {
		if site != "" {
			u.site = site
		}
	}
}

// WithRetries sets how many times a transient failure is retried and the
// base of the exponential backoff between tries.
func WithRetries(n uint64, base time.Duration) Option {
	return func(u *UniFiClient) {
		u.retries = n
		u.retryBase = base
	}
}

// WithInsecureTLS skips certificate verification. Controllers commonly ship
// with a self-signed certificate.
func WithInsecureTLS() Option {
	return func(u *UniFiClient) {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
		u.httpClient.Transport = t
	}
}

func NewUniFiClient(baseURL, username, password string, opts ...Option) (*UniFiClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	u := &UniFiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		site:       "default",
		username:   username,
		password:   password,
		httpClient: &http.Client{Jar: jar},
		retries:    2,
		retryBase:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.httpClient.Jar == nil {
		c := *u.httpClient
		c.Jar = jar
		u.httpClient = &c
	}
	return u, nil
}

type stamgrCmd struct {
	Cmd     string `json:"cmd"`
	MAC     string `json:"mac"`
	Minutes int    `json:"minutes,omitempty"`
}

func (u *UniFiClient) Authorize(ctx context.Context, mac string, minutes int) error {
	err := u.call(ctx, http.MethodPost, u.sitePath("cmd/stamgr"),
		stamgrCmd{Cmd: "authorize-guest", MAC: mac, Minutes: minutes}, nil)
	return wrap("authorize", mac, err)
}

func (u *UniFiClient) Unauthorize(ctx context.Context, mac string) error {
	err := u.call(ctx, http.MethodPost, u.sitePath("cmd/stamgr"),
		stamgrCmd{Cmd: "unauthorize-guest", MAC: mac}, nil)
	return wrap("unauthorize", mac, ignoreUnknownStation(err))
}

func (u *UniFiClient) Kick(ctx context.Context, mac string) error {
	err := u.call(ctx, http.MethodPost, u.sitePath("cmd/stamgr"),
		stamgrCmd{Cmd: "kick-sta", MAC: mac}, nil)
	return wrap("kick", mac, ignoreUnknownStation(err))
}

type unifiStation struct {
	MAC        string `json:"mac"`
	IP         string `json:"ip"`
	Signal     int    `json:"signal"`
	IsGuest    bool   `json:"is_guest"`
	Authorized bool   `json:"authorized"`
}

// ListActive returns the associated guest stations.
func (u *UniFiClient) ListActive(ctx context.Context) ([]Station, error) {
	var raw []unifiStation
	if err := u.call(ctx, http.MethodGet, u.sitePath("stat/sta"), nil, &raw); err != nil {
		return nil, wrap("list", "", err)
	}

	out := make([]Station, 0, len(raw))
	for _, s := range raw {
		if !s.IsGuest {
			continue
		}
		mac, err := NormalizeMAC(s.MAC)
		if err != nil {
			continue
		}
		out = append(out, Station{MAC: mac, IP: s.IP, Signal: s.Signal, Authorized: s.Authorized})
	}
	return out, nil
}

func ignoreUnknownStation(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Msg == msgUnknownStation {
		return nil
	}
	return err
}

func (u *UniFiClient) sitePath(p string) string {
	return "/api/s/" + u.site + "/" + p
}

func (u *UniFiClient) backoff() retry.Backoff {
	return retry.WithMaxRetries(u.retries, retry.NewExponential(u.retryBase))
}

// call performs one API request, logging in first when needed and once more
// if the session has lapsed. Transient failures are retried until ctx ends.
func (u *UniFiClient) call(ctx context.Context, method, path string, body, out any) error {
	return retry.Do(ctx, u.backoff(), func(ctx context.Context) error {
		if err := u.ensureLogin(ctx); err != nil {
			return err
		}

		err := u.roundTrip(ctx, method, path, body, out)
		if errors.Is(err, errLoginRequired) {
			slogx.FromContext(ctx).Debug("controller session expired, logging in again")
			u.invalidate()
			if err := u.ensureLogin(ctx); err != nil {
				return err
			}
			err = u.roundTrip(ctx, method, path, body, out)
		}
		return err
	})
}

func (u *UniFiClient) ensureLogin(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.loggedIn {
		return nil
	}

	creds := map[string]string{"username": u.username, "password": u.password}
	if err := u.roundTrip(ctx, http.MethodPost, "/api/login", creds, nil); err != nil {
		if errors.Is(err, errLoginRequired) {
			return &APIError{Status: http.StatusUnauthorized, Msg: "login rejected"}
		}
		return fmt.Errorf("login: %w", err)
	}
	u.loggedIn = true
	return nil
}

func (u *UniFiClient) invalidate() {
	u.mu.Lock()
	u.loggedIn = false
	u.mu.Unlock()
}

type envelope struct {
	Meta struct {
		RC  string `json:"rc"`
		Msg string `json:"msg"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// roundTrip sends one request. Transport errors and 5xx answers are marked
// retryable; explicit rejections are not.
func (u *UniFiClient) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errLoginRequired
	}

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env)

	if resp.StatusCode >= 500 {
		return retry.RetryableError(&APIError{Status: resp.StatusCode, Msg: env.Meta.Msg})
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, decodeErr)
	}
	if env.Meta.RC != "ok" {
		if env.Meta.Msg == msgLoginRequired {
			return errLoginRequired
		}
		return &APIError{Status: resp.StatusCode, Msg: env.Meta.Msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
