package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const DefaultPostmarkEndpoint = "https://api.postmarkapp.com/email"

// Postmark sends codes through the Postmark transactional email API.
type Postmark struct {
	serverToken string
	fromEmail   string
	siteName    string
	endpoint    string
	httpClient  *http.Client
}

type Option func(*Postmark)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Postmark) {
		p.httpClient = c
	}
}

func WithEndpoint(url string) Option {
	return func(p *Postmark) {
		p.endpoint = url
	}
}

// WithSiteName sets the network name used in subjects and bodies.
func WithSiteName(name string) Option {
	return func(p *Postmark) {
		if name != "" {
			p.siteName = name
		}
	}
}

func NewPostmark(serverToken, fromEmail string, opts ...Option) *Postmark {
	p := &Postmark{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		siteName:    "Guest WiFi",
		endpoint:    DefaultPostmarkEndpoint,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured returns true if the server token is set.
func (p *Postmark) Configured() bool {
	return p.serverToken != ""
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream,omitempty"`
}

func (p *Postmark) SendCode(ctx context.Context, msg Message) error {
	if !p.Configured() {
		return fmt.Errorf("postmark: not configured: missing server token")
	}

	greeting := "Hi"
	if msg.Name != "" {
		greeting = "Hi " + msg.Name
	}
	minutes := int(msg.ExpiresIn.Round(time.Minute).Minutes())

	textBody := fmt.Sprintf("%s,\n\nYour %s verification code is %s.\n\nIt expires in %d minutes.",
		greeting, p.siteName, msg.Code, minutes)
	htmlBody := fmt.Sprintf(
		`<p>%s,</p><p>Your %s verification code is</p><p style="font-size:24px"><strong>%s</strong></p><p>It expires in %d minutes.</p>`,
		greeting, p.siteName, msg.Code, minutes,
	)

	payload := postmarkEmail{
		From:          p.fromEmail,
		To:            msg.Email,
		Subject:       fmt.Sprintf("Your %s code: %s", p.siteName, msg.Code),
		HtmlBody:      htmlBody,
		TextBody:      textBody,
		MessageStream: "outbound",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("postmark: marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("postmark: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.serverToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("postmark: send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			ErrorCode int    `json:"ErrorCode"`
			Message   string `json:"Message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("postmark: api error: status %d: %s", resp.StatusCode, apiErr.Message)
	}
	return nil
}
