package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

type Client struct {
	apiKey      string
	fromEmail   string
	frontendURL string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(apiKey, fromEmail, frontendURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		fromEmail:   fromEmail,
		frontendURL: frontendURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type sendgridAddress struct {
	Email string `json:"email"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridMail struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

// SendMagicLink sends a single-use login link to the address.
func (c *Client) SendMagicLink(toEmail, token string) error {
	link := fmt.Sprintf("%s/auth/verify?token=%s", c.frontendURL, token)
	textBody := fmt.Sprintf("Click here to log in: %s\n\nThis link expires in 15 minutes.", link)
	htmlBody := fmt.Sprintf(
		`<p>Click here to log in: <a href="%s">%s</a></p><p>This link expires in 15 minutes.</p>`,
		link, link,
	)
	return c.send(toEmail, "Your VEOmenu Login Link", textBody, htmlBody)
}

// SendWelcome greets a freshly registered user. Callers treat failures
// as non-fatal; registration succeeds either way.
func (c *Client) SendWelcome(toEmail, userName string) error {
	textBody := fmt.Sprintf(
		"Welcome to VEOmenu, %s!\n\nYour account is ready. Create your first menu, add your dishes and share your QR code with customers.\n\nDashboard: %s/dashboard",
		userName, c.frontendURL,
	)
	htmlBody := fmt.Sprintf(
		`<h1>Welcome to VEOmenu, %s! 🎉</h1><p>Your account is ready. Create your first menu, add your dishes and share your QR code with customers.</p><p><a href="%s/dashboard">Go to your dashboard</a></p>`,
		userName, c.frontendURL,
	)
	return c.send(toEmail, "Welcome to VEOmenu! 🎉", textBody, htmlBody)
}

func (c *Client) send(toEmail, subject, textBody, htmlBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing API key")
	}

	payload := sendgridMail{
		Personalizations: []sendgridPersonalization{{To: []sendgridAddress{{Email: toEmail}}}},
		From:             sendgridAddress{Email: c.fromEmail},
		Subject:          subject,
		// The v3 API requires text/plain before text/html.
		Content: []sendgridContent{
			{Type: "text/plain", Value: textBody},
			{Type: "text/html", Value: htmlBody},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.sendgrid.com/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid API error: status %d", resp.StatusCode)
	}

	return nil
}
