package sms

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrNotConfigured is returned when Twilio credentials are missing. The
// text is shown to users as-is in degraded responses.
var ErrNotConfigured = errors.New("SMS service not configured. Please contact support.")

type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(accountSID, authToken, fromNumber string, opts ...Option) *Client {
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if account credentials are set.
func (c *Client) Configured() bool {
	return c.accountSID != "" && c.authToken != ""
}

// SendVerificationCode texts a one-time code to the number.
func (c *Client) SendVerificationCode(toNumber, code string) error {
	body := fmt.Sprintf("Your VEOmenu verification code is: %s. This code expires in 10 minutes.", code)
	return c.send(toNumber, body)
}

func (c *Client) send(toNumber, body string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", c.accountSID)
	req, err := http.NewRequest("POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("twilio API error: status %d", resp.StatusCode)
	}

	return nil
}
