// Package notify delivers best-effort outbound messages such as
// booking confirmation texts. Delivery failures never affect the
// booking they describe.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, toPhone, body string) error
}

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioSender sends SMS through the Twilio Messages REST endpoint.
// Twilio speaks application/x-www-form-urlencoded with basic auth;
// a plain http.Client is all it takes.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	client     *http.Client
	baseURL    string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{Timeout: 10 * time.Second},
		baseURL:    twilioAPIBase,
	}
}

func (s *TwilioSender) Send(ctx context.Context, toPhone, body string) error {
	form := url.Values{}
	form.Set("To", toPhone)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: twilio status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
