package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioBaseURL = "https://api.twilio.com"

// TwilioSender sends WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

// TwilioConfig holds Twilio credentials and the sending number.
type TwilioConfig struct {
	// AccountSID is the Twilio account SID.
	AccountSID string
	// AuthToken is the Twilio auth token.
	AuthToken string
	// From is the WhatsApp-enabled sender, e.g. "whatsapp:+14155238886".
	From string
	// BaseURL overrides the API endpoint (used in tests).
	BaseURL string
}

// NewTwilioSender creates a Twilio-backed sender.
func NewTwilioSender(cfg TwilioConfig) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio account SID and auth token are required")
	}
	if cfg.From == "" {
		return nil, errors.New("twilio sender number is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twilioBaseURL
	}

	return &TwilioSender{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Send joins the lines into one message body and posts it to the Twilio
// Messages endpoint. Empty message sets are a no-op.
func (s *TwilioSender) Send(ctx context.Context, to string, lines []string) error {
	body := joinLines(lines)
	if body == "" {
		return nil
	}

	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio send: status %d: %s", resp.StatusCode, string(payload))
	}
	return nil
}

// joinLines drops empty lines and joins the rest with line breaks.
func joinLines(lines []string) string {
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
