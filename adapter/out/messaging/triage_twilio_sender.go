// Package messaging delivers outbound WhatsApp messages: directly over the Twilio REST
// API, or queued through a Redis stream for the worker process.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"triage_server/core/port/out"
	"triage_server/pkg/httputil"
	"triage_server/pkg/resilience"
)

// DefaultTwilioBaseURL is the Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 1024

var _ out.ReplyMessenger = (*TwilioSender)(nil)

// TwilioConfig holds Twilio credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string // WhatsApp sender number, with or without the "whatsapp:" prefix
	BaseURL    string // overridable for tests
}

// TwilioSender implements out.ReplyMessenger over the Twilio Messages API.
type TwilioSender struct {
	cfg    TwilioConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	log    zerolog.Logger
}

// NewTwilioSender creates a sender. A nil client uses the pooled Twilio client.
func NewTwilioSender(cfg TwilioConfig, client *http.Client, log zerolog.Logger) *TwilioSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	if client == nil {
		client = httputil.NewOptimizedClient(httputil.TwilioClientConfig())
	}
	log = log.With().Str("component", "twilio_sender").Logger()

	cb := resilience.NewBreaker("twilio-api", resilience.BreakerConfig{
		IsSuccessful: func(err error) bool {
			// Rejections of a single message (bad number, opt-out) say nothing about Twilio health.
			var apiErr *TwilioError
			return err == nil || (errors.As(err, &apiErr) && apiErr.Status < 500)
		},
	}, log)

	return &TwilioSender{
		cfg:    cfg,
		client: client,
		cb:     cb,
		log:    log,
	}
}

// TwilioError is a non-2xx answer from the API.
type TwilioError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *TwilioError) Error() string {
	return fmt.Sprintf("twilio: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// Send posts one WhatsApp message.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("twilio: empty recipient")
	}

	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.send(ctx, to, body)
	})
	if err != nil {
		return err
	}

	s.log.Debug().Str("to", to).Int("chars", len(body)).Msg("message sent")
	return nil
}

func (s *TwilioSender) send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", WhatsAppAddress(to))
	form.Set("From", WhatsAppAddress(s.cfg.From))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.AccountSID)
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithContext(ctx, s.client, req)
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &TwilioError{Status: resp.StatusCode}
	if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// BreakerOpen reports whether the breaker currently rejects calls.
func (s *TwilioSender) BreakerOpen() bool {
	return s.cb.State() == gobreaker.StateOpen
}

// WhatsAppAddress adds the channel prefix Twilio expects.
func WhatsAppAddress(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// =============================================================================
// Log Sender
// =============================================================================

var _ out.ReplyMessenger = LogSender{}

// LogSender only logs. Used when Twilio credentials are not configured.
type LogSender struct {
	Log zerolog.Logger
}

func (l LogSender) Send(ctx context.Context, to, body string) error {
	l.Log.Info().Str("to", to).Str("body", body).Msg("outbound message (twilio not configured)")
	return nil
}
