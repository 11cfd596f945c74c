package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/types"
)

const defaultTimeout = 10 * time.Second

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers messages and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendSender sends mail through the Resend API.
type ResendSender struct {
	client  *resend.Client
	from    string
	timeout time.Duration
}

type Option func(*ResendSender)

// WithHTTPClient swaps the transport used to reach Resend.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *ResendSender) {
		if s.client != nil {
			s.client = resend.NewCustomClient(hc, s.client.ApiKey)
		}
	}
}

// New returns a sender for cfg. Without an API key every Send fails with
// NotConfigured.
func New(cfg types.NotifyConfig, opts ...Option) *ResendSender {
	s := &ResendSender{from: cfg.FromEmail, timeout: cfg.Timeout}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if cfg.IsConfigured() {
		s.client = resend.NewClient(cfg.ResendAPIKey)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResendSender) Configured() bool {
	return s != nil && s.client != nil
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	if !s.Configured() {
		return "", &types.NotConfiguredError{Service: "notify"}
	}

	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return "", fmt.Errorf("notify: message has no recipients")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      to,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return "", &types.UpstreamFailureError{Service: "notify", Operation: "send", Err: err}
	}

	log.Info().Strs("to", to).Str("message_id", sent.Id).Msg("notification sent")
	return sent.Id, nil
}
