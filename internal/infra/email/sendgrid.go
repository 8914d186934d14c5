package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"notify-relay/internal/domain/notification"
)

const sendGridEndpoint = "/v3/mail/send"

// SendGridConfig holds the transactional API settings.
type SendGridConfig struct {
	// APIKey is the SendGrid API key (SENDGRID_API_KEY).
	APIKey string

	// Host overrides the API base URL. Empty means https://api.sendgrid.com.
	Host string

	// DefaultFrom is used when a request has no sender (EMAIL_DEFAULT_FROM).
	DefaultFrom string
}

// SendGridBackend sends email through the SendGrid v3 mail API.
type SendGridBackend struct {
	config SendGridConfig
}

// NewSendGridBackend creates a SendGrid backend.
func NewSendGridBackend(cfg SendGridConfig) *SendGridBackend {
	return &SendGridBackend{config: cfg}
}

// Name returns "sendgrid".
func (b *SendGridBackend) Name() string {
	return "sendgrid"
}

// Send posts one message to the mail/send endpoint.
// A non-2xx status is returned as *APIError, wrapped as rejected when the
// status blames the message (400, 413, ...).
func (b *SendGridBackend) Send(ctx context.Context, req notification.Request) error {
	message, err := b.buildMessage(req)
	if err != nil {
		return err
	}

	// sendgrid.Client mutates its Request on send, so one is built per call.
	request := sendgrid.GetRequest(b.config.APIKey, sendGridEndpoint, b.config.Host)
	request.Method = rest.Post
	client := &sendgrid.Client{Request: request}

	start := time.Now()
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Provider:   b.Name(),
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}
		if rejectedStatus(resp.StatusCode) {
			return notification.Rejected(apiErr)
		}
		return apiErr
	}

	slog.Debug("sendgrid accepted message",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (b *SendGridBackend) buildMessage(req notification.Request) (*mail.SGMailV3, error) {
	from, err := parseSender(firstNonEmpty(req.Sender, b.config.DefaultFrom))
	if err != nil {
		return nil, err
	}
	recipients, err := parseRecipients(req.Recipient)
	if err != nil {
		return nil, err
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(from.Name, from.Address))
	m.Subject = req.Subject

	p := mail.NewPersonalization()
	for _, r := range recipients {
		p.AddTos(mail.NewEmail(r.Name, r.Address))
	}
	m.AddPersonalizations(p)

	// text/plain has to precede text/html.
	m.AddContent(
		mail.NewContent("text/plain", req.Text),
		mail.NewContent("text/html", req.HTML),
	)
	return m, nil
}
