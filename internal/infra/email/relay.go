package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"

	"notify-relay/internal/domain/notification"
)

// RelayConfig holds the outbound SMTP relay settings.
type RelayConfig struct {
	Host string
	Port int

	// Secure selects implicit TLS (SMTPS). When false the session is
	// upgraded with STARTTLS if the relay advertises it.
	Secure bool

	User     string
	Password string

	// From is the default sender. Falls back to User.
	From string

	// Timeout bounds one whole delivery attempt, including the dial and
	// the greeting.
	Timeout time.Duration

	// LocalName is sent in EHLO. Defaults to "localhost".
	LocalName string

	// TLSConfig overrides the TLS client configuration. Optional.
	TLSConfig *tls.Config
}

// Addr returns host:port.
func (c RelayConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RelayBackend delivers email through an SMTP relay.
type RelayBackend struct {
	config RelayConfig
}

// NewRelayBackend creates an SMTP relay backend.
func NewRelayBackend(cfg RelayConfig) *RelayBackend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	return &RelayBackend{config: cfg}
}

// Name returns "smtp".
func (b *RelayBackend) Name() string {
	return "smtp"
}

// Send opens one SMTP session and submits the message.
func (b *RelayBackend) Send(ctx context.Context, req notification.Request) error {
	from, err := parseSender(firstNonEmpty(req.Sender, b.config.From, b.config.User))
	if err != nil {
		return err
	}
	recipients, err := parseRecipients(req.Recipient)
	if err != nil {
		return err
	}

	body, err := buildMIME(from, recipients, req)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	client, stop, err := b.dial(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return fmt.Errorf("dial smtp relay %s: %w", b.config.Addr(), err)
	}
	defer stop()
	defer func() { _ = client.Close() }()

	if err := b.submit(client, from.Address, recipients, body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ctxErr, err)
		}
		return err
	}

	slog.Debug("smtp relay accepted message",
		slog.String("relay", b.config.Addr()),
		slog.Int("recipients", len(recipients)))
	return nil
}

// dial returns a client that has completed EHLO. Without Secure the first
// session only reads the EHLO extensions; when the relay offers STARTTLS
// the message goes over a second, upgraded session.
func (b *RelayBackend) dial(ctx context.Context) (*smtp.Client, func() bool, error) {
	if b.config.Secure {
		return b.open(ctx, true, false)
	}

	client, stop, err := b.open(ctx, false, false)
	if err != nil {
		return nil, nil, err
	}
	if ok, _ := client.Extension("STARTTLS"); !ok {
		return client, stop, nil
	}
	_ = client.Quit()
	stop()

	return b.open(ctx, false, true)
}

// open connects and greets. The connection is closed as soon as ctx ends,
// so a relay that never answers cannot outlive Timeout.
func (b *RelayBackend) open(ctx context.Context, implicitTLS, startTLS bool) (*smtp.Client, func() bool, error) {
	dialer := &net.Dialer{Timeout: b.config.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if implicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: b.tlsConfig()}).DialContext(ctx, "tcp", b.config.Addr())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", b.config.Addr())
	}
	if err != nil {
		return nil, nil, err
	}
	// go-smtp のクライアントは context を受け取らないので、キャンセル時に接続を閉じる
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	var client *smtp.Client
	if startTLS {
		client, err = smtp.NewClientStartTLS(conn, b.tlsConfig())
		if err != nil {
			stop()
			return nil, nil, fmt.Errorf("starttls: %w", err)
		}
	} else {
		client = smtp.NewClient(conn)
	}
	client.CommandTimeout = b.config.Timeout
	client.SubmissionTimeout = b.config.Timeout

	// STARTTLS 後は didHello がリセットされるので、ここで名乗り直す
	if err := client.Hello(b.config.LocalName); err != nil {
		stop()
		_ = client.Close()
		return nil, nil, fmt.Errorf("ehlo: %w", err)
	}
	return client, stop, nil
}

func (b *RelayBackend) tlsConfig() *tls.Config {
	if b.config.TLSConfig != nil {
		return b.config.TLSConfig
	}
	return &tls.Config{ServerName: b.config.Host, MinVersion: tls.VersionTLS12}
}

func (b *RelayBackend) submit(client *smtp.Client, from string, recipients []*mail.Address, body []byte) error {
	if b.config.User != "" {
		auth := sasl.NewPlainClient("", b.config.User, b.config.Password)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return rejectPermanent(fmt.Errorf("mail from: %w", err))
	}
	for _, r := range recipients {
		if err := client.Rcpt(r.Address, nil); err != nil {
			return rejectPermanent(fmt.Errorf("rcpt to %s: %w", r.Address, err))
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}

// rejectPermanent marks a 5xx reply to MAIL or RCPT as rejected: the relay
// is up and refuses this particular envelope.
func rejectPermanent(err error) error {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) && smtpErr.Code >= 500 {
		return notification.Rejected(err)
	}
	return err
}

// buildMIME renders a multipart/alternative message with text and html parts.
func buildMIME(from *mail.Address, recipients []*mail.Address, req notification.Request) ([]byte, error) {
	to := make([]mail.Address, 0, len(recipients))
	for _, r := range recipients {
		to = append(to, *r)
	}

	part, err := enmime.Builder().
		From(from.Name, from.Address).
		ToAddrs(to).
		Subject(req.Subject).
		Date(time.Now()).
		Text([]byte(req.Text)).
		HTML([]byte(req.HTML)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build mime message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode mime message: %w", err)
	}
	return buf.Bytes(), nil
}
