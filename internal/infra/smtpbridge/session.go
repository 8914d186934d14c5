package smtpbridge

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"notify-relay/internal/domain/notification"
	"notify-relay/internal/observability/requestid"
)

var (
	errUnparseable = &smtp.SMTPError{
		Code:         554,
		EnhancedCode: smtp.EnhancedCode{5, 6, 0},
		Message:      "Message could not be decoded",
	}
	errUnsupportedMechanism = &smtp.SMTPError{
		Code:         504,
		EnhancedCode: smtp.EnhancedCode{5, 7, 4},
		Message:      "Unsupported authentication mechanism",
	}
	errAuthRequired = &smtp.SMTPError{
		Code:         530,
		EnhancedCode: smtp.EnhancedCode{5, 7, 0},
		Message:      "Authentication required",
	}
	errRejectedUpstream = &smtp.SMTPError{
		Code:         554,
		EnhancedCode: smtp.EnhancedCode{5, 0, 0},
		Message:      "Message rejected by the outbound provider",
	}
	errForwardFailed = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Message could not be relayed, try again later",
	}
)

// backend creates one session per connection.
type backend struct {
	ctx    context.Context
	bridge *Bridge
}

func (be *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	id := requestid.New()
	remote := ""
	if conn := c.Conn(); conn != nil {
		remote = conn.RemoteAddr().String()
	}
	logger := slog.Default().With(
		slog.String("session_id", id),
		slog.String("remote_addr", remote))
	logger.Debug("smtp session opened")

	return &session{
		id:     id,
		ctx:    be.ctx,
		bridge: be.bridge,
		logger: logger,
	}, nil
}

type session struct {
	id     string
	ctx    context.Context
	bridge *Bridge
	logger *slog.Logger

	// authFailed is set by a rejected AUTH and cleared by a successful one.
	authFailed bool
	user       string

	from  string
	rcpts []string
}

func (s *session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain {
		return nil, errUnsupportedMechanism
	}
	return sasl.NewPlainServer(func(_, username, password string) error {
		if !s.credentialsMatch(username, password) {
			s.authFailed = true
			s.logger.Warn("smtp authentication failed")
			return smtp.ErrAuthFailed
		}
		s.authFailed = false
		s.user = username
		s.logger.Debug("smtp authenticated")
		return nil
	}), nil
}

func (s *session) credentialsMatch(username, password string) bool {
	cfg := s.bridge.config
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1
	return userOK && passOK
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.authFailed {
		return errAuthRequired
	}
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.authFailed {
		return errAuthRequired
	}
	s.rcpts = append(s.rcpts, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	req, err := decodeMessage(r, s.rcpts, s.bridge.config.Sender)
	if err != nil {
		s.logger.Warn("smtp message rejected", slog.Any("error", err))
		return errUnparseable
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.bridge.config.ForwardTimeout)
	defer cancel()
	ctx = requestid.WithRequestID(ctx, s.id)

	if err := s.bridge.forwarder.Send(ctx, req); err != nil {
		var vErr *notification.ValidationError
		if errors.As(err, &vErr) {
			s.logger.Warn("smtp message rejected", slog.Any("error", err))
			return errUnparseable
		}
		// 再送しても通らない (送信元アドレス不正など) ので 5xx で返す
		if errors.Is(err, notification.ErrRejected) {
			s.logger.Warn("smtp message rejected upstream", slog.Any("error", err))
			return errRejectedUpstream
		}
		s.logger.Error("smtp message forward failed", slog.Any("error", err))
		return errForwardFailed
	}

	s.logger.Info("smtp message forwarded",
		slog.Int("envelope_recipients", len(s.rcpts)),
		slog.Bool("authenticated", s.user != ""))
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.rcpts = nil
}

func (s *session) Logout() error {
	s.logger.Debug("smtp session closed")
	return nil
}
