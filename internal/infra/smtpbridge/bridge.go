// Package smtpbridge accepts mail from legacy SMTP clients and re-sends it
// through the configured outbound email backend.
//
// The listener only binds when host, port, user and password are all
// configured. Authentication is optional, as some legacy senders cannot
// AUTH, but a login that is presented must match exactly.
package smtpbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/emersion/go-smtp"

	"notify-relay/internal/domain/notification"
)

// Forwarder hands a decoded message to the outbound email path.
type Forwarder interface {
	Send(ctx context.Context, req notification.Request) error
}

// Bridge is the inbound SMTP listener.
type Bridge struct {
	config    Config
	forwarder Forwarder

	mu     sync.Mutex
	server *smtp.Server
}

// New creates a bridge. Nothing is bound until ListenAndServe or Serve.
func New(cfg Config, forwarder Forwarder) *Bridge {
	return &Bridge{
		config:    cfg.withDefaults(),
		forwarder: forwarder,
	}
}

// Enabled reports whether the bridge configuration is complete.
func (b *Bridge) Enabled() bool {
	return Enabled(b.config)
}

// ListenAndServe binds the configured address and serves until ctx is
// done. With incomplete configuration it logs and returns nil at once.
func (b *Bridge) ListenAndServe(ctx context.Context) error {
	if !b.Enabled() {
		slog.Info("smtp bridge disabled: SMTP_LISTEN_HOST, SMTP_LISTEN_PORT, SMTP_LISTEN_USER and SMTP_LISTEN_PASS are required")
		return nil
	}

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", b.config.Addr())
	if err != nil {
		return fmt.Errorf("smtp bridge listen %s: %w", b.config.Addr(), err)
	}
	return b.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done.
func (b *Bridge) Serve(ctx context.Context, l net.Listener) error {
	server := smtp.NewServer(&backend{ctx: ctx, bridge: b})
	server.Addr = l.Addr().String()
	server.Domain = b.config.Domain
	server.ReadTimeout = b.config.ReadTimeout
	server.WriteTimeout = b.config.WriteTimeout
	server.MaxMessageBytes = b.config.MaxMessageBytes
	server.MaxRecipients = 50
	// TLS 終端は前段に任せる想定なので平文 AUTH を許可する
	server.AllowInsecureAuth = true

	b.mu.Lock()
	b.server = server
	b.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		if err := server.Close(); err != nil {
			slog.Warn("smtp bridge close", slog.Any("error", err))
		}
	})
	defer stop()

	slog.Info("smtp bridge listening",
		slog.String("addr", l.Addr().String()),
		slog.String("domain", b.config.Domain))

	err := server.Serve(l)
	if ctx.Err() != nil {
		slog.Info("smtp bridge stopped")
		return nil
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("smtp bridge serve: %w", err)
	}
	return nil
}

// Shutdown closes the listener and open sessions.
func (b *Bridge) Shutdown(_ context.Context) error {
	b.mu.Lock()
	server := b.server
	b.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Close()
}
