// Package notification defines the transient request values that flow through
// the relay and the error taxonomy shared by every delivery path.
package notification

import (
	"strings"
	"time"
)

// ChannelKind identifies the delivery medium of a request.
type ChannelKind string

const (
	// KindEmail is delivered through the configured email backend.
	KindEmail ChannelKind = "email"
	// KindChat is delivered through the chat-bot backend.
	KindChat ChannelKind = "chat"
)

// DefaultParseMode is applied to chat messages that do not name one.
const DefaultParseMode = "HTML"

// Request is an immutable notification produced by an inbound collaborator
// (HTTP handler or SMTP bridge).
//
// For KindEmail, Recipient, Subject, Text and HTML are required.
// For KindChat, Recipient holds the alias and Text holds the message.
type Request struct {
	Kind      ChannelKind
	Recipient string
	Sender    string
	Subject   string
	Text      string
	HTML      string

	// Chat presentation flags.
	ParseMode             string
	DisableWebPagePreview bool
	DisableNotification   bool
}

// NewEmail builds an email request. No field is altered.
func NewEmail(to, from, subject, text, html string) Request {
	return Request{
		Kind:      KindEmail,
		Recipient: to,
		Sender:    from,
		Subject:   subject,
		Text:      text,
		HTML:      html,
	}
}

// NewChat builds a chat request addressed to an alias.
func NewChat(alias, message, parseMode string, disablePreview, disableNotification bool) Request {
	return Request{
		Kind:                  KindChat,
		Recipient:             alias,
		Text:                  message,
		ParseMode:             parseMode,
		DisableWebPagePreview: disablePreview,
		DisableNotification:   disableNotification,
	}
}

// Validate checks the required fields for the request's channel kind.
// The first missing field is reported as a *ValidationError.
func (r Request) Validate() error {
	switch r.Kind {
	case KindEmail:
		fields := []struct {
			name  string
			value string
		}{
			{"to", r.Recipient},
			{"subject", r.Subject},
			{"text", r.Text},
			{"html", r.HTML},
		}
		for _, f := range fields {
			if f.value == "" {
				return &ValidationError{Field: f.name, Message: f.name + " is required"}
			}
		}
		return nil
	case KindChat:
		if strings.TrimSpace(r.Recipient) == "" {
			return &ValidationError{Field: "alias", Message: "alias is required"}
		}
		if r.Text == "" {
			return &ValidationError{Field: "message", Message: "message is required"}
		}
		return nil
	default:
		return &ValidationError{Field: "kind", Message: "unknown channel kind " + string(r.Kind)}
	}
}

// EffectiveParseMode returns the parse mode sent to the chat backend.
func (r Request) EffectiveParseMode() string {
	if r.ParseMode == "" {
		return DefaultParseMode
	}
	return r.ParseMode
}

// ChannelCredential is the bot token and destination chat resolved for an alias.
type ChannelCredential struct {
	BotToken string
	ChatID   string
}

// QueueItem is a chat request owned by the dispatch queue.
type QueueItem struct {
	ID         string
	Request    Request
	EnqueuedAt time.Time
}

// ChatReceipt identifies a message accepted by the chat backend.
type ChatReceipt struct {
	MessageID int
	ChatID    int64
}
