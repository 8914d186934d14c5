package smtpbridge

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"

	"notify-relay/internal/domain/notification"
)

const defaultSubject = "(no subject)"

// decodeMessage turns a raw RFC 5322 message into an email request.
// rcpts is the envelope recipient list, used when the To header is absent.
//
// The outbound request needs subject, text and html, so gaps are filled:
// a missing subject becomes "(no subject)", text-only mail gets a <pre>
// rendition as html, html-only mail uses enmime's down-converted text.
// A message with no body at all is rejected.
func decodeMessage(r io.Reader, rcpts []string, sender string) (notification.Request, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return notification.Request{}, fmt.Errorf("%w: parse message: %v", notification.ErrProtocol, err)
	}

	to := headerRecipients(env)
	if to == "" {
		to = strings.Join(rcpts, ", ")
	}
	if to == "" {
		return notification.Request{}, fmt.Errorf("%w: message has no recipient", notification.ErrProtocol)
	}

	subject := strings.TrimSpace(env.GetHeader("Subject"))
	if subject == "" {
		subject = defaultSubject
	}

	text, htmlBody := env.Text, env.HTML
	if strings.TrimSpace(text) == "" && strings.TrimSpace(htmlBody) == "" {
		return notification.Request{}, fmt.Errorf("%w: message has no body", notification.ErrProtocol)
	}
	if htmlBody == "" {
		htmlBody = "<pre>" + html.EscapeString(text) + "</pre>"
	}
	if text == "" {
		text = htmlBody
	}

	return notification.NewEmail(to, sender, subject, text, htmlBody), nil
}

func headerRecipients(env *enmime.Envelope) string {
	addrs, err := env.AddressList("To")
	if err != nil && !errors.Is(err, mail.ErrHeaderNotPresent) {
		// 壊れた To ヘッダーは生の値をそのまま使う
		return strings.TrimSpace(env.GetHeader("To"))
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name == "" {
			parts = append(parts, a.Address)
			continue
		}
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
