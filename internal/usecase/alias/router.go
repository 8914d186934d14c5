// Package alias maps a caller-supplied chat alias to the bot credentials
// configured for it.
//
// For alias "alertas" and the default prefix the router reads
// TELEGRAM_BOT_ALERTAS_TOKEN and TELEGRAM_ALERTAS_CHAT_ID. With an empty
// prefix the keys are BOT_ALERTAS_TOKEN and ALERTAS_CHAT_ID.
package alias

import (
	"strings"

	"notify-relay/internal/domain/notification"
)

// DefaultPrefix is prepended to both alias keys unless configured otherwise.
const DefaultPrefix = "TELEGRAM_"

// Keys are the two configuration keys for one alias.
type Keys struct {
	Token  string
	ChatID string
}

// List returns the keys in the order they are reported to operators.
func (k Keys) List() []string {
	return []string{k.Token, k.ChatID}
}

// Normalize trims and uppercases an alias.
func Normalize(alias string) string {
	return strings.ToUpper(strings.TrimSpace(alias))
}

// KeyNames builds the configuration keys for alias. This is the only
// place the key templates live.
func KeyNames(prefix, alias string) Keys {
	a := Normalize(alias)
	return Keys{
		Token:  prefix + "BOT_" + a + "_TOKEN",
		ChatID: prefix + a + "_CHAT_ID",
	}
}

// Router resolves aliases against a Source. It performs no I/O and is safe
// for concurrent use as long as the Source is.
type Router struct {
	prefix string
	source Source
}

// NewRouter creates a router.
func NewRouter(prefix string, source Source) *Router {
	return &Router{prefix: prefix, source: source}
}

// KeyNames returns the keys this router reads for alias.
func (r *Router) KeyNames(alias string) Keys {
	return KeyNames(r.prefix, alias)
}

// Resolve returns the credential for alias. Aliases are case insensitive.
// When either key is missing the error is a *notification.ConfigError
// with code AliasNotConfigured that names both keys.
func (r *Router) Resolve(alias string) (notification.ChannelCredential, error) {
	keys := r.KeyNames(alias)

	token, okToken := r.source.Lookup(keys.Token)
	chatID, okChat := r.source.Lookup(keys.ChatID)
	if !okToken || !okChat {
		return notification.ChannelCredential{}, &notification.ConfigError{
			Code:         notification.AliasNotConfigured,
			Alias:        Normalize(alias),
			ExpectedKeys: keys.List(),
		}
	}

	return notification.ChannelCredential{BotToken: token, ChatID: chatID}, nil
}
