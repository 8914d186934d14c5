package alias

import (
	"os"
	"strings"

	"notify-relay/internal/domain/notification"
)

// Source answers configuration key lookups.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is a fixed key/value table. Empty values count as absent.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// EnvSnapshot copies the process environment once. Later changes to the
// environment are not observed.
func EnvSnapshot() MapSource {
	env := os.Environ()
	m := make(MapSource, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}

// FromCredentials renders an alias table (for example one loaded from a
// YAML file) under the same key names the router asks for, so file and
// environment entries are looked up identically.
func FromCredentials(prefix string, creds map[string]notification.ChannelCredential) MapSource {
	m := make(MapSource, len(creds)*2)
	for name, cred := range creds {
		keys := KeyNames(prefix, name)
		m[keys.Token] = cred.BotToken
		m[keys.ChatID] = cred.ChatID
	}
	return m
}

// ChainSource consults each source in order and returns the first hit.
type ChainSource []Source

// Lookup implements Source.
func (c ChainSource) Lookup(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}
