package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"notify-relay/internal/domain/notification"
)

// AliasFile is the YAML alias table:
//
//	aliases:
//	  alertas:
//	    bot_token: "123456:ABC..."
//	    chat_id: "-100123"
type AliasFile struct {
	Aliases map[string]AliasEntry `yaml:"aliases"`
}

// AliasEntry is one alias in the table.
type AliasEntry struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// LoadAliasFile reads and validates an alias table.
// The path comes from TELEGRAM_ALIAS_FILE, not from a request.
func LoadAliasFile(path string) (*AliasFile, error) {
	// #nosec G304 -- operator-supplied path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var f AliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse alias file: %w", err)
	}

	for name, entry := range f.Aliases {
		if entry.BotToken == "" || entry.ChatID == "" {
			return nil, fmt.Errorf("alias %q needs both bot_token and chat_id", name)
		}
	}
	return &f, nil
}

// Credentials returns the table keyed by alias name.
func (f *AliasFile) Credentials() map[string]notification.ChannelCredential {
	creds := make(map[string]notification.ChannelCredential, len(f.Aliases))
	for name, entry := range f.Aliases {
		creds[name] = notification.ChannelCredential{BotToken: entry.BotToken, ChatID: entry.ChatID}
	}
	return creds
}
