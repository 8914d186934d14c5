// Package telegram serves POST /telegram.
//
// In queue mode (the default) a valid request is appended to the dispatch
// queue and the response reports the new depth as "enCola". In immediate
// mode the message is sent before responding and the Bot API receipt is
// returned.
package telegram

// Request is the body of POST /telegram.
type Request struct {
	Alias                 string `json:"alias" example:"alertas"`
	Message               string `json:"message" example:"<b>db-1</b> disk at 93%"`
	ParseMode             string `json:"parse_mode,omitempty" example:"HTML"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	DisableNotification   bool   `json:"disable_notification,omitempty"`
	Token                 string `json:"token"`
}

// QueuedResponse is returned in queue mode.
type QueuedResponse struct {
	Stat   bool `json:"stat"`
	EnCola int  `json:"enCola"`
}

// SentResponse is returned in immediate mode.
type SentResponse struct {
	Stat      bool   `json:"stat"`
	Alias     string `json:"alias"`
	MessageID int    `json:"message_id"`
	Chat      Chat   `json:"chat"`
}

// Chat identifies the chat a message was delivered to.
type Chat struct {
	ID int64 `json:"id"`
}

// FailedResponse is returned when an immediate send fails.
type FailedResponse struct {
	Stat  bool   `json:"stat"`
	Alias string `json:"alias"`
}
