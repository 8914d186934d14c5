// Package telegram delivers chat notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	tele "gopkg.in/telebot.v4"

	"notify-relay/internal/domain/notification"
	"notify-relay/internal/resilience/circuitbreaker"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Config holds the Bot API client settings.
type Config struct {
	// APIURL overrides the Bot API base URL (TELEGRAM_API_URL).
	APIURL string

	// Timeout bounds one sendMessage call.
	Timeout time.Duration

	// Breaker configures the circuit breaker around sendMessage. Each bot
	// token gets its own breaker built from this template.
	Breaker circuitbreaker.Config
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		APIURL:  DefaultAPIURL,
		Timeout: 15 * time.Second,
		Breaker: circuitbreaker.TelegramConfig(),
	}
}

// Client sends messages with the bot identified by each credential.
// Bots and their circuit breakers are created lazily and cached per token,
// so one broken bot cannot block the others.
type Client struct {
	config     Config
	httpClient *http.Client

	mu       sync.Mutex
	bots     map[string]*tele.Bot
	breakers map[string]*circuitbreaker.CircuitBreaker
}

// NewClient creates a Bot API client.
func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = circuitbreaker.TelegramConfig()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		bots:       make(map[string]*tele.Bot),
		breakers:   make(map[string]*circuitbreaker.CircuitBreaker),
	}
}

// Name identifies the client in health reports.
func (c *Client) Name() string {
	return c.config.Breaker.Name
}

// State summarizes the per-bot breakers: open if any bot is open,
// half-open if any is probing, closed otherwise.
func (c *Client) State() gobreaker.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := gobreaker.StateClosed
	for _, cb := range c.breakers {
		switch cb.State() {
		case gobreaker.StateOpen:
			return gobreaker.StateOpen
		case gobreaker.StateHalfOpen:
			state = gobreaker.StateHalfOpen
		}
	}
	return state
}

// chatRecipient addresses a chat by numeric ID or @channel name.
type chatRecipient string

func (r chatRecipient) Recipient() string { return string(r) }

// Send posts req.Text to cred.ChatID with cred.BotToken. It makes one
// attempt. Failures are returned as *notification.DeliveryError.
func (c *Client) Send(ctx context.Context, cred notification.ChannelCredential, req notification.Request) (notification.ChatReceipt, error) {
	bot, breaker, err := c.bot(cred.BotToken)
	if err != nil {
		return notification.ChatReceipt{}, &notification.DeliveryError{Channel: "telegram", Err: err}
	}

	opts := &tele.SendOptions{
		ParseMode:             tele.ParseMode(req.EffectiveParseMode()),
		DisableWebPagePreview: req.DisableWebPagePreview,
		DisableNotification:   req.DisableNotification,
	}

	var msg *tele.Message
	err = breaker.Do(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var sendErr error
		msg, sendErr = bot.Send(chatRecipient(cred.ChatID), req.Text, opts)
		return classify(redact(sendErr, cred.BotToken))
	})
	if err != nil {
		return notification.ChatReceipt{}, &notification.DeliveryError{Channel: "telegram", Err: err}
	}

	receipt := notification.ChatReceipt{MessageID: msg.ID}
	if msg.Chat != nil {
		receipt.ChatID = msg.Chat.ID
	}

	slog.Debug("telegram message sent",
		slog.Int("message_id", receipt.MessageID),
		slog.Int64("chat_id", receipt.ChatID))
	return receipt, nil
}

func (c *Client) bot(token string) (*tele.Bot, *circuitbreaker.CircuitBreaker, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil, errors.New("telegram bot token is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.bots[token]; ok {
		return b, c.breakers[token], nil
	}

	// Offline: getMe を呼ばずに生成する (送信専用)
	b, err := tele.NewBot(tele.Settings{
		URL:     c.config.APIURL,
		Token:   token,
		Client:  c.httpClient,
		Offline: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create telegram bot: %w", redact(err, token))
	}

	cfg := c.config.Breaker
	cfg.Name = cfg.Name + "-bot" + botID(token)
	c.bots[token] = b
	c.breakers[token] = circuitbreaker.New(cfg)
	return b, c.breakers[token], nil
}

// botID returns the public numeric part of a token ("123456:ABC" -> "123456").
func botID(token string) string {
	id, _, _ := strings.Cut(token, ":")
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return ""
	}
	return id
}

// telebot は未知の説明文を "telegram: <description> (<code>)" の形で返す
var trailingCode = regexp.MustCompile(`\((\d{3})\)$`)

// classify marks answers that blame the request (chat not found, bot
// blocked, bad markup) as rejected. 429 and 5xx stay breaker failures.
func classify(err error) error {
	if err == nil {
		return nil
	}

	code := 0
	var apiErr *tele.Error
	var groupErr tele.GroupError
	switch {
	case errors.As(err, &groupErr):
		return notification.Rejected(err)
	case errors.As(err, &apiErr):
		code = apiErr.Code
	default:
		if m := trailingCode.FindStringSubmatch(err.Error()); m != nil {
			code, _ = strconv.Atoi(m[1])
		}
	}

	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return notification.Rejected(err)
	}
	return err
}

// redactedError hides the bot token, which the Bot API embeds in request URLs.
type redactedError struct {
	err   error
	token string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.token, "<redacted>")
}

func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, token string) error {
	if err == nil || token == "" {
		return err
	}
	return &redactedError{err: err, token: token}
}
