package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"notify-relay/internal/domain/notification"
	"notify-relay/internal/handler/http/auth"
	"notify-relay/internal/handler/http/respond"
	"notify-relay/internal/observability/logging"
	"notify-relay/internal/usecase/dispatch"
)

// Dispatcher is satisfied by *dispatch.Queue.
type Dispatcher interface {
	Enqueue(req notification.Request) int
	Deliver(ctx context.Context, req notification.Request) (notification.ChatReceipt, error)
}

// Resolver checks that an alias has credentials before anything is queued.
type Resolver interface {
	Resolve(alias string) (notification.ChannelCredential, error)
}

// SendHandler accepts a chat notification and either queues it or sends it
// right away, depending on Mode.
type SendHandler struct {
	Queue    Dispatcher
	Resolver Resolver
	Auth     *auth.TokenChecker
	Mode     dispatch.Mode
	Logger   *slog.Logger
}

// ServeHTTP Telegram 通知
// @Summary      Telegram 通知
// @Description  エイリアス宛てのメッセージをキューに追加します (immediate モードでは即時送信)
// @Tags         telegram
// @Accept       json
// @Produce      json
// @Param        request body Request true "エイリアス・本文・API トークン"
// @Success      200 {object} QueuedResponse
// @Failure      400 {object} respond.Failure "必須項目の欠落 / 未設定のエイリアス"
// @Failure      401 {object} respond.Failure "トークン不一致"
// @Failure      429 {object} respond.Failure "レート制限"
// @Failure      500 {object} FailedResponse "即時送信の失敗"
// @Router       /telegram [post]
func (h SendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := logging.WithRequestID(r.Context(), h.logger())

	var body Request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.Warn("telegram request rejected", slog.String("reason", "invalid_body"))
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.Auth.Check(body.Token); err != nil {
		logger.Warn("telegram request rejected", slog.String("reason", "unauthorized"))
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req := notification.NewChat(body.Alias, body.Message, body.ParseMode, body.DisableWebPagePreview, body.DisableNotification)
	if err := req.Validate(); err != nil {
		logger.Warn("telegram request rejected",
			slog.String("reason", "missing_field"),
			slog.String("error", err.Error()))
		respond.Error(w, http.StatusBadRequest, "alias and message are required")
		return
	}

	// 未設定のエイリアスはキューに入れる前に弾く
	if _, err := h.Resolver.Resolve(req.Recipient); err != nil {
		var cfgErr *notification.ConfigError
		if errors.As(err, &cfgErr) {
			logger.Warn("telegram request rejected",
				slog.String("reason", "alias_not_configured"),
				slog.String("alias", cfgErr.Alias))
			appErr := respond.NewAppError(http.StatusBadRequest, cfgErr.Error(), err)
			appErr.ExpectedKeys = cfgErr.ExpectedKeys
			respond.SafeError(w, http.StatusBadRequest, appErr)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	if h.Mode == dispatch.ModeImmediate {
		h.deliver(w, r, logger, req, start)
		return
	}

	depth := h.Queue.Enqueue(req)
	logger.Info("telegram notification queued",
		slog.String("alias", strings.TrimSpace(req.Recipient)),
		slog.Int("depth", depth))
	respond.JSON(w, http.StatusOK, QueuedResponse{Stat: true, EnCola: depth})
}

func (h SendHandler) deliver(w http.ResponseWriter, r *http.Request, logger *slog.Logger, req notification.Request, start time.Time) {
	receipt, err := h.Queue.Deliver(r.Context(), req)
	if err != nil {
		logger.Error("telegram delivery failed",
			slog.String("alias", req.Recipient),
			slog.String("error", respond.SanitizeError(err)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		respond.JSON(w, http.StatusInternalServerError, FailedResponse{Stat: false, Alias: req.Recipient})
		return
	}

	logger.Info("telegram notification sent",
		slog.String("alias", req.Recipient),
		slog.Int("message_id", receipt.MessageID),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	respond.JSON(w, http.StatusOK, SentResponse{
		Stat:      true,
		Alias:     req.Recipient,
		MessageID: receipt.MessageID,
		Chat:      Chat{ID: receipt.ChatID},
	})
}

func (h SendHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
