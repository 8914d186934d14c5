package email

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
)

// Sender is satisfied by notify.Registry.
type Sender interface {
	Send(ctx context.Context, req notification.Request) error
}

// SendHandler validates the caller's token and fields, then makes exactly
// one call to the configured email backend.
type SendHandler struct {
	Sender Sender
	Auth   *auth.TokenChecker
	Logger *slog.Logger
}

// ServeHTTP メール送信
// @Summary      メール送信
// @Description  設定されたプロバイダ (SendGrid / SMTP) でメールを 1 回送信します
// @Tags         email
// @Accept       json
// @Produce      json
// @Param        request body Request true "メール内容と API トークン"
// @Success      200 {object} Response
// @Failure      400 {object} respond.Failure "必須項目の欠落"
// @Failure      401 {object} respond.Failure "トークン不一致"
// @Failure      429 {object} respond.Failure "レート制限"
// @Failure      500 {object} respond.Failure "プロバイダ送信失敗"
// @Router       /email [post]
func (h SendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := logging.WithRequestID(r.Context(), h.logger())

	var body Request
	if err := decode(r, &body); err != nil {
		logger.Warn("email request rejected", slog.String("reason", "invalid_body"))
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Auth.Check(body.Token); err != nil {
		logger.Warn("email request rejected", slog.String("reason", "unauthorized"))
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req := notification.NewEmail(string(body.To), body.From, body.Subject, body.Text, body.HTML)
	if err := req.Validate(); err != nil {
		logger.Warn("email request rejected",
			slog.String("reason", "missing_field"),
			slog.String("error", err.Error()))
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Sender.Send(r.Context(), req); err != nil {
		var vErr *notification.ValidationError
		if errors.As(err, &vErr) {
			respond.SafeError(w, http.StatusBadRequest, vErr)
			return
		}
		logger.Error("email delivery failed",
			slog.String("error", respond.SanitizeError(err)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		respond.Fail(w, http.StatusInternalServerError)
		return
	}

	logger.Info("email sent",
		slog.Int("recipients", len(strings.Split(string(body.To), ","))),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	respond.JSON(w, http.StatusOK, Response{Stat: true})
}

func (h SendHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// decode reads one JSON object. Errors become caller-safe AppErrors.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return respond.NewAppError(http.StatusRequestEntityTooLarge, "request body too large", err)
		}
		return respond.NewAppError(http.StatusBadRequest, "invalid JSON body", err)
	}
	return nil
}
