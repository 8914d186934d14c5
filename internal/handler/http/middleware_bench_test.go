package http_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	httpHandler "notify-relay/internal/handler/http"
	"notify-relay/internal/handler/http/middleware"
	"notify-relay/internal/observability/requestid"
	"notify-relay/pkg/ratelimit"
)

func benchLimiter(limit int) *middleware.IPRateLimiter {
	store := ratelimit.NewInMemoryWindowStore(ratelimit.DefaultInMemoryStoreConfig())
	l := ratelimit.NewFixedWindowLimiter(ratelimit.LimiterConfig{Name: "bench", Limit: limit, Window: time.Minute}, store, nil, nil)
	return middleware.NewIPRateLimiter(l, nil, nil, true)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// BenchmarkIPRateLimiter_SameIP は同一IPからの連続リクエストの性能を測定
func BenchmarkIPRateLimiter_SameIP(b *testing.B) {
	handler := benchLimiter(b.N + 1).Middleware(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/telegram", nil)
	req.RemoteAddr = "192.168.1.100:12345"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkIPRateLimiter_Parallel は並行リクエストの性能を測定
func BenchmarkIPRateLimiter_Parallel(b *testing.B) {
	handler := benchLimiter(1000).Middleware(okHandler)

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			// 異なるIPアドレスをシミュレート
			req := httptest.NewRequest(http.MethodPost, "/telegram", nil)
			req.RemoteAddr = "10.0." + strconv.Itoa(i/256%256) + "." + strconv.Itoa(i%256) + ":12345"
			handler.ServeHTTP(httptest.NewRecorder(), req)
			i++
		}
	})
}

// BenchmarkChain はミドルウェアチェーン全体のオーバーヘッドを測定
func BenchmarkChain(b *testing.B) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := httpHandler.Chain(okHandler,
		requestid.Middleware,
		httpHandler.Recover(logger),
		httpHandler.Logging(logger),
		httpHandler.LimitRequestBody(httpHandler.DefaultMaxBodyBytes),
		httpHandler.MetricsMiddleware,
	)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
