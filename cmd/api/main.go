package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"notify-relay/internal/config"
	"notify-relay/internal/infra/email"
	"notify-relay/internal/infra/smtpbridge"
	"notify-relay/internal/infra/telegram"
	"notify-relay/internal/observability/logging"
	"notify-relay/internal/resilience/circuitbreaker"
	"notify-relay/internal/usecase/alias"
	"notify-relay/internal/usecase/dispatch"
	"notify-relay/internal/usecase/notify"
	"notify-relay/pkg/ratelimit"

	hhttp "notify-relay/internal/handler/http"
	"notify-relay/internal/handler/http/auth"
	hemail "notify-relay/internal/handler/http/email"
	"notify-relay/internal/handler/http/middleware"
	htelegram "notify-relay/internal/handler/http/telegram"
	"notify-relay/internal/observability/requestid"
	"notify-relay/internal/observability/tracing"
)

// @title           Notify Relay API
// @version         1.0
// @description     メール (SendGrid / SMTP) と Telegram への通知を中継する HTTP API
// @description     SMTP で受けたメールも同じ送信経路に転送します。

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:3000
// @BasePath  /

func main() {
	logger := initLogger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	components, err := setupServer(logger, cfg)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(logger, cfg, components); err != nil {
		logger.Error("relay stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// initLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// ServerComponents holds what run needs to start and stop the relay.
type ServerComponents struct {
	Handler   http.Handler
	Queue     *dispatch.Queue
	Bridge    *smtpbridge.Bridge
	Scheduler *cron.Cron

	// ready is cleared as soon as shutdown begins so /ready drains traffic.
	ready *atomic.Bool
}

// limiterSet is one route's limiter and the store behind it.
type limiterSet struct {
	middleware *middleware.IPRateLimiter
	store      *ratelimit.InMemoryWindowStore
	window     time.Duration
}

// setupServer builds every collaborator. Any error here is a startup
// failure.
func setupServer(logger *slog.Logger, cfg *config.Config) (*ServerComponents, error) {
	registry, err := newEmailRegistry(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("email provider selected", slog.String("provider", string(registry.Provider())))

	router, err := newAliasRouter(logger, cfg)
	if err != nil {
		return nil, err
	}

	chat := telegram.NewClient(cfg.Telegram.Client())
	queue := dispatch.New(router, chat, cfg.Telegram.SendInterval)
	mode := cfg.Telegram.DeliveryMode()
	logger.Info("telegram delivery configured",
		slog.String("mode", string(mode)),
		slog.Duration("interval", queue.Interval()),
		slog.String("key_prefix", cfg.Telegram.KeyPrefix))

	bridge := smtpbridge.New(cfg.Bridge, registry)

	// レート制限
	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		return nil, err
	}
	extractor := middleware.NewIPExtractor(proxyConfig)
	if proxyConfig.Enabled {
		logger.Info("rate limiting: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	}

	limiterMetrics := ratelimit.NewPrometheusMetrics()
	scheduler := cron.New()
	rl := cfg.RateLimit
	emailLimiter := newLimiterSet(rl.Email, rl, extractor, limiterMetrics)
	chatLimiter := newLimiterSet(rl.Telegram, rl, extractor, limiterMetrics)
	for _, ls := range []struct {
		name string
		set  limiterSet
	}{{"email", emailLimiter}, {"telegram", chatLimiter}} {
		cleaner := &ratelimit.Cleaner{
			Store:       ls.set.store,
			LimiterType: ls.name,
			Window:      ls.set.window,
			Metrics:     limiterMetrics,
		}
		if _, err := cleaner.Schedule(scheduler, rl.CleanupInterval); err != nil {
			return nil, err
		}
	}
	if rl.Enabled {
		logger.Info("rate limiting initialized",
			slog.Int("email_limit", rl.Email.Limit),
			slog.Duration("email_window", rl.Email.Window),
			slog.Int("telegram_limit", rl.Telegram.Limit),
			slog.Duration("telegram_window", rl.Telegram.Window),
			slog.Int("max_keys", rl.MaxActiveKeys))
	} else {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
	}

	ready := &atomic.Bool{}
	ready.Store(true)

	mux := http.NewServeMux()
	hemail.Register(mux, registry, auth.NewTokenChecker("email", cfg.Email.APIToken), logger, emailLimiter.middleware.Middleware)
	htelegram.Register(mux, queue, router, auth.NewTokenChecker("telegram", cfg.Telegram.APIToken), mode, logger, chatLimiter.middleware.Middleware)

	mux.Handle("GET /health", &hhttp.HealthHandler{
		Version:       cfg.Version,
		Provider:      string(registry.Provider()),
		DeliveryMode:  string(mode),
		Queue:         queue,
		BridgeEnabled: bridge.Enabled(),
		EmailBreaker:  registry.Breaker(),
		ChatBreaker:   chat,
		LimiterStores: map[string]ratelimit.WindowStore{
			"email":    emailLimiter.store,
			"telegram": chatLimiter.store,
		},
	})
	mux.Handle("GET /ready", &hhttp.ReadyHandler{Ready: ready.Load})
	mux.Handle("GET /live", &hhttp.LiveHandler{})
	mux.Handle("GET /metrics", hhttp.MetricsHandler(limiterMetrics.Registry()))

	handler := hhttp.Chain(mux,
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Recover(logger),
		hhttp.Logging(logger),
		hhttp.LimitRequestBody(hhttp.DefaultMaxBodyBytes),
		hhttp.MetricsMiddleware,
	)

	return &ServerComponents{
		Handler:   handler,
		Queue:     queue,
		Bridge:    bridge,
		Scheduler: scheduler,
		ready:     ready,
	}, nil
}

// newEmailRegistry builds the single configured backend behind a throttle.
func newEmailRegistry(cfg *config.Config) (*notify.Registry, error) {
	throttle := func(b email.Backend) notify.EmailBackend {
		return email.NewThrottled(b, cfg.Email.MaxPerSecond, cfg.Email.Burst)
	}
	return notify.NewRegistry(cfg.Email.Provider, map[notify.Provider]notify.BackendFactory{
		notify.ProviderSendGrid: func() (notify.EmailBackend, error) {
			return throttle(email.NewSendGridBackend(cfg.Email.SendGrid)), nil
		},
		notify.ProviderSMTP: func() (notify.EmailBackend, error) {
			return throttle(email.NewRelayBackend(cfg.Email.SMTP)), nil
		},
	})
}

// newAliasRouter consults the alias file first, then the environment.
func newAliasRouter(logger *slog.Logger, cfg *config.Config) (*alias.Router, error) {
	prefix := cfg.Telegram.KeyPrefix
	sources := alias.ChainSource{}

	if cfg.Telegram.AliasFile != "" {
		f, err := config.LoadAliasFile(cfg.Telegram.AliasFile)
		if err != nil {
			return nil, err
		}
		sources = append(sources, alias.FromCredentials(prefix, f.Credentials()))
		logger.Info("alias file loaded",
			slog.String("path", cfg.Telegram.AliasFile),
			slog.Int("aliases", len(f.Aliases)))
	}
	sources = append(sources, alias.EnvSnapshot())

	return alias.NewRouter(prefix, sources), nil
}

func newLimiterSet(lc ratelimit.LimiterConfig, rl *ratelimit.RateLimitConfig, extractor middleware.IPExtractor, metrics ratelimit.RateLimitMetrics) limiterSet {
	store := ratelimit.NewInMemoryWindowStore(ratelimit.InMemoryStoreConfig{
		MaxKeys: rl.MaxActiveKeys,
		OnEvict: func(count int) { metrics.RecordEviction(lc.Name, count) },
	})
	limiter := ratelimit.NewFixedWindowLimiter(lc, store, &ratelimit.SystemClock{}, metrics)
	breaker := circuitbreaker.New(circuitbreaker.RateLimitStoreConfig(lc.Name))
	return limiterSet{
		middleware: middleware.NewIPRateLimiter(limiter, extractor, breaker, rl.Enabled),
		store:      store,
		window:     limiter.Window(),
	}
}

// run serves HTTP, the SMTP bridge and the chat queue until SIGINT/SIGTERM.
// In-flight HTTP requests get cfg.ShutdownTimeout to finish.
func run(logger *slog.Logger, cfg *config.Config, c *ServerComponents) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + strconv.Itoa(cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Slowloris 対策
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	c.Scheduler.Start()
	defer c.Scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return c.Queue.Run(gctx)
	})

	// 設定が揃っていなければ即 nil を返す
	g.Go(func() error {
		return c.Bridge.ListenAndServe(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		c.ready.Store(false)
		logger.Info("shutting down relay...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// ブリッジとキューは gctx の終了で自分で止まる
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}
