// Package dispatch owns the chat delivery queue: submissions are appended
// in FIFO order and a single drain loop sends them one at a time, pausing
// between items so a bot never bursts.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"notify-relay/internal/domain/notification"
	"notify-relay/internal/observability/tracing"
)

// DefaultInterval is the drain tick period and the pause between sends.
const DefaultInterval = 10 * time.Second

// Resolver maps an alias to its bot credential.
type Resolver interface {
	Resolve(alias string) (notification.ChannelCredential, error)
}

// ChatSender performs one Bot API send.
type ChatSender interface {
	Send(ctx context.Context, cred notification.ChannelCredential, req notification.Request) (notification.ChatReceipt, error)
}

// Queue is an in-memory FIFO of chat requests. Nothing survives a restart.
type Queue struct {
	resolver Resolver
	sender   ChatSender
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	items []notification.QueueItem

	draining atomic.Bool
}

// New creates a queue. interval <= 0 uses DefaultInterval.
func New(resolver Resolver, sender ChatSender, interval time.Duration) *Queue {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Queue{
		resolver: resolver,
		sender:   sender,
		interval: interval,
		now:      time.Now,
	}
}

// Interval returns the configured pacing interval.
func (q *Queue) Interval() time.Duration {
	return q.interval
}

// Enqueue appends req and returns the new depth. It never blocks on
// delivery and never starts a drain.
func (q *Queue) Enqueue(req notification.Request) int {
	item := notification.QueueItem{
		ID:         uuid.New().String(),
		Request:    req,
		EnqueuedAt: q.now(),
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	depth := len(q.items)
	q.mu.Unlock()

	queueDepth.Set(float64(depth))
	slog.Debug("chat notification queued",
		slog.String("item_id", item.ID),
		slog.String("alias", req.Recipient),
		slog.Int("depth", depth))
	return depth
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop() (notification.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return notification.QueueItem{}, false
	}
	item := q.items[0]
	q.items[0] = notification.QueueItem{}
	q.items = q.items[1:]
	queueDepth.Set(float64(len(q.items)))
	return item, true
}

// Drain sends queued items oldest first until the queue is empty or ctx
// is done. Only one drain runs at a time; a concurrent call returns
// immediately. Every item, including dropped and failed ones, is followed
// by a pause of the queue interval. Nothing is re-queued.
func (q *Queue) Drain(ctx context.Context) {
	if !q.draining.CompareAndSwap(false, true) {
		return
	}
	defer q.draining.Store(false)

	for {
		if ctx.Err() != nil {
			return
		}
		item, ok := q.pop()
		if !ok {
			return
		}

		q.process(ctx, item)

		timer := time.NewTimer(q.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (q *Queue) process(ctx context.Context, item notification.QueueItem) {
	logger := slog.Default().With(
		slog.String("item_id", item.ID),
		slog.String("alias", item.Request.Recipient))

	cred, err := q.resolver.Resolve(item.Request.Recipient)
	if err != nil {
		recordOutcome(resultDropped, reasonAliasNotConfigured)
		logger.Warn("chat notification dropped", slog.Any("error", err))
		return
	}

	_, err = q.send(ctx, cred, item.Request)
	if err != nil {
		recordOutcome(resultFailed, reasonNone)
		logger.Error("chat notification failed",
			slog.Duration("queued_for", q.now().Sub(item.EnqueuedAt)),
			slog.Any("error", err))
		return
	}

	recordOutcome(resultDelivered, reasonNone)
	logger.Info("chat notification delivered",
		slog.Duration("queued_for", q.now().Sub(item.EnqueuedAt)))
}

func (q *Queue) send(ctx context.Context, cred notification.ChannelCredential, req notification.Request) (notification.ChatReceipt, error) {
	ctx, span := tracing.StartSpan(ctx, "chat.send",
		attribute.String("chat.alias", req.Recipient))
	start := time.Now()
	receipt, err := q.sender.Send(ctx, cred, req)
	chatSendDuration.Observe(time.Since(start).Seconds())
	tracing.EndSpan(span, err)
	return receipt, err
}

// Deliver bypasses the queue and sends req now. It is used when the relay
// runs in immediate mode. An unknown alias returns the resolver's error
// without a send.
func (q *Queue) Deliver(ctx context.Context, req notification.Request) (notification.ChatReceipt, error) {
	cred, err := q.resolver.Resolve(req.Recipient)
	if err != nil {
		return notification.ChatReceipt{}, err
	}
	receipt, err := q.send(ctx, cred, req)
	if err != nil {
		recordOutcome(resultFailed, reasonNone)
		return notification.ChatReceipt{}, err
	}
	recordOutcome(resultDelivered, reasonNone)
	return receipt, nil
}

// Run starts a drain every interval until ctx is done. On return, items
// still waiting are logged as abandoned.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup

	slog.Info("chat queue started", slog.Duration("interval", q.interval))
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			q.abandon()
			return nil
		case <-ticker.C:
			if q.Len() == 0 || q.draining.Load() {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.Drain(ctx)
			}()
		}
	}
}

func (q *Queue) abandon() {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	queueDepth.Set(0)

	for _, item := range items {
		recordOutcome(resultDropped, reasonShutdown)
		slog.Warn("chat notification abandoned on shutdown",
			slog.String("item_id", item.ID),
			slog.String("alias", item.Request.Recipient))
	}
	if len(items) > 0 {
		slog.Warn("chat queue stopped with pending items", slog.Int("abandoned", len(items)))
	}
}
