package bridge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"spacebot/internal/spaceapi"
	"spacebot/internal/transport"
	logx "spacebot/pkg/logx"
)

// Fetcher performs an on-demand status fetch.
type Fetcher interface {
	Fetch(ctx context.Context) (spaceapi.Status, error)
}

// Replier answers in a room and acknowledges the triggering message.
type Replier interface {
	Reply(ctx context.Context, room string, to transport.Event, msg transport.Message) error
	MarkRead(ctx context.Context, room, eventID string) error
}

type QueryConfig struct {
	Self    string
	Trigger string
	// RatePerMin limits answered queries per room; 0 means unlimited.
	RatePerMin int
}

// QueryHandler answers trigger messages with a fresh fetch.
type QueryHandler struct {
	log   logx.Logger
	cfg   QueryConfig
	fetch Fetcher
	chat  Replier

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewQueryHandler(cfg QueryConfig, fetch Fetcher, chat Replier, log logx.Logger) *QueryHandler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &QueryHandler{log: log, cfg: cfg, fetch: fetch, chat: chat, limiters: map[string]*rate.Limiter{}}
}

// Handle processes one chat message. Messages from the bot itself are
// ignored entirely; every other message is marked read exactly once.
// It reports whether a reply was sent.
func (q *QueryHandler) Handle(ctx context.Context, ev transport.Event) bool {
	if ev.Sender == q.cfg.Self {
		// Replies quote the original text, which may contain the trigger.
		return false
	}
	defer q.markRead(ctx, ev)

	if !strings.Contains(ev.Text, q.cfg.Trigger) {
		return false
	}
	log := q.log.With(
		logx.String("query_id", uuid.NewString()),
		logx.String("room", ev.Room),
		logx.String("sender", ev.Sender),
	)
	if !q.allow(ev.Room) {
		log.Warn("query rate limited")
		return false
	}

	start := time.Now()
	msg := q.answer(ctx, log)
	if err := q.chat.Reply(ctx, ev.Room, ev, msg); err != nil {
		log.Error("failed to send query reply", logx.Err(err))
		return false
	}
	log.Info("query answered", logx.Duration("took", time.Since(start)))
	return true
}

func (q *QueryHandler) answer(ctx context.Context, log logx.Logger) transport.Message {
	st, err := q.fetch.Fetch(ctx)
	if err != nil {
		log.Warn("status fetch failed", logx.Err(err))
		return FailureMessage(err)
	}
	msg, err := Render(st)
	if err != nil {
		log.Error("status payload rejected", logx.Err(err))
		return FailureMessage(err)
	}
	return msg
}

func (q *QueryHandler) markRead(ctx context.Context, ev transport.Event) {
	if ev.ID == "" {
		return
	}
	if err := q.chat.MarkRead(ctx, ev.Room, ev.ID); err != nil {
		q.log.Warn("failed to mark message read", logx.String("room", ev.Room), logx.Err(err))
	}
}

func (q *QueryHandler) allow(room string) bool {
	if q.cfg.RatePerMin <= 0 {
		return true
	}
	q.mu.Lock()
	lim, ok := q.limiters[room]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(q.cfg.RatePerMin)), q.cfg.RatePerMin)
		q.limiters[room] = lim
	}
	q.mu.Unlock()
	return lim.Allow()
}
