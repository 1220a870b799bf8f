// Package telegram adapts a Telegram bot to the chat transport.
package telegram

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"spacebot/internal/runtime/supervisor"
	"spacebot/internal/transport"
	logx "spacebot/pkg/logx"
)

// ErrUnsupported is returned for operations Telegram bots cannot perform.
var ErrUnsupported = errors.New("telegram: unsupported operation")

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Value // chan<- transport.Event
	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	// droppedEvents counts messages lost because the router was not keeping up.
	droppedEvents uint64
}

var _ transport.Adapter = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	var nilOut chan<- transport.Event
	a.out.Store(nilOut)
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		if ev, ok := classify(c.Message()); ok {
			a.emit(ev)
		}
		return nil
	})
	return a, nil
}

// classify turns a text message into a transport event. Telegram has no
// invitation flow for bots, so only messages are produced.
func classify(m *tele.Message) (transport.Event, bool) {
	if m == nil || m.Chat == nil || m.Sender == nil {
		return transport.Event{}, false
	}
	return transport.Event{
		Kind:   transport.EventMessage,
		Room:   strconv.FormatInt(m.Chat.ID, 10),
		ID:     strconv.Itoa(m.ID),
		Sender: strconv.FormatInt(m.Sender.ID, 10),
		Text:   m.Text,
	}, true
}

func (a *Adapter) emit(ev transport.Event) {
	out, _ := a.out.Load().(chan<- transport.Event)
	if out == nil {
		return
	}
	select {
	case out <- ev:
	default:
		atomic.AddUint64(&a.droppedEvents, 1)
	}
}

func (a *Adapter) Self() string {
	if a.bot.Me == nil {
		return ""
	}
	return strconv.FormatInt(a.bot.Me.ID, 10)
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Event) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))),
		supervisor.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("events.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				a.reportDrops(cap(out))
				return
			case <-ticker.C:
				a.reportDrops(cap(out))
			}
		}
	})
	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	// Start blocks until Stop; restart it if it returns early.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		if c.Err() != nil {
			return nil
		}
		return errors.New("poller exited")
	}, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	return nil
}

func (a *Adapter) reportDrops(capacity int) {
	if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
		a.log.Warn("incoming messages dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", capacity))
	}
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- transport.Event
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	sup.Cancel()

	// Keep shutdown snappy even while getUpdates is long-polling.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		a.log.Warn("telegram stop timed out", logx.Err(err))
	}
	return nil
}

func (a *Adapter) Send(ctx context.Context, room string, msg transport.Message) error {
	return a.send(ctx, room, msg, 0)
}

func (a *Adapter) Reply(ctx context.Context, room string, to transport.Event, msg transport.Message) error {
	id, err := strconv.Atoi(to.ID)
	if err != nil {
		return a.send(ctx, room, msg, 0)
	}
	return a.send(ctx, room, msg, id)
}

func (a *Adapter) send(ctx context.Context, room string, msg transport.Message, replyTo int) error {
	chatID, err := strconv.ParseInt(room, 10, 64)
	if err != nil {
		return errors.New("telegram: chat id must be numeric: " + room)
	}
	chat := &tele.Chat{ID: chatID}

	text, mode := msg.Body, tele.ParseMode("")
	if msg.Markdown {
		text, mode = markdownToHTML(msg.Body), tele.ModeHTML
	}
	for i, chunk := range splitText(text, textLimit, string(mode)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		opt := &tele.SendOptions{ParseMode: mode}
		if i == 0 && replyTo != 0 {
			opt.ReplyTo = &tele.Message{ID: replyTo, Chat: chat}
		}
		if _, err := a.bot.Send(chat, chunk, opt); err != nil {
			return err
		}
	}
	return nil
}

// MarkRead is a no-op: bots have no read receipts.
func (a *Adapter) MarkRead(ctx context.Context, room, eventID string) error { return nil }

func (a *Adapter) AcceptInvite(ctx context.Context, room string) error { return ErrUnsupported }

// markdownToHTML renders the only markup the bridge produces (**bold**) as
// Telegram HTML, escaping everything else.
func markdownToHTML(s string) string {
	parts := strings.Split(html.EscapeString(s), "**")
	if len(parts)%2 == 0 {
		// Unbalanced markers are kept literally.
		return html.EscapeString(s)
	}
	var b strings.Builder
	for i, p := range parts {
		if i%2 == 1 {
			b.WriteString("<b>" + p + "</b>")
			continue
		}
		b.WriteString(p)
	}
	return b.String()
}
