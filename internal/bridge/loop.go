package bridge

import (
	"context"

	"spacebot/internal/eventbus"
	"spacebot/internal/spaceapi"
	"spacebot/internal/transport"
	logx "spacebot/pkg/logx"
)

// Notifier fans a message out to the announcement rooms.
type Notifier interface {
	Dispatch(ctx context.Context, msg transport.Message) DispatchReport
}

// Loop consumes feed payloads one at a time, in arrival order.
type Loop struct {
	log    logx.Logger
	cache  *Cache
	notify Notifier
	bus    eventbus.Bus
}

func NewLoop(cache *Cache, notify Notifier, bus eventbus.Bus, log logx.Logger) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Loop{log: log, cache: cache, notify: notify, bus: bus}
}

// Run returns as soon as ctx is done; payloads still queued are dropped.
// A payload is fully dispatched before the next one is read.
func (l *Loop) Run(ctx context.Context, feed <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-feed:
			if !ok {
				l.log.Warn("feed closed")
				return nil
			}
			l.Handle(ctx, payload)
		}
	}
}

// Handle processes a single raw feed payload. It reports whether a
// notification was dispatched.
func (l *Loop) Handle(ctx context.Context, payload []byte) bool {
	st, err := spaceapi.Decode(payload)
	if err != nil {
		l.log.Error("failed to deserialise feed payload", logx.Err(err))
		return false
	}
	l.bus.Publish(eventbus.Event{Type: eventbus.TypeFeedReceived, Data: st.Space})
	if st.State == nil {
		l.log.Warn("feed payload has no state", logx.String("space", st.Space))
		return false
	}
	l.log.Debug("feed payload received", logx.String("space", st.Space))

	if !l.cache.Evaluate(*st.State) {
		l.log.Debug("no change in state since last message")
		return false
	}
	l.log.Info("feed payload has a new state", logx.String("space", st.Space), logx.String("state", st.State.String()))
	l.bus.Publish(eventbus.Event{Type: eventbus.TypeStatusChanged, Data: st.State.Clone()})

	msg, err := Render(st)
	if err != nil {
		l.log.Error("cannot render new state", logx.Err(err))
		return false
	}
	rep := l.notify.Dispatch(ctx, msg)
	if rep.Failed > 0 {
		l.log.Warn("notification partially delivered", logx.Int("sent", rep.Sent), logx.Int("failed", rep.Failed))
	}
	return true
}
