package bridge

import (
	"context"
	"runtime/debug"

	"spacebot/internal/transport"
	logx "spacebot/pkg/logx"
)

// Router hands chat events to per-event goroutines. Spawned work is never
// cancelled; shutdown only stops new events from being picked up.
type Router struct {
	log     logx.Logger
	self    string
	queries *QueryHandler
	invites *Acceptor
	spawn   func(name string, fn func())
}

func NewRouter(self string, queries *QueryHandler, invites *Acceptor, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{log: log, self: self, queries: queries, invites: invites}
	r.spawn = r.goDetached
	return r
}

func (r *Router) Run(ctx context.Context, events <-chan transport.Event) error {
	// Work outlives shutdown, so it must not inherit cancellation.
	detached := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Route(detached, ev)
		}
	}
}

// Route dispatches one event without blocking.
func (r *Router) Route(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.EventInvite:
		if ev.Invitee != r.self {
			return
		}
		r.spawn("invite", func() { r.invites.Accept(ctx, ev.Room) })
	case transport.EventMessage:
		if ev.Sender == r.self {
			return
		}
		r.spawn("query", func() { r.queries.Handle(ctx, ev) })
	default:
		r.log.Debug("ignoring chat event", logx.String("kind", string(ev.Kind)))
	}
}

func (r *Router) goDetached(name string, fn func()) {
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("task panicked", logx.String("task", name), logx.Any("panic", p), logx.Stack(string(debug.Stack())))
			}
		}()
		fn()
	}()
}
