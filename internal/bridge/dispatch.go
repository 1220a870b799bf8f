package bridge

import (
	"context"
	"time"

	"spacebot/internal/transport"
	logx "spacebot/pkg/logx"
)

// Sender delivers an unthreaded message to one room.
type Sender interface {
	Send(ctx context.Context, room string, msg transport.Message) error
}

// DispatchReport summarizes one fan-out. It is informational only.
type DispatchReport struct {
	Sent   int
	Failed int
}

// Dispatcher fans a message out to a fixed set of rooms. Every room is
// attempted exactly once; a failure is logged and never retried.
type Dispatcher struct {
	log     logx.Logger
	sender  Sender
	rooms   []string
	timeout time.Duration
}

// NewDispatcher copies rooms. timeout bounds each send; 0 disables it.
func NewDispatcher(sender Sender, rooms []string, timeout time.Duration, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		log:     log,
		sender:  sender,
		rooms:   append([]string(nil), rooms...),
		timeout: timeout,
	}
}

func (d *Dispatcher) Rooms() []string { return append([]string(nil), d.rooms...) }

func (d *Dispatcher) Dispatch(ctx context.Context, msg transport.Message) DispatchReport {
	var rep DispatchReport
	for _, room := range d.rooms {
		if err := d.sendOne(ctx, room, msg); err != nil {
			rep.Failed++
			d.log.Error("failed to send notification", logx.String("room", room), logx.Err(err))
			continue
		}
		rep.Sent++
	}
	d.log.Debug("notification dispatched", logx.Int("sent", rep.Sent), logx.Int("failed", rep.Failed))
	return rep
}

func (d *Dispatcher) sendOne(ctx context.Context, room string, msg transport.Message) (err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	// A panicking sender must not take the other rooms down with it.
	defer func() {
		if r := recover(); r != nil {
			err = panicError{r}
		}
	}()
	return d.sender.Send(ctx, room, msg)
}
