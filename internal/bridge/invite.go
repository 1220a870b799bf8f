package bridge

import (
	"context"
	"time"

	logx "spacebot/pkg/logx"
)

const (
	acceptInitialDelay = 2
	acceptMaxDelay     = 3600
)

// Joiner accepts a pending room invitation.
type Joiner interface {
	AcceptInvite(ctx context.Context, room string) error
}

type AcceptOutcome int

const (
	Joined AcceptOutcome = iota
	GaveUp
)

func (o AcceptOutcome) String() string {
	if o == Joined {
		return "joined"
	}
	return "gave_up"
}

// Acceptor retries an invitation with exponential backoff: the delay starts
// at 2 units and doubles after every failure; once it would exceed 3600 units
// the invitation is abandoned.
type Acceptor struct {
	log   logx.Logger
	join  Joiner
	unit  time.Duration
	sleep func(time.Duration)
}

// NewAcceptor uses seconds as the delay unit.
func NewAcceptor(join Joiner, log logx.Logger) *Acceptor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Acceptor{log: log, join: join, unit: time.Second, sleep: time.Sleep}
}

// Accept runs one invitation to completion. It blocks for up to about two
// hours and is meant to run on its own goroutine.
func (a *Acceptor) Accept(ctx context.Context, room string) AcceptOutcome {
	log := a.log.With(logx.String("room", room))
	log.Info("autojoining room")

	delay := acceptInitialDelay
	for attempt := 1; ; attempt++ {
		err := a.join.AcceptInvite(ctx, room)
		if err == nil {
			log.Info("joined room", logx.Int("attempts", attempt))
			return Joined
		}
		log.Error("failed to join room, retrying",
			logx.Err(err), logx.Int("attempt", attempt), logx.Duration("retry_in", time.Duration(delay)*a.unit))

		a.sleep(time.Duration(delay) * a.unit)
		delay *= 2
		if delay > acceptMaxDelay {
			log.Error("gave up joining room", logx.Err(err), logx.Int("attempts", attempt))
			return GaveUp
		}
	}
}
