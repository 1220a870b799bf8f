package health

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"spacebot/internal/eventbus"
	logx "spacebot/pkg/logx"
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCheckWarnsOnceUntilRecovered(t *testing.T) {
	var buf bytes.Buffer
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := New(Config{StaleAfter: 30 * time.Minute}, nil, parser, logx.NewJSON(&buf, "debug"))
	m.now = clk.now
	m.lastFeed = clk.now()

	clk.advance(10 * time.Minute)
	m.Check()
	require.False(t, m.Stale())

	clk.advance(25 * time.Minute)
	m.Check()
	m.Check()
	require.True(t, m.Stale())
	require.Equal(t, 1, strings.Count(buf.String(), "no feed payload received recently"))

	m.Seen(clk.now())
	require.False(t, m.Stale())
	require.Contains(t, buf.String(), "feed recovered")
}

func TestCheckDisabled(t *testing.T) {
	m := New(Config{}, nil, parser, logx.Nop())
	m.lastFeed = time.Unix(0, 0)
	m.Check()
	require.False(t, m.Stale())
}

func TestRunTracksFeedAndNotifiesSystemd(t *testing.T) {
	bus := eventbus.New()
	m := New(Config{StaleAfter: time.Hour, CheckSchedule: "@every 1h", Systemd: true}, bus, parser, logx.Nop())

	var mu sync.Mutex
	var states []string
	m.notify = func(state string) (bool, error) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
		return true, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 1
	}, time.Second, 5*time.Millisecond)

	future := time.Now().Add(time.Minute)
	require.Eventually(t, func() bool {
		bus.Publish(eventbus.Event{Type: eventbus.TypeFeedReceived, Time: future})
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.lastFeed.Equal(future)
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{daemon.SdNotifyReady, daemon.SdNotifyStopping}, states)
}
