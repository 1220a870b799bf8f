// Package health watches feed liveness and reports service state to systemd.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"spacebot/internal/eventbus"
	logx "spacebot/pkg/logx"
)

type Config struct {
	// StaleAfter <= 0 disables the staleness check.
	StaleAfter    time.Duration
	CheckSchedule string
	// Systemd enables sd_notify READY/WATCHDOG/STOPPING messages.
	Systemd bool
}

// Monitor warns once when the feed goes quiet and once when it recovers.
type Monitor struct {
	log    logx.Logger
	cfg    Config
	bus    eventbus.Bus
	parser cron.Parser

	now    func() time.Time
	notify func(state string) (bool, error)

	mu       sync.Mutex
	lastFeed time.Time
	stale    bool
}

func New(cfg Config, bus eventbus.Bus, parser cron.Parser, log logx.Logger) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Monitor{
		log:    log,
		cfg:    cfg,
		bus:    bus,
		parser: parser,
		now:    time.Now,
		notify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

// Run blocks until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.lastFeed = m.now()
	m.mu.Unlock()

	events, unsubscribe := m.bus.Subscribe(16)
	defer unsubscribe()

	var c *cron.Cron
	if m.cfg.StaleAfter > 0 && m.cfg.CheckSchedule != "" {
		c = cron.New(cron.WithParser(m.parser))
		if _, err := c.AddFunc(m.cfg.CheckSchedule, m.Check); err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	var watchdog <-chan time.Time
	if m.cfg.Systemd {
		m.sdNotify(daemon.SdNotifyReady)
		defer m.sdNotify(daemon.SdNotifyStopping)
		if every, err := daemon.SdWatchdogEnabled(false); err == nil && every > 0 {
			t := time.NewTicker(every / 2)
			defer t.Stop()
			watchdog = t.C
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type == eventbus.TypeFeedReceived {
				m.Seen(ev.Time)
			}
		case <-watchdog:
			m.sdNotify(daemon.SdNotifyWatchdog)
		}
	}
}

// Seen records a feed payload arrival.
func (m *Monitor) Seen(at time.Time) {
	if at.IsZero() {
		at = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if at.After(m.lastFeed) {
		m.lastFeed = at
	}
	if m.stale {
		m.stale = false
		m.log.Info("feed recovered")
	}
}

// Check compares the last feed arrival against StaleAfter.
func (m *Monitor) Check() {
	if m.cfg.StaleAfter <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	quiet := m.now().Sub(m.lastFeed)
	if quiet < m.cfg.StaleAfter || m.stale {
		return
	}
	m.stale = true
	m.log.Warn("no feed payload received recently",
		logx.Duration("quiet_for", quiet.Truncate(time.Second)), logx.Time("last_feed", m.lastFeed))
}

func (m *Monitor) Stale() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}

func (m *Monitor) sdNotify(state string) {
	sent, err := m.notify(state)
	if err != nil {
		m.log.Warn("systemd notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		m.log.Debug("systemd notified", logx.String("state", state))
	}
}
