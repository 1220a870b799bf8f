package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spacebot/internal/bridge"
	"spacebot/internal/config"
	"spacebot/internal/eventbus"
	"spacebot/internal/feed"
	"spacebot/internal/health"
	"spacebot/internal/runtime/supervisor"
	"spacebot/internal/spaceapi"
	"spacebot/internal/storage"
	"spacebot/internal/transport"
	"spacebot/internal/transport/matrix"
	"spacebot/internal/transport/telegram"
	logx "spacebot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter transport.Adapter
	feed    *feed.Subscriber
	fetch   *spaceapi.Client
	monitor *health.Monitor

	events chan transport.Event
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	ad, err := newAdapter(cfg, store, log)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	fetchTimeout, err := config.ParseDurationOrDefault("spaceapi.timeout", cfg.SpaceAPI.Timeout, 10*time.Second)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	hc, err := mapHealthConfig(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		feed: feed.New(feed.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			Buffer:   cfg.MQTT.Buffer,
		}, log.With(logx.String("comp", "feed"))),
		fetch:   spaceapi.NewClient(cfg.SpaceAPI.URL, fetchTimeout),
		monitor: health.New(hc, bus, config.CronParser, log.With(logx.String("comp", "health"))),
		events:  make(chan transport.Event, 256),
	}, nil
}

func newAdapter(cfg *config.Config, store storage.Store, log logx.Logger) (transport.Adapter, error) {
	switch cfg.Platform {
	case config.PlatformTelegram:
		poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		return telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll},
			log.With(logx.String("comp", "telegram")))
	case config.PlatformMatrix:
		var kv storage.Store
		if store != nil {
			kv = storage.Prefixed(store, "matrix")
		}
		return matrix.New(matrix.Config{
			Homeserver: cfg.Matrix.Homeserver,
			UserID:     cfg.Matrix.Username,
			Password:   cfg.Matrix.Password,
			DeviceName: cfg.Matrix.DeviceName,
		}, kv, log.With(logx.String("comp", "matrix")))
	default:
		return nil, fmt.Errorf("unknown platform: %q", cfg.Platform)
	}
}

func closeStore(s storage.Store) {
	if s != nil {
		_ = s.Close()
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start logs in, seeds the status cache and launches the feed loop. A failed
// or state-less seed fetch aborts startup.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if c, ok := a.adapter.(interface{ Connect(context.Context) error }); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	self := a.adapter.Self()
	a.log.Info("chat session ready", logx.String("platform", cfg.Platform), logx.String("self", self))

	cache, err := seedCache(ctx, a.fetch, a.log)
	if err != nil {
		return err
	}

	sendTimeout, err := config.ParseDurationField("bridge.send_timeout", cfg.Bridge.SendTimeout)
	if err != nil {
		return err
	}
	loop := bridge.NewLoop(
		cache,
		bridge.NewDispatcher(a.adapter, cfg.Bridge.AnnounceRooms, sendTimeout, a.log.With(logx.String("comp", "dispatch"))),
		a.bus,
		a.log.With(logx.String("comp", "loop")),
	)
	router := bridge.NewRouter(self,
		bridge.NewQueryHandler(bridge.QueryConfig{
			Self:       self,
			Trigger:    cfg.Bridge.Trigger,
			RatePerMin: cfg.Bridge.QueryRatePerMin,
		}, a.fetch, a.adapter, a.log.With(logx.String("comp", "query"))),
		bridge.NewAcceptor(a.adapter, a.log.With(logx.String("comp", "invite"))),
		a.log.With(logx.String("comp", "router")),
	)

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if err := a.adapter.Start(a.sup.Context(), a.events); err != nil {
		return err
	}
	if err := a.feed.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("bridge.loop", func(c context.Context) error {
		return loop.Run(c, a.feed.Payloads())
	})
	a.sup.Go("bridge.router", func(c context.Context) error {
		return router.Run(c, a.events)
	})
	a.sup.Go("health", a.monitor.Run)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.Int("announce_rooms", len(cfg.Bridge.AnnounceRooms)), logx.String("topic", cfg.MQTT.Topic))
	return nil
}

// seedCache fetches the status once so the first feed payload is compared
// against reality. A failed fetch or a status without state is fatal.
func seedCache(ctx context.Context, fetch bridge.Fetcher, log logx.Logger) (*bridge.Cache, error) {
	seed, err := fetch.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial status fetch: %w", err)
	}
	if seed.State == nil {
		return nil, fmt.Errorf("initial status of %q has no state", seed.Space)
	}
	log.Info("initial state", logx.String("space", seed.Space), logx.String("state", seed.State.String()))
	return bridge.NewCache(*seed.State), nil
}

// applyConfig applies the live sections of a reloaded config. Everything else
// is reported and left for the next restart.
func (a *App) applyConfig(prev, next *config.Config) {
	sections := config.ChangedSections(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if pending := config.RestartRequired(sections); len(pending) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.Strings("sections", pending))
	}
	a.logs.Apply(mapLogConfig(next))
	a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		closeStore(a.store)
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)), logx.Int("goroutines", int(a.sup.Counters().Active)))
	a.sup.Cancel()

	// step bounds one shutdown step so a stuck component can't stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("feed", 2*time.Second, a.feed.Stop)
	step("adapter", 3*time.Second, a.adapter.Stop)
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
