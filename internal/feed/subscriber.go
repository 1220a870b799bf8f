// Package feed subscribes to the SpaceAPI MQTT topic and hands raw payloads
// to the bridge loop.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	logx "spacebot/pkg/logx"
)

const (
	connectRetry = time.Second
	maxReconnect = 5 * time.Second
	keepAlive    = 5 * time.Second

	// disconnectQuiesce is in milliseconds, as paho's Disconnect expects.
	disconnectQuiesce uint = 250
)

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	// Buffer bounds the payload queue; a full queue blocks the MQTT callback.
	Buffer int
}

// Subscriber owns one MQTT client for the process lifetime.
type Subscriber struct {
	log    logx.Logger
	cfg    Config
	client mqtt.Client
	out    chan []byte
	ctx    context.Context
}

func New(cfg Config, log logx.Logger) *Subscriber {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	return &Subscriber{log: log, cfg: cfg, out: make(chan []byte, cfg.Buffer)}
}

// Payloads is never closed; consumers stop on their own context.
func (s *Subscriber) Payloads() <-chan []byte { return s.out }

func (s *Subscriber) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetry).
		SetMaxReconnectInterval(maxReconnect).
		SetKeepAlive(keepAlive).
		SetOrderMatters(true) // a blocked callback also stalls keep-alive handling
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	// Subscriptions do not survive a clean-session reconnect.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.log.Info("mqtt connected", logx.String("broker", s.cfg.Broker))
		tok := c.Subscribe(s.cfg.Topic, 0, s.onMessage)
		go func() {
			tok.Wait()
			if err := tok.Error(); err != nil {
				s.log.Error("mqtt subscribe failed", logx.String("topic", s.cfg.Topic), logx.Err(err))
				return
			}
			s.log.Info("mqtt subscribed", logx.String("topic", s.cfg.Topic))
		}()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.log.Warn("mqtt connection lost", logx.Err(err))
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		s.log.Debug("mqtt reconnecting")
	})
	return opts
}

// Start connects in the background. Connection failures are retried by the
// client; Start only fails on unusable configuration.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.client != nil {
		return errors.New("feed: already started")
	}
	if s.cfg.Broker == "" || s.cfg.Topic == "" {
		return errors.New("feed: broker and topic are required")
	}
	s.ctx = ctx
	s.client = mqtt.NewClient(s.options())
	tok := s.client.Connect()
	go func() {
		tok.Wait()
		if err := tok.Error(); err != nil {
			s.log.Error("mqtt connect failed", logx.Err(err))
		}
	}()
	return nil
}

// onMessage blocks until the loop takes the payload or the subscriber stops.
func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.deliver(msg.Payload())
}

func (s *Subscriber) deliver(payload []byte) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	b := append([]byte(nil), payload...)
	select {
	case s.out <- b:
	case <-ctx.Done():
	}
}

func (s *Subscriber) Stop(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.client.Disconnect(disconnectQuiesce)
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("mqtt disconnected")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("feed stop: %w", ctx.Err())
	}
}
