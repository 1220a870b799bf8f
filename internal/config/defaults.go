package config

import (
	"strings"

	"github.com/samber/lo"
)

const (
	PlatformMatrix   = "matrix"
	PlatformTelegram = "telegram"

	DefaultTrigger       = "!space"
	DefaultTopic         = "makerspace/spaceapi"
	DefaultClientID      = "spaceapi-matrix-bot"
	DefaultDeviceName    = "spaceapi-matrix-bot"
	DefaultSendTimeout   = "20s"
	DefaultFetchTimeout  = "10s"
	DefaultStaleAfter    = "30m"
	DefaultCheckSchedule = "@every 1m"
	DefaultFeedBuffer    = 16
)

// ApplyDefaults fills omitted values in place.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	if cfg.Platform == "" {
		cfg.Platform = PlatformMatrix
	}
	if strings.TrimSpace(cfg.Matrix.DeviceName) == "" {
		cfg.Matrix.DeviceName = DefaultDeviceName
	}
	if cfg.Bridge.Trigger == "" {
		cfg.Bridge.Trigger = DefaultTrigger
	}
	if strings.TrimSpace(cfg.Bridge.SendTimeout) == "" {
		cfg.Bridge.SendTimeout = DefaultSendTimeout
	}
	// Drop blanks and duplicates so a room never gets the same notification twice.
	rooms := lo.Map(cfg.Bridge.AnnounceRooms, func(r string, _ int) string { return strings.TrimSpace(r) })
	cfg.Bridge.AnnounceRooms = lo.Uniq(lo.Compact(rooms))

	if strings.TrimSpace(cfg.SpaceAPI.Timeout) == "" {
		cfg.SpaceAPI.Timeout = DefaultFetchTimeout
	}
	if strings.TrimSpace(cfg.MQTT.Topic) == "" {
		cfg.MQTT.Topic = DefaultTopic
	}
	if strings.TrimSpace(cfg.MQTT.ClientID) == "" {
		cfg.MQTT.ClientID = DefaultClientID
	}
	if cfg.MQTT.Buffer == 0 {
		cfg.MQTT.Buffer = DefaultFeedBuffer
	}
	if strings.TrimSpace(cfg.Health.StaleAfter) == "" {
		cfg.Health.StaleAfter = DefaultStaleAfter
	}
	if strings.TrimSpace(cfg.Health.CheckSchedule) == "" {
		cfg.Health.CheckSchedule = DefaultCheckSchedule
	}
	if cfg.Health.Systemd == nil {
		cfg.Health.Systemd = lo.ToPtr(true)
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "INFO"
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = "sqlite"
	}
}

// ApplySecrets overlays non-empty environment secrets.
func ApplySecrets(cfg *Config, s Secrets) {
	if cfg == nil {
		return
	}
	if s.MatrixPassword != "" {
		cfg.Matrix.Password = s.MatrixPassword
	}
	if s.MQTTPassword != "" {
		cfg.MQTT.Password = s.MQTTPassword
	}
	if s.TelegramToken != "" {
		cfg.Telegram.Token = s.TelegramToken
	}
}
