package config

// Config is the on-disk configuration (JSON, or YAML coerced to JSON).
//
// Secrets may be left empty in the file and supplied through the
// environment instead (see Secrets).
type Config struct {
	// Platform selects the chat transport: "matrix" (default) or "telegram".
	Platform string         `json:"platform,omitempty" validate:"omitempty,oneof=matrix telegram"`
	Matrix   MatrixConfig   `json:"matrix"`
	Telegram TelegramConfig `json:"telegram"`
	Bridge   BridgeConfig   `json:"bridge"`
	SpaceAPI SpaceAPIConfig `json:"spaceapi"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Health   HealthConfig   `json:"health"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
}

type MatrixConfig struct {
	// Homeserver is the client-server API base URL. When empty it is
	// discovered through .well-known from the user id's server name.
	Homeserver string `json:"homeserver,omitempty" validate:"omitempty,url"`
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// BridgeConfig controls the notification and query behavior.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type BridgeConfig struct {
	// AnnounceRooms receive a notification whenever the published state changes.
	AnnounceRooms []string `json:"announce_rooms"`
	// Trigger is the substring that turns a chat message into a status query.
	Trigger string `json:"trigger,omitempty"`
	// SendTimeout bounds one delivery attempt per destination. "0s" disables it.
	SendTimeout string `json:"send_timeout,omitempty"`
	// QueryRatePerMin limits queries per room. 0 means unlimited.
	QueryRatePerMin int `json:"query_rate_per_min,omitempty" validate:"gte=0"`
}

type SpaceAPIConfig struct {
	URL     string `json:"url" validate:"required,url"`
	Timeout string `json:"timeout,omitempty"`
}

type MQTTConfig struct {
	Broker   string `json:"broker" validate:"required"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Topic    string `json:"topic,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	// Buffer is the feed channel capacity between the MQTT callback and the bridge loop.
	Buffer int `json:"buffer,omitempty" validate:"gte=0"`
}

// HealthConfig controls the feed staleness monitor and systemd integration.
type HealthConfig struct {
	// StaleAfter warns when no feed payload arrived for this long. "0s" disables it.
	StaleAfter string `json:"stale_after,omitempty"`
	// CheckSchedule is a robfig/cron spec (e.g. "@every 1m").
	CheckSchedule string `json:"check_schedule,omitempty"`
	// Systemd enables sd_notify readiness/watchdog messages.
	Systemd *bool `json:"systemd,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls where the chat session is kept.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/session.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty" validate:"omitempty,oneof=sqlite sqlite3 file none"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// Secrets are read from the environment and override file values when set.
type Secrets struct {
	MatrixPassword string `envconfig:"MATRIX_PASSWORD"`
	MQTTPassword   string `envconfig:"MQTT_PASSWORD"`
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
}
