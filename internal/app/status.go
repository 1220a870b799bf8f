package app

import (
	"context"
	"time"

	"spacebot/internal/bridge"
	"spacebot/internal/config"
	"spacebot/internal/spaceapi"
	"spacebot/internal/transport"
)

// FetchStatus renders the current status once, the same way a chat query
// would answer it.
func FetchStatus(ctx context.Context, cfgPath string) (transport.Message, error) {
	cfg, err := config.NewConfigManager(cfgPath).Parse()
	if err != nil {
		return transport.Message{}, err
	}
	timeout, err := config.ParseDurationOrDefault("spaceapi.timeout", cfg.SpaceAPI.Timeout, 10*time.Second)
	if err != nil {
		return transport.Message{}, err
	}
	st, err := spaceapi.NewClient(cfg.SpaceAPI.URL, timeout).Fetch(ctx)
	if err != nil {
		return transport.Message{}, err
	}
	return bridge.Render(st)
}
