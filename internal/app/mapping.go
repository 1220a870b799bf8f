package app

import (
	"fmt"
	"strings"
	"time"

	"spacebot/internal/config"
	"spacebot/internal/health"
	"spacebot/internal/storage"
	logx "spacebot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "file":
		if path == "" {
			path = "./data/session.json"
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			path = "./data/session.db"
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapHealthConfig(cfg *config.Config) (health.Config, error) {
	stale, err := config.ParseDurationField("health.stale_after", cfg.Health.StaleAfter)
	if err != nil {
		return health.Config{}, err
	}
	return health.Config{
		StaleAfter:    stale,
		CheckSchedule: cfg.Health.CheckSchedule,
		Systemd:       cfg.Health.Systemd != nil && *cfg.Health.Systemd,
	}, nil
}
