package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	logx "spacebot/pkg/logx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CronParser accepts 5- and 6-field specs plus descriptors like "@every 1m".
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks a config after defaults and secrets have been applied.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Platform {
	case PlatformMatrix:
		u := strings.TrimSpace(cfg.Matrix.Username)
		if !strings.HasPrefix(u, "@") || !strings.Contains(u, ":") {
			return fmt.Errorf("matrix.username: %q is not a user id (want @user:server)", u)
		}
		if cfg.Matrix.Password == "" {
			return errors.New("matrix.password is required (or set MATRIX_PASSWORD)")
		}
	case PlatformTelegram:
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return errors.New("telegram.token is required (or set TELEGRAM_TOKEN)")
		}
		if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
	}

	if strings.TrimSpace(cfg.Bridge.Trigger) == "" {
		return errors.New("bridge.trigger must not be blank")
	}
	if _, err := ParseDurationField("bridge.send_timeout", cfg.Bridge.SendTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("spaceapi.timeout", cfg.SpaceAPI.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("health.stale_after", cfg.Health.StaleAfter); err != nil {
		return err
	}
	if _, err := CronParser.Parse(cfg.Health.CheckSchedule); err != nil {
		return fmt.Errorf("health.check_schedule: invalid %q: %w", cfg.Health.CheckSchedule, err)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	return nil
}
