package config

import (
	"errors"
	"strings"

	logx "remindbot/pkg/logx"
)

var (
	errNilConfig          = errors.New("config is nil")
	errMissingToken       = errors.New("telegram.token: required")
	errMissingStoragePath = errors.New("storage.path: required")
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging (never includes the bot token).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Telegram (never log token)
	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		oldCfg.Telegram.Token != newCfg.Telegram.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.path", strings.TrimSpace(newCfg.Storage.Path)),
		)
	}

	if oldCfg.Reminders != newCfg.Reminders {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.String("reminders.drain_interval", strings.TrimSpace(newCfg.Reminders.DrainInterval)),
			logx.String("reminders.utc_offset", strings.TrimSpace(newCfg.Reminders.UTCOffset)),
		)
	}

	if oldCfg.Feedwatch != newCfg.Feedwatch {
		changed = append(changed, "feedwatch")
		attrs = append(attrs,
			logx.String("feedwatch.poll_schedule", strings.TrimSpace(newCfg.Feedwatch.PollSchedule)),
		)
	}

	oN := derefNotify(oldCfg.Notify)
	nN := derefNotify(newCfg.Notify)
	if oN != nN {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Int("notify.workers", nN.Workers),
			logx.Int("notify.rate_per_sec", nN.RatePerSec),
			logx.Int("notify.retry_max", nN.RetryMax),
		)
	}

	return changed, attrs
}

func derefNotify(n *NotifyConfig) NotifyConfig {
	if n == nil {
		return NotifyConfig{}
	}
	return *n
}

// Validate checks the fields the services cannot default their way around.
// Used as the Watch() validator so a broken edit never reaches a running bot.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errNilConfig
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errMissingToken
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return errMissingStoragePath
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("reminders.drain_interval", cfg.Reminders.DrainInterval); err != nil {
		return err
	}
	if _, err := ParseUTCOffset(cfg.Reminders.UTCOffset); err != nil {
		return err
	}
	if n := cfg.Notify; n != nil {
		if _, err := ParseDurationField("notify.retry_base", n.RetryBase); err != nil {
			return err
		}
		if _, err := ParseDurationField("notify.retry_max_delay", n.RetryMaxDelay); err != nil {
			return err
		}
	}
	return nil
}
