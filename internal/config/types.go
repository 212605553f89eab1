package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	Storage   StorageConfig   `json:"storage"`
	Reminders RemindersConfig `json:"reminders"`
	Feedwatch FeedwatchConfig `json:"feedwatch,omitempty"`
	Notify    *NotifyConfig   `json:"notify,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
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

// StorageConfig controls the sqlite persistence layer.
//
// Example:
//
//	"storage": { "path": "./remindbot.db" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// RemindersConfig controls the due-reminder drain loop.
//
// UTCOffset is a signed Go duration string (e.g. "7h", "-5h30m") that fixes
// the wall-clock zone used to interpret and render reminder timestamps.
// When omitted, the host's local zone is used.
type RemindersConfig struct {
	// DrainInterval is a Go duration string (default "5s").
	DrainInterval string `json:"drain_interval,omitempty"`
	UTCOffset     string `json:"utc_offset,omitempty"`
}

// FeedwatchConfig controls the upload-feed poller.
type FeedwatchConfig struct {
	// PollSchedule is a cron spec or descriptor (default "@every 60s").
	PollSchedule string `json:"poll_schedule,omitempty"`
}

// NotifyConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, defaults apply.
type NotifyConfig struct {
	Workers       int    `json:"workers"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
}
