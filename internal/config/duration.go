package config

import (
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// ParseUTCOffset parses reminders.utc_offset. Unlike ParseDurationField a
// negative value is valid (zones west of UTC). nil means "use the host zone".
func ParseUTCOffset(raw string) (*time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("reminders.utc_offset: invalid duration %q: %w", raw, err)
	}
	if d <= -24*time.Hour || d >= 24*time.Hour {
		return nil, fmt.Errorf("reminders.utc_offset: %q out of range", raw)
	}
	return &d, nil
}
