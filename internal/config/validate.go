package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv overlays secrets from the environment. Environment wins over file
// values so deployments can keep credentials out of the config file entirely.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TELEBRIEF_API_ID")); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Telegram.APIID = id
		}
	}
	if v := strings.TrimSpace(os.Getenv("TELEBRIEF_API_HASH")); v != "" {
		cfg.Telegram.APIHash = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEBRIEF_BOT_TOKEN")); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEBRIEF_OPENAI_API_KEY")); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEBRIEF_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Telegram.SessionPath) == "" {
		cfg.Telegram.SessionPath = "./sessions/user.json"
	}
	if strings.TrimSpace(cfg.OpenAI.Model) == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if strings.TrimSpace(cfg.Digest.ScheduleTime) == "" {
		cfg.Digest.ScheduleTime = "08:00"
	}
	if strings.TrimSpace(cfg.Digest.Timezone) == "" {
		cfg.Digest.Timezone = "UTC"
	}
	if cfg.Digest.LookbackHours <= 0 {
		cfg.Digest.LookbackHours = 24
	}
	if cfg.Digest.MaxMessagesPerChannel <= 0 {
		cfg.Digest.MaxMessagesPerChannel = 500
	}
	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{Driver: "file", Path: "./data/digest_messages.json"}
	}
}

// Validate rejects configs that cannot possibly run. It is called on every
// load, including hot reloads, so a bad edit never replaces a good config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Telegram.APIID == 0 || strings.TrimSpace(cfg.Telegram.APIHash) == "" {
		return errors.New("telegram.api_id and telegram.api_hash are required (or TELEBRIEF_API_ID / TELEBRIEF_API_HASH)")
	}
	if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		return errors.New("telegram.bot_token is required (or TELEBRIEF_BOT_TOKEN)")
	}
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return errors.New("openai.api_key is required (or TELEBRIEF_OPENAI_API_KEY)")
	}
	if len(cfg.Channels) == 0 {
		return errors.New("no channels configured")
	}
	for i, ch := range cfg.Channels {
		if strings.TrimSpace(ch.ID) == "" || strings.TrimSpace(ch.Name) == "" {
			return fmt.Errorf("channels[%d]: id and name are required", i)
		}
	}
	if cfg.Digest.RecipientID == 0 {
		return errors.New("digest.recipient_id is required (ask @userinfobot for your Telegram user ID)")
	}
	if _, _, err := ParseHHMM(cfg.Digest.ScheduleTime); err != nil {
		return fmt.Errorf("digest.schedule_time: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Digest.Timezone); err != nil {
		return fmt.Errorf("digest.timezone: %w", err)
	}
	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
		}
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return errors.New("storage.path is required")
		}
	}
	return nil
}

// ParseHHMM parses a wall-clock "HH:MM" string.
func ParseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("out of range: %q", s)
	}
	return h, m, nil
}

// ParseDurationOrDefault parses a Go duration string, treating empty as def.
func ParseDurationOrDefault(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
