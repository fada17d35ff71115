package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	OpenAI   OpenAIConfig   `json:"openai"`
	Channels []Channel      `json:"channels"`
	Digest   DigestConfig   `json:"digest"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

// TelegramConfig carries both halves of the Telegram access:
// the user session (MTProto, reads channel history) and the bot (delivers digests).
//
// Secrets may be left empty here and provided via environment variables instead:
// TELEBRIEF_API_ID, TELEBRIEF_API_HASH, TELEBRIEF_BOT_TOKEN.
type TelegramConfig struct {
	APIID       int    `json:"api_id,omitempty"`
	APIHash     string `json:"api_hash,omitempty"`
	BotToken    string `json:"bot_token,omitempty"`
	SessionPath string `json:"session_path,omitempty"` // default: ./sessions/user.json
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// OpenAIConfig configures the summarization backend.
// APIKey may come from TELEBRIEF_OPENAI_API_KEY instead.
type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model,omitempty"`    // default: gpt-4o-mini
	BaseURL string `json:"base_url,omitempty"` // for OpenAI-compatible endpoints
	// RequestTimeout is a Go duration string (default "60s").
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// Channel is one collection source. ID accepts a numeric channel ID
// (with or without the -100 prefix) or an @username.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DigestConfig controls the daily pipeline run.
type DigestConfig struct {
	// ScheduleTime is the local "HH:MM" to run at, interpreted in Timezone.
	ScheduleTime string `json:"schedule_time,omitempty"` // default "08:00"
	Timezone     string `json:"timezone,omitempty"`      // IANA TZ, default UTC

	LookbackHours         int `json:"lookback_hours,omitempty"`           // default 24
	MaxMessagesPerChannel int `json:"max_messages_per_channel,omitempty"` // default 500

	// RecipientID is the single authorized Telegram user. Required.
	RecipientID int64 `json:"recipient_id"`

	UseIcons          *bool `json:"use_icons,omitempty"`          // default true
	IncludeStatistics *bool `json:"include_statistics,omitempty"` // default true
	// AutoCleanup deletes the previous digest batch before sending a new one.
	AutoCleanup bool `json:"auto_cleanup,omitempty"`
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

// StorageConfig controls the delivery-record store.
//
// Driver values:
//   - "file": single JSON document (default)
//   - "sqlite": SQLite database file
//
// Example:
//
//	storage: { driver: "file", path: "./data/digest_messages.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// UnmarshalJSON disallows unknown fields so typos in channel entries are
// caught during load instead of silently dropping a channel.
func (c *Channel) UnmarshalJSON(b []byte) error {
	type tmp struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*c = Channel(t)
	return nil
}

// UseIconsValue resolves the pointer with its default.
func (d DigestConfig) UseIconsValue() bool {
	return d.UseIcons == nil || *d.UseIcons
}

// IncludeStatisticsValue resolves the pointer with its default.
func (d DigestConfig) IncludeStatisticsValue() bool {
	return d.IncludeStatistics == nil || *d.IncludeStatistics
}
