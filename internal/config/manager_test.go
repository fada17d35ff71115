package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
telegram:
  api_id: 12345
  api_hash: "abcdef0123456789"
  bot_token: "123:token"
openai:
  api_key: "sk-test"
  model: "gpt-4o-mini"
channels:
  - id: "@technews"
    name: "Tech News"
  - id: "-1001234567890"
    name: "Private Digest"
digest:
  schedule_time: "09:30"
  timezone: "Europe/Moscow"
  lookback_hours: 12
  recipient_id: 111222333
  use_icons: false
logging:
  level: "debug"
  console: true
  file:
    enabled: false
    path: ""
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestManagerParseValid(t *testing.T) {
	m := NewManager(writeConfig(t, validYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Telegram.APIID != 12345 || cfg.Telegram.BotToken != "123:token" {
		t.Fatalf("telegram section wrong: %+v", cfg.Telegram)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0].ID != "@technews" {
		t.Fatalf("channels wrong: %+v", cfg.Channels)
	}
	if cfg.Digest.ScheduleTime != "09:30" || cfg.Digest.Timezone != "Europe/Moscow" {
		t.Fatalf("digest section wrong: %+v", cfg.Digest)
	}
	if cfg.Digest.UseIconsValue() {
		t.Fatal("use_icons: false not honored")
	}
	if !cfg.Digest.IncludeStatisticsValue() {
		t.Fatal("include_statistics must default to true")
	}
	// Defaults fill unset fields.
	if cfg.Digest.MaxMessagesPerChannel != 500 {
		t.Fatalf("max_messages_per_channel default = %d", cfg.Digest.MaxMessagesPerChannel)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage default missing: %+v", cfg.Storage)
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	bad := strings.Replace(validYAML, "lookback_hours: 12", "lookback_hourz: 12", 1)
	m := NewManager(writeConfig(t, bad))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestManagerRejectsMissingRecipient(t *testing.T) {
	bad := strings.Replace(validYAML, "recipient_id: 111222333", "", 1)
	m := NewManager(writeConfig(t, bad))
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "recipient_id") {
		t.Fatalf("err = %v, want recipient_id error", err)
	}
}

func TestManagerRejectsBadScheduleTime(t *testing.T) {
	bad := strings.Replace(validYAML, `schedule_time: "09:30"`, `schedule_time: "25:99"`, 1)
	m := NewManager(writeConfig(t, bad))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for out-of-range schedule time")
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	stripped := strings.Replace(validYAML, `api_key: "sk-test"`, `api_key: ""`, 1)
	t.Setenv("TELEBRIEF_OPENAI_API_KEY", "sk-from-env")

	m := NewManager(writeConfig(t, stripped))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-from-env" {
		t.Fatalf("api key = %q, want env value", cfg.OpenAI.APIKey)
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		hour    int
		minute  int
		wantErr bool
	}{
		{raw: "08:00", hour: 8},
		{raw: "23:59", hour: 23, minute: 59},
		{raw: "0:5", minute: 5},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "noon", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			h, m, err := ParseHHMM(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseHHMM(%q): expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHHMM(%q): %v", tt.raw, err)
			}
			if h != tt.hour || m != tt.minute {
				t.Fatalf("ParseHHMM(%q) = %d:%d, want %d:%d", tt.raw, h, m, tt.hour, tt.minute)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 5*time.Second)
	if err != nil || d != 5*time.Second {
		t.Fatalf("empty input: %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "90s", 0)
	if err != nil || d != 90*time.Second {
		t.Fatalf("parsed input: %v, %v", d, err)
	}
	if _, err = ParseDurationOrDefault("x", "soon", 0); err == nil {
		t.Fatal("expected error for bad duration")
	}
}
