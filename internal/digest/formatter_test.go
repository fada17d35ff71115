package digest

import (
	"strings"
	"testing"
	"time"

	logx "telebrief/pkg/logx"
)

func TestFormatterDropsEmptyAndErrored(t *testing.T) {
	t.Parallel()
	f := NewFormatter(true, false, logx.Nop())
	channels := []ChannelIdentity{
		{ID: "1", Name: "Tech"},
		{ID: "2", Name: "Broken"},
		{ID: "3", Name: "Silent"},
	}
	summaries := map[string]string{
		"Tech":   "- 🚀 новый релиз",
		"Broken": errorMarkerPrefix + "api timeout",
		"Silent": "",
	}

	blocks, _ := f.Format(channels, summaries, nil, 24*time.Hour)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1: %+v", len(blocks), blocks)
	}
	if blocks[0].ChannelName != "Tech" {
		t.Fatalf("wrong surviving channel: %s", blocks[0].ChannelName)
	}
	if !strings.Contains(blocks[0].Text, "новый релиз") {
		t.Fatalf("summary missing from block: %q", blocks[0].Text)
	}
}

func TestFormatterKeepsChannelOrder(t *testing.T) {
	t.Parallel()
	f := NewFormatter(true, false, logx.Nop())
	channels := []ChannelIdentity{
		{ID: "1", Name: "Zeta"},
		{ID: "2", Name: "Alpha"},
	}
	summaries := map[string]string{"Zeta": "- z", "Alpha": "- a"}

	blocks, _ := f.Format(channels, summaries, nil, time.Hour)
	if len(blocks) != 2 || blocks[0].ChannelName != "Zeta" || blocks[1].ChannelName != "Alpha" {
		t.Fatalf("configuration order lost: %+v", blocks)
	}
}

func TestChannelIcons(t *testing.T) {
	t.Parallel()
	withIcons := NewFormatter(true, false, logx.Nop())
	plain := NewFormatter(false, false, logx.Nop())

	tests := []struct {
		name string
		icon string
	}{
		{"TechCrunch", "💻"},
		{"Новости дня", "📰"},
		{"Crypto Signals", "💰"},
		{"AI Hub", "🤖"},
		{"Something Else", "📺"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := withIcons.channelIcon(tt.name); got != tt.icon {
				t.Fatalf("channelIcon(%q) = %s, want %s", tt.name, got, tt.icon)
			}
			if got := plain.channelIcon(tt.name); got != "•" {
				t.Fatalf("icons disabled: channelIcon(%q) = %s, want bullet", tt.name, got)
			}
		})
	}
}

func TestFormatterStatistics(t *testing.T) {
	t.Parallel()
	f := NewFormatter(true, true, logx.Nop())
	f.now = func() time.Time { return time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC) }

	byChannel := map[string][]Message{
		"Tech":  {{Text: "a"}, {Text: "b"}},
		"News":  {{Text: "c"}},
		"Quiet": {},
	}
	_, stats := f.Format([]ChannelIdentity{{ID: "1", Name: "Tech"}},
		map[string]string{"Tech": "- x"}, byChannel, 24*time.Hour)

	if !strings.Contains(stats, "2 каналов, 3 сообщений") {
		t.Fatalf("counts missing: %q", stats)
	}
	if !strings.Contains(stats, "31 августа 2026") {
		t.Fatalf("date header missing: %q", stats)
	}
	if !strings.Contains(stats, "30.08 08:00 - 31.08 08:00 UTC") {
		t.Fatalf("window missing: %q", stats)
	}
}

func TestFormatterStatisticsDisabled(t *testing.T) {
	t.Parallel()
	f := NewFormatter(true, false, logx.Nop())
	_, stats := f.Format(nil, nil, map[string][]Message{"A": {{Text: "x"}}}, time.Hour)
	if stats != "" {
		t.Fatalf("statistics disabled but got %q", stats)
	}
}
