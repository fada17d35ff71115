package telegram

import (
	"testing"

	"github.com/gotd/td/tg"

	"telebrief/internal/source"
)

func TestAsUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		id   string
		name string
		ok   bool
	}{
		{id: "@technews", name: "technews", ok: true},
		{id: "technews", name: "technews", ok: true},
		{id: "-1001234567890", ok: false},
		{id: "1234567890", ok: false},
		{id: "", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.id, func(t *testing.T) {
			name, ok := asUsername(tt.id)
			if name != tt.name || ok != tt.ok {
				t.Fatalf("asUsername(%q) = %q, %v; want %q, %v", tt.id, name, ok, tt.name, tt.ok)
			}
		})
	}
}

func TestStripChannelPrefix(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   int64
		want int64
	}{
		{in: -1001234567890, want: 1234567890},
		{in: 1001234567890, want: 1234567890},
		{in: 1234567890, want: 1234567890},
		{in: -1234567890, want: 1234567890},
	}
	for _, tt := range tests {
		if got := stripChannelPrefix(tt.in); got != tt.want {
			t.Fatalf("stripChannelPrefix(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMediaKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		media tg.MessageMediaClass
		want  source.MediaKind
	}{
		{name: "none", media: nil, want: source.MediaNone},
		{name: "photo", media: &tg.MessageMediaPhoto{}, want: source.MediaPhoto},
		{name: "poll", media: &tg.MessageMediaPoll{}, want: source.MediaPoll},
		{name: "geo", media: &tg.MessageMediaGeo{}, want: source.MediaGeo},
		{name: "video", media: &tg.MessageMediaDocument{
			Document: &tg.Document{MimeType: "video/mp4"},
		}, want: source.MediaVideo},
		{name: "audio", media: &tg.MessageMediaDocument{
			Document: &tg.Document{MimeType: "audio/ogg"},
		}, want: source.MediaAudio},
		{name: "voice", media: &tg.MessageMediaDocument{
			Document: &tg.Document{
				MimeType:   "audio/ogg",
				Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Voice: true}},
			},
		}, want: source.MediaVoice},
		{name: "document", media: &tg.MessageMediaDocument{
			Document: &tg.Document{MimeType: "application/pdf"},
		}, want: source.MediaDocument},
		{name: "other", media: &tg.MessageMediaContact{}, want: source.MediaOther},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			msg := &tg.Message{Media: tt.media}
			if got := mediaKind(msg); got != tt.want {
				t.Fatalf("mediaKind = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSenderName(t *testing.T) {
	t.Parallel()
	names := map[int64]string{7: "Alice Smith", 9: "News Channel"}
	peer := source.Peer{Title: "Fallback Title"}

	if got := senderName(&tg.Message{PostAuthor: "Editor"}, peer, names); got != "Editor" {
		t.Fatalf("post author ignored: %q", got)
	}
	if got := senderName(&tg.Message{FromID: &tg.PeerUser{UserID: 7}}, peer, names); got != "Alice Smith" {
		t.Fatalf("user lookup failed: %q", got)
	}
	if got := senderName(&tg.Message{FromID: &tg.PeerChannel{ChannelID: 9}}, peer, names); got != "News Channel" {
		t.Fatalf("channel lookup failed: %q", got)
	}
	if got := senderName(&tg.Message{}, peer, names); got != "Fallback Title" {
		t.Fatalf("peer title fallback failed: %q", got)
	}
	if got := senderName(&tg.Message{}, source.Peer{}, nil); got != "Unknown" {
		t.Fatalf("unknown fallback failed: %q", got)
	}
}
