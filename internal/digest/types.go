// Package digest implements the collect → summarize → format → deliver →
// track pipeline that turns channel history into a daily digest.
package digest

import "time"

// ChannelIdentity keys every per-channel map for the duration of one run.
type ChannelIdentity struct {
	ID   string // numeric channel ID or @username
	Name string // display name
}

// Message is one collected source message. Value type; later stages never
// mutate what an earlier stage produced.
type Message struct {
	Text        string
	SenderName  string
	Timestamp   time.Time
	Permalink   string
	ChannelName string
	HasMedia    bool
	MediaKind   string
}

// Rendered is one delivery-ready text block. Length is unbounded here; the
// sender segments oversized blocks.
type Rendered struct {
	ChannelName string
	Text        string
}
