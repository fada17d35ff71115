package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Peer is an addressable channel entity, resolved once per run.
type Peer struct {
	ID         int64 // bare channel ID (no -100 prefix)
	AccessHash int64
	Username   string // empty for private channels
	Title      string
}

// MediaKind classifies message attachments coarsely, only as far as the
// digest needs for placeholder text.
type MediaKind string

const (
	MediaNone     MediaKind = ""
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaVoice    MediaKind = "voice"
	MediaDocument MediaKind = "document"
	MediaPoll     MediaKind = "poll"
	MediaGeo      MediaKind = "geo"
	MediaOther    MediaKind = "media"
)

// Message is one raw source message, newest-first within a History batch.
type Message struct {
	ID         int
	Date       time.Time
	Text       string
	SenderName string // empty when the platform exposes no author
	Media      MediaKind
}

// Client reads channel history through an authenticated user session.
//
// Connect establishes the session once per pipeline run; Close tears it down
// regardless of per-channel outcomes in between.
type Client interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Resolve turns a configured channel identifier (numeric ID, with or
	// without the -100 prefix, or an @username) into an addressable Peer.
	Resolve(ctx context.Context, channelID string) (Peer, error)

	// History returns up to limit messages older than offsetID (0 means
	// newest), newest-first. An empty batch means the history is exhausted.
	History(ctx context.Context, peer Peer, offsetID, limit int) ([]Message, error)
}

// Typed source-transport signals.
var (
	ErrPeerNotFound   = errors.New("source: peer not found")
	ErrChannelPrivate = errors.New("source: channel is private or inaccessible")
)

// FloodWaitError is the transport's "must wait N seconds" signal.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("source: flood wait %s", e.Wait)
}

// AsFloodWait extracts the wait duration if err is a flood-wait signal.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	return 0, false
}
