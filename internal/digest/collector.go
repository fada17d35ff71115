package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telebrief/internal/source"
	logx "telebrief/pkg/logx"
)

// historyPageSize is how many messages one history request asks for.
const historyPageSize = 100

// mediaLabels maps coarse media kinds to the placeholder text shown when a
// message carries media. Labels match the digest's output language.
var mediaLabels = map[source.MediaKind]string{
	source.MediaPhoto:    "Фото",
	source.MediaVideo:    "Видео",
	source.MediaAudio:    "Аудио",
	source.MediaVoice:    "Голосовое сообщение",
	source.MediaDocument: "Документ",
	source.MediaPoll:     "Опрос",
	source.MediaGeo:      "Геолокация",
	source.MediaOther:    "Медиа",
}

func mediaLabel(k source.MediaKind) string {
	if l, ok := mediaLabels[k]; ok {
		return l
	}
	return "Медиа"
}

// Collector fetches recent channel history through a source client.
//
// One Collect call owns the source session: connect before the channel loop,
// close after, regardless of per-channel outcomes.
type Collector struct {
	client        source.Client
	channels      []ChannelIdentity
	maxPerChannel int
	log           logx.Logger

	// sleep is swappable so flood-wait tests don't actually wait.
	sleep func(ctx context.Context, d time.Duration)
}

func NewCollector(client source.Client, channels []ChannelIdentity, maxPerChannel int, log logx.Logger) *Collector {
	if log.IsZero() {
		log = logx.Nop()
	}
	if maxPerChannel <= 0 {
		maxPerChannel = 500
	}
	return &Collector{
		client:        client,
		channels:      channels,
		maxPerChannel: maxPerChannel,
		log:           log,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Collect fetches messages newer than now-lookback from every configured
// channel. Per-channel failures yield an empty list and never abort the
// remaining channels; only a session-establish failure is returned as an
// error.
func (c *Collector) Collect(ctx context.Context, lookback time.Duration) (map[string][]Message, error) {
	if err := c.client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect source: %w", err)
	}
	defer func() {
		if err := c.client.Close(ctx); err != nil {
			c.log.Warn("source disconnect failed", logx.Err(err))
		}
	}()

	cutoff := time.Now().UTC().Add(-lookback)
	c.log.Info("collecting messages",
		logx.Int("channels", len(c.channels)),
		logx.Duration("lookback", lookback))

	out := make(map[string][]Message, len(c.channels))
	for _, ch := range c.channels {
		msgs, err := c.fetchChannel(ctx, ch, cutoff)
		if wait, ok := source.AsFloodWait(err); ok {
			c.log.Warn("rate limited, waiting before retry",
				logx.String("channel", ch.Name), logx.Duration("wait", wait))
			c.sleep(ctx, wait)
			msgs, err = c.fetchChannel(ctx, ch, cutoff)
		}
		if err != nil {
			c.logChannelError(ch, err)
			out[ch.Name] = nil
			continue
		}
		out[ch.Name] = msgs
		c.log.Info("channel collected",
			logx.String("channel", ch.Name), logx.Int("messages", len(msgs)))
	}

	total := 0
	for _, msgs := range out {
		total += len(msgs)
	}
	c.log.Info("collection finished", logx.Int("total", total))
	return out, nil
}

func (c *Collector) logChannelError(ch ChannelIdentity, err error) {
	switch {
	case errors.Is(err, source.ErrChannelPrivate):
		c.log.Warn("channel is private or not accessible", logx.String("channel", ch.Name))
	case errors.Is(err, source.ErrPeerNotFound):
		c.log.Error("channel not found; check the configured ID and that the session account has joined it",
			logx.String("channel", ch.Name), logx.String("id", ch.ID))
	default:
		c.log.Error("channel fetch failed", logx.String("channel", ch.Name), logx.Err(err))
	}
}

// fetchChannel pages history backward from "now" until the cutoff or the
// per-channel ceiling, returning messages in chronological order.
func (c *Collector) fetchChannel(ctx context.Context, ch ChannelIdentity, cutoff time.Time) ([]Message, error) {
	peer, err := c.client.Resolve(ctx, ch.ID)
	if err != nil {
		return nil, err
	}

	var collected []Message
	offsetID := 0

paging:
	for len(collected) < c.maxPerChannel {
		limit := historyPageSize
		if rem := c.maxPerChannel - len(collected); rem < limit {
			limit = rem
		}
		batch, err := c.client.History(ctx, peer, offsetID, limit)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, raw := range batch {
			if raw.Date.Before(cutoff) {
				break paging
			}
			if m, ok := c.buildMessage(ch, peer, raw); ok {
				collected = append(collected, m)
			}
		}
		offsetID = batch[len(batch)-1].ID
	}

	// History comes newest-first; downstream wants chronological.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

// buildMessage converts one raw source message, applying the text/media
// rules: media-only messages get a placeholder, messages with neither text
// nor media are skipped.
func (c *Collector) buildMessage(ch ChannelIdentity, peer source.Peer, raw source.Message) (Message, bool) {
	text := strings.TrimSpace(raw.Text)
	kind := ""
	if raw.Media != source.MediaNone {
		kind = mediaLabel(raw.Media)
	}
	if text == "" {
		if raw.Media == source.MediaNone {
			return Message{}, false
		}
		text = "[" + kind + "]"
	}

	sender := raw.SenderName
	if sender == "" {
		sender = "Unknown"
	}

	return Message{
		Text:        text,
		SenderName:  sender,
		Timestamp:   raw.Date,
		Permalink:   permalink(peer, raw.ID),
		ChannelName: ch.Name,
		HasMedia:    raw.Media != source.MediaNone,
		MediaKind:   kind,
	}, true
}

// permalink builds a t.me link: public channels by username, private ones
// via the t.me/c/<id>/<msg> form.
func permalink(peer source.Peer, messageID int) string {
	if peer.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", peer.Username, messageID)
	}
	if peer.ID != 0 {
		return fmt.Sprintf("https://t.me/c/%d/%d", peer.ID, messageID)
	}
	return "#"
}
