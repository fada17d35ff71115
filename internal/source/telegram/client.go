package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"telebrief/internal/source"
	logx "telebrief/pkg/logx"
)

type Config struct {
	APIID       int
	APIHash     string
	SessionPath string
}

// Client is the MTProto user-session source transport, built on gotd.
//
// gotd's connection lives inside Run(); Connect starts Run in a background
// goroutine and blocks until the connection is usable, Close cancels it.
type Client struct {
	cfg Config
	log logx.Logger

	tc  *telegram.Client
	api *tg.Client

	mu      sync.Mutex
	cancel  context.CancelFunc
	runDone chan error

	// peers caches channels seen in the dialog list so numeric IDs resolve
	// without an extra round trip (mirrors user-client entity caching).
	peers map[int64]source.Peer
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	tc := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionPath},
	})
	return &Client{
		cfg:   cfg,
		log:   log,
		tc:    tc,
		api:   tc.API(),
		peers: map[int64]source.Peer{},
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- c.tc.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case err := <-done:
		cancel()
		if err == nil {
			err = errors.New("source: connection closed during startup")
		}
		return err
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case <-ready:
	}

	status, err := c.tc.Auth().Status(ctx)
	if err != nil {
		cancel()
		return err
	}
	if !status.Authorized {
		cancel()
		return errors.New("source: session is not authorized; run telebrief-session first")
	}

	c.cancel = cancel
	c.runDone = done
	c.log.Info("connected to telegram user api")

	// Cache dialogs so channels the account has joined resolve by bare ID.
	if n, err := c.cacheDialogs(ctx); err != nil {
		c.log.Warn("could not cache dialogs", logx.Err(err))
	} else {
		c.log.Info("cached dialogs for entity resolution", logx.Int("count", n))
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.runDone
	c.cancel = nil
	c.runDone = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
	}
	c.log.Info("disconnected from telegram")
	return nil
}

func (c *Client) cacheDialogs(ctx context.Context) (int, error) {
	res, err := c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      100,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return 0, mapErr(err)
	}

	var chats []tg.ChatClass
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	default:
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ch := range chats {
		cn, ok := ch.(*tg.Channel)
		if !ok {
			continue
		}
		c.peers[cn.ID] = source.Peer{
			ID:         cn.ID,
			AccessHash: cn.AccessHash,
			Username:   cn.Username,
			Title:      cn.Title,
		}
		n++
	}
	return n, nil
}

func (c *Client) Resolve(ctx context.Context, channelID string) (source.Peer, error) {
	id := strings.TrimSpace(channelID)

	if name, ok := asUsername(id); ok {
		return c.resolveUsername(ctx, name)
	}

	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return source.Peer{}, source.ErrPeerNotFound
	}
	// Bot-API style channel IDs carry a -100 prefix.
	n = stripChannelPrefix(n)

	c.mu.Lock()
	p, ok := c.peers[n]
	c.mu.Unlock()
	if !ok {
		// Not in the dialog list: the account has not joined this channel.
		return source.Peer{}, source.ErrPeerNotFound
	}
	return p, nil
}

func (c *Client) resolveUsername(ctx context.Context, name string) (source.Peer, error) {
	res, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: name})
	if err != nil {
		return source.Peer{}, mapErr(err)
	}
	for _, ch := range res.Chats {
		if cn, ok := ch.(*tg.Channel); ok {
			p := source.Peer{ID: cn.ID, AccessHash: cn.AccessHash, Username: cn.Username, Title: cn.Title}
			c.mu.Lock()
			c.peers[cn.ID] = p
			c.mu.Unlock()
			return p, nil
		}
	}
	return source.Peer{}, source.ErrPeerNotFound
}

func (c *Client) History(ctx context.Context, peer source.Peer, offsetID, limit int) ([]source.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	res, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     &tg.InputPeerChannel{ChannelID: peer.ID, AccessHash: peer.AccessHash},
		OffsetID: offsetID,
		Limit:    limit,
	})
	if err != nil {
		return nil, mapErr(err)
	}

	var (
		raw   []tg.MessageClass
		users []tg.UserClass
		chats []tg.ChatClass
	)
	switch m := res.(type) {
	case *tg.MessagesChannelMessages:
		raw, users, chats = m.Messages, m.Users, m.Chats
	case *tg.MessagesMessagesSlice:
		raw, users, chats = m.Messages, m.Users, m.Chats
	case *tg.MessagesMessages:
		raw, users, chats = m.Messages, m.Users, m.Chats
	default:
		return nil, nil
	}

	names := senderNames(users, chats)

	out := make([]source.Message, 0, len(raw))
	for _, mc := range raw {
		msg, ok := mc.(*tg.Message)
		if !ok {
			continue // service messages carry no digest content
		}
		out = append(out, source.Message{
			ID:         msg.ID,
			Date:       time.Unix(int64(msg.Date), 0).UTC(),
			Text:       msg.Message,
			SenderName: senderName(msg, peer, names),
			Media:      mediaKind(msg),
		})
	}
	return out, nil
}

// asUsername reports whether id names a public channel (@name or bare name).
func asUsername(id string) (string, bool) {
	if strings.HasPrefix(id, "@") {
		return id[1:], true
	}
	if id == "" {
		return "", false
	}
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return "", false
	}
	return id, true
}

func stripChannelPrefix(n int64) int64 {
	if n < 0 {
		n = -n
	}
	// -100XXXXXXXXXX → XXXXXXXXXX
	const prefix = int64(1000000000000)
	if n > prefix {
		return n - prefix
	}
	return n
}

func senderNames(users []tg.UserClass, chats []tg.ChatClass) map[int64]string {
	names := map[int64]string{}
	for _, uc := range users {
		u, ok := uc.(*tg.User)
		if !ok {
			continue
		}
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name == "" && u.Username != "" {
			name = "@" + u.Username
		}
		if name != "" {
			names[u.ID] = name
		}
	}
	for _, cc := range chats {
		if cn, ok := cc.(*tg.Channel); ok && cn.Title != "" {
			names[cn.ID] = cn.Title
		}
	}
	return names
}

func senderName(msg *tg.Message, peer source.Peer, names map[int64]string) string {
	if msg.PostAuthor != "" {
		return msg.PostAuthor
	}
	switch from := msg.FromID.(type) {
	case *tg.PeerUser:
		if n, ok := names[from.UserID]; ok {
			return n
		}
	case *tg.PeerChannel:
		if n, ok := names[from.ChannelID]; ok {
			return n
		}
	}
	if peer.Title != "" {
		return peer.Title
	}
	return "Unknown"
}

func mediaKind(msg *tg.Message) source.MediaKind {
	if msg.Media == nil {
		return source.MediaNone
	}
	switch m := msg.Media.(type) {
	case *tg.MessageMediaPhoto:
		return source.MediaPhoto
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return source.MediaDocument
		}
		for _, attr := range doc.Attributes {
			if a, ok := attr.(*tg.DocumentAttributeAudio); ok && a.Voice {
				return source.MediaVoice
			}
		}
		switch {
		case strings.HasPrefix(doc.MimeType, "video"):
			return source.MediaVideo
		case strings.HasPrefix(doc.MimeType, "audio"):
			return source.MediaAudio
		default:
			return source.MediaDocument
		}
	case *tg.MessageMediaPoll:
		return source.MediaPoll
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		return source.MediaGeo
	default:
		return source.MediaOther
	}
}

// mapErr translates gotd error responses into the typed source signals.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &source.FloodWaitError{Wait: wait}
	}
	if tgerr.Is(err, "CHANNEL_PRIVATE") {
		return source.ErrChannelPrivate
	}
	if tgerr.Is(err, "CHANNEL_INVALID") || tgerr.Is(err, "USERNAME_NOT_OCCUPIED") || tgerr.Is(err, "USERNAME_INVALID") {
		return source.ErrPeerNotFound
	}
	return err
}
