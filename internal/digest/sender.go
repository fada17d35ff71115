package digest

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"telebrief/internal/storage"
	"telebrief/internal/transport"
	logx "telebrief/pkg/logx"
)

// maxBlockRunes is the per-message ceiling the sender enforces, kept under
// Telegram's 4096 hard limit to leave headroom for markup expansion.
const maxBlockRunes = 4000

// sendInterval paces successive transport sends to stay clear of
// transport-side rate limiting.
const sendInterval = 500 * time.Millisecond

// ErrUnauthorizedRecipient means a delivery or cleanup targeted someone
// other than the single configured recipient. No transport call is made.
var ErrUnauthorizedRecipient = errors.New("digest: recipient is not authorized")

// Result is the outcome of one delivery batch.
type Result struct {
	Sent       int      // channel blocks fully delivered
	Failed     []string // channel names whose block failed
	MessageIDs []int    // platform IDs of everything sent, in send order
}

// Success reports whether every scheduled block was delivered.
func (r Result) Success() bool { return len(r.Failed) == 0 }

// CleanupResult is the outcome of one cleanup pass.
type CleanupResult struct {
	Deleted int
	Failed  int
}

// Success follows the cleanup contract: an empty list or at least one
// removed message counts as success.
func (c CleanupResult) Success() bool { return c.Failed == 0 || c.Deleted > 0 }

// Sender delivers rendered blocks to the one authorized recipient and records
// what it sent so a later cleanup can retract it.
type Sender struct {
	deliverer transport.Deliverer
	store     storage.Store
	recipient int64
	limiter   *rate.Limiter
	log       logx.Logger
}

func NewSender(deliverer transport.Deliverer, store storage.Store, recipient int64, log logx.Logger) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{
		deliverer: deliverer,
		store:     store,
		recipient: recipient,
		limiter:   rate.NewLimiter(rate.Every(sendInterval), 1),
		log:       log,
	}
}

// SendDigest delivers the channel blocks in order, then the statistics
// trailer (if any, and only when at least one block succeeded), then hands
// the sent message IDs to the store, overwriting the previous record.
//
// The authorization gate is hard: any recipient other than the configured
// one is refused before a single transport call.
func (s *Sender) SendDigest(ctx context.Context, recipient int64, blocks []Rendered, stats string) (Result, error) {
	if recipient != s.recipient {
		s.log.Warn("unauthorized send refused", logx.Int64("recipient", recipient))
		return Result{}, ErrUnauthorizedRecipient
	}

	var res Result
	for i, block := range blocks {
		ids, err := s.sendBlock(ctx, recipient, block.Text)
		res.MessageIDs = append(res.MessageIDs, ids...)
		if err != nil {
			s.log.Error("channel block delivery failed",
				logx.String("channel", block.ChannelName), logx.Err(err))
			res.Failed = append(res.Failed, block.ChannelName)
			continue
		}
		res.Sent++
		s.log.Info("channel block delivered",
			logx.String("channel", block.ChannelName),
			logx.Int("index", i+1), logx.Int("total", len(blocks)))
	}

	if stats != "" && res.Sent > 0 {
		ids, err := s.sendBlock(ctx, recipient, stats)
		res.MessageIDs = append(res.MessageIDs, ids...)
		if err != nil {
			s.log.Warn("statistics trailer delivery failed", logx.Err(err))
		}
	}

	if len(res.MessageIDs) > 0 {
		if err := s.store.Save(ctx, recipient, res.MessageIDs); err != nil {
			s.log.Error("saving delivery record failed", logx.Err(err))
		} else {
			s.log.Info("delivery record saved", logx.Int("messages", len(res.MessageIDs)))
		}
	}

	if !res.Success() {
		s.log.Warn("digest partially delivered",
			logx.Int("sent", res.Sent), logx.Any("failed", res.Failed))
	}
	return res, nil
}

// sendBlock segments oversized text and sends each fragment in order,
// returning the IDs of everything that went out before any failure.
func (s *Sender) sendBlock(ctx context.Context, recipient int64, text string) ([]int, error) {
	fragments := SplitMessage(text, maxBlockRunes)
	var ids []int
	for _, frag := range fragments {
		if err := s.limiter.Wait(ctx); err != nil {
			return ids, err
		}
		ref, err := s.sendWithFallback(ctx, recipient, frag)
		if err != nil {
			return ids, err
		}
		ids = append(ids, ref.MessageID)
	}
	return ids, nil
}

// sendWithFallback tries Markdown first and retries exactly once as plain
// text when the transport reports a markup-parse failure. Any other error
// propagates.
func (s *Sender) sendWithFallback(ctx context.Context, recipient int64, text string) (transport.MessageRef, error) {
	ref, err := s.deliverer.SendText(ctx, recipient, text, &transport.SendOptions{ParseMode: "Markdown"})
	if err == nil {
		return ref, nil
	}
	if !transport.IsMarkupParse(err) {
		return transport.MessageRef{}, err
	}
	s.log.Warn("markup parse failed, falling back to plain text")
	return s.deliverer.SendText(ctx, recipient, text, &transport.SendOptions{})
}

// Cleanup deletes the previously delivered batch. A message that is already
// gone counts as removed; other per-message failures are counted but never
// stop the loop. The stored record is cleared unconditionally afterwards.
func (s *Sender) Cleanup(ctx context.Context, recipient int64) (CleanupResult, error) {
	if recipient != s.recipient {
		s.log.Warn("unauthorized cleanup refused", logx.Int64("recipient", recipient))
		return CleanupResult{}, ErrUnauthorizedRecipient
	}

	ids, err := s.store.Get(ctx, recipient)
	if err != nil {
		return CleanupResult{}, err
	}
	if len(ids) == 0 {
		s.log.Info("no previous digest messages to clean up")
		return CleanupResult{}, nil
	}

	s.log.Info("cleaning up previous digest", logx.Int("messages", len(ids)))
	var res CleanupResult
	for _, id := range ids {
		err := s.deliverer.DeleteMessage(ctx, transport.MessageRef{ChatID: recipient, MessageID: id})
		switch {
		case err == nil:
			res.Deleted++
		case transport.IsMessageGone(err):
			res.Deleted++
		default:
			s.log.Warn("message delete failed", logx.Int("message_id", id), logx.Err(err))
			res.Failed++
		}
	}

	if err := s.store.Clear(ctx, recipient); err != nil {
		s.log.Error("clearing delivery record failed", logx.Err(err))
	}

	s.log.Info("cleanup finished",
		logx.Int("deleted", res.Deleted), logx.Int("failed", res.Failed))
	return res, nil
}
