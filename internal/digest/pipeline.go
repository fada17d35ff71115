package digest

import (
	"context"
	"errors"
	"time"

	logx "telebrief/pkg/logx"
)

// ErrNoMessages means collection yielded nothing across every channel; the
// run is a no-op with nothing delivered.
var ErrNoMessages = errors.New("digest: no messages collected")

// ErrNothingToSend means every non-empty channel's summary was dropped
// (empty or errored), leaving no renderable blocks.
var ErrNothingToSend = errors.New("digest: nothing to send")

// Pipeline runs the collect → summarize → format → deliver sequence for one
// digest. Stages are strictly sequential; the caller serializes concurrent
// runs, the pipeline itself holds no lock.
type Pipeline struct {
	collector *Collector
	summarize *Summarizer
	formatter *Formatter
	sender    *Sender

	channels    []ChannelIdentity
	recipient   int64
	autoCleanup bool

	log logx.Logger
}

func NewPipeline(collector *Collector, summarizer *Summarizer, formatter *Formatter, sender *Sender,
	channels []ChannelIdentity, recipient int64, autoCleanup bool, log logx.Logger) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{
		collector:   collector,
		summarize:   summarizer,
		formatter:   formatter,
		sender:      sender,
		channels:    channels,
		recipient:   recipient,
		autoCleanup: autoCleanup,
		log:         log,
	}
}

// Run executes one full digest and returns the delivery outcome. Zero
// collected messages short-circuit with ErrNoMessages before any model or
// transport calls.
func (p *Pipeline) Run(ctx context.Context, lookback time.Duration) (Result, error) {
	start := time.Now()
	p.log.Info("digest run started", logx.Duration("lookback", lookback))

	byChannel, err := p.collector.Collect(ctx, lookback)
	if err != nil {
		return Result{}, err
	}

	total := 0
	for _, msgs := range byChannel {
		total += len(msgs)
	}
	if total == 0 {
		p.log.Warn("no messages collected, skipping digest")
		return Result{}, ErrNoMessages
	}

	summaries := p.summarize.Summarize(ctx, byChannel)
	blocks, stats := p.formatter.Format(p.channels, summaries, byChannel, lookback)
	if len(blocks) == 0 {
		p.log.Warn("all channel summaries dropped, nothing to send")
		return Result{}, ErrNothingToSend
	}

	if p.autoCleanup {
		if _, err := p.sender.Cleanup(ctx, p.recipient); err != nil {
			p.log.Warn("pre-send cleanup failed", logx.Err(err))
		}
	}

	res, err := p.sender.SendDigest(ctx, p.recipient, blocks, stats)
	if err != nil {
		return res, err
	}

	p.log.Info("digest run finished",
		logx.Int("sent", res.Sent),
		logx.Int("failed", len(res.Failed)),
		logx.Duration("took", time.Since(start)))
	return res, nil
}

// CleanupPrevious retracts the last delivered batch on demand.
func (p *Pipeline) CleanupPrevious(ctx context.Context) (CleanupResult, error) {
	return p.sender.Cleanup(ctx, p.recipient)
}
