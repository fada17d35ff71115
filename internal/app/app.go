// Package app wires config, transports, storage, the digest pipeline, the
// command surface and the scheduler into one runnable daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"telebrief/internal/bot"
	"telebrief/internal/config"
	"telebrief/internal/digest"
	"telebrief/internal/llm"
	"telebrief/internal/schedule"
	sourcetg "telebrief/internal/source/telegram"
	"telebrief/internal/storage"
	transporttg "telebrief/internal/transport/telegram"
	logx "telebrief/pkg/logx"
)

type App struct {
	cfgm   *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	adapter *transporttg.Adapter
	store   storage.Store
	sched   *schedule.Scheduler
	router  *bot.Router

	// runMu is the single-run gate: a scheduled run and a manual /digest
	// must never overlap, and neither may race cleanup on the store.
	runMu sync.Mutex
}

func New(configPath string) (*App, error) {
	cfgm := config.NewManager(configPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("component", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := transporttg.New(transporttg.Config{
		Token:       cfg.Telegram.BotToken,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("component", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("component", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &App{
		cfgm:    cfgm,
		logSvc:  logSvc,
		log:     log,
		adapter: adapter,
		store:   store,
	}
	a.sched = schedule.New(a.scheduledRun, log.With(logx.String("component", "scheduler")))
	a.router = bot.NewRouter(adapter, a, a.statusSnapshot, cfg.Digest.RecipientID,
		log.With(logx.String("component", "bot")))
	return a, nil
}

// Run blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfgm.Get()
	if err := a.sched.Start(ctx, cfg.Digest.ScheduleTime, cfg.Digest.Timezone); err != nil {
		return err
	}
	defer a.sched.Stop()
	defer func() {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}()
	defer a.logSvc.Close()

	// Hot reload: the watcher republishes valid edits; logging and the
	// schedule pick them up live, everything else is read per run.
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	go a.applyReloads(ctx, sub)
	go func() {
		if err := a.cfgm.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("telebrief started",
		logx.Int("channels", len(cfg.Channels)),
		logx.String("schedule", cfg.Digest.ScheduleTime),
		logx.String("tz", cfg.Digest.Timezone))
	return a.router.Run(ctx)
}

func (a *App) applyReloads(ctx context.Context, sub <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			if err := a.sched.Apply(cfg.Digest.ScheduleTime, cfg.Digest.Timezone); err != nil {
				a.log.Error("schedule reload rejected", logx.Err(err))
			}
			a.log.Info("config reloaded", logx.Int("channels", len(cfg.Channels)))
		}
	}
}

func (a *App) scheduledRun(ctx context.Context) {
	cfg := a.cfgm.Get()
	lookback := time.Duration(cfg.Digest.LookbackHours) * time.Hour
	res, err := a.RunDigest(ctx, lookback)
	switch {
	case errors.Is(err, bot.ErrRunInProgress):
		a.log.Warn("scheduled digest skipped: another run in progress")
	case err != nil:
		a.log.Error("scheduled digest failed", logx.Err(err))
	default:
		a.log.Info("scheduled digest finished",
			logx.Int("sent", res.Sent), logx.Int("failed", len(res.Failed)))
	}
}

// RunDigest builds a pipeline from the current config snapshot and runs it
// under the single-run gate.
func (a *App) RunDigest(ctx context.Context, lookback time.Duration) (digest.Result, error) {
	if !a.runMu.TryLock() {
		return digest.Result{}, bot.ErrRunInProgress
	}
	defer a.runMu.Unlock()

	p, err := a.buildPipeline(a.cfgm.Get())
	if err != nil {
		return digest.Result{}, err
	}
	return p.Run(ctx, lookback)
}

// CleanupPrevious retracts the last delivered batch. It shares the run gate
// so cleanup never races a delivery on the same record.
func (a *App) CleanupPrevious(ctx context.Context) (digest.CleanupResult, error) {
	if !a.runMu.TryLock() {
		return digest.CleanupResult{}, bot.ErrRunInProgress
	}
	defer a.runMu.Unlock()

	cfg := a.cfgm.Get()
	sender := digest.NewSender(a.adapter, a.store, cfg.Digest.RecipientID,
		a.log.With(logx.String("component", "sender")))
	return sender.Cleanup(ctx, cfg.Digest.RecipientID)
}

// buildPipeline assembles the per-run components from a config snapshot, so
// channel or model edits apply on the next run without a restart.
func (a *App) buildPipeline(cfg *config.Config) (*digest.Pipeline, error) {
	channels := make([]digest.ChannelIdentity, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels = append(channels, digest.ChannelIdentity{ID: ch.ID, Name: ch.Name})
	}

	src := sourcetg.New(sourcetg.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionPath: cfg.Telegram.SessionPath,
	}, a.log.With(logx.String("component", "source")))

	completer, err := llm.New(cfg.OpenAI, a.log.With(logx.String("component", "llm")))
	if err != nil {
		return nil, err
	}

	collector := digest.NewCollector(src, channels, cfg.Digest.MaxMessagesPerChannel,
		a.log.With(logx.String("component", "collector")))
	summarizer := digest.NewSummarizer(completer,
		a.log.With(logx.String("component", "summarizer")))
	formatter := digest.NewFormatter(cfg.Digest.UseIconsValue(), cfg.Digest.IncludeStatisticsValue(),
		a.log.With(logx.String("component", "formatter")))
	sender := digest.NewSender(a.adapter, a.store, cfg.Digest.RecipientID,
		a.log.With(logx.String("component", "sender")))

	return digest.NewPipeline(collector, summarizer, formatter, sender,
		channels, cfg.Digest.RecipientID, cfg.Digest.AutoCleanup,
		a.log.With(logx.String("component", "pipeline"))), nil
}

// statusSnapshot feeds /status and /help.
func (a *App) statusSnapshot() bot.Status {
	cfg := a.cfgm.Get()
	next, known := a.sched.NextRun()
	return bot.Status{
		Model:        cfg.OpenAI.Model,
		Channels:     len(cfg.Channels),
		ScheduleTime: cfg.Digest.ScheduleTime,
		Timezone:     cfg.Digest.Timezone,
		NextRun:      next,
		NextRunKnown: known,
		Lookback:     time.Duration(cfg.Digest.LookbackHours) * time.Hour,
	}
}
