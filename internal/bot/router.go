// Package bot is the command surface: it routes inbound updates from the
// delivery transport to the digest operations, for the one authorized user.
package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"telebrief/internal/digest"
	"telebrief/internal/transport"
	logx "telebrief/pkg/logx"
)

// ErrRunInProgress is returned by a Runner when another digest run already
// holds the single-run gate.
var ErrRunInProgress = errors.New("bot: digest run already in progress")

// Runner executes digest operations. Implementations own the single-run
// gate: a second concurrent RunDigest must fail fast with ErrRunInProgress
// instead of overlapping.
type Runner interface {
	RunDigest(ctx context.Context, lookback time.Duration) (digest.Result, error)
	CleanupPrevious(ctx context.Context) (digest.CleanupResult, error)
}

// Status is what /status reports.
type Status struct {
	Model        string
	Channels     int
	ScheduleTime string
	Timezone     string
	NextRun      time.Time
	NextRunKnown bool
	Lookback     time.Duration
}

// Request carries one inbound command through the middleware chain.
type Request struct {
	ChatID  int64
	FromID  int64
	Command string
	Args    []string

	Deliverer transport.Deliverer
	Log       logx.Logger
}

// Reply sends plain text back to the requesting chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Deliverer.SendText(ctx, r.ChatID, text, &transport.SendOptions{ParseMode: "Markdown"})
	return err
}

type command struct {
	name        string
	description string
	handle      HandlerFunc
}

// Router consumes the adapter's update stream and dispatches commands.
// Every command is owner-only; updates from anyone else are dropped without
// a reply.
type Router struct {
	adapter transport.Adapter
	runner  Runner
	status  func() Status
	owner   int64
	log     logx.Logger

	commands map[string]*command
	order    []string

	wg sync.WaitGroup
}

func NewRouter(adapter transport.Adapter, runner Runner, status func() Status, owner int64, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		adapter:  adapter,
		runner:   runner,
		status:   status,
		owner:    owner,
		log:      log,
		commands: make(map[string]*command),
	}
	r.register("digest", "Сгенерировать дайджест сейчас", r.handleDigest)
	r.register("status", "Показать статус и настройки", r.handleStatus)
	r.register("cleanup", "Удалить предыдущий дайджест", r.handleCleanup)
	r.register("help", "Показать справку", r.handleHelp)
	r.register("start", "Показать справку", r.handleHelp)
	return r
}

func (r *Router) register(name, description string, h HandlerFunc) {
	r.commands[name] = &command{name: name, description: description, handle: h}
	r.order = append(r.order, name)
}

// Run starts the adapter and dispatches updates until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	updates := make(chan transport.Update, 64)
	if err := r.adapter.Start(ctx, updates); err != nil {
		return err
	}
	r.publishMenu(ctx)
	r.log.Info("command surface ready")

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return r.adapter.Stop(context.Background())
		case up := <-updates:
			r.dispatch(ctx, up)
		}
	}
}

// publishMenu pushes the command list to the platform menu when the adapter
// supports it. Failures are cosmetic.
func (r *Router) publishMenu(ctx context.Context) {
	upd, ok := r.adapter.(transport.CommandMenuUpdater)
	if !ok {
		return
	}
	cmds := make([]transport.BotCommand, 0, len(r.order))
	for _, name := range r.order {
		if name == "start" {
			continue
		}
		cmds = append(cmds, transport.BotCommand{Command: name, Description: r.commands[name].description})
	}
	if err := upd.UpdateMenuCommands(ctx, cmds); err != nil {
		r.log.Warn("command menu update failed", logx.Err(err))
	}
}

func (r *Router) dispatch(ctx context.Context, up transport.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	cmd, ok := r.commands[name]
	if !ok {
		return
	}
	if msg.FromID != r.owner {
		// Silent ignore: strangers get no acknowledgement at all.
		r.log.Warn("unauthorized command ignored",
			logx.String("cmd", name), logx.Int64("from_id", msg.FromID))
		return
	}

	req := &Request{
		ChatID:    msg.ChatID,
		FromID:    msg.FromID,
		Command:   name,
		Args:      args,
		Deliverer: r.adapter,
		Log: r.log.With(
			logx.String("cmd", name),
			logx.Int64("from_id", msg.FromID)),
	}
	final := Chain(cmd.handle, MWPanicRecover(r.log), MWRequestLog(r.log))

	// Handlers run off the dispatch loop; a long digest must not stall
	// further updates. Overlap control lives in the Runner's gate.
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = final(ctx, req)
	}()
}

// parseCommand extracts "/name arg..." from message text, tolerating the
// /name@botname form Telegram uses in groups.
func parseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name = fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}
