package transport

import "context"

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string // "", "Markdown", "HTML"
	DisablePreview bool
}

// Deliverer is the outbound half of the delivery transport: it can send a
// single text message and delete a previously sent one. Callers own message
// splitting; a Deliverer rejects oversized text rather than segmenting it.
type Deliverer interface {
	SendText(ctx context.Context, chatID int64, text string, opt *SendOptions) (MessageRef, error)
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// Adapter is a full bot transport: Deliverer plus the inbound update stream
// that feeds the command surface.
type Adapter interface {
	Deliverer

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface adapters can implement to
// update platform-specific command menus (e.g. Telegram's / list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
