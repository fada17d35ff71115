package transport

import "errors"

// Typed delivery-transport errors.
//
// Adapters translate platform error responses into these variants exactly
// once, at the transport boundary, so callers never match on free-text error
// descriptions.
var (
	// ErrMarkupParse means the platform rejected the message because its
	// markup could not be parsed. Callers may retry the same text with
	// ParseMode disabled.
	ErrMarkupParse = errors.New("transport: markup parse failure")

	// ErrMessageGone means a delete targeted a message that no longer
	// exists. For cleanup purposes this counts as success.
	ErrMessageGone = errors.New("transport: message already gone")
)

// IsMarkupParse reports whether err is (or wraps) a markup-parse failure.
func IsMarkupParse(err error) bool { return errors.Is(err, ErrMarkupParse) }

// IsMessageGone reports whether err is (or wraps) a delete-of-missing-message.
func IsMessageGone(err error) bool { return errors.Is(err, ErrMessageGone) }
