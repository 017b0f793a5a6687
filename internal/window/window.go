// Package window assembles the bounded conversational context supplied
// to the model for one decision.
package window

import (
	"context"
	"fmt"
)

// Role values for normalized messages. Bot-authored history is
// normalized to a non-user role so the model can distinguish its own
// prior output.
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// BoundaryAuthor is the synthetic author marking the transition from
// thread-local to channel-level context.
const BoundaryAuthor = "end-of-thread"

// boundaryText is the body of the boundary marker message.
const boundaryText = "------------"

// Attachment is the transport's flattened view of a message attachment.
type Attachment struct {
	Title   string
	Pretext string
	Text    string
}

// RawMessage is one message as returned by the chat transport, before
// normalization.
type RawMessage struct {
	// UserID is the transport's stable author identifier.
	UserID string
	// Username is the display name carried on bot-authored messages.
	Username string
	// BotOrigin marks messages authored by a bot or app integration.
	BotOrigin bool
	// TS is the transport timestamp encoding ("1623431161.000200").
	// Monotonically ordered within a channel; used for display only.
	TS string
	// Text is the raw message body.
	Text        string
	Attachments []Attachment
}

// Message is one normalized entry in an assembled window.
type Message struct {
	// Author is the resolved display name, or a synthetic marker.
	Author string
	// Role is RoleUser or RoleSystem.
	Role string
	// Timestamp is the human-readable UTC rendering of the transport
	// timestamp. Display only; windowing uses position, not wall-clock.
	Timestamp string
	// Text is the message body with attachments flattened in and the
	// timestamp appended.
	Text string
}

// IsBoundary reports whether the message is the synthetic thread/channel
// boundary marker.
func (m Message) IsBoundary() bool {
	return m.Author == BoundaryAuthor
}

// Transport is the chat-workspace boundary the assembler depends on.
// Implementations must report fetch failures as errors, never as empty
// results.
type Transport interface {
	// FetchThreadReplies returns the replies in the thread rooted at
	// threadTS, oldest first, up to and including the message at upTo,
	// capped at limit.
	FetchThreadReplies(ctx context.Context, channel, threadTS, upTo string, limit int) ([]RawMessage, error)

	// FetchChannelHistory returns channel-level messages strictly older
	// than before, newest first, capped at limit.
	FetchChannelHistory(ctx context.Context, channel, before string, limit int) ([]RawMessage, error)

	// ResolveAuthorName resolves a user ID to a display name.
	ResolveAuthorName(ctx context.Context, userID string) (string, error)
}

// ContextFetchError reports a transport failure while assembling
// context. The event must be aborted; partial context is never
// fabricated silently.
type ContextFetchError struct {
	Op      string
	Channel string
	Err     error
}

// Error implements the error interface.
func (e *ContextFetchError) Error() string {
	return fmt.Sprintf("context fetch %s in %s: %v", e.Op, e.Channel, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ContextFetchError) Unwrap() error {
	return e.Err
}
