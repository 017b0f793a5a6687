package window

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Assembler builds bounded conversation windows from a branching
// thread/channel history. It is stateless per call and safe for
// concurrent use.
type Assembler struct {
	transport Transport
	logger    *slog.Logger
}

// NewAssembler creates a context window assembler.
func NewAssembler(transport Transport, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{transport: transport, logger: logger}
}

// Assemble produces the conversation window for one triggering message.
//
// The canonical presentation is oldest-to-newest with the trigger always
// last. For a threaded trigger the window is: channel-level history
// (strictly older than the thread root), one synthetic boundary marker,
// then the thread replies ending with the trigger. For an unthreaded
// trigger there is no boundary: channel history, then the trigger.
// The result never exceeds limit messages.
//
// threadTS is the thread root timestamp, empty when the trigger is not
// part of a thread.
func (a *Assembler) Assemble(ctx context.Context, channel string, trigger RawMessage, threadTS string, limit int) ([]Message, error) {
	if limit < 1 {
		return nil, fmt.Errorf("window limit must be at least 1, got %d", limit)
	}

	var thread []Message
	before := trigger.TS

	if threadTS != "" {
		// Reserve one slot for the boundary marker. At limit 1 the
		// window degenerates to the trigger alone.
		fetchLimit := limit - 1
		if fetchLimit < 1 {
			fetchLimit = 1
		}

		replies, err := a.transport.FetchThreadReplies(ctx, channel, threadTS, trigger.TS, fetchLimit)
		if err != nil {
			return nil, &ContextFetchError{Op: "thread replies", Channel: channel, Err: err}
		}
		if len(replies) > fetchLimit {
			// Keep the newest entries so the trigger stays in the window.
			replies = replies[len(replies)-fetchLimit:]
		}

		for _, raw := range replies {
			thread = append(thread, a.normalize(ctx, raw))
		}
		if len(thread) < limit {
			thread = append([]Message{boundary()}, thread...)
		}

		// Channel-level fallback resumes strictly before the thread root.
		before = threadTS
	} else {
		thread = []Message{a.normalize(ctx, trigger)}
	}

	budget := limit - len(thread)

	var history []Message
	if budget > 0 {
		// Transport returns newest first; the canonical presentation is
		// oldest first.
		raw, err := a.transport.FetchChannelHistory(ctx, channel, before, budget)
		if err != nil {
			return nil, &ContextFetchError{Op: "channel history", Channel: channel, Err: err}
		}
		if len(raw) > budget {
			raw = raw[:budget]
		}

		history = make([]Message, 0, len(raw))
		for i := len(raw) - 1; i >= 0; i-- {
			history = append(history, a.normalize(ctx, raw[i]))
		}
	}

	out := make([]Message, 0, len(history)+len(thread))
	out = append(out, history...)
	out = append(out, thread...)

	a.logger.Debug("window assembled",
		"channel", channel,
		"threaded", threadTS != "",
		"thread_messages", len(thread),
		"channel_messages", len(history),
		"limit", limit,
	)

	return out, nil
}

// normalize converts one raw transport message to its canonical form:
// resolved author name, bot/user role, attachments flattened into the
// body, and a human-readable UTC timestamp appended.
func (a *Assembler) normalize(ctx context.Context, raw RawMessage) Message {
	var author string
	role := RoleUser

	if raw.BotOrigin {
		role = RoleSystem
		author = raw.Username
		if author == "" {
			author = "Bot"
		}
	} else {
		name, err := a.transport.ResolveAuthorName(ctx, raw.UserID)
		if err != nil || name == "" {
			a.logger.Debug("author lookup failed", "user", raw.UserID, "error", err)
			name = "Unknown"
		}
		author = name
	}

	ts := renderTimestamp(raw.TS)

	var sb strings.Builder
	sb.WriteString(raw.Text)
	for _, att := range raw.Attachments {
		fmt.Fprintf(&sb, "\n[Attachment: %s %s %s]", att.Title, att.Pretext, att.Text)
	}
	fmt.Fprintf(&sb, " [%s]", ts)

	return Message{
		Author:    author,
		Role:      role,
		Timestamp: ts,
		Text:      sb.String(),
	}
}

// boundary returns the synthetic marker separating thread-local context
// from channel-level fallback context.
func boundary() Message {
	return Message{
		Author:    BoundaryAuthor,
		Role:      RoleSystem,
		Timestamp: renderTimestamp("0"),
		Text:      boundaryText,
	}
}

// renderTimestamp converts a transport timestamp ("1623431161.000200")
// to a human-readable UTC string. The fractional suffix is dropped.
func renderTimestamp(ts string) string {
	whole, _, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return ts
	}
	return time.Unix(sec, 0).UTC().Format("2006-01-02 15:04:05") + " UTC"
}
