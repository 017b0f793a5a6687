// Package dispatch executes resolved invocations. It is the only
// component permitted to cause an outward reply or an external
// mutation, and it enforces the confirm-before-mutate protocol for
// irreversible actions.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/coworker/internal/action"
	"github.com/nugget/coworker/internal/schema"
	"github.com/nugget/coworker/internal/tools"
)

// Outbound is the reply path. Exactly zero or one outward text reply is
// produced per handled event.
type Outbound interface {
	PostReply(ctx context.Context, channel, threadTS, text string) error
}

// Dispatcher runs validated invocations through the confirmation gate
// and posts the single outward reply, if any. Stateless per call; a
// pending confirmation is never remembered across turns; a confirmed
// re-invocation arrives as a fresh independent model turn.
type Dispatcher struct {
	out    Outbound
	logger *slog.Logger
}

// New creates a dispatcher.
func New(out Outbound, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{out: out, logger: logger}
}

// Dispatch consumes one resolution and produces at most one outward
// reply.
//
// Mutating invocations without confirmed=true never reach the tool's
// effectful body; the human gets a preview of the proposed arguments
// instead. An empty tool summary (no_action) suppresses the reply
// entirely, except for message_user, which is always relayed verbatim.
// Handler errors and panics become a single inline
// "Error: ..." reply; a misbehaving tool never aborts event handling.
func (d *Dispatcher) Dispatch(ctx context.Context, res *action.Resolution, rc tools.RuntimeContext) error {
	if res.Invocation == nil {
		// The model answered with text instead of calling a function.
		// Unexpected under the system prompt, so worth a warning, but
		// the content is still a usable reply.
		d.logger.Warn("model returned free text instead of a tool call",
			"channel", rc.Channel,
			"content_len", len(res.FreeText),
		)
		if res.FreeText == "" {
			return nil
		}
		return d.out.PostReply(ctx, rc.Channel, rc.ThreadTS, res.FreeText)
	}

	inv := res.Invocation

	if inv.Descriptor.Mutating && !inv.Confirmed() {
		d.logger.Info("mutating tool awaiting confirmation",
			"tool", inv.Tool.Name,
			"channel", rc.Channel,
		)
		return d.out.PostReply(ctx, rc.Channel, rc.ThreadTS, renderPreview(inv))
	}

	summary, err := d.execute(ctx, inv, rc)
	if err != nil {
		d.logger.Error("tool execution failed",
			"tool", inv.Tool.Name,
			"channel", rc.Channel,
			"error", err,
		)
		return d.out.PostReply(ctx, rc.Channel, rc.ThreadTS, "Error: "+err.Error())
	}

	d.logger.Info("tool executed",
		"tool", inv.Tool.Name,
		"channel", rc.Channel,
		"reply_len", len(summary),
	)

	// An empty summary (no_action, or a tool with nothing to report)
	// suppresses the reply entirely rather than posting an empty
	// string. message_user is exempt: its argument is relayed verbatim,
	// empty or not.
	if summary == "" && inv.Tool.Name != tools.MessageUserName {
		return nil
	}

	return d.out.PostReply(ctx, rc.Channel, rc.ThreadTS, summary)
}

// ReplyError surfaces a per-event resolver failure (unknown tool,
// undecodable arguments) as an inline diagnostic reply.
func (d *Dispatcher) ReplyError(ctx context.Context, err error, rc tools.RuntimeContext) error {
	d.logger.Warn("resolution failed",
		"channel", rc.Channel,
		"error", err,
	)
	return d.out.PostReply(ctx, rc.Channel, rc.ThreadTS, "Error: "+err.Error())
}

// execute runs the tool handler with panic containment.
func (d *Dispatcher) execute(ctx context.Context, inv *action.Invocation, rc tools.RuntimeContext) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", inv.Tool.Name, r)
		}
	}()

	return inv.Tool.Handler(ctx, rc, inv.Args)
}

// renderPreview builds the human-readable confirmation preview for a
// proposed mutating invocation, listing the supplied arguments in
// schema order.
func renderPreview(inv *action.Invocation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s with the following details?\n", inv.Tool.Name)

	for _, p := range inv.Descriptor.Parameters {
		if p.Name == schema.ConfirmedParam {
			continue
		}
		value, present := inv.Args[p.Name]
		if !present {
			continue
		}
		fmt.Fprintf(&sb, "*%s:* %s\n", p.Name, formatValue(value))
	}

	sb.WriteString("Reply to confirm and I will go ahead.")
	return sb.String()
}

// formatValue renders one argument value for the preview.
func formatValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case []any:
		parts := make([]string, len(value))
		for i, item := range value {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, ", ")
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	default:
		return fmt.Sprintf("%v", value)
	}
}
