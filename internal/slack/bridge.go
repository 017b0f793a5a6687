package slack

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/nugget/coworker/internal/action"
	"github.com/nugget/coworker/internal/dispatch"
	"github.com/nugget/coworker/internal/llm"
	"github.com/nugget/coworker/internal/tools"
	"github.com/nugget/coworker/internal/window"
)

// handleTimeout bounds how long a single inbound message may be
// processed (context assembly + completion + dispatch).
const handleTimeout = 2 * time.Minute

// EventSource delivers message events. The real implementation is
// *SocketClient.
type EventSource interface {
	Events() <-chan MessageEvent
}

// BridgeConfig holds the dependencies for a Bridge.
type BridgeConfig struct {
	Source       EventSource
	Assembler    *window.Assembler
	Model        llm.Client
	Registry     *tools.Registry
	Dispatcher   *dispatch.Dispatcher
	SystemPrompt string
	BotUserID    string
	Channels     []string // empty means respond everywhere
	ContextLimit int
	Logger       *slog.Logger
}

// Bridge receives Slack message events, assembles the conversation
// window, asks the model for a decision, and dispatches the outcome.
type Bridge struct {
	source       EventSource
	assembler    *window.Assembler
	model        llm.Client
	registry     *tools.Registry
	dispatcher   *dispatch.Dispatcher
	systemPrompt string
	botUserID    string
	channels     []string
	contextLimit int
	logger       *slog.Logger
}

// NewBridge creates a Slack message bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		source:       cfg.Source,
		assembler:    cfg.Assembler,
		model:        cfg.Model,
		registry:     cfg.Registry,
		dispatcher:   cfg.Dispatcher,
		systemPrompt: cfg.SystemPrompt,
		botUserID:    cfg.BotUserID,
		channels:     cfg.Channels,
		contextLimit: cfg.ContextLimit,
		logger:       logger,
	}
}

// Start consumes message events and routes them through the decision
// pipeline until ctx is cancelled or the source closes.
func (b *Bridge) Start(ctx context.Context) {
	b.logger.Info("slack bridge started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("slack bridge shutting down")
			return
		case ev, ok := <-b.source.Events():
			if !ok {
				b.logger.Info("slack event channel closed, bridge stopping")
				return
			}
			if !b.wantEvent(ev) {
				continue
			}
			b.handleEvent(ctx, ev)
		}
	}
}

// wantEvent filters out events the bridge never acts on: edits and
// other subtyped messages, the bot's own output, and channels outside
// the configured allowlist.
func (b *Bridge) wantEvent(ev MessageEvent) bool {
	if ev.Subtype != "" {
		b.logger.Debug("slack ignoring subtyped message",
			"subtype", ev.Subtype,
			"channel", ev.Channel,
		)
		return false
	}
	if ev.BotID != "" || (ev.User != "" && ev.User == b.botUserID) {
		b.logger.Debug("slack ignoring bot-authored message",
			"channel", ev.Channel,
		)
		return false
	}
	if ev.User == "" || ev.TS == "" {
		b.logger.Debug("slack ignoring malformed event", "channel", ev.Channel)
		return false
	}
	if len(b.channels) > 0 && !slices.Contains(b.channels, ev.Channel) {
		return false
	}
	return true
}

// handleEvent processes one triggering message: assemble the window,
// ask the model, resolve the decision, dispatch the outcome.
func (b *Bridge) handleEvent(ctx context.Context, ev MessageEvent) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	rc := tools.RuntimeContext{
		Channel:  ev.Channel,
		ThreadTS: ev.ThreadTS,
		UserID:   ev.User,
	}

	b.logger.Info("slack message received",
		"channel", ev.Channel,
		"user", ev.User,
		"threaded", ev.ThreadTS != "",
	)

	conversation, err := b.assembler.Assemble(ctx, ev.Channel, triggerRaw(ev), ev.ThreadTS, b.contextLimit)
	if err != nil {
		// Transport failures abort the event. Replying would require
		// the same transport that just failed.
		b.logger.Error("slack context assembly failed",
			"channel", ev.Channel,
			"error", err,
		)
		return
	}

	decision, err := b.model.Complete(ctx, b.systemPrompt, b.registry.Schemas(), conversation)
	if err != nil {
		b.logger.Error("slack model completion failed",
			"channel", ev.Channel,
			"error", err,
		)
		if replyErr := b.dispatcher.ReplyError(ctx, err, rc); replyErr != nil {
			b.logger.Error("slack error reply failed", "error", replyErr)
		}
		return
	}

	res, err := action.Resolve(decision, b.registry)
	if err != nil {
		b.logger.Warn("slack decision rejected",
			"channel", ev.Channel,
			"error", err,
		)
		if action.Inline(err) {
			if replyErr := b.dispatcher.ReplyError(ctx, err, rc); replyErr != nil {
				b.logger.Error("slack error reply failed", "error", replyErr)
			}
		}
		return
	}

	if err := b.dispatcher.Dispatch(ctx, res, rc); err != nil {
		b.logger.Error("slack dispatch failed",
			"channel", ev.Channel,
			"error", err,
		)
	}
}

// triggerRaw converts the triggering event to the transport-neutral
// message form the assembler consumes.
func triggerRaw(ev MessageEvent) window.RawMessage {
	raw := window.RawMessage{
		UserID:    ev.User,
		Username:  ev.Username,
		BotOrigin: ev.BotID != "",
		TS:        ev.TS,
		Text:      ev.Text,
	}
	for _, a := range ev.Attachments {
		raw.Attachments = append(raw.Attachments, window.Attachment{
			Title:   a.Title,
			Pretext: a.Pretext,
			Text:    a.Text,
		})
	}
	return raw
}
