package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nugget/coworker/internal/action"
	"github.com/nugget/coworker/internal/schema"
	"github.com/nugget/coworker/internal/tools"
)

// spyOutbound records posted replies.
type spyOutbound struct {
	replies []string
	err     error
}

func (s *spyOutbound) PostReply(_ context.Context, _, _, text string) error {
	s.replies = append(s.replies, text)
	return s.err
}

// spyTool builds a mutating create_issue tool whose handler records
// calls.
type spyTool struct {
	calls int
	err   error
	panic bool
}

func (s *spyTool) tool(t *testing.T) (*tools.Tool, *action.Invocation) {
	t.Helper()

	tool := &tools.Tool{
		Declaration: schema.Declaration{
			Name: "create_issue",
			Doc: `Create an issue in the tracker.

Args:
    title: The title of the issue.
    confirmed: Whether the user has confirmed.
`,
			Params: []schema.ParamDecl{
				{Name: "title", Type: schema.TypeString},
				{Name: "confirmed", Type: schema.TypeBoolean},
			},
		},
		Handler: func(context.Context, tools.RuntimeContext, map[string]any) (string, error) {
			s.calls++
			if s.panic {
				panic("boom")
			}
			if s.err != nil {
				return "", s.err
			}
			return "Issue Created: #42", nil
		},
	}

	desc, err := schema.Compile(tool.Declaration)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return tool, &action.Invocation{Tool: tool, Descriptor: desc, Args: map[string]any{}}
}

func rc() tools.RuntimeContext {
	return tools.RuntimeContext{Channel: "C1", ThreadTS: "1700000000.000100"}
}

func TestConfirmationGateBlocksUnconfirmed(t *testing.T) {
	out := &spyOutbound{}
	spy := &spyTool{}
	_, inv := spy.tool(t)
	inv.Args = map[string]any{"title": "X", "confirmed": false}

	d := New(out, nil)
	if err := d.Dispatch(context.Background(), &action.Resolution{Invocation: inv}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if spy.calls != 0 {
		t.Errorf("handler called %d times, want 0", spy.calls)
	}
	if len(out.replies) != 1 {
		t.Fatalf("replies = %d, want 1 preview", len(out.replies))
	}
	if !strings.Contains(out.replies[0], "X") {
		t.Errorf("preview %q does not mention the proposed title", out.replies[0])
	}
	if strings.Contains(out.replies[0], "confirmed") {
		t.Errorf("preview %q leaks the confirmed flag", out.replies[0])
	}
}

func TestConfirmationGateAbsentFlagBlocks(t *testing.T) {
	out := &spyOutbound{}
	spy := &spyTool{}
	_, inv := spy.tool(t)
	inv.Args = map[string]any{"title": "X"}

	d := New(out, nil)
	if err := d.Dispatch(context.Background(), &action.Resolution{Invocation: inv}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if spy.calls != 0 {
		t.Errorf("handler called %d times, want 0", spy.calls)
	}
}

func TestConfirmedInvocationExecutesOnce(t *testing.T) {
	out := &spyOutbound{}
	spy := &spyTool{}
	_, inv := spy.tool(t)
	inv.Args = map[string]any{"title": "X", "confirmed": true}

	d := New(out, nil)
	if err := d.Dispatch(context.Background(), &action.Resolution{Invocation: inv}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if spy.calls != 1 {
		t.Errorf("handler called %d times, want 1", spy.calls)
	}
	if len(out.replies) != 1 || !strings.Contains(out.replies[0], "#42") {
		t.Errorf("replies = %v, want creation summary", out.replies)
	}
}

func TestNoActionSuppressesReply(t *testing.T) {
	out := &spyOutbound{}
	reg, err := tools.NewRegistry([]*tools.Tool{tools.NoAction()})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	tool, desc, _ := reg.Get(tools.NoActionName)
	inv := &action.Invocation{Tool: tool, Descriptor: desc, Args: map[string]any{}}

	d := New(out, nil)
	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), &action.Resolution{Invocation: inv}, rc()); err != nil {
			t.Fatalf("Dispatch #%d: %v", i, err)
		}
	}

	if len(out.replies) != 0 {
		t.Errorf("replies = %v, want none", out.replies)
	}
}

func TestMessageUserRepliesVerbatim(t *testing.T) {
	out := &spyOutbound{}
	reg, err := tools.NewRegistry([]*tools.Tool{tools.MessageUser()})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	tool, desc, _ := reg.Get(tools.MessageUserName)
	inv := &action.Invocation{
		Tool:       tool,
		Descriptor: desc,
		Args:       map[string]any{"message": "Want me to file that as a bug?"},
	}

	d := New(out, nil)
	if err := d.Dispatch(context.Background(), &action.Resolution{Invocation: inv}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(out.replies) != 1 || out.replies[0] != "Want me to file that as a bug?" {
		t.Errorf("replies = %v, want verbatim message", out.replies)
	}
}

func TestMessageUserEmptyStillReplies(t *testing.T) {
	out := &spyOutbound{}
	reg, err := tools.NewRegistry([]*tools.Tool{tools.MessageUser()})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	tool, desc, _ := reg.Get(tools.MessageUserName)
	inv := &action.Invocation{
		Tool:       tool,
		Descriptor: desc,
		Args:       map[string]any{"message": ""},
	}

	d := New(out, nil)
	if err := d.Dispatch(context.Background(), &action.Resolution{Invocation: inv}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(out.replies) != 1 || out.replies[0] != "" {
		t.Errorf("replies = %q, want one verbatim empty reply", out.replies)
	}
}

func TestEmptySummarySuppressedForOtherTools(t *testing.T) {
	out := &spyOutbound{}
	quiet := &tools.Tool{
		Declaration: schema.Declaration{
			Name: "sync_cache",
			Doc:  "Refresh the internal cache.",
		},
		Handler: func(context.Context, tools.RuntimeContext, map[string]any) (string, error) {
			return "", nil
		},
	}
	desc, err := schema.Compile(quiet.Declaration)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	inv := &action.Invocation{Tool: quiet, Descriptor: desc, Args: map[string]any{}}

	d := New(out, nil)
	if err := d.Dispatch(context.Background(), &action.Resolution{Invocation: inv}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(out.replies) != 0 {
		t.Errorf("replies = %v, want none", out.replies)
	}
}

func TestToolErrorRendersInline(t *testing.T) {
	out := &spyOutbound{}
	spy := &spyTool{err: errors.New("tracker unreachable")}
	_, inv := spy.tool(t)
	inv.Args = map[string]any{"title": "X", "confirmed": true}

	d := New(out, nil)
	if err := d.Dispatch(context.Background(), &action.Resolution{Invocation: inv}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(out.replies) != 1 || !strings.HasPrefix(out.replies[0], "Error: ") {
		t.Errorf("replies = %v, want inline error", out.replies)
	}
}

func TestToolPanicIsContained(t *testing.T) {
	out := &spyOutbound{}
	spy := &spyTool{panic: true}
	_, inv := spy.tool(t)
	inv.Args = map[string]any{"title": "X", "confirmed": true}

	d := New(out, nil)
	if err := d.Dispatch(context.Background(), &action.Resolution{Invocation: inv}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(out.replies) != 1 || !strings.Contains(out.replies[0], "Error:") {
		t.Errorf("replies = %v, want inline panic error", out.replies)
	}
	if !strings.Contains(out.replies[0], "boom") {
		t.Errorf("reply %q does not carry the panic message", out.replies[0])
	}
}

func TestFreeTextFallback(t *testing.T) {
	out := &spyOutbound{}
	d := New(out, nil)

	if err := d.Dispatch(context.Background(), &action.Resolution{FreeText: "plain answer"}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(out.replies) != 1 || out.replies[0] != "plain answer" {
		t.Errorf("replies = %v", out.replies)
	}

	// Empty free text sends nothing.
	out.replies = nil
	if err := d.Dispatch(context.Background(), &action.Resolution{}, rc()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(out.replies) != 0 {
		t.Errorf("replies = %v, want none for empty free text", out.replies)
	}
}

func TestReplyError(t *testing.T) {
	out := &spyOutbound{}
	d := New(out, nil)

	err := d.ReplyError(context.Background(), &action.UnknownToolError{Name: "launch_rocket"}, rc())
	if err != nil {
		t.Fatalf("ReplyError: %v", err)
	}
	if len(out.replies) != 1 || !strings.Contains(out.replies[0], "launch_rocket") {
		t.Errorf("replies = %v, want inline diagnostic naming the tool", out.replies)
	}
}

func TestRenderPreviewFormatsValues(t *testing.T) {
	spy := &spyTool{}
	tool, _ := spy.tool(t)

	decl := tool.Declaration
	decl.Params = append(decl.Params,
		schema.ParamDecl{Name: "labels", Type: schema.TypeList, HasDefault: true},
		schema.ParamDecl{Name: "priority", Type: schema.TypeInteger, HasDefault: true},
	)
	desc, err := schema.Compile(decl)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	inv := &action.Invocation{
		Tool:       tool,
		Descriptor: desc,
		Args: map[string]any{
			"title":     "Fix login",
			"labels":    []any{"bug", "auth"},
			"priority":  float64(2),
			"confirmed": false,
		},
	}

	preview := renderPreview(inv)
	for _, want := range []string{"*title:* Fix login", "*labels:* bug, auth", "*priority:* 2"} {
		if !strings.Contains(preview, want) {
			t.Errorf("preview missing %q:\n%s", want, preview)
		}
	}
}
