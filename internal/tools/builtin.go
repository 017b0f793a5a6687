package tools

import (
	"context"

	"github.com/nugget/coworker/internal/schema"
)

// Builtin tool names. The dispatcher interprets their results
// specially; the resolver treats them like any other tool.
const (
	NoActionName    = "no_action"
	MessageUserName = "message_user"
)

// NoAction returns the built-in tool signalling that no reply should be
// sent. The empty summary causes the dispatcher to suppress the
// outward message entirely.
func NoAction() *Tool {
	return &Tool{
		Declaration: schema.Declaration{
			Name: NoActionName,
			Doc:  "No action needs to be taken.",
		},
		Handler: func(context.Context, RuntimeContext, map[string]any) (string, error) {
			return "", nil
		},
	}
}

// MessageUser returns the built-in tool that replies to the user with
// exactly the model-supplied text.
func MessageUser() *Tool {
	return &Tool{
		Declaration: schema.Declaration{
			Name: MessageUserName,
			Doc: `Sends a message to the user offering to help them or confirming any details.

Args:
    message: The message to send to the user, verbatim.
`,
			Params: []schema.ParamDecl{
				{Name: "message", Type: schema.TypeString},
			},
		},
		Handler: func(_ context.Context, _ RuntimeContext, args map[string]any) (string, error) {
			message, _ := args["message"].(string)
			return message, nil
		},
	}
}
