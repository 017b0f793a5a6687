package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/coworker/internal/schema"
	"github.com/nugget/coworker/internal/tools"
)

// LogTool returns a tool that appends one feedback record. Logging is
// an internal note, not an outward mutation, so it runs without a
// confirmation round trip.
func LogTool(store *Store) tools.Tool {
	return tools.Tool{
		Declaration: schema.Declaration{
			Name: "log_user_feedback",
			Doc: `Log a piece of user feedback so it can be reviewed later.

Args:
    company: Name of the company or user the feedback came from.
    description: What the user said, in their own words where possible.
    urgency: How urgent the feedback is, one of low, medium or high.
    category: A short category such as bug, feature-request or praise.
    date: When the feedback was given, as reported by the user.`,
			Params: []schema.ParamDecl{
				{Name: "company", Type: schema.TypeString},
				{Name: "description", Type: schema.TypeString},
				{Name: "urgency", Type: schema.TypeString},
				{Name: "category", Type: schema.TypeString},
				{Name: "date", Type: schema.TypeString},
			},
		},
		Handler: func(ctx context.Context, _ tools.RuntimeContext, args map[string]any) (string, error) {
			rec := Record{
				Company:     stringArg(args, "company"),
				Description: stringArg(args, "description"),
				Urgency:     stringArg(args, "urgency"),
				Category:    stringArg(args, "category"),
				Date:        stringArg(args, "date"),
			}

			saved, err := store.Append(ctx, rec)
			if err != nil {
				return "", fmt.Errorf("log feedback: %w", err)
			}

			return fmt.Sprintf("Logged feedback from %s (%s).", saved.Company, saved.ID), nil
		},
	}
}

// ReadTool returns a read-only tool that summarizes stored feedback.
func ReadTool(store *Store) tools.Tool {
	return tools.Tool{
		Declaration: schema.Declaration{
			Name: "read_feedback",
			Doc: `Read back the user feedback that has been logged so far.

Lists every stored record, newest first.`,
		},
		Handler: func(ctx context.Context, _ tools.RuntimeContext, _ map[string]any) (string, error) {
			records, err := store.List(ctx)
			if err != nil {
				return "", fmt.Errorf("read feedback: %w", err)
			}

			if len(records) == 0 {
				return "No feedback has been logged yet.", nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%d feedback record(s):\n", len(records))
			for _, r := range records {
				fmt.Fprintf(&b, "- [%s/%s] %s: %s (%s)\n",
					r.Urgency, r.Category, r.Company, r.Description, r.Date)
			}

			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}
