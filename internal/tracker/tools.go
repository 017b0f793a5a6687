package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/coworker/internal/schema"
	"github.com/nugget/coworker/internal/tools"
)

// CreateIssueTool returns a mutating tool that files a new issue.
func CreateIssueTool(client *Client) tools.Tool {
	return tools.Tool{
		Declaration: schema.Declaration{
			Name: "create_issue",
			Doc: `File a new issue in the team's issue tracker.

Use this when someone asks for a bug to be filed or work to be
tracked. Summarize the request in the title and capture the
relevant conversation details in the description.

Args:
    title: One-line summary of the issue.
    description: Full description of the problem or request.
    labels: Labels to apply, from the repository's existing label set.
    confirmed: Set to true only after the user has confirmed the details.`,
			Params: []schema.ParamDecl{
				{Name: "title", Type: schema.TypeString},
				{Name: "description", Type: schema.TypeString},
				{Name: "labels", Type: schema.TypeList, HasDefault: true},
				{Name: "confirmed", Type: schema.TypeBoolean, HasDefault: true},
			},
		},
		Handler: func(ctx context.Context, _ tools.RuntimeContext, args map[string]any) (string, error) {
			title, _ := args["title"].(string)
			description, _ := args["description"].(string)

			var labels []string
			if raw, ok := args["labels"].([]any); ok {
				for _, v := range raw {
					if s, ok := v.(string); ok {
						labels = append(labels, s)
					}
				}
			}

			issue, err := client.CreateIssue(ctx, title, description, labels)
			if err != nil {
				return "", fmt.Errorf("create issue: %w", err)
			}

			return fmt.Sprintf("Created issue #%d: %s\n%s", issue.Number, issue.Title, issue.URL), nil
		},
	}
}

// ListLabelsTool returns a read-only tool that lists repository labels.
func ListLabelsTool(client *Client) tools.Tool {
	return tools.Tool{
		Declaration: schema.Declaration{
			Name: "list_labels",
			Doc: `List the labels available in the issue tracker.

Useful before filing an issue so the labels chosen actually exist.`,
		},
		Handler: func(ctx context.Context, _ tools.RuntimeContext, _ map[string]any) (string, error) {
			names, err := client.ListLabels(ctx)
			if err != nil {
				return "", fmt.Errorf("list labels: %w", err)
			}

			if len(names) == 0 {
				return "The repository has no labels.", nil
			}

			return "Available labels: " + strings.Join(names, ", "), nil
		},
	}
}
