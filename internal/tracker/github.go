// Package tracker connects the bot to the team's issue tracker. It
// exposes issue creation and label listing as tools so that requests
// made in conversation can be turned into tracked work items.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gogithub "github.com/google/go-github/v69/github"
)

// Issue is the tracker-facing view of an issue.
type Issue struct {
	Number int
	Title  string
	Body   string
	Labels []string
	URL    string
}

// Client wraps the go-github SDK for a single repository.
type Client struct {
	gh     *gogithub.Client
	owner  string
	repo   string
	logger *slog.Logger
}

// NewClient creates a tracker client for the given owner/repo. A
// non-empty baseURL points the client at a GitHub Enterprise
// installation; httpClient may be nil to use the default transport.
func NewClient(httpClient *http.Client, token, baseURL, owner, repo string, logger *slog.Logger) (*Client, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("tracker: owner and repo are required")
	}

	gh := gogithub.NewClient(httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("tracker: enterprise URL: %w", err)
		}
	}

	return &Client{gh: gh, owner: owner, repo: repo, logger: logger}, nil
}

// checkRateLimit logs a warning when remaining API calls drop below threshold.
func (c *Client) checkRateLimit(resp *gogithub.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Remaining < 100 {
		c.logger.Warn("tracker: github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset", resp.Rate.Reset.Time,
		)
	}
}

// CreateIssue opens a new issue in the repository.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (*Issue, error) {
	req := &gogithub.IssueRequest{
		Title: &title,
		Body:  &body,
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}

	result, resp, err := c.gh.Issues.Create(ctx, c.owner, c.repo, req)
	if err != nil {
		return nil, fmt.Errorf("tracker: create issue: %w", err)
	}
	c.checkRateLimit(resp)

	return convertIssue(result), nil
}

// ListLabels returns the names of all labels defined on the repository.
func (c *Client) ListLabels(ctx context.Context) ([]string, error) {
	opts := &gogithub.ListOptions{PerPage: 100}

	var names []string
	for {
		labels, resp, err := c.gh.Issues.ListLabels(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("tracker: list labels: %w", err)
		}
		c.checkRateLimit(resp)

		for _, l := range labels {
			names = append(names, l.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// convertIssue maps a go-github Issue to the tracker Issue type.
func convertIssue(i *gogithub.Issue) *Issue {
	if i == nil {
		return nil
	}
	out := &Issue{
		Number: i.GetNumber(),
		Title:  i.GetTitle(),
		Body:   i.GetBody(),
		URL:    i.GetHTMLURL(),
	}
	for _, l := range i.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out
}
