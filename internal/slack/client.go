// Package slack provides the Slack workspace transport: a Web API
// client, a Socket Mode event stream, and the bridge that routes
// message events through the decision pipeline.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nugget/coworker/internal/buildinfo"
	"github.com/nugget/coworker/internal/httpkit"
	"github.com/nugget/coworker/internal/window"
)

// DefaultBaseURL is the Slack Web API endpoint.
const DefaultBaseURL = "https://slack.com/api"

// APIError reports a Web API call that returned ok=false.
type APIError struct {
	Method string
	Reason string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Reason)
}

// Client is a minimal Slack Web API client covering the calls the
// bridge needs. It implements window.Transport and dispatch.Outbound.
type Client struct {
	baseURL  string
	botToken string
	appToken string
	http     *http.Client
	logger   *slog.Logger

	nameMu sync.Mutex
	names  map[string]string // user ID -> display name
}

// NewClient creates a Slack Web API client. baseURL may be empty to
// use the public Slack endpoint.
func NewClient(baseURL, botToken, appToken string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		appToken: appToken,
		http: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithUserAgent(buildinfo.UserAgent()),
		),
		logger: logger,
		names:  make(map[string]string),
	}
}

// apiMessage is the wire form of one message in a conversation payload.
type apiMessage struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	User     string `json:"user"`
	BotID    string `json:"bot_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`

	Attachments []struct {
		Title   string `json:"title"`
		Pretext string `json:"pretext"`
		Text    string `json:"text"`
	} `json:"attachments"`
}

// toRaw converts a wire message to the transport-neutral form.
func (m apiMessage) toRaw() window.RawMessage {
	raw := window.RawMessage{
		UserID:    m.User,
		Username:  m.Username,
		BotOrigin: m.BotID != "",
		TS:        m.TS,
		Text:      m.Text,
	}
	for _, a := range m.Attachments {
		raw.Attachments = append(raw.Attachments, window.Attachment{
			Title:   a.Title,
			Pretext: a.Pretext,
			Text:    a.Text,
		})
	}
	return raw
}

// call performs one Web API request and decodes the envelope into out.
// Form-encoded POST with Bearer auth, as the Web API expects. The
// token argument selects between the bot and app tokens.
func (c *Client) call(ctx context.Context, method, token string, params url.Values, out any) error {
	endpoint := c.baseURL + "/" + method

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("slack %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: unexpected status %d", method, resp.StatusCode)
	}

	// The ok/error envelope and the caller's payload share the top
	// level of the response, so decode the raw body twice.
	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("slack %s: decode response: %w", method, err)
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("slack %s: decode envelope: %w", method, err)
	}
	if !envelope.OK {
		return &APIError{Method: method, Reason: envelope.Error}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("slack %s: decode payload: %w", method, err)
		}
	}
	return nil
}

// AuthTest identifies the bot user behind the bot token.
func (c *Client) AuthTest(ctx context.Context) (userID, botName string, err error) {
	var out struct {
		UserID string `json:"user_id"`
		User   string `json:"user"`
	}
	if err := c.call(ctx, "auth.test", c.botToken, url.Values{}, &out); err != nil {
		return "", "", err
	}
	return out.UserID, out.User, nil
}

// OpenSocketURL requests a fresh Socket Mode WebSocket URL.
func (c *Client) OpenSocketURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.call(ctx, "apps.connections.open", c.appToken, url.Values{}, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", &APIError{Method: "apps.connections.open", Reason: "empty url"}
	}
	return out.URL, nil
}

// PostReply posts a single text reply, threaded when threadTS is set.
func (c *Client) PostReply(ctx context.Context, channel, threadTS, text string) error {
	params := url.Values{
		"channel": {channel},
		"text":    {text},
	}
	if threadTS != "" {
		params.Set("thread_ts", threadTS)
	}
	return c.call(ctx, "chat.postMessage", c.botToken, params, nil)
}

// FetchThreadReplies implements window.Transport. Replies come back
// oldest first, up to and including the message at upTo.
func (c *Client) FetchThreadReplies(ctx context.Context, channel, threadTS, upTo string, limit int) ([]window.RawMessage, error) {
	params := url.Values{
		"channel":   {channel},
		"ts":        {threadTS},
		"latest":    {upTo},
		"inclusive": {"true"},
		"limit":     {fmt.Sprint(limit)},
	}

	var out struct {
		Messages []apiMessage `json:"messages"`
	}
	if err := c.call(ctx, "conversations.replies", c.botToken, params, &out); err != nil {
		return nil, err
	}

	raws := make([]window.RawMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		raws = append(raws, m.toRaw())
	}
	return raws, nil
}

// FetchChannelHistory implements window.Transport. Messages come back
// newest first, strictly older than before.
func (c *Client) FetchChannelHistory(ctx context.Context, channel, before string, limit int) ([]window.RawMessage, error) {
	params := url.Values{
		"channel": {channel},
		"latest":  {before},
		"limit":   {fmt.Sprint(limit)},
	}

	var out struct {
		Messages []apiMessage `json:"messages"`
	}
	if err := c.call(ctx, "conversations.history", c.botToken, params, &out); err != nil {
		return nil, err
	}

	raws := make([]window.RawMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		// Thread replies are excluded from channel-level context, but
		// thread parents appear in history and stay.
		if m.ThreadTS != "" && m.ThreadTS != m.TS {
			continue
		}
		raws = append(raws, m.toRaw())
	}
	return raws, nil
}

// ResolveAuthorName implements window.Transport. Lookups are cached
// for the life of the client; display names change rarely.
func (c *Client) ResolveAuthorName(ctx context.Context, userID string) (string, error) {
	c.nameMu.Lock()
	if name, ok := c.names[userID]; ok {
		c.nameMu.Unlock()
		return name, nil
	}
	c.nameMu.Unlock()

	var out struct {
		User struct {
			Name    string `json:"name"`
			Profile struct {
				DisplayName string `json:"display_name"`
			} `json:"profile"`
		} `json:"user"`
	}
	if err := c.call(ctx, "users.info", c.botToken, url.Values{"user": {userID}}, &out); err != nil {
		return "", err
	}

	name := out.User.Profile.DisplayName
	if name == "" {
		name = out.User.Name
	}

	c.nameMu.Lock()
	c.names[userID] = name
	c.nameMu.Unlock()

	return name, nil
}
