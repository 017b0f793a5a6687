package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestAPI creates a Client backed by the given handler. The test
// server is closed automatically when the test finishes.
func newTestAPI(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(ts.URL, "xoxb-test", "xapp-test", logger)
}

func TestPostReplyThreaded(t *testing.T) {
	var form map[string][]string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-test" {
			t.Errorf("Authorization = %q", got)
		}
		r.ParseForm()
		form = r.PostForm
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	c := newTestAPI(t, mux)
	if err := c.PostReply(context.Background(), "C123", "111.222", "hello"); err != nil {
		t.Fatalf("PostReply: %v", err)
	}

	if got := form["channel"]; len(got) != 1 || got[0] != "C123" {
		t.Errorf("channel = %v", got)
	}
	if got := form["thread_ts"]; len(got) != 1 || got[0] != "111.222" {
		t.Errorf("thread_ts = %v", got)
	}
}

func TestPostReplyUnthreaded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if _, ok := r.PostForm["thread_ts"]; ok {
			t.Error("thread_ts should be omitted for unthreaded replies")
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	c := newTestAPI(t, mux)
	if err := c.PostReply(context.Background(), "C123", "", "hello"); err != nil {
		t.Fatalf("PostReply: %v", err)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat.postMessage", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	})

	c := newTestAPI(t, mux)
	err := c.PostReply(context.Background(), "C999", "", "hello")
	if err == nil {
		t.Fatal("PostReply should fail on ok=false")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not *APIError", err)
	}
	if apiErr.Reason != "channel_not_found" {
		t.Errorf("Reason = %q", apiErr.Reason)
	}
}

func TestFetchChannelHistorySkipsThreadReplies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversations.history", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"messages": []map[string]any{
				{"type": "message", "user": "U2", "text": "newest", "ts": "3.0"},
				{"type": "message", "user": "U1", "text": "buried reply", "ts": "2.5", "thread_ts": "1.0"},
				{"type": "message", "user": "U1", "text": "thread parent", "ts": "2.0", "thread_ts": "2.0"},
			},
		})
	})

	c := newTestAPI(t, mux)
	msgs, err := c.FetchChannelHistory(context.Background(), "C123", "4.0", 10)
	if err != nil {
		t.Fatalf("FetchChannelHistory: %v", err)
	}

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (thread reply dropped)", len(msgs))
	}
	if msgs[0].Text != "newest" || msgs[1].Text != "thread parent" {
		t.Errorf("messages = %q, %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestFetchThreadRepliesParams(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversations.replies", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.PostForm.Get("ts"); got != "1.0" {
			t.Errorf("ts = %q", got)
		}
		if got := r.PostForm.Get("latest"); got != "2.0" {
			t.Errorf("latest = %q", got)
		}
		if got := r.PostForm.Get("inclusive"); got != "true" {
			t.Errorf("inclusive = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"messages": []map[string]any{
				{"type": "message", "user": "U1", "text": "root", "ts": "1.0"},
				{"type": "message", "user": "U2", "text": "reply", "ts": "2.0"},
			},
		})
	})

	c := newTestAPI(t, mux)
	msgs, err := c.FetchThreadReplies(context.Background(), "C123", "1.0", "2.0", 10)
	if err != nil {
		t.Fatalf("FetchThreadReplies: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "root" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestResolveAuthorNameCached(t *testing.T) {
	var calls int

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users.info", func(w http.ResponseWriter, _ *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"user": map[string]any{
				"name":    "jsmith",
				"profile": map[string]any{"display_name": "Jordan"},
			},
		})
	})

	c := newTestAPI(t, mux)

	for range 3 {
		name, err := c.ResolveAuthorName(context.Background(), "U1")
		if err != nil {
			t.Fatalf("ResolveAuthorName: %v", err)
		}
		if name != "Jordan" {
			t.Errorf("name = %q, want %q", name, "Jordan")
		}
	}

	if calls != 1 {
		t.Errorf("users.info called %d times, want 1", calls)
	}
}

func TestBotMessagesMarked(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversations.history", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"messages": []map[string]any{
				{"type": "message", "bot_id": "B1", "username": "coworker", "text": "earlier reply", "ts": "1.0"},
			},
		})
	})

	c := newTestAPI(t, mux)
	msgs, err := c.FetchChannelHistory(context.Background(), "C123", "2.0", 10)
	if err != nil {
		t.Fatalf("FetchChannelHistory: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].BotOrigin || msgs[0].Username != "coworker" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestAuthTest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth.test", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"user_id": "UBOT",
			"user":    "coworker",
		})
	})

	c := newTestAPI(t, mux)
	userID, botName, err := c.AuthTest(context.Background())
	if err != nil {
		t.Fatalf("AuthTest: %v", err)
	}
	if userID != "UBOT" || botName != "coworker" {
		t.Errorf("AuthTest = %q, %q", userID, botName)
	}
}
