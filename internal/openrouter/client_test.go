package openrouter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"PolyChat/internal/chat"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("sk-or-test",
		slog.New(slog.DiscardHandler),
		tracenoop.NewTracerProvider().Tracer("test"),
		noop.NewMeterProvider().Meter("test"),
		WithBaseURL(srv.URL),
	)
}

func TestListModels(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %s, want /models", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-or-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"data":[
			{"id":"a/free","name":"Free A","pricing":{"prompt":"0","completion":"0"}},
			{"id":"b/paid","name":"Paid B","pricing":{"prompt":0.00001,"completion":0.00002},"context_length":128000}
		]}`))
	}))

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}

	free := FreeModels(models)
	if len(free) != 1 || free[0].ID != "a/free" {
		t.Errorf("FreeModels = %v, want only a/free", free)
	}
}

func TestListModels_NoKey(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c.SetAPIKey("")

	_, err := c.ListModels(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindAuth {
		t.Fatalf("err = %v, want auth APIError", err)
	}
}

func TestSendMessage(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":2}}`))
	}))

	reply, err := c.SendMessage(context.Background(), "a/free", []chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Role != chat.RoleAssistant || reply.Content != "hi there" {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Timestamp.IsZero() {
		t.Error("reply timestamp should be set")
	}
}

func TestSendMessage_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Kind
		wantMsg string
	}{
		{"auth", 401, `{}`, KindAuth, "Invalid API key"},
		{"rate limit", 429, `{}`, KindRateLimit, "Rate limit exceeded. Please try again later."},
		{"quota", 402, `{}`, KindQuota, "Insufficient credits. Please check your OpenRouter account."},
		{"bad request", 400, `{"error":{"message":"unsupported model"}}`, KindBadRequest, "Bad request: unsupported model"},
		{"unavailable", 503, `{}`, KindUnavailable, "Service temporarily unavailable. Please try again later."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))

			_, err := c.SendMessage(context.Background(), "a/free", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want APIError", err)
			}
			if apiErr.Kind != tc.want {
				t.Errorf("Kind = %s, want %s", apiErr.Kind, tc.want)
			}
			if apiErr.Message != tc.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tc.wantMsg)
			}
		})
	}
}

func TestSendMessage_EmptyChoices(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))

	_, err := c.SendMessage(context.Background(), "a/free", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindEmptyResponse {
		t.Fatalf("err = %v, want empty_response APIError", err)
	}
}

func TestSendMessage_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	c := NewClient("sk-or-test",
		slog.New(slog.DiscardHandler),
		tracenoop.NewTracerProvider().Tracer("test"),
		noop.NewMeterProvider().Meter("test"),
		WithBaseURL(url),
	)

	_, err := c.SendMessage(context.Background(), "a/free", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindNetwork {
		t.Fatalf("err = %v, want network APIError", err)
	}
}
