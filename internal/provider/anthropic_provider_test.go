package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicProviderChatStreamSendsAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test" {
			t.Fatalf("missing x-api-key header, got %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Fatalf("anthropic-version = %q, want %q", got, anthropicVersion)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, line := range []string{
			"event: content_block_start",
			`data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
			"",
			"event: content_block_delta",
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`,
			"",
			"event: message_stop",
			`data: {"type":"message_stop"}`,
			"",
		} {
			w.Write([]byte(line + "\n"))
		}
		flusher.Flush()
	}))
	defer srv.Close()

	p := NewAnthropicWithTemp("anthropic", srv.URL, "claude-sonnet", "sk-ant-test", Options{Temperature: 0.3})

	ch, err := p.ChatStream(context.Background(), []Message{{Role: "user", Content: "hello"}}, nil)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	var sawContent, sawDone bool
	for evt := range ch {
		switch evt.Type {
		case EventContentDelta:
			if evt.Content == "hi" {
				sawContent = true
			}
		case EventDone:
			sawDone = true
		case EventError:
			t.Fatalf("unexpected stream error: %v", evt.Err)
		}
	}
	if !sawContent {
		t.Error("expected a content delta event")
	}
	if !sawDone {
		t.Error("expected a done event")
	}
}

func TestAnthropicFactoryDefaultsEndpoint(t *testing.T) {
	f := NewAnthropicFactory("anthropic", "", "sk-ant-test")
	p := f.Create("claude-sonnet", Options{}).(*AnthropicProvider)
	if p.baseURL != "https://api.anthropic.com" {
		t.Fatalf("baseURL = %q", p.baseURL)
	}
	if p.maxTokens != 8192 {
		t.Fatalf("maxTokens = %d, want default 8192", p.maxTokens)
	}
}
