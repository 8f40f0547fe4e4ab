package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
)

func newTestServer(t *testing.T, status int, content string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPolish(t *testing.T) {
	var body map[string]any
	srv := newTestServer(t, http.StatusOK, "  Halo kak, mobilnya kenapa?  ", &body)
	p := NewPolisher(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})

	history := []domain.ChatMessage{{Role: domain.RoleUser, Text: "mobil saya bunyi"}}
	signals := domain.SignalBundle{VehicleTier: domain.VehicleStandard, Urgency: 2, Seriousness: 50}

	got, err := p.Polish(context.Background(), "draft", history, signals)
	if err != nil {
		t.Fatalf("Polish() error = %v", err)
	}
	if got != "Halo kak, mobilnya kenapa?" {
		t.Errorf("Polish() = %q", got)
	}
	if body["model"] != DefaultModel {
		t.Errorf("model = %v", body["model"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want system + history + draft", len(msgs))
	}
	last, _ := msgs[2].(map[string]any)
	if content, _ := last["content"].(string); !strings.Contains(content, "draft") || !strings.Contains(content, "urgensi=2/10") {
		t.Errorf("last message = %q", content)
	}
}

func TestPolishEmptyAnswerKeepsDraft(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "   ", nil)
	p := NewPolisher(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})

	got, err := p.Polish(context.Background(), "draft", nil, domain.SignalBundle{})
	if err != nil || got != "draft" {
		t.Errorf("Polish() = %q, %v; want draft, nil", got, err)
	}
}

func TestPolishErrorKeepsDraft(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, "", nil)
	p := NewPolisher(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})

	got, err := p.Polish(context.Background(), "draft", nil, domain.SignalBundle{})
	if err == nil {
		t.Error("Polish() error = nil, want API error")
	}
	if got != "draft" {
		t.Errorf("Polish() = %q, want draft", got)
	}
}

func TestBuildMessagesBoundsHistory(t *testing.T) {
	history := make([]domain.ChatMessage, 10)
	for i := range history {
		history[i] = domain.ChatMessage{Role: domain.RoleUser, Text: "x"}
	}
	history[9].Role = domain.RoleAssistant

	msgs := buildMessages("d", history, domain.SignalBundle{})
	if len(msgs) != historyTurns+2 {
		t.Fatalf("len = %d, want %d", len(msgs), historyTurns+2)
	}
	if msgs[historyTurns].Role != "assistant" {
		t.Errorf("last history role = %q", msgs[historyTurns].Role)
	}
}
