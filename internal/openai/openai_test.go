package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations" {
			t.Errorf("path = %q, want /conversations", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"id":"conv_abc","object":"conversation"}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "test-key", APIBase: srv.URL})
	got, err := c.CreateConversation(context.Background())
	if err != nil {
		t.Fatalf("CreateConversation() error = %v, want nil", err)
	}
	if got != "conv_abc" {
		t.Errorf("CreateConversation() = %q, want %q", got, "conv_abc")
	}
}

func TestCreateConversationMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", APIBase: srv.URL})
	if _, err := c.CreateConversation(context.Background()); err == nil {
		t.Error("CreateConversation() = nil error, want missing id failure")
	}
}

func TestGenerateReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path = %q, want /responses", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["conversation"] != "conv-1" {
			t.Errorf("conversation = %v, want conv-1", req["conversation"])
		}
		if prompt, ok := req["prompt"].(map[string]any); !ok || prompt["id"] != "pmpt_x" {
			t.Errorf("prompt = %v, want stored prompt reference", req["prompt"])
		}
		w.Write([]byte(`{"output":[
			{"type":"reasoning","content":[]},
			{"type":"message","content":[
				{"type":"output_text","text":"Hello "},
				{"type":"output_text","text":"world"}
			]}
		]}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", APIBase: srv.URL, PromptID: "pmpt_x"})
	got, err := c.GenerateReply(context.Background(), "conv-1", "the question")
	if err != nil {
		t.Fatalf("GenerateReply() error = %v, want nil", err)
	}
	if got != "Hello world" {
		t.Errorf("GenerateReply() = %q, want %q", got, "Hello world")
	}
}

func TestGenerateReplyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", APIBase: srv.URL})
	_, err := c.GenerateReply(context.Background(), "conv-1", "x")
	if err == nil || !strings.Contains(err.Error(), "openai 500") {
		t.Errorf("GenerateReply() error = %v, want status failure", err)
	}
}

func TestGenerateReplyEmptyOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"output":[{"type":"reasoning","content":[]}]}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", APIBase: srv.URL})
	if _, err := c.GenerateReply(context.Background(), "conv-1", "x"); err == nil {
		t.Error("GenerateReply() = nil error, want empty output failure")
	}
}
