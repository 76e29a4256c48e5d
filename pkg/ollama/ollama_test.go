package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req embedReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" || req.Prompt != "brake noise" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.25]}`))
	}))
	defer srv.Close()

	v, err := NewEmbedClient(srv.URL+"/", "nomic-embed-text").Embed(context.Background(), "brake noise")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 2 || v[0] != 0.5 || v[1] != 0.25 {
		t.Errorf("got %v", v)
	}
}

func TestEmbed_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewEmbedClient(srv.URL, "m").Embed(context.Background(), "x"); err == nil {
		t.Error("expected status error")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer empty.Close()
	if _, err := NewEmbedClient(empty.URL, "m").EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Error("expected empty embedding error")
	}
}

func TestChat(t *testing.T) {
	var got chatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"problem\":\"x\"}"},"done":true}`))
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "llama3")
	out, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, ChatOptions{Format: "json", Temperature: 0.3})
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"problem":"x"}` {
		t.Errorf("got %q", out)
	}
	if got.Stream || got.Format != "json" || got.Model != "llama3" {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Options["temperature"] != 0.3 {
		t.Errorf("temperature = %v", got.Options["temperature"])
	}
	if c.Model() != "llama3" {
		t.Error("Model()")
	}
}
