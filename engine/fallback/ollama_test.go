package fallback

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/semantic"
	"github.com/carfix-labs/carfix/pkg/ollama"
)

type stubChat struct {
	reply    string
	err      error
	lastMsgs []ollama.Message
	lastOpts ollama.ChatOptions
}

func (s *stubChat) Chat(_ context.Context, msgs []ollama.Message, opts ollama.ChatOptions) (string, error) {
	s.lastMsgs, s.lastOpts = msgs, opts
	return s.reply, s.err
}

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, s.err
}

type stubSearcher struct {
	hits      []semantic.Hit
	err       error
	lastBrand string
}

func (s *stubSearcher) SimilarIssues(_ context.Context, _ []float32, _ int, brand string) ([]semantic.Hit, error) {
	s.lastBrand = brand
	return s.hits, s.err
}

const fullReply = "```json\n" + `{
  "results": [
    {
      "problem": "Dead battery",
      "problem_severity": "critical",
      "solution": "Jump start, then test the battery",
      "estimated_cost": "$100-$200",
      "diy_possible": true,
      "tools_required": ["Multimeter", "Jumper cables"],
      "time_estimate": "30 min",
      "parts_needed": ["Battery"],
      "additional_info": "Check the alternator too"
    },
    {"problem": "", "solution": "dropped"},
    {"problem": "Starter motor", "solution": "Bench test the starter", "diy_possible": "maybe"}
  ],
  "follow_up_questions": ["Do the dash lights come on?", ""]
}` + "\n```"

func TestOllamaGenerator_Generate(t *testing.T) {
	chat := &stubChat{reply: fullReply}
	g, err := NewOllamaGenerator(chat).Generate(context.Background(), "won't start", "Toyota", "Corolla")
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(g.Results))
	}
	r := g.Results[0]
	if r.Severity != domain.SeverityCritical || r.DIYPossible == nil || !*r.DIYPossible {
		t.Errorf("unexpected first result %+v", r)
	}
	if len(r.ToolsRequired) != 2 || r.PartsNeeded[0] != "Battery" || r.TimeEstimate != "30 min" {
		t.Errorf("unexpected lists %+v", r)
	}
	if g.Results[1].DIYPossible != nil {
		t.Error("non-boolean diy_possible should be ignored")
	}
	if len(g.FollowUpQuestions) != 1 {
		t.Errorf("follow-ups = %v", g.FollowUpQuestions)
	}
	if chat.lastOpts.Format != "json" {
		t.Errorf("format = %q", chat.lastOpts.Format)
	}
	if !strings.Contains(chat.lastMsgs[1].Content, "Toyota Corolla: won't start") {
		t.Errorf("user prompt = %q", chat.lastMsgs[1].Content)
	}
}

func TestOllamaGenerator_Malformed(t *testing.T) {
	tests := []string{
		"sorry, I cannot help",
		`{"results": [}`,
		`{"results": []}`,
		`{"results": [{"problem": "x"}]}`,
		`{"answer": "battery"}`,
	}
	for _, reply := range tests {
		_, err := NewOllamaGenerator(&stubChat{reply: reply}).Generate(context.Background(), "q", "a", "b")
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("reply %q: expected ErrMalformed, got %v", reply, err)
		}
	}
}

func TestOllamaGenerator_ChatError(t *testing.T) {
	_, err := NewOllamaGenerator(&stubChat{err: errors.New("connection refused")}).Generate(context.Background(), "q", "a", "b")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOllamaGenerator_IssueContext(t *testing.T) {
	chat := &stubChat{reply: fullReply}
	idx := &stubSearcher{hits: []semantic.Hit{{Brand: "Toyota", Model: "Corolla", Problem: "Car not starting", Solution: "Check the battery"}}}
	gen := NewOllamaGenerator(chat, WithIssueContext(stubEmbedder{}, idx, 2), WithTemperature(0.1))
	if _, err := gen.Generate(context.Background(), "no crank", "Toyota", "Corolla"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(chat.lastMsgs[0].Content, "Toyota Corolla: Car not starting") {
		t.Errorf("system prompt missing context: %q", chat.lastMsgs[0].Content)
	}
	if idx.lastBrand != "Toyota" {
		t.Errorf("brand filter = %q", idx.lastBrand)
	}
	if chat.lastOpts.Temperature != 0.1 {
		t.Errorf("temperature = %v", chat.lastOpts.Temperature)
	}
}

func TestOllamaGenerator_ContextFailureIsIgnored(t *testing.T) {
	chat := &stubChat{reply: fullReply}
	gen := NewOllamaGenerator(chat, WithIssueContext(stubEmbedder{err: errors.New("embed down")}, &stubSearcher{}, 2))
	if _, err := gen.Generate(context.Background(), "q", "a", "b"); err != nil {
		t.Fatalf("context failure should not fail generation: %v", err)
	}
	if strings.Contains(chat.lastMsgs[0].Content, "Known issues") {
		t.Error("no context section expected")
	}
}

func TestOllamaGenerator_Tips(t *testing.T) {
	chat := &stubChat{reply: `{"tips": ["Replace the timing belt at 100,000 km", "Use 0W-20 oil"]}`}
	tips, err := NewOllamaGenerator(chat).MaintenanceTips(context.Background(), domain.Vehicle{Brand: "Toyota", Model: "Corolla", Year: 2018})
	if err != nil {
		t.Fatal(err)
	}
	if len(tips) != 2 {
		t.Errorf("tips = %v", tips)
	}
	if !strings.Contains(chat.lastMsgs[0].Content, "2018 Toyota Corolla") {
		t.Errorf("prompt should include the year: %q", chat.lastMsgs[0].Content)
	}
}

func TestOllamaGenerator_TipsDefaultWhenMissing(t *testing.T) {
	tips, err := NewOllamaGenerator(&stubChat{reply: `{"advice": "drive gently"}`}).MaintenanceTips(context.Background(), domain.Vehicle{Brand: "Kia", Model: "Rio"})
	if err != nil {
		t.Fatal(err)
	}
	if len(tips) != 3 || tips[0] != DefaultTips[0] {
		t.Errorf("tips = %v, want DefaultTips", tips)
	}
}

func TestOllamaGenerator_Related(t *testing.T) {
	chat := &stubChat{reply: `{"related_issues": [{"issue": "Alternator", "description": "Battery not charging"}]}`}
	got, err := NewOllamaGenerator(chat).RelatedIssues(context.Background(), "Toyota", "Corolla", "Car not starting")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Issue != "Alternator" {
		t.Errorf("related = %+v", got)
	}

	if _, err := NewOllamaGenerator(&stubChat{reply: "nope"}).RelatedIssues(context.Background(), "a", "b", "c"); err == nil {
		t.Error("expected error for non-JSON reply")
	}
}
