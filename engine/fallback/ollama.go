package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/semantic"
	"github.com/carfix-labs/carfix/pkg/ollama"
)

// ChatClient is the chat capability the generator needs.
type ChatClient interface {
	Chat(ctx context.Context, messages []ollama.Message, opts ollama.ChatOptions) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IssueSearcher finds knowledge-base issues similar to an embedding.
type IssueSearcher interface {
	SimilarIssues(ctx context.Context, embedding []float32, topK int, brand string) ([]semantic.Hit, error)
}

// OllamaGenerator prompts a local chat model for JSON diagnoses. When an
// embedder and index are attached, the closest known issues are included
// in the prompt as reference material.
type OllamaGenerator struct {
	chat        ChatClient
	embedder    Embedder
	index       IssueSearcher
	contextK    int
	temperature float64
	logger      *slog.Logger
}

// GeneratorOption configures an OllamaGenerator.
type GeneratorOption func(*OllamaGenerator)

// WithIssueContext grounds prompts on the k most similar indexed issues.
func WithIssueContext(e Embedder, idx IssueSearcher, k int) GeneratorOption {
	return func(g *OllamaGenerator) {
		g.embedder, g.index, g.contextK = e, idx, k
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) GeneratorOption {
	return func(g *OllamaGenerator) { g.temperature = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *OllamaGenerator) { g.logger = l }
}

// NewOllamaGenerator creates a generator over chat.
func NewOllamaGenerator(chat ChatClient, opts ...GeneratorOption) *OllamaGenerator {
	g := &OllamaGenerator{chat: chat, contextK: 3, temperature: 0.4, logger: slog.Default()}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *OllamaGenerator) Generate(ctx context.Context, query, brand, model string) (Generated, error) {
	system := diagnosisPrompt(brand, model)
	if refs := g.similarIssues(ctx, query, brand); refs != "" {
		system += "\n\nKnown issues from our service records that may be relevant:\n" + refs
	}
	raw, err := g.chat.Chat(ctx, []ollama.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf("I have a problem with my %s %s: %s", brand, model, query)},
	}, ollama.ChatOptions{Format: "json", Temperature: g.temperature})
	if err != nil {
		return Generated{}, fmt.Errorf("fallback: generate: %w", err)
	}
	return parseGenerated(raw)
}

func (g *OllamaGenerator) MaintenanceTips(ctx context.Context, v domain.Vehicle) ([]string, error) {
	raw, err := g.chat.Chat(ctx, []ollama.Message{
		{Role: "system", Content: tipsPrompt(v)},
		{Role: "user", Content: fmt.Sprintf("What maintenance keeps a %s in good shape and prevents common issues?", describe(v))},
	}, ollama.ChatOptions{Format: "json", Temperature: g.temperature})
	if err != nil {
		return nil, fmt.Errorf("fallback: tips: %w", err)
	}
	doc, err := jsonObject(raw)
	if err != nil {
		return nil, err
	}
	tips := gjson.Get(doc, "tips")
	if !tips.Exists() {
		return append([]string(nil), DefaultTips...), nil
	}
	return stringArray(tips), nil
}

func (g *OllamaGenerator) RelatedIssues(ctx context.Context, brand, model, primary string) ([]RelatedIssue, error) {
	raw, err := g.chat.Chat(ctx, []ollama.Message{
		{Role: "system", Content: relatedPrompt(brand, model)},
		{Role: "user", Content: fmt.Sprintf("My %s %s has this problem: %q. What related issues should I check?", brand, model, primary)},
	}, ollama.ChatOptions{Format: "json", Temperature: g.temperature})
	if err != nil {
		return nil, fmt.Errorf("fallback: related: %w", err)
	}
	doc, err := jsonObject(raw)
	if err != nil {
		return nil, err
	}
	out := []RelatedIssue{}
	for _, item := range gjson.Get(doc, "related_issues").Array() {
		out = append(out, RelatedIssue{
			Issue:       strings.TrimSpace(item.Get("issue").String()),
			Description: strings.TrimSpace(item.Get("description").String()),
		})
	}
	return out, nil
}

// similarIssues renders the nearest indexed issues as prompt lines. Any
// failure just drops the reference section.
func (g *OllamaGenerator) similarIssues(ctx context.Context, query, brand string) string {
	if g.embedder == nil || g.index == nil || g.contextK <= 0 {
		return ""
	}
	vec, err := g.embedder.Embed(ctx, query)
	if err != nil {
		g.logger.Warn("fallback: embed query failed, continuing without context", "err", err)
		return ""
	}
	hits, err := g.index.SimilarIssues(ctx, vec, g.contextK, brand)
	if err != nil {
		g.logger.Warn("fallback: similar issue search failed, continuing without context", "err", err)
		return ""
	}
	var sb strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&sb, "- %s %s: %s. %s\n", h.Brand, h.Model, h.Problem, h.Solution)
	}
	return sb.String()
}

// parseGenerated reads a diagnosis leniently: unknown fields are ignored,
// wrong types degrade to zero values, and results without a problem or
// solution are dropped.
func parseGenerated(raw string) (Generated, error) {
	doc, err := jsonObject(raw)
	if err != nil {
		return Generated{}, err
	}
	g := Generated{Results: []domain.Result{}}
	for _, item := range gjson.Get(doc, "results").Array() {
		r := domain.Result{
			Problem:        strings.TrimSpace(item.Get("problem").String()),
			Solution:       strings.TrimSpace(item.Get("solution").String()),
			Severity:       domain.ParseSeverity(item.Get("problem_severity").String()),
			EstimatedCost:  item.Get("estimated_cost").String(),
			TimeEstimate:   item.Get("time_estimate").String(),
			AdditionalInfo: item.Get("additional_info").String(),
			ToolsRequired:  stringArray(item.Get("tools_required")),
			PartsNeeded:    stringArray(item.Get("parts_needed")),
			Source:         domain.SourceGenerative,
		}
		if diy := item.Get("diy_possible"); diy.Type == gjson.True || diy.Type == gjson.False {
			b := diy.Bool()
			r.DIYPossible = &b
		}
		if r.Problem == "" || r.Solution == "" {
			continue
		}
		g.Results = append(g.Results, r)
	}
	if len(g.Results) == 0 {
		return Generated{}, ErrMalformed
	}
	g.FollowUpQuestions = stringArray(gjson.Get(doc, "follow_up_questions"))
	return g, nil
}

// jsonObject extracts the outermost JSON object, tolerating code fences
// and chatter around it.
func jsonObject(raw string) (string, error) {
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object", ErrMalformed)
	}
	doc := raw[start : end+1]
	if !gjson.Valid(doc) {
		return "", fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	return doc, nil
}

func stringArray(v gjson.Result) []string {
	var out []string
	for _, item := range v.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func describe(v domain.Vehicle) string {
	if v.Year > 0 {
		return fmt.Sprintf("%d %s %s", v.Year, v.Brand, v.Model)
	}
	return v.Brand + " " + v.Model
}
