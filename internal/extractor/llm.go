package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

const (
	defaultMaxTokens = 1024
	defaultBurst     = 5

	// maxDocumentChars bounds how much document text goes into a prompt.
	maxDocumentChars = 24000
)

// Per-step extraction instructions. Each asks for the same envelope: a
// data object plus an evaluation with scores in [0,1].
var stepPrompts = map[state.StepKey]string{
	state.StepMetadata: `Extract job posting metadata from the document below.
Respond ONLY with a JSON object of the form
{"data":{"title":"","company":"","location":"","employment_type":"","seniority":"","salary_range":""},
"evaluation":{"relevance":0.0,"confidence":0.0,"grounding":0.0,"completeness":0.0,"issues":[]}}.
Scores are in [0,1]; relevance reflects how well the data matches the document.`,

	state.StepSkills: `Extract the required and preferred skills from the job description below.
Respond ONLY with a JSON object of the form
{"data":{"required":[],"preferred":[]},
"evaluation":{"relevance":0.0,"confidence":0.0,"grounding":0.0,"completeness":0.0,"issues":[]}}.
Scores are in [0,1]; relevance reflects how well the data matches the document.`,

	state.StepRequirements: `Extract education, experience and responsibilities from the job description below.
Respond ONLY with a JSON object of the form
{"data":{"education":"","experience_years":"","responsibilities":[]},
"evaluation":{"relevance":0.0,"confidence":0.0,"grounding":0.0,"completeness":0.0,"issues":[]}}.
Scores are in [0,1]; relevance reflects how well the data matches the document.`,
}

// newLLMClient creates the shared langchaingo model client. The client is
// stateless from the engine's point of view and safe to share across
// steps and jobs.
func newLLMClient(cfg Config) (llms.Model, error) {
	opts := []openai.Option{}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

// llmExtractor performs one step's extraction through the model client.
type llmExtractor struct {
	key       state.StepKey
	client    llms.Model
	limiter   *rate.Limiter
	maxTokens int
	logger    *zap.Logger
}

func newLLMExtractor(key state.StepKey, client llms.Model, cfg Config, logger *zap.Logger) *llmExtractor {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultConfig().RateLimit
	}
	return &llmExtractor{
		key:       key,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(limit), defaultBurst),
		maxTokens: maxTokens,
		logger:    logger.With(zap.String("step", string(key))),
	}
}

// Extract reads the document, prompts the model, and parses the data plus
// evaluation envelope. Safe to call repeatedly: the only side effect is
// the model call itself.
func (e *llmExtractor) Extract(ctx context.Context, ref state.DocumentRef, hints map[string]string) (json.RawMessage, state.EvaluationScore, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, state.EvaluationScore{}, fmt.Errorf("rate limiter: %w", err)
	}

	text, err := readDocumentText(ref)
	if err != nil {
		return nil, state.EvaluationScore{}, fmt.Errorf("read document: %w", err)
	}
	if len(text) > maxDocumentChars {
		text = text[:maxDocumentChars]
	}

	prompt := buildPrompt(e.key, text, hints)
	resp, err := llms.GenerateFromSinglePrompt(ctx, e.client, prompt,
		llms.WithTemperature(0.2),
		llms.WithMaxTokens(e.maxTokens),
	)
	if err != nil {
		return nil, state.EvaluationScore{}, fmt.Errorf("model call: %w", err)
	}

	data, eval, err := parseEnvelope(resp)
	if err != nil {
		e.logger.Warn("unparseable model response", zap.Error(err))
		return nil, state.EvaluationScore{}, err
	}
	return data, eval, nil
}

func buildPrompt(key state.StepKey, text string, hints map[string]string) string {
	var b strings.Builder
	b.WriteString(stepPrompts[key])
	if len(hints) > 0 {
		b.WriteString("\n\nUser-supplied hints (prefer these when the document is ambiguous):\n")
		for k, v := range hints {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	b.WriteString("\n\nDocument:\n")
	b.WriteString(text)
	return b.String()
}

// envelope is the JSON shape every step prompt requests.
type envelope struct {
	Data       json.RawMessage       `json:"data"`
	Evaluation state.EvaluationScore `json:"evaluation"`
}

// parseEnvelope parses a model response into data plus evaluation,
// stripping markdown code fences the model may wrap the JSON in.
func parseEnvelope(content string) (json.RawMessage, state.EvaluationScore, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var env envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, state.EvaluationScore{}, fmt.Errorf("parse extraction envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, state.EvaluationScore{}, fmt.Errorf("extraction envelope has no data object")
	}
	eval := env.Evaluation
	eval.Relevance = clamp01(eval.Relevance)
	eval.Confidence = clamp01(eval.Confidence)
	eval.Grounding = clamp01(eval.Grounding)
	eval.Completeness = clamp01(eval.Completeness)
	return env.Data, eval, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
