// Package explain asks an OpenAI chat model to describe why a list of
// co-rating recommendations belongs together.
package explain

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/icco/movierec/lib/validation"
	"github.com/icco/movierec/models"
	openai "github.com/sashabaranov/go-openai"
)

//go:embed prompts/*.txt
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(promptFS, "prompts/*.txt"))

// Explainer generates explanations with an OpenAI chat completion.
type Explainer struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// Option customises an Explainer.
type Option func(*openai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(c *openai.ClientConfig) { c.BaseURL = url }
}

// New creates an Explainer. An empty model uses gpt-4o-mini.
func New(apiKey, model string, logger *slog.Logger, opts ...Option) *Explainer {
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(&config)
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Explainer{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

type promptData struct {
	Reference models.Movie
	Movies    []models.ScoredMovie
}

// Explain returns a validated explanation for recs produced from reference.
func (e *Explainer) Explain(ctx context.Context, reference models.Movie, recs []models.ScoredMovie) (*validation.Explanation, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("nothing to explain")
	}

	var systemMsg, userMsg strings.Builder
	if err := prompts.ExecuteTemplate(&systemMsg, "system.txt", nil); err != nil {
		return nil, fmt.Errorf("failed to execute system prompt: %w", err)
	}
	if err := prompts.ExecuteTemplate(&userMsg, "explain.txt", promptData{Reference: reference, Movies: recs}); err != nil {
		return nil, fmt.Errorf("failed to execute explain prompt: %w", err)
	}

	e.logger.Debug("Sending request to OpenAI",
		slog.String("model", e.model),
		slog.Int("user_msg_length", userMsg.Len()))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMsg.String()},
			{Role: openai.ChatMessageRoleUser, Content: userMsg.String()},
		},
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get OpenAI completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	allowed := make(map[int]bool, len(recs))
	for _, r := range recs {
		allowed[r.MovieID] = true
	}
	exp, err := validation.ParseExplanation([]byte(raw), allowed)
	if err != nil {
		e.logger.Warn("Invalid OpenAI explanation",
			slog.String("raw_response", raw),
			slog.Any("error", err))
		return nil, err
	}

	e.logger.Info("Generated explanation",
		slog.Int("reference", reference.ID),
		slog.Int("reasons", len(exp.Movies)))
	return exp, nil
}
