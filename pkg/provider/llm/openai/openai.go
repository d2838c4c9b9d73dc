// Package openai provides an intent classifier backed by the OpenAI chat
// completions API. Requests pin temperature to 0 and cap completion length at
// a handful of tokens; the model is only ever asked to emit one word.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/vaanilabs/vaani/pkg/provider/llm"
)

// maxCompletionTokens bounds the reply; the labels are single words.
const maxCompletionTokens = 4

// Compile-time assertion that Classifier implements llm.Classifier.
var _ llm.Classifier = (*Classifier)(nil)

// config holds optional configuration for the classifier.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Classifier.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Also used to point
// at OpenAI-compatible gateways.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout. Defaults to 5 s; the call
// sits on the critical path of a live phone conversation.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Classifier implements llm.Classifier using the OpenAI API.
type Classifier struct {
	client oai.Client
	model  string
}

// New constructs a Classifier. apiKey and model must be non-empty.
func New(apiKey, model string, opts ...Option) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{timeout: 5 * time.Second}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Classifier{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Name identifies the provider in logs and metrics.
func (c *Classifier) Name() string { return "openai" }

// Classify implements llm.Classifier.
func (c *Classifier) Classify(ctx context.Context, systemPrompt, transcript string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(transcript),
		},
		Temperature:         param.NewOpt(0.0),
		MaxCompletionTokens: param.NewOpt(int64(maxCompletionTokens)),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: classify: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai: classify: empty choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
