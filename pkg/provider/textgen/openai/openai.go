// Package openai provides a text-generation provider backed by the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/fablecast/fablecast/pkg/provider/textgen"
)

// Provider implements textgen.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI text-generation Provider.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Model implements textgen.Provider.
func (p *Provider) Model() string {
	return p.model
}

// Complete implements textgen.Provider. Backend failures are returned as
// [*textgen.APIError] classified by HTTP status.
func (p *Provider) Complete(ctx context.Context, req textgen.Request) (*textgen.Response, error) {
	if req.Prompt == "" {
		return nil, &textgen.APIError{
			Kind:    textgen.KindPermanent,
			Message: "prompt must not be empty",
		}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]oai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, oai.UserMessage(req.Prompt))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = oai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = oai.Float(req.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &textgen.APIError{
			Kind:    textgen.KindTransient,
			Message: "empty choices in response",
		}
	}

	return &textgen.Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: textgen.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// wrapError converts an openai-go SDK error into a classified
// [*textgen.APIError].
func wrapError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &textgen.APIError{
			Kind:       textgen.KindForStatus(apiErr.StatusCode),
			StatusCode: apiErr.StatusCode,
			Message:    fmt.Sprintf("chat completion: %v", apiErr),
			Err:        err,
		}
	}
	return &textgen.APIError{
		Kind:    textgen.Classify(err),
		Message: fmt.Sprintf("chat completion: %v", err),
		Err:     err,
	}
}
