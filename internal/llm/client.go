// Package llm drafts briefs and artifacts through an OpenAI-compatible chat API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"helios/api/internal/brief"
	"helios/api/internal/logging"
)

const DefaultModel = "gpt-4.1-mini"

// ErrEmptyResponse is returned when the completion carries no message text.
var ErrEmptyResponse = errors.New("generator returned no content")

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Catalog    *Catalog
	Logger     *slog.Logger
}

type Client struct {
	api     openai.Client
	model   string
	prompts *Catalog
	logger  *slog.Logger
}

func New(opts Options) (*Client, error) {
	catalog := opts.Catalog
	if catalog == nil {
		var err error
		catalog, err = DefaultCatalog()
		if err != nil {
			return nil, err
		}
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Component("llm")
	}

	requestOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		requestOpts = append(requestOpts, option.WithBaseURL(base))
	}
	if opts.Timeout > 0 {
		requestOpts = append(requestOpts, option.WithRequestTimeout(opts.Timeout))
	}

	return &Client{
		api:     openai.NewClient(requestOpts...),
		model:   model,
		prompts: catalog,
		logger:  logger,
	}, nil
}

func (c *Client) Model() string { return c.model }

// DraftBrief asks the model for a brief and validates the reply.
func (c *Client) DraftBrief(ctx context.Context, intake brief.Intake) (brief.Content, error) {
	prompt, err := c.prompts.BriefPrompt(intake)
	if err != nil {
		return brief.Content{}, err
	}
	text, err := c.complete(ctx, "brief", prompt)
	if err != nil {
		return brief.Content{}, err
	}
	content, err := brief.ParseContent([]byte(text))
	if err != nil {
		return brief.Content{}, fmt.Errorf("draft brief: %w", err)
	}
	return content, nil
}

// DraftArtifact asks the model for one generated artifact derived from the brief.
func (c *Client) DraftArtifact(ctx context.Context, kind brief.ArtifactType, content brief.Content) (brief.Payload, error) {
	prompt, err := c.prompts.ArtifactPrompt(kind, content)
	if err != nil {
		return nil, err
	}
	text, err := c.complete(ctx, string(kind), prompt)
	if err != nil {
		return nil, err
	}
	payload, err := brief.ParsePayload(kind, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("draft %s artifact: %w", kind, err)
	}
	return payload, nil
}

func (c *Client) complete(ctx context.Context, purpose string, prompt Prompt) (string, error) {
	started := time.Now()
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if prompt.Temperature > 0 {
		params.Temperature = openai.Float(prompt.Temperature)
	}
	if prompt.MaxTokens > 0 {
		params.MaxTokens = openai.Int(prompt.MaxTokens)
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Warn("completion failed", "purpose", purpose, "model", c.model, "error", err)
		return "", fmt.Errorf("%s completion: %w", purpose, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s completion: %w", purpose, ErrEmptyResponse)
	}
	text := stripCodeFence(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%s completion: %w", purpose, ErrEmptyResponse)
	}
	c.logger.Info("completion received",
		"purpose", purpose,
		"model", completion.Model,
		"total_tokens", completion.Usage.TotalTokens,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return text, nil
}

// stripCodeFence unwraps a ```json fenced reply; JSON mode does not always stop models adding one.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
