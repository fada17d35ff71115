// Package llm wraps the OpenAI chat-completions API behind the single call
// the summarizer needs.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"telebrief/internal/config"
	logx "telebrief/pkg/logx"
)

const defaultRequestTimeout = 60 * time.Second

// Client implements digest.Completer over the OpenAI chat-completions API,
// including OpenAI-compatible endpoints via a custom base URL.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	log     logx.Logger
}

func New(cfg config.OpenAIConfig, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is empty")
	}
	timeout, err := config.ParseDurationOrDefault("openai.request_timeout", cfg.RequestTimeout, defaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		timeout: timeout,
		log:     log,
	}, nil
}

// Complete runs one chat completion: system directive plus user prompt, no
// streaming, no tools.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(cctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	c.log.Debug("completion finished",
		logx.String("model", c.model),
		logx.Int("prompt_tokens", resp.Usage.PromptTokens),
		logx.Int("completion_tokens", resp.Usage.CompletionTokens),
		logx.Duration("took", time.Since(start)))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
