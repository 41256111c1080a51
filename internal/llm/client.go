// Package llm talks to the local model runtime over its OpenAI-compatible
// completion API. Sessions are rendered to a single prompt string before
// they reach this package; the runtime applies no chat template of its own.
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openaiapi "github.com/sashabaranov/go-openai"
)

// Params are the sampling parameters accepted from clients. Zero values
// select the defaults.
type Params struct {
	Temperature float32
	MaxTokens   int
	TopP        float32
	Stop        []string
}

// DefaultParams mirrors the defaults the model runtime was tuned with.
// MaxTokens of 200 keeps answers near the 150-word style guide.
func DefaultParams() Params {
	return Params{
		Temperature: 0.7,
		MaxTokens:   200,
		TopP:        0.9,
	}
}

// Usage is the token accounting reported by the runtime.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client is a completion client bound to one model.
type Client struct {
	api   *openaiapi.Client
	model string
}

// NewClient builds a Client against an OpenAI-compatible base URL such
// as a local llama.cpp server. The auth token is unused by local
// runtimes but required by the client constructor.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	cfg := openaiapi.DefaultConfig("local")
	cfg.BaseURL = baseURL
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		api:   openaiapi.NewClientWithConfig(cfg),
		model: model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends the rendered prompt to the runtime and returns the
// generated text with its token usage.
func (c *Client) Complete(ctx context.Context, prompt string, p Params) (string, Usage, error) {
	defaults := DefaultParams()
	if p.Temperature == 0 {
		p.Temperature = defaults.Temperature
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = defaults.MaxTokens
	}
	if p.TopP == 0 {
		p.TopP = defaults.TopP
	}

	resp, err := c.api.CreateCompletion(ctx, openaiapi.CompletionRequest{
		Model:       c.model,
		Prompt:      prompt,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		TopP:        p.TopP,
		Stop:        p.Stop,
	})
	if err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, errors.New("model runtime returned no choices")
	}

	var usage Usage
	if resp.Usage != nil {
		usage = Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return resp.Choices[0].Text, usage, nil
}
