package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"
)

var (
	// ErrNoMatch is returned when the model answered with no known category.
	ErrNoMatch = errors.New("response matches no category")
	// ErrEmptyResponse is returned when neither endpoint produced text.
	ErrEmptyResponse = errors.New("empty response from LLM")
)

// maxBodyChars bounds the body included in the prompt.
const maxBodyChars = 10000

// Email is the part of a message the model sees.
type Email struct {
	Subject     string
	Sender      string
	Date        string
	Body        string
	Attachments []string
}

// Options configures the client.
type Options struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// Prompt is a text/template rendered with PromptData. Empty uses
	// DefaultPrompt.
	Prompt     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to an OpenAI-compatible API such as llama.cpp or ollama.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
	prompt      *template.Template
	log         *slog.Logger
}

func New(opts Options) (*Client, error) {
	text := opts.Prompt
	if text == "" {
		text = DefaultPrompt
	}

	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		endpoint:    strings.TrimRight(opts.Endpoint, "/") + "/",
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		http:        httpClient,
		prompt:      tmpl,
		log:         log,
	}, nil
}

// Classify asks the model for one of categories. It returns ErrNoMatch when
// the answer names none of them.
func (c *Client) Classify(ctx context.Context, email Email, categories []string) (string, error) {
	prompt, err := c.render(email, categories)
	if err != nil {
		return "", err
	}

	answer, err := c.Complete(ctx, []ChatMessage{
		{Role: "system", Content: "You are an email classification assistant."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}

	category, ok := Match(answer, categories)
	if !ok {
		c.log.Warn("LLM response doesn't match any category", "response", answer)
		return "", fmt.Errorf("%w: %q", ErrNoMatch, answer)
	}

	return category, nil
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Complete(ctx, []ChatMessage{{Role: "user", Content: "Hello, this is a test."}})
	return err
}

// Complete sends messages to the chat endpoint and falls back to the plain
// completion endpoint with the concatenated content.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	text, chatErr := c.chat(ctx, messages)
	if chatErr == nil && text != "" {
		return text, nil
	}

	c.log.Warn("Chat completion failed, falling back to regular completion", "error", chatErr)

	var prompt strings.Builder
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		prompt.WriteString(m.Content)
	}

	text, err := c.completion(ctx, prompt.String())
	if err != nil {
		return "", fmt.Errorf("chat: %v; completion: %w", chatErr, err)
	}
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}

func (c *Client) chat(ctx context.Context, messages []ChatMessage) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var resp completionResponse
	if err := c.post(ctx, "chat/completions", req, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("unexpected response format: no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) completion(ctx context.Context, prompt string) (string, error) {
	req := completionRequest{
		Model:       c.model,
		Prompt:      prompt,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var resp completionResponse
	if err := c.post(ctx, "completions", req, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("unexpected response format: no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Text), nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %s: %s", path, resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	return nil
}

// Match returns the first category whose name occurs in text, ignoring case.
func Match(text string, categories []string) (string, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}

	for _, category := range categories {
		if strings.Contains(text, strings.ToLower(category)) {
			return category, true
		}
	}

	return "", false
}
