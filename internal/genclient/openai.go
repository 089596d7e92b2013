package genclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// repairInstruction is the fixed re-prompt issued when structured output
// fails validation. The previous invalid output is embedded so the model can
// correct it rather than regenerate from scratch.
const repairInstruction = "The previous response was not valid JSON. " +
	"Fix it and return ONLY valid JSON matching the required schema. " +
	"Do NOT wrap it in markdown code fences. " +
	"Previous invalid output:\n%s"

// ocrInstruction is the vision transcription contract. The "[illegible]"
// convention feeds the downstream confidence estimate.
const ocrInstruction = "You are a precise OCR engine. Extract ALL text from this handwritten " +
	"or printed document image. Preserve the original layout, line breaks, " +
	"and paragraph structure as closely as possible. Output ONLY the " +
	"extracted text, with no commentary and no markdown formatting. " +
	"If you cannot read a word, write [illegible]. " +
	"Preserve the writer's original spelling, grammar, and punctuation exactly as written."

const (
	transportMaxAttempts = 3
	defaultRetryBase     = 2 * time.Second
)

// Config holds the generation-service connection settings.
type Config struct {
	APIKey      string
	BaseURL     string // e.g. https://api.openai.com/v1
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// RetryBaseDelay is the first transport retry delay; subsequent delays
	// double. Defaults to 2s when zero.
	RetryBaseDelay time.Duration
}

// OpenAIClient talks to an OpenAI-style chat completions endpoint over plain
// net/http. It implements Client.
type OpenAIClient struct {
	cfg        Config
	httpClient *http.Client
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient constructs a client from config, applying defaults for
// unset fields.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = defaultRetryBase
	}
	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// chatRequest mirrors the chat completions request body. Content is any to
// allow both plain strings and vision content parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete performs one chat completion with JSON response formatting.
// Transient transport failures are retried with exponential backoff before
// an error is returned.
func (c *OpenAIClient) Complete(ctx context.Context, instruction, input string, opts Options) (*Response, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: input},
		},
		Temperature:    c.temperature(opts),
		MaxTokens:      c.maxTokens(opts),
		ResponseFormat: map[string]any{"type": "json_object"},
	}
	return c.chat(ctx, req)
}

// RecognizeText sends a page image to the vision model at temperature zero
// and returns the transcription.
func (c *OpenAIClient) RecognizeText(ctx context.Context, imagePath string) (*Response, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, &GenerationError{Cause: fmt.Errorf("read image %s: %w", imagePath, err)}
	}

	mimeType := "image/png"
	switch strings.ToLower(filepath.Ext(imagePath)) {
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".pdf":
		mimeType = "application/pdf"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(raw))

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: ocrInstruction},
			{Role: "user", Content: []map[string]any{
				{
					"type":      "image_url",
					"image_url": map[string]any{"url": dataURL, "detail": "high"},
				},
				{
					"type": "text",
					"text": "Extract all handwritten and printed text from this image.",
				},
			}},
		},
		Temperature: 0,
		MaxTokens:   c.cfg.MaxTokens,
	}
	return c.chat(ctx, req)
}

// CompleteTyped performs a schema-constrained completion with a bounded
// repair loop. Usage and latency accumulate across the initial call and
// every repair attempt.
func (c *OpenAIClient) CompleteTyped(
	ctx context.Context,
	instruction, input string,
	schema *Schema,
	maxRepairAttempts int,
	out any,
) (*Response, error) {
	resp, err := c.Complete(ctx, instruction, input, Options{})
	if err != nil {
		return nil, err
	}

	content := ExtractJSONBlock(resp.Content)
	if tryDecode(schema, content, out) == nil {
		return resp, nil
	}

	total := *resp
	zero := 0.0
	var decodeErr error
	for attempt := 0; attempt < maxRepairAttempts; attempt++ {
		repair, err := c.Complete(ctx, instruction, fmt.Sprintf(repairInstruction, content), Options{Temperature: &zero})
		if err != nil {
			return nil, err
		}
		total.Usage.Add(repair.Usage)
		total.LatencyMs += repair.LatencyMs
		total.Model = repair.Model

		content = ExtractJSONBlock(repair.Content)
		if decodeErr = tryDecode(schema, content, out); decodeErr == nil {
			total.Content = repair.Content
			return &total, nil
		}
	}

	return nil, &GenerationError{
		Cause: fmt.Errorf("output still invalid after %d repair attempts: %w", maxRepairAttempts, decodeErr),
	}
}

// tryDecode validates content against schema and unmarshals it into out.
func tryDecode(schema *Schema, content string, out any) error {
	if err := schema.Validate([]byte(content)); err != nil {
		return err
	}
	return json.Unmarshal([]byte(content), out)
}

// chat executes the request with transport-level retries. Timeouts, 429s,
// and 5xx responses are retried; other API rejections are not.
func (c *OpenAIClient) chat(ctx context.Context, req chatRequest) (*Response, error) {
	var lastErr error
	delay := c.cfg.RetryBaseDelay

	for attempt := 0; attempt < transportMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &TransportError{Cause: ctx.Err()}
			}
			delay *= 2
		}

		resp, err := c.doRequest(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (c *OpenAIClient) doRequest(ctx context.Context, req chatRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &GenerationError{Cause: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Cause: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection failures and client timeouts are worth retrying.
		return nil, &TransportError{Cause: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Cause: fmt.Errorf("read response: %w", err)}
	}

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		return nil, &TransportError{
			StatusCode: httpResp.StatusCode,
			Cause:      errors.New(strings.TrimSpace(string(raw))),
		}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &GenerationError{
			Cause: fmt.Errorf("status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &GenerationError{Cause: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &GenerationError{Cause: errors.New("response contains no choices")}
	}

	return &Response{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: domain.TokenUsage{
			Prompt:     parsed.Usage.PromptTokens,
			Completion: parsed.Usage.CompletionTokens,
			Total:      parsed.Usage.TotalTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func (c *OpenAIClient) temperature(opts Options) float64 {
	if opts.Temperature != nil {
		return *opts.Temperature
	}
	return c.cfg.Temperature
}

func (c *OpenAIClient) maxTokens(opts Options) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.cfg.MaxTokens
}
