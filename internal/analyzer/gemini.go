package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

// Gemini defaults.
const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

// GenerationConfig mirrors the model's sampling parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultGenerationConfig keeps classification output stable.
var DefaultGenerationConfig = GenerationConfig{
	Temperature:     0.3,
	TopP:            0.8,
	TopK:            40,
	MaxOutputTokens: 2048,
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	config  GenerationConfig
	client  *http.Client
}

// NewGeminiClient creates a client. Empty model and baseURL select the defaults.
func NewGeminiClient(apiKey, model, baseURL string, client *http.Client) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		config:  DefaultGenerationConfig,
		client:  client,
	}
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Generate sends prompt and returns the concatenated text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: c.config,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", crawler.NewError(crawler.ErrUpstreamUnavailable, "gemini API error", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", crawler.NewError(crawler.ErrUpstreamUnavailable, "gemini API error", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, respBody)
	}

	var out geminiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", crawler.NewError(crawler.ErrValidationFailed, "gemini API error", fmt.Errorf("decode response: %w", err))
	}
	if len(out.Candidates) == 0 {
		return "", crawler.NewError(crawler.ErrValidationFailed, "gemini API error", errors.New("no candidates in response"))
	}

	var text strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", crawler.NewError(crawler.ErrValidationFailed, "gemini API error",
			fmt.Errorf("empty response (finish reason %s)", out.Candidates[0].FinishReason))
	}
	return text.String(), nil
}

// statusError maps a non-200 response to a tagged error. Quota exhaustion is its own kind so
// callers can back off.
func statusError(status int, body []byte) error {
	var apiErr geminiErrorResponse
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}
	message = truncate(message, 300)

	op := fmt.Sprintf("gemini API error (%d)", status)
	if status == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED" {
		return crawler.NewError(crawler.ErrRateLimited, op, fmt.Errorf("%s (rate limit exceeded)", message))
	}
	return crawler.NewError(crawler.ErrUpstreamUnavailable, op, errors.New(message))
}
