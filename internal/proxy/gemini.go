package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/models"
)

// defaultMaxResponseBodySize caps how much of an upstream reply is read.
const defaultMaxResponseBodySize = 10 << 20 // 10 MB

// GeminiClient calls the Google Generative Language generateContent API.
type GeminiClient struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// NewGeminiClient creates a client for model at baseURL.
func NewGeminiClient(client *http.Client, baseURL, model, apiKey string) *GeminiClient {
	return &GeminiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  client,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Invoke sends prompt as a single user turn and returns the generated text.
func (g *GeminiClient) Invoke(ctx context.Context, prompt string, req models.GenerationRequest) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     models.DefaultTemperature,
		},
	}
	if req.Temperature != nil {
		payload.GenerationConfig.Temperature = *req.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", &UpstreamError{Message: fmt.Sprintf("upstream request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxResponseBodySize+1))
	if err != nil {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: "failed to read upstream response"}
	}
	if int64(len(respBody)) > defaultMaxResponseBodySize {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: "upstream response too large"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: upstreamMessage(respBody, resp.Status)}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: "invalid upstream response: " + err.Error()}
	}
	if len(parsed.Candidates) == 0 {
		msg := "upstream returned no candidates"
		if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
			msg = "prompt blocked: " + parsed.PromptFeedback.BlockReason
		}
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// upstreamMessage extracts the provider's error message, falling back to the
// HTTP status line.
func upstreamMessage(body []byte, status string) string {
	var parsed geminiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return status
}
