// Package models defines the core data structures used across Hermes.
package models

import "time"

// AIProvider identifies one of the supported text-generation providers.
type AIProvider string

const (
	ProviderGemini      AIProvider = "gemini"
	ProviderGroq        AIProvider = "groq"
	ProviderHuggingFace AIProvider = "huggingface"
)

// AllProviders lists every provider in the order they are reported.
var AllProviders = []AIProvider{ProviderGemini, ProviderGroq, ProviderHuggingFace}

// Defaults applied to a GenerationRequest when the client omits them.
const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// GenerationRequest is the inbound body of POST /api/ai/{provider}.
type GenerationRequest struct {
	SystemPrompt string   `json:"systemPrompt"`
	UserPrompt   string   `json:"userPrompt" binding:"required"`
	MaxTokens    int      `json:"maxTokens"`
	Temperature  *float64 `json:"temperature"`
}

// ApplyDefaults fills in maxTokens and temperature when they were omitted.
func (r *GenerationRequest) ApplyDefaults() {
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Temperature == nil {
		t := DefaultTemperature
		r.Temperature = &t
	}
}

// TokenUsage holds approximate token counts derived from text length.
type TokenUsage struct {
	PromptTokens     float64 `json:"promptTokens"`
	CompletionTokens float64 `json:"completionTokens"`
	TotalTokens      float64 `json:"totalTokens"`
}

// GenerationResponse is the normalized envelope returned for every provider.
type GenerationResponse struct {
	Answer    string     `json:"answer"`
	Provider  string     `json:"provider"`
	Model     string     `json:"model"`
	Usage     TokenUsage `json:"usage"`
	Timestamp string     `json:"timestamp"`
}

// ProviderConfig describes whether a provider can serve requests.
type ProviderConfig struct {
	Name          AIProvider `json:"name"`
	APIKeyPresent bool       `json:"apiKeyPresent"`
	Implemented   bool       `json:"implemented"`
}

// UsageSnapshot is a point-in-time copy of the usage counters.
type UsageSnapshot struct {
	TotalRequests int64         `json:"totalRequests"`
	ActiveIPs     int           `json:"activeIPs"`
	Errors        int64         `json:"errors"`
	StartTime     time.Time     `json:"-"`
	Uptime        time.Duration `json:"-"`
}

// GenerationRecord is the ledger row written for each dispatched request.
// Prompt and answer text are never stored.
type GenerationRecord struct {
	ID               string     `json:"id" db:"id"`
	Provider         AIProvider `json:"provider" db:"provider"`
	Model            string     `json:"model" db:"model"`
	ClientIP         string     `json:"client_ip" db:"client_ip"`
	PromptTokens     float64    `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens float64    `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      float64    `json:"total_tokens" db:"total_tokens"`
	LatencyMs        int64      `json:"latency_ms" db:"latency_ms"`
	StatusCode       int        `json:"status_code" db:"status_code"`
	ErrorDetail      string     `json:"error_detail,omitempty" db:"error_detail"`
	Timestamp        time.Time  `json:"timestamp" db:"timestamp"`
}

// ProviderSummary aggregates ledger rows for a single provider.
type ProviderSummary struct {
	Provider      string  `json:"provider"`
	TotalRequests int64   `json:"totalRequests"`
	FailedCount   int64   `json:"failedRequests"`
	TotalTokens   float64 `json:"totalTokens"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
}
