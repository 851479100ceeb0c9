// Package proxy dispatches text-generation requests to AI providers.
//
// Each provider is a fixed registry entry with a credential and an Invoker.
// The dispatcher composes the prompt, calls the invoker once (no retries),
// and normalizes the reply into a models.GenerationResponse with token usage
// estimated from text length. API keys are held in memory only.
package proxy

import (
	"context"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/config"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/usage"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/models"
)

// Invoker performs the upstream call for one provider.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, req models.GenerationRequest) (string, error)
}

// unimplemented is the Invoker for providers that have a credential slot but
// no integration yet.
type unimplemented struct{}

func (unimplemented) Invoke(context.Context, string, models.GenerationRequest) (string, error) {
	return "", ErrProviderNotImplemented
}

type providerEntry struct {
	label   string
	model   string
	apiKey  string
	invoker Invoker
}

func (e providerEntry) implemented() bool {
	_, stub := e.invoker.(unimplemented)
	return !stub
}

// Dispatcher routes generation requests to the configured providers.
type Dispatcher struct {
	providers map[models.AIProvider]providerEntry
	counter   *usage.Counter
	now       func() time.Time
}

// NewDispatcher builds the provider registry from cfg. Failures are counted
// on counter.
func NewDispatcher(cfg *config.Config, counter *usage.Counter, client *http.Client) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{
		providers: map[models.AIProvider]providerEntry{
			models.ProviderGemini: {
				label:   "Google Gemini",
				model:   cfg.GeminiModel,
				apiKey:  cfg.GeminiKey,
				invoker: NewGeminiClient(client, cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiKey),
			},
			models.ProviderGroq: {
				label:   "Groq",
				apiKey:  cfg.GroqKey,
				invoker: unimplemented{},
			},
			models.ProviderHuggingFace: {
				label:   "Hugging Face",
				apiKey:  cfg.HuggingFaceKey,
				invoker: unimplemented{},
			},
		},
		counter: counter,
		now:     time.Now,
	}
}

// Providers reports the configuration state of every provider.
func (d *Dispatcher) Providers() []models.ProviderConfig {
	out := make([]models.ProviderConfig, 0, len(models.AllProviders))
	for _, p := range models.AllProviders {
		e := d.providers[p]
		out = append(out, models.ProviderConfig{
			Name:          p,
			APIKeyPresent: e.apiKey != "",
			Implemented:   e.implemented(),
		})
	}
	return out
}

// Dispatch sends req to provider and returns the normalized response. Every
// failure is counted once before it is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, provider models.AIProvider, req models.GenerationRequest) (*models.GenerationResponse, error) {
	resp, err := d.dispatch(ctx, provider, req)
	if err != nil {
		d.counter.RecordError()
		return nil, err
	}
	return resp, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, provider models.AIProvider, req models.GenerationRequest) (*models.GenerationResponse, error) {
	entry, ok := d.providers[provider]
	if !ok || entry.apiKey == "" {
		return nil, notConfigured(provider)
	}
	if !entry.implemented() {
		return nil, notImplemented(provider, entry.label)
	}

	req.ApplyDefaults()
	prompt := ComposePrompt(req.SystemPrompt, req.UserPrompt)

	answer, err := entry.invoker.Invoke(ctx, prompt, req)
	if err != nil {
		return nil, upstreamFailure(provider, err)
	}

	return &models.GenerationResponse{
		Answer:    answer,
		Provider:  entry.label,
		Model:     entry.model,
		Usage:     EstimateUsage(prompt, answer),
		Timestamp: d.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}, nil
}

// ComposePrompt joins the system prompt and the user turn into one prompt.
func ComposePrompt(systemPrompt, userPrompt string) string {
	return systemPrompt + "\n\nUser: " + userPrompt
}

// EstimateUsage approximates token counts as one token per four characters.
// Counts are not rounded, so they may be fractional. Provider billing may
// differ.
func EstimateUsage(prompt, completion string) models.TokenUsage {
	p := float64(utf8.RuneCountInString(prompt))
	c := float64(utf8.RuneCountInString(completion))
	return models.TokenUsage{
		PromptTokens:     p / 4,
		CompletionTokens: c / 4,
		TotalTokens:      (p + c) / 4,
	}
}
