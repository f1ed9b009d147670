package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/resilience"
)

// Provider names a model vendor.
type Provider string

const (
	ProviderGroq      Provider = "groq"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "llama-3.3-70b-versatile"

const defaultMaxTokens = 8192

var (
	// ErrNotConfigured means the provider for a model has no credentials.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrNoVision means no configured provider accepts images.
	ErrNoVision = errors.New("no vision-capable API key configured (need ANTHROPIC_API_KEY or GEMINI_API_KEY)")
)

// Message is one prior turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion.
type Request struct {
	SystemPrompt string    `json:"systemPrompt,omitempty"`
	Message      string    `json:"message"`
	Model        string    `json:"model,omitempty"`
	History      []Message `json:"history,omitempty"`
	MaxTokens    int       `json:"maxTokens,omitempty"`
}

// ChatEngine completes prompts.
type ChatEngine interface {
	Chat(ctx context.Context, req Request) (string, error)
}

// Backend is one provider's client.
type Backend interface {
	Chat(ctx context.Context, req Request) (string, error)
}

// ImageDescriber is a Backend that also accepts an image.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, img []byte, mimeType, prompt string) (string, error)
}

// InferProvider maps a model name to its vendor by prefix.
func InferProvider(model string) Provider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(m, "llama"), strings.HasPrefix(m, "mixtral"):
		return ProviderGroq
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o"):
		return ProviderOpenAI
	case strings.HasPrefix(m, "claude"):
		return ProviderAnthropic
	}
	return ProviderGroq
}

// keyName is the environment name operators set for a provider.
func keyName(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	}
	return "GROQ_API_KEY"
}

// Engine routes each request to its provider's backend. Each call is a
// single attempt behind a per-provider circuit breaker.
type Engine struct {
	defaultModel string
	log          *zap.Logger
	metrics      *monitoring.Metrics

	mu       sync.RWMutex
	backends map[Provider]Backend
	breakers map[Provider]*resilience.Breaker
}

// NewEngine creates an engine with no backends.
func NewEngine(defaultModel string, log *zap.Logger, metrics *monitoring.Metrics) *Engine {
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		defaultModel: defaultModel,
		log:          log,
		metrics:      metrics,
		backends:     make(map[Provider]Backend),
		breakers:     make(map[Provider]*resilience.Breaker),
	}
}

// Register installs the backend for p, replacing any previous one.
func (e *Engine) Register(p Provider, b Backend) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.backends[p] = b
	e.breakers[p] = resilience.New("ai-"+string(p), resilience.Settings{
		Timeout: 30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			e.log.Warn("provider breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Configured lists providers with a backend.
func (e *Engine) Configured() []Provider {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Provider, 0, len(e.backends))
	for _, p := range []Provider{ProviderGroq, ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		if _, ok := e.backends[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) backend(p Provider) (Backend, *resilience.Breaker, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.backends[p]
	return b, e.breakers[p], ok
}

// Chat sends req to the provider inferred from its model.
func (e *Engine) Chat(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = e.defaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	p := InferProvider(req.Model)
	b, breaker, ok := e.backend(p)
	if !ok {
		return "", fmt.Errorf("%w: %s not configured", ErrNotConfigured, keyName(p))
	}

	start := time.Now()
	text, err := resilience.Do(ctx, breaker, func(ctx context.Context) (string, error) {
		return b.Chat(ctx, req)
	})
	e.metrics.RecordAIRequest(string(p), err == nil)
	if err != nil {
		e.log.Warn("chat request failed",
			zap.String("provider", string(p)),
			zap.String("model", req.Model),
			zap.Error(err))
		return "", err
	}

	e.log.Debug("chat request",
		zap.String("provider", string(p)),
		zap.String("model", req.Model),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

// DescribeImage asks a vision-capable provider about img, preferring
// Anthropic and falling back to Gemini.
func (e *Engine) DescribeImage(ctx context.Context, img []byte, mimeType, prompt string) (string, error) {
	for _, p := range []Provider{ProviderAnthropic, ProviderGemini} {
		b, breaker, ok := e.backend(p)
		if !ok {
			continue
		}
		d, ok := b.(ImageDescriber)
		if !ok {
			continue
		}
		text, err := resilience.Do(ctx, breaker, func(ctx context.Context) (string, error) {
			return d.DescribeImage(ctx, img, mimeType, prompt)
		})
		e.metrics.RecordAIRequest(string(p), err == nil)
		return text, err
	}
	return "", ErrNoVision
}

// CanDescribeImages reports whether DescribeImage has a provider.
func (e *Engine) CanDescribeImages() bool {
	for _, p := range []Provider{ProviderAnthropic, ProviderGemini} {
		if b, _, ok := e.backend(p); ok {
			if _, ok := b.(ImageDescriber); ok {
				return true
			}
		}
	}
	return false
}
