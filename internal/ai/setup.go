package ai

import (
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
)

// FromConfig builds an engine with a backend for every provider that has a
// key.
func FromConfig(cfg config.AIConfig, log *zap.Logger, metrics *monitoring.Metrics) *Engine {
	e := NewEngine(cfg.DefaultModel, log, metrics)
	timeout := time.Duration(cfg.TimeoutSec) * time.Second

	if cfg.GroqKey != "" {
		e.Register(ProviderGroq, NewGroq(cfg.GroqKey, "", timeout))
	}
	if cfg.OpenAIKey != "" {
		e.Register(ProviderOpenAI, NewOpenAI(cfg.OpenAIKey, "", timeout))
	}
	if cfg.AnthropicKey != "" {
		e.Register(ProviderAnthropic, NewAnthropic(cfg.AnthropicKey, "", cfg.VisionModel, timeout))
	}
	if cfg.GeminiKey != "" {
		e.Register(ProviderGemini, NewGemini(cfg.GeminiKey, "", timeout))
	}

	e.log.Info("ai engine configured", zap.Any("providers", e.Configured()))
	return e
}
