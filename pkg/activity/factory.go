package activity

import (
	"fmt"

	"designflow/pkg/config"
)

// NewGatewayFromConfig builds the production gateway stack: live clients
// selected by config, wrapped in bounded retries.
func NewGatewayFromConfig(cfg *config.Config, store ImageStore) (Gateway, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	var text TextClient
	switch cfg.Models.TextProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		text = NewClaudeClient(cfg.AnthropicAPIKey, cfg.Models.TextModel)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		text = NewGPTClient(cfg.OpenAIAPIKey, cfg.Models.TextModel)
	default:
		return nil, fmt.Errorf("unknown text provider %q", cfg.Models.TextProvider)
	}

	live := NewLiveGateway(cfg.GeminiAPIKey, cfg.Models.ImageModel, text, store)
	return NewRetryingGateway(live, cfg.Retry), nil
}
