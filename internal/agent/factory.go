package agent

import (
	"fmt"
	"log"

	"github.com/zulandar/dealscout/internal/config"
	"github.com/zulandar/dealscout/internal/negotiation"
)

// FromConfig builds the buyer and seller decision sources selected by cfg.
func FromConfig(cfg config.ProviderConfig, logger *log.Logger) (buyer, seller negotiation.DecisionSource, err error) {
	switch cfg.Kind {
	case config.ProviderRules, "":
		return NewRules(negotiation.Buyer), NewRules(negotiation.Seller), nil
	case config.ProviderOpenRouter:
		key := cfg.APIKey()
		if key == "" {
			return nil, nil, fmt.Errorf("agent: %s is not set", cfg.APIKeyEnv)
		}
		c := NewOpenRouter(key, cfg.Model,
			WithOpenRouterEndpoint(cfg.Endpoint),
			WithSampling(cfg.Temperature, cfg.MaxTokens),
		)
		return New(negotiation.Buyer, c, WithLogger(logger)), New(negotiation.Seller, c, WithLogger(logger)), nil
	case config.ProviderClaude:
		c := NewClaudeCLI(cfg.ClaudeBinary, "")
		return New(negotiation.Buyer, c, WithLogger(logger)), New(negotiation.Seller, c, WithLogger(logger)), nil
	}
	return nil, nil, fmt.Errorf("agent: unknown provider kind %q", cfg.Kind)
}
