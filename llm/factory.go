package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgeproj/forge/types"
)

// NewProvider returns an llm.Provider instance based on the provided LLM
// configuration.
func NewProvider(ctx context.Context, config *types.LLMConfig) (Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("LLM configuration cannot be nil")
	}

	provider := strings.ToLower(strings.TrimSpace(config.Provider))

	switch provider {
	case "google":
		if config.APIKey == "" {
			return nil, fmt.Errorf("google provider selected but API key is missing")
		}
		timeout := 60 * time.Second
		if config.RequestTimeoutSeconds > 0 {
			timeout = time.Duration(config.RequestTimeoutSeconds) * time.Second
		}
		return NewGoogleProvider(ctx, config.APIKey, timeout, config.Debug)
	case "":
		return nil, fmt.Errorf("no LLM provider specified in configuration")
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
