// Package factory provides a centralized factory for creating LLM Provider
// instances by name. It imports all provider sub-packages and maps string
// names to their constructors, breaking the import cycle that would occur
// if this logic lived in the llm package directly.
package factory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/llm/providers"
	"github.com/BaSui01/teamflow/llm/providers/cohere"
	"github.com/BaSui01/teamflow/llm/providers/deepseek"
	"github.com/BaSui01/teamflow/types"
)

// ProviderConfig is the generic configuration accepted by the factory function.
type ProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// NewProvider creates a Provider instance based on the provider name.
//
// Supported names: deepseek, cohere.
func NewProvider(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := providers.BaseProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	switch name {
	case "deepseek":
		return deepseek.NewDeepSeekProvider(providers.DeepSeekConfig{BaseProviderConfig: base}, logger), nil

	case "cohere":
		return cohere.NewCohereProvider(providers.CohereConfig{BaseProviderConfig: base}, logger), nil

	default:
		return nil, &llm.Error{
			Code:     llm.ErrProviderUnavailable,
			Message:  fmt.Sprintf("unknown provider: %s (supported: %v)", name, Supported()),
			Provider: name,
		}
	}
}

// Supported returns the list of provider names the factory can build.
func Supported() []string {
	return []string{"cohere", "deepseek"}
}

// TestConnection 发送一条最小的探测请求验证密钥与连通性。
func TestConnection(ctx context.Context, p llm.Provider) error {
	req := &llm.ChatRequest{
		Messages:  []types.Message{types.NewUserMessage("Hello")},
		MaxTokens: 1,
	}
	if _, err := p.Completion(ctx, req); err != nil {
		return fmt.Errorf("provider %s connection test failed: %w", p.Name(), err)
	}
	return nil
}
