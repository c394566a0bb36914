package deepseek

import (
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/llm/providers"
	"github.com/BaSui01/teamflow/llm/providers/openaicompat"
)

// DeepSeekProvider 实现 DeepSeek LLM 提供者.
// DeepSeek 使用 OpenAI 兼容的 API 格式.
type DeepSeekProvider struct {
	*openaicompat.Provider
}

// NewDeepSeekProvider 创建新的 DeepSeek 提供者实例.
func NewDeepSeekProvider(cfg providers.DeepSeekConfig, logger *zap.Logger) *DeepSeekProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = providers.DeepSeekDefaultBaseURL
	}

	return &DeepSeekProvider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "deepseek",
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: providers.DeepSeekDefaultModel,
			Timeout:       cfg.Timeout,
			EndpointPath:  "/chat/completions",
			RequestHook:   deepseekRequestHook,
		}, logger),
	}
}

// deepseekRequestHook handles DeepSeek-specific request modifications.
// The reasoner model rejects some sampling parameters, so they are
// stripped when it is selected.
func deepseekRequestHook(req *llm.ChatRequest, body *providers.OpenAICompatRequest) {
	if strings.HasPrefix(body.Model, "deepseek-reasoner") {
		body.Temperature = 0
		body.TopP = 0
	}
}
