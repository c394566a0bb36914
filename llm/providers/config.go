package providers

import "time"

// 各 Provider 的内置默认接入参数，集中在一处避免散落的字面量
const (
	DeepSeekDefaultBaseURL = "https://api.deepseek.com/v1"
	DeepSeekDefaultModel   = "deepseek-chat"
	CohereDefaultBaseURL   = "https://api.cohere.com"
	CohereDefaultModel     = "command-r"

	// DefaultTimeout 未配置时的出站请求超时
	DefaultTimeout = 30 * time.Second
)

// BaseProviderConfig 全部 Provider 共享的接入字段。
// 各 Provider 的 Config 通过嵌入获得 APIKey、BaseURL、Model、Timeout。
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// WithDefaults 返回回填默认接入参数后的副本
func (c BaseProviderConfig) WithDefaults(baseURL, model string) BaseProviderConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// DeepSeekConfig DeepSeek Provider 配置
type DeepSeekConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// CohereConfig Cohere Provider 配置
type CohereConfig struct {
	BaseProviderConfig `yaml:",inline"`
}
