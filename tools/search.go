package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/internal/tlsutil"
	"github.com/BaSui01/teamflow/llm"
)

// =============================================================================
// 🔍 网页搜索工具
// =============================================================================

// SearchProvider 搜索后端接口
//
// 实现可以包装 Tavily、SerpAPI、Jina、Google Custom Search 等服务。
type SearchProvider interface {
	// Search 执行搜索并返回结果
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
	// Name 返回提供商名称
	Name() string
}

// SearchOptions 搜索请求配置
type SearchOptions struct {
	MaxResults     int      `json:"max_results"`               // 最大结果数，默认 5
	TimeRange      string   `json:"time_range,omitempty"`      // day/week/month/year
	Domains        []string `json:"domains,omitempty"`         // 仅搜索指定域名
	ExcludeDomains []string `json:"exclude_domains,omitempty"` // 排除指定域名
}

// DefaultSearchOptions 返回默认搜索配置
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		MaxResults: 5,
	}
}

// SearchResult 单条搜索结果
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// SearchToolConfig 搜索工具配置
type SearchToolConfig struct {
	Provider    SearchProvider   // 搜索后端
	DefaultOpts SearchOptions    // 默认搜索配置
	Timeout     time.Duration    // 单次搜索超时
	RateLimit   *RateLimitConfig // 速率限制
}

// DefaultSearchToolConfig 返回默认搜索工具配置
func DefaultSearchToolConfig() SearchToolConfig {
	return SearchToolConfig{
		DefaultOpts: DefaultSearchOptions(),
		Timeout:     15 * time.Second,
		RateLimit: &RateLimitConfig{
			MaxCalls: 30,
			Window:   time.Minute,
		},
	}
}

type searchArgs struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	TimeRange      string   `json:"time_range,omitempty"`
	Domains        []string `json:"domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type searchResponse struct {
	Query      string         `json:"query"`
	Results    []SearchResult `json:"results"`
	TotalCount int            `json:"total_count"`
	Duration   string         `json:"duration"`
}

// NewSearchTool 创建网页搜索工具函数
//
// 注册到 ToolRegistry 后即可被研究团队与模型函数调用使用。
func NewSearchTool(config SearchToolConfig, logger *zap.Logger) (ToolFunc, ToolMetadata) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params searchArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid web_search arguments: %w", err)
		}

		if params.Query == "" {
			return nil, fmt.Errorf("query is required")
		}
		if config.Provider == nil {
			return nil, fmt.Errorf("search provider not configured")
		}

		opts := config.DefaultOpts
		if opts.MaxResults <= 0 {
			opts.MaxResults = 5
		}
		if params.MaxResults > 0 {
			opts.MaxResults = params.MaxResults
		}
		if params.TimeRange != "" {
			opts.TimeRange = params.TimeRange
		}
		if len(params.Domains) > 0 {
			opts.Domains = params.Domains
		}
		if len(params.ExcludeDomains) > 0 {
			opts.ExcludeDomains = params.ExcludeDomains
		}

		start := time.Now()
		logger.Info("executing web search",
			zap.String("query", params.Query),
			zap.Int("max_results", opts.MaxResults),
		)

		results, err := config.Provider.Search(ctx, params.Query, opts)
		if err != nil {
			logger.Error("web search failed", zap.String("query", params.Query), zap.Error(err))
			return nil, fmt.Errorf("web search failed: %w", err)
		}

		response := searchResponse{
			Query:      params.Query,
			Results:    results,
			TotalCount: len(results),
			Duration:   time.Since(start).String(),
		}

		return json.Marshal(response)
	}

	metadata := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "web_search",
			Description: "Search the web for information. Returns a list of relevant results with titles, URLs, and snippets.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {
						"type": "string",
						"description": "The search query"
					},
					"max_results": {
						"type": "integer",
						"description": "Maximum number of results to return (default: 5)",
						"default": 5
					},
					"time_range": {
						"type": "string",
						"enum": ["day", "week", "month", "year"],
						"description": "Filter results by time range"
					},
					"domains": {
						"type": "array",
						"items": {"type": "string"},
						"description": "Restrict search to specific domains"
					},
					"exclude_domains": {
						"type": "array",
						"items": {"type": "string"},
						"description": "Exclude specific domains from results"
					}
				},
				"required": ["query"]
			}`),
		},
		Timeout:     config.Timeout,
		RateLimit:   config.RateLimit,
		Description: "Web search tool backed by a pluggable search provider.",
	}

	return fn, metadata
}

// RegisterSearchTool 创建并注册网页搜索工具
func RegisterSearchTool(registry ToolRegistry, config SearchToolConfig, logger *zap.Logger) error {
	fn, metadata := NewSearchTool(config, logger)
	return registry.Register("web_search", fn, metadata)
}

// =============================================================================
// 🌐 Tavily 搜索提供商
// =============================================================================

// TavilyConfig Tavily 搜索配置
type TavilyConfig struct {
	APIKey  string        `yaml:"api_key" json:"api_key"`
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// TavilyProvider Tavily 搜索后端
type TavilyProvider struct {
	config TavilyConfig
	client *http.Client
	logger *zap.Logger
}

// NewTavilyProvider 创建 Tavily 搜索提供商
func NewTavilyProvider(config TavilyConfig, logger *zap.Logger) *TavilyProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.tavily.com"
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TavilyProvider{
		config: config,
		client: tlsutil.SecureHTTPClient(config.Timeout),
		logger: logger.With(zap.String("provider", "tavily")),
	}
}

// Name 返回提供商名称
func (p *TavilyProvider) Name() string {
	return "tavily"
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	TimeRange      string   `json:"time_range,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

// Search 执行 Tavily 搜索
func (p *TavilyProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:          query,
		MaxResults:     opts.MaxResults,
		TimeRange:      opts.TimeRange,
		IncludeDomains: opts.Domains,
		ExcludeDomains: opts.ExcludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tavily response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, string(data))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse tavily response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}
