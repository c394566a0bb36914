package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/BaSui01/teamflow/internal/tlsutil"
	"github.com/BaSui01/teamflow/llm"
)

// =============================================================================
// 🕸️ 网页抓取工具
// =============================================================================

// ScraperConfig 网页抓取配置
type ScraperConfig struct {
	Timeout          time.Duration    // 抓取超时，默认 30s
	MaxContentLength int              // 正文最大字符数，默认 8192
	UserAgent        string           // 请求 UA
	RateLimit        *RateLimitConfig // 速率限制
}

// DefaultScraperConfig 返回默认抓取配置
func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		Timeout:          30 * time.Second,
		MaxContentLength: 8192,
		UserAgent:        "teamflow-scraper/1.0",
		RateLimit: &RateLimitConfig{
			MaxCalls: 20,
			Window:   time.Minute,
		},
	}
}

type scrapeArgs struct {
	URL string `json:"url"`
}

type scrapeResponse struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Length    int    `json:"length"`
	Truncated bool   `json:"truncated"`
}

// NewScraperTool 创建网页抓取工具函数
//
// 抓取页面后剥离脚本与样式，抽取可见文本，超长时按字符截断。
func NewScraperTool(config ScraperConfig, logger *zap.Logger) (ToolFunc, ToolMetadata) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxContentLength <= 0 {
		config.MaxContentLength = 8192
	}
	if config.UserAgent == "" {
		config.UserAgent = "teamflow-scraper/1.0"
	}

	client := tlsutil.SecureHTTPClient(config.Timeout)

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params scrapeArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid web_scraper arguments: %w", err)
		}

		if params.URL == "" {
			return nil, fmt.Errorf("url is required")
		}

		parsed, err := url.Parse(params.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, fmt.Errorf("unsupported url: %s", params.URL)
		}

		logger.Info("scraping page", zap.String("url", params.URL))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("create scrape request: %w", err)
		}
		req.Header.Set("User-Agent", config.UserAgent)

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("scrape failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("scrape returned status %d", resp.StatusCode)
		}

		doc, err := html.Parse(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}

		title, content := extractText(doc)

		truncated := false
		if runes := []rune(content); len(runes) > config.MaxContentLength {
			content = string(runes[:config.MaxContentLength])
			truncated = true
		}

		logger.Info("scrape completed",
			zap.String("url", params.URL),
			zap.Int("length", len([]rune(content))),
			zap.Bool("truncated", truncated),
		)

		return json.Marshal(scrapeResponse{
			URL:       params.URL,
			Title:     title,
			Content:   content,
			Length:    len([]rune(content)),
			Truncated: truncated,
		})
	}

	metadata := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "web_scraper",
			Description: "Fetch a web page and extract its readable text content.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"url": {
						"type": "string",
						"description": "The URL of the page to fetch (http or https)"
					}
				},
				"required": ["url"]
			}`),
		},
		Timeout:     config.Timeout,
		RateLimit:   config.RateLimit,
		Description: "Web scraper that downloads a page and extracts visible text.",
	}

	return fn, metadata
}

// RegisterScraperTool 创建并注册网页抓取工具
func RegisterScraperTool(registry ToolRegistry, config ScraperConfig, logger *zap.Logger) error {
	fn, metadata := NewScraperTool(config, logger)
	return registry.Register("web_scraper", fn, metadata)
}

// extractText 遍历 HTML 树抽取标题与可见文本
func extractText(doc *html.Node) (title string, content string) {
	var sb strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg":
				return
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteByte(' ')
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	// 折叠多余空白
	content = strings.Join(strings.Fields(sb.String()), " ")
	return title, content
}
