package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/teamflow/internal/tlsutil"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/tools"
)

// =============================================================================
// 📜 OpenAPI 规范模型
// =============================================================================

// Spec 解析后的 OpenAPI 规范
type Spec struct {
	OpenAPI string              `json:"openapi"`
	Info    Info                `json:"info"`
	Servers []Server            `json:"servers,omitempty"`
	Paths   map[string]PathItem `json:"paths"`
}

// Info API 元信息
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server API 服务器
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem 单个路径上的操作集合
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
}

// Operation 单个 API 操作
type Operation struct {
	OperationID string       `json:"operationId,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Description string       `json:"description,omitempty"`
	Parameters  []Parameter  `json:"parameters,omitempty"`
	RequestBody *RequestBody `json:"requestBody,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
}

// Parameter 操作参数
type Parameter struct {
	Name        string      `json:"name"`
	In          string      `json:"in"` // query, path, header
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Schema      *JSONSchema `json:"schema,omitempty"`
}

// RequestBody 请求体
type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required,omitempty"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType 媒体类型
type MediaType struct {
	Schema *JSONSchema `json:"schema,omitempty"`
}

// JSONSchema JSON Schema 片段
type JSONSchema struct {
	Type        string                `json:"type,omitempty"`
	Description string                `json:"description,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty"`
	Required    []string              `json:"required,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty"`
	Enum        []any                 `json:"enum,omitempty"`
	Default     any                   `json:"default,omitempty"`
}

// GeneratedTool 由 OpenAPI 操作生成的工具描述
type GeneratedTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      llm.ToolSchema `json:"schema"`
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	BaseURL     string         `json:"base_url"`
	Parameters  []Parameter    `json:"parameters"`
	RequestBody *RequestBody   `json:"request_body,omitempty"`
}

// =============================================================================
// ⚙️ 生成器
// =============================================================================

// Generator 从 OpenAPI 规范生成可注册的工具
type Generator struct {
	httpClient *http.Client
	logger     *zap.Logger
	cache      map[string]*Spec
	mu         sync.RWMutex
}

// GeneratorConfig 生成器配置
type GeneratorConfig struct {
	Timeout time.Duration
}

// NewGenerator 创建 OpenAPI 工具生成器
func NewGenerator(config GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Generator{
		httpClient: tlsutil.SecureHTTPClient(timeout),
		logger:     logger.With(zap.String("component", "openapi_generator")),
		cache:      make(map[string]*Spec),
	}
}

// LoadSpec 从 URL 或本地文件加载 OpenAPI 规范，支持 JSON 与 YAML
func (g *Generator) LoadSpec(ctx context.Context, source string) (*Spec, error) {
	g.mu.RLock()
	if spec, ok := g.cache[source]; ok {
		g.mu.RUnlock()
		return spec, nil
	}
	g.mu.RUnlock()

	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = g.fetchFromURL(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load spec: %w", err)
	}

	spec, err := parseSpec(data)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.cache[source] = spec
	g.mu.Unlock()

	g.logger.Info("loaded OpenAPI spec",
		zap.String("title", spec.Info.Title),
		zap.String("version", spec.Info.Version),
		zap.Int("paths", len(spec.Paths)),
	)

	return spec, nil
}

// parseSpec 解析规范内容，JSON 失败后回退到 YAML
func parseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := json.Unmarshal(data, &spec); err == nil {
		return &spec, nil
	}

	// YAML 先转成通用结构再走 JSON 路径，复用同一套结构标签
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse spec: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert yaml spec: %w", err)
	}
	if err := json.Unmarshal(jsonData, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec: %w", err)
	}
	return &spec, nil
}

func (g *Generator) fetchFromURL(ctx context.Context, specURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, specURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// GenerateOptions 工具生成选项
type GenerateOptions struct {
	BaseURL     string   // 覆盖规范中的服务器地址
	IncludeTags []string // 仅生成带这些标签的操作
	ExcludeTags []string // 排除带这些标签的操作
}

// GenerateTools 将规范中的操作转换为工具描述
func (g *Generator) GenerateTools(spec *Spec, opts GenerateOptions) ([]*GeneratedTool, error) {
	var generated []*GeneratedTool

	baseURL := ""
	if len(spec.Servers) > 0 {
		baseURL = spec.Servers[0].URL
	}
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	for path, pathItem := range spec.Paths {
		operations := map[string]*Operation{
			http.MethodGet:    pathItem.Get,
			http.MethodPost:   pathItem.Post,
			http.MethodPut:    pathItem.Put,
			http.MethodDelete: pathItem.Delete,
			http.MethodPatch:  pathItem.Patch,
		}

		for method, op := range operations {
			if op == nil {
				continue
			}
			if len(opts.IncludeTags) > 0 && !hasAnyTag(op.Tags, opts.IncludeTags) {
				continue
			}
			if len(opts.ExcludeTags) > 0 && hasAnyTag(op.Tags, opts.ExcludeTags) {
				continue
			}

			generated = append(generated, g.operationToTool(path, method, op, baseURL))
		}
	}

	g.logger.Info("generated tools", zap.Int("count", len(generated)))
	return generated, nil
}

func (g *Generator) operationToTool(path, method string, op *Operation, baseURL string) *GeneratedTool {
	name := op.OperationID
	if name == "" {
		name = fmt.Sprintf("%s_%s", strings.ToLower(method), sanitizePath(path))
	}

	description := op.Summary
	if description == "" {
		description = op.Description
	}
	if description == "" {
		description = fmt.Sprintf("%s %s", method, path)
	}

	properties := make(map[string]JSONSchema)
	var required []string

	for _, param := range op.Parameters {
		prop := JSONSchema{Description: param.Description}
		if param.Schema != nil {
			prop.Type = param.Schema.Type
			prop.Enum = param.Schema.Enum
		}
		properties[param.Name] = prop
		if param.Required {
			required = append(required, param.Name)
		}
	}

	if op.RequestBody != nil {
		if content, ok := op.RequestBody.Content["application/json"]; ok && content.Schema != nil {
			properties["body"] = *content.Schema
			if op.RequestBody.Required {
				required = append(required, "body")
			}
		}
	}

	paramsJSON, _ := json.Marshal(JSONSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	})

	return &GeneratedTool{
		Name:        name,
		Description: description,
		Schema: llm.ToolSchema{
			Name:        name,
			Description: description,
			Parameters:  paramsJSON,
		},
		Method:      method,
		Path:        path,
		BaseURL:     baseURL,
		Parameters:  op.Parameters,
		RequestBody: op.RequestBody,
	}
}

// =============================================================================
// 🚀 调用与注册
// =============================================================================

// InvokerConfig 远程调用配置
type InvokerConfig struct {
	Timeout time.Duration     // 单次调用超时，默认 30s
	Headers map[string]string // 附加请求头（鉴权等）
}

// BuildToolFunc 为生成的工具构造可执行的 ToolFunc
//
// 路径参数按 {name} 占位符替换，query 参数拼到 URL，body 参数
// 作为 JSON 请求体发送。
func (g *Generator) BuildToolFunc(tool *GeneratedTool, config InvokerConfig) tools.ToolFunc {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := tlsutil.SecureHTTPClient(timeout)

	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params map[string]any
		if len(args) > 0 {
			if err := json.Unmarshal(args, &params); err != nil {
				return nil, fmt.Errorf("invalid arguments for %s: %w", tool.Name, err)
			}
		}

		path := tool.Path
		query := url.Values{}

		for _, param := range tool.Parameters {
			val, ok := params[param.Name]
			if !ok {
				if param.Required {
					return nil, fmt.Errorf("missing required parameter: %s", param.Name)
				}
				continue
			}

			switch param.In {
			case "path":
				path = strings.ReplaceAll(path, "{"+param.Name+"}", fmt.Sprint(val))
			case "query":
				query.Set(param.Name, fmt.Sprint(val))
			}
		}

		var body io.Reader
		if tool.RequestBody != nil {
			if raw, ok := params["body"]; ok {
				data, err := json.Marshal(raw)
				if err != nil {
					return nil, fmt.Errorf("marshal request body: %w", err)
				}
				body = bytes.NewReader(data)
			} else if tool.RequestBody.Required {
				return nil, fmt.Errorf("missing required parameter: body")
			}
		}

		endpoint := tool.BaseURL + path
		if encoded := query.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}

		req, err := http.NewRequestWithContext(ctx, tool.Method, endpoint, body)
		if err != nil {
			return nil, fmt.Errorf("create request for %s: %w", tool.Name, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range config.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call %s failed: %w", tool.Name, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s response: %w", tool.Name, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s returned status %d: %s", tool.Name, resp.StatusCode, string(data))
		}

		if json.Valid(data) {
			return data, nil
		}
		// 非 JSON 响应包一层，保持信封始终合法
		return json.Marshal(map[string]string{"raw": string(data)})
	}
}

// RegisterAll 把生成的工具批量注册到注册中心
func (g *Generator) RegisterAll(registry tools.ToolRegistry, generated []*GeneratedTool, config InvokerConfig) error {
	for _, tool := range generated {
		metadata := tools.ToolMetadata{
			Schema:      tool.Schema,
			Timeout:     config.Timeout,
			Description: tool.Description,
		}
		if err := registry.Register(tool.Name, g.BuildToolFunc(tool, config), metadata); err != nil {
			return fmt.Errorf("register tool %s: %w", tool.Name, err)
		}
	}

	g.logger.Info("registered generated tools", zap.Int("count", len(generated)))
	return nil
}

func hasAnyTag(tags, targets []string) bool {
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}
	for _, t := range targets {
		if tagSet[t] {
			return true
		}
	}
	return false
}

func sanitizePath(path string) string {
	path = strings.ReplaceAll(path, "/", "_")
	path = strings.ReplaceAll(path, "{", "")
	path = strings.ReplaceAll(path, "}", "")
	return strings.Trim(path, "_")
}
