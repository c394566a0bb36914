package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/teamflow/llm"
)

// ToolFunc 工具函数签名
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolMetadata 工具元数据
type ToolMetadata struct {
	Schema      llm.ToolSchema   // 工具的 JSON Schema
	Permission  string           // 所需权限（可选）
	RateLimit   *RateLimitConfig // 速率限制（可选）
	Timeout     time.Duration    // 执行超时，默认 30s
	Description string           // 详细说明
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	MaxCalls int           // 窗口内最大调用次数
	Window   time.Duration // 时间窗口
}

// ToolRegistry 工具注册中心接口
type ToolRegistry interface {
	Register(name string, fn ToolFunc, metadata ToolMetadata) error
	Unregister(name string) error
	Get(name string) (ToolFunc, ToolMetadata, error)
	List() []string
	Has(name string) bool
	AsSchemas() []llm.ToolSchema
}

// =============================================================================
// 🧰 DefaultRegistry
// =============================================================================

// DefaultRegistry 默认工具注册中心
//
// 并发安全。速率限制使用令牌桶（golang.org/x/time/rate），
// 桶容量为 MaxCalls，按 MaxCalls/Window 的速率补充。
type DefaultRegistry struct {
	mu         sync.RWMutex
	tools      map[string]ToolFunc
	metadata   map[string]ToolMetadata
	rateLimits map[string]*rate.Limiter
	logger     *zap.Logger
}

// NewDefaultRegistry 创建默认的工具注册中心
func NewDefaultRegistry(logger *zap.Logger) *DefaultRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRegistry{
		tools:      make(map[string]ToolFunc),
		metadata:   make(map[string]ToolMetadata),
		rateLimits: make(map[string]*rate.Limiter),
		logger:     logger.With(zap.String("component", "tool_registry")),
	}
}

// Register 注册工具，重复注册报错
func (r *DefaultRegistry) Register(name string, fn ToolFunc, metadata ToolMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)
	}

	if metadata.Timeout == 0 {
		metadata.Timeout = 30 * time.Second
	}

	r.tools[name] = fn
	r.metadata[name] = metadata

	if rl := metadata.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		perSecond := rate.Limit(float64(rl.MaxCalls) / rl.Window.Seconds())
		r.rateLimits[name] = rate.NewLimiter(perSecond, rl.MaxCalls)
	}

	r.logger.Info("tool registered",
		zap.String("name", name),
		zap.Duration("timeout", metadata.Timeout),
	)
	return nil
}

// Unregister 注销工具，不存在时报错
func (r *DefaultRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("tool %s not found", name)
	}

	delete(r.tools, name)
	delete(r.metadata, name)
	delete(r.rateLimits, name)

	r.logger.Info("tool unregistered", zap.String("name", name))
	return nil
}

// Get 按名称获取工具函数与元数据
func (r *DefaultRegistry) Get(name string) (ToolFunc, ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, ToolMetadata{}, fmt.Errorf("tool %s not found", name)
	}

	return fn, r.metadata[name], nil
}

// List 返回已注册工具名（字典序）
func (r *DefaultRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has 判断工具是否已注册
func (r *DefaultRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// AsSchemas 导出全部工具 Schema，供模型函数调用请求使用
func (r *DefaultRegistry) AsSchemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(r.metadata))
	for _, meta := range r.metadata {
		schemas = append(schemas, meta.Schema)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// checkRateLimit 消耗一个令牌，超限时报错
func (r *DefaultRegistry) checkRateLimit(name string) error {
	r.mu.RLock()
	limiter, ok := r.rateLimits[name]
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	if !limiter.Allow() {
		return fmt.Errorf("rate limit exceeded for tool %s", name)
	}
	return nil
}
