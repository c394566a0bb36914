// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/teamflow/tools"
)

// MockSearchProvider 是 tools.SearchProvider 的测试替身，
// 返回脚本化结果并记录收到的查询。
type MockSearchProvider struct {
	mu      sync.Mutex
	results []tools.SearchResult
	err     error
	queries []string
}

// NewMockSearchProvider 创建返回给定结果的搜索后端
func NewMockSearchProvider(results ...tools.SearchResult) *MockSearchProvider {
	return &MockSearchProvider{results: results}
}

// WithError 让 Search 返回指定错误
func (m *MockSearchProvider) WithError(err error) *MockSearchProvider {
	m.err = err
	return m
}

// Search 实现 tools.SearchProvider
func (m *MockSearchProvider) Search(ctx context.Context, query string, opts tools.SearchOptions) ([]tools.SearchResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	err := m.err
	results := m.results
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	out := make([]tools.SearchResult, len(results))
	copy(out, results)
	return out, nil
}

// Name 实现 tools.SearchProvider
func (m *MockSearchProvider) Name() string { return "mock-search" }

// Queries 返回按顺序记录的所有查询
func (m *MockSearchProvider) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// SampleSearchResults 返回一组常用的搜索结果样本
func SampleSearchResults() []tools.SearchResult {
	return []tools.SearchResult{
		{Title: "量子计算 2025 年度综述", URL: "https://example.com/quantum-review", Snippet: "过去一年量子纠错取得突破，逻辑量子比特错误率首次低于物理比特。", Score: 0.97},
		{Title: "IBM 发布新一代量子处理器", URL: "https://example.com/ibm-qpu", Snippet: "新处理器包含 1121 个量子比特，支持动态电路。", Score: 0.91},
		{Title: "量子机器学习入门", URL: "https://example.com/qml-intro", Snippet: "变分量子线路在小规模数据集上展现出与经典模型相当的表现。", Score: 0.84},
	}
}

// EchoTool 返回把入参原样回显的 ToolFunc，用于注册表与执行器测试
func EchoTool() (tools.ToolFunc, tools.ToolMetadata) {
	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return args, nil
	}
	return fn, tools.ToolMetadata{Description: "echo input arguments"}
}

// StaticTool 返回固定 JSON 结果的 ToolFunc
func StaticTool(result string) (tools.ToolFunc, tools.ToolMetadata) {
	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(result), nil
	}
	return fn, tools.ToolMetadata{Description: "static result tool"}
}

// FailingTool 返回总是失败的 ToolFunc
func FailingTool(err error) (tools.ToolFunc, tools.ToolMetadata) {
	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return nil, err
	}
	return fn, tools.ToolMetadata{Description: "always failing tool"}
}

// SlowTool 返回等待指定时长后成功的 ToolFunc，尊重 ctx 取消
func SlowTool(d time.Duration) (tools.ToolFunc, tools.ToolMetadata) {
	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		select {
		case <-time.After(d):
			return json.RawMessage(`{"done": true}`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return fn, tools.ToolMetadata{Description: "slow tool", Timeout: 2 * d}
}

// CountingTool 返回记录调用次数的 ToolFunc 和计数读取函数
func CountingTool() (tools.ToolFunc, func() int) {
	var mu sync.Mutex
	count := 0
	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		return json.RawMessage(fmt.Sprintf(`{"calls": %d}`, n)), nil
	}
	get := func() int {
		mu.Lock()
		defer mu.Unlock()
		return count
	}
	return fn, get
}
