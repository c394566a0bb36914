// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/types"
)

// MockProvider 是 llm.Provider 的可编程测试替身。
//
// 支持固定响应、按调用顺序出队的脚本响应、错误注入、流式分块，
// 以及完整的调用记录。所有配置方法返回自身以便链式调用：
//
//	provider := mocks.NewMockProvider().
//		WithResponseQueue(`{"team": "research"}`, "最终答复").
//		WithDelay(10 * time.Millisecond)
type MockProvider struct {
	mu sync.Mutex

	name          string
	response      string
	responseQueue []string
	queuePos      int
	err           error
	streamChunks  []string
	toolCalls     []types.ToolCall
	usage         llm.ChatUsage
	delay         time.Duration
	failAfter     int
	healthy       bool

	// 完全自定义的行为钩子，设置后优先于其它配置
	completionFn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
	streamFn     func(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error)

	calls []ProviderCall
}

// ProviderCall 记录一次 Completion / Stream 调用
type ProviderCall struct {
	Method   string // "completion" 或 "stream"
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Err      error
	At       time.Time
}

// NewMockProvider 创建默认配置的 MockProvider（返回 "mock response"）
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:     "mock",
		response: "mock response",
		healthy:  true,
		usage:    llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

// WithName 设置 Provider 名称
func (m *MockProvider) WithName(name string) *MockProvider {
	m.name = name
	return m
}

// WithResponse 设置固定的响应文本
func (m *MockProvider) WithResponse(content string) *MockProvider {
	m.response = content
	return m
}

// WithResponseQueue 设置按调用顺序出队的响应脚本。
// 队列耗尽后继续返回最后一条，适合监督器多轮调用的编排测试。
func (m *MockProvider) WithResponseQueue(responses ...string) *MockProvider {
	m.responseQueue = responses
	m.queuePos = 0
	return m
}

// WithError 让所有调用返回指定错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.err = err
	return m
}

// WithStreamChunks 设置 Stream 返回的增量内容
func (m *MockProvider) WithStreamChunks(chunks ...string) *MockProvider {
	m.streamChunks = chunks
	return m
}

// WithToolCalls 让响应携带工具调用
func (m *MockProvider) WithToolCalls(calls ...types.ToolCall) *MockProvider {
	m.toolCalls = calls
	return m
}

// WithTokenUsage 设置响应中的 token 用量
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.usage = llm.ChatUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
	return m
}

// WithDelay 为每次调用加入人工延迟
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.delay = d
	return m
}

// WithFailAfter 前 n 次调用成功，之后全部失败
func (m *MockProvider) WithFailAfter(n int) *MockProvider {
	m.failAfter = n
	return m
}

// WithUnhealthy 让 HealthCheck 报告不可用
func (m *MockProvider) WithUnhealthy() *MockProvider {
	m.healthy = false
	return m
}

// WithCompletionFunc 完全接管 Completion 行为
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.completionFn = fn
	return m
}

// WithStreamFunc 完全接管 Stream 行为
func (m *MockProvider) WithStreamFunc(fn func(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error)) *MockProvider {
	m.streamFn = fn
	return m
}

// Completion 实现 llm.Provider
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if m.completionFn != nil {
		resp, err := m.completionFn(ctx, req)
		m.record("completion", req, resp, err)
		return resp, err
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			m.record("completion", req, nil, ctx.Err())
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	if m.failAfter > 0 && m.completed() >= m.failAfter {
		m.mu.Unlock()
		err := &llm.Error{
			Code:      llm.ErrUpstreamError,
			Message:   fmt.Sprintf("mock failure after %d calls", m.failAfter),
			Retryable: true,
			Provider:  m.name,
		}
		m.record("completion", req, nil, err)
		return nil, err
	}
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		m.record("completion", req, nil, err)
		return nil, err
	}
	content := m.nextContentLocked()
	m.mu.Unlock()

	resp := &llm.ChatResponse{
		ID:       fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Provider: m.name,
		Model:    req.Model,
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: types.Message{
					Role:      types.RoleAssistant,
					Content:   content,
					ToolCalls: m.toolCalls,
					Timestamp: time.Now(),
				},
			},
		},
		Usage:     m.usage,
		CreatedAt: time.Now(),
	}
	m.record("completion", req, resp, nil)
	return resp, nil
}

// Stream 实现 llm.Provider。
// 未配置 streamChunks 时把当前响应整体作为单个 chunk 下发。
func (m *MockProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if m.streamFn != nil {
		ch, err := m.streamFn(ctx, req)
		m.record("stream", req, nil, err)
		return ch, err
	}

	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		m.record("stream", req, nil, err)
		return nil, err
	}
	chunks := m.streamChunks
	if len(chunks) == 0 {
		chunks = []string{m.nextContentLocked()}
	}
	delay := m.delay
	usage := m.usage
	name := m.name
	m.mu.Unlock()

	out := make(chan llm.StreamChunk, len(chunks)+1)
	go func() {
		defer close(out)
		for i, c := range chunks {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			chunk := llm.StreamChunk{
				Provider: name,
				Model:    req.Model,
				Index:    i,
				Delta:    types.Message{Role: types.RoleAssistant, Content: c},
			}
			if i == len(chunks)-1 {
				chunk.FinishReason = "stop"
				chunk.Usage = &usage
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	m.record("stream", req, nil, nil)
	return out, nil
}

// HealthCheck 实现 llm.Provider
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	m.mu.Lock()
	healthy := m.healthy
	m.mu.Unlock()
	if !healthy {
		return &llm.HealthStatus{Healthy: false}, &llm.Error{
			Code:     llm.ErrProviderUnavailable,
			Message:  "mock provider unhealthy",
			Provider: m.name,
		}
	}
	return &llm.HealthStatus{Healthy: true, Latency: 10 * time.Millisecond}, nil
}

// Name 实现 llm.Provider
func (m *MockProvider) Name() string { return m.name }

// SupportsNativeFunctionCalling 实现 llm.Provider
func (m *MockProvider) SupportsNativeFunctionCalling() bool { return true }

// nextContentLocked 取下一条响应文本，调用方必须持有 m.mu
func (m *MockProvider) nextContentLocked() string {
	if len(m.responseQueue) == 0 {
		return m.response
	}
	idx := m.queuePos
	if idx >= len(m.responseQueue) {
		idx = len(m.responseQueue) - 1
	}
	m.queuePos++
	return m.responseQueue[idx]
}

// completed 统计已成功完成的调用数，调用方必须持有 m.mu
func (m *MockProvider) completed() int {
	n := 0
	for _, c := range m.calls {
		if c.Err == nil {
			n++
		}
	}
	return n
}

func (m *MockProvider) record(method string, req *llm.ChatRequest, resp *llm.ChatResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ProviderCall{
		Method:   method,
		Request:  req,
		Response: resp,
		Err:      err,
		At:       time.Now(),
	})
}

// Calls 返回全部调用记录的副本
func (m *MockProvider) Calls() []ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用总数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall 返回最后一次调用记录，无调用时返回 nil
func (m *MockProvider) LastCall() *ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

// Reset 清空调用记录并重置脚本队列位置
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.queuePos = 0
}

// NewSuccessProvider 返回固定文本响应的 Provider
func NewSuccessProvider(content string) *MockProvider {
	return NewMockProvider().WithResponse(content)
}

// NewErrorProvider 返回指定错误的 Provider
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider().WithError(err)
}

// NewStreamProvider 返回按给定分块流式输出的 Provider
func NewStreamProvider(chunks ...string) *MockProvider {
	return NewMockProvider().WithStreamChunks(chunks...)
}

// NewScriptedProvider 返回按顺序消费响应脚本的 Provider
func NewScriptedProvider(responses ...string) *MockProvider {
	return NewMockProvider().WithResponseQueue(responses...)
}

// NewFlakeyProvider 前 successCount 次成功、之后失败的 Provider
func NewFlakeyProvider(successCount int, content string) *MockProvider {
	return NewMockProvider().WithResponse(content).WithFailAfter(successCount)
}
