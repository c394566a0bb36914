// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

// Package integration 在真实 HTTP Provider 栈上驱动完整编排管线：
// httptest 扮演 OpenAI 兼容后端，DeepSeek Provider 发出真实请求，
// 监督器、团队子图、工具与缓存全部使用生产实现。
package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/agent"
	"github.com/BaSui01/teamflow/cache"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/llm/providers"
	"github.com/BaSui01/teamflow/llm/providers/deepseek"
	"github.com/BaSui01/teamflow/testutil/mocks"
	"github.com/BaSui01/teamflow/tools"
)

// backendScript 是各类 LLM 调用的脚本响应
type backendScript struct {
	decision    string
	outline     string
	draft       string
	chart       string
	final       string
	finalChunks []string

	// sseInvalidAfter 大于 0 时，SSE 流在发出该数量的正常分块后
	// 写入一行坏 JSON 并中断，用于模拟上游流中途损坏
	sseInvalidAfter int

	// failStatus 非 0 时全部请求直接返回该状态码与 failBody
	failStatus int
	failBody   string
}

// llmBackend 是脚本化的 OpenAI 兼容后端。
// 按请求首条 system 消息里的角色标记分发响应：
// 监督器提示词拿到 decision，写作团队各节点拿到对应产出，
// 顶层协调者拿到 final（stream 请求走 SSE 分块）。
type llmBackend struct {
	mu       sync.Mutex
	script   backendScript
	requests []providers.OpenAICompatRequest
	headers  []http.Header
}

// newBackend 返回默认走 direct 路由的后端脚本
func newBackend() *llmBackend {
	return &llmBackend{script: backendScript{
		decision: `{"team": "direct", "reasoning": "简单请求，直接回答"}`,
		outline:  `{"title": "集成测试文档", "sections": ["背景", "方案"]}`,
		draft:    "## 背景\n\n这是集成测试生成的正文。",
		chart:    `{"chart_type": "bar", "title": "样例数据", "labels": ["a", "b"], "values": [1, 2]}`,
		final:    "集成测试的最终回复。",
	}}
}

// start 启动 httptest 服务并挂接清理
func (b *llmBackend) start(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(srv.Close)
	return srv
}

func (b *llmBackend) handle(w http.ResponseWriter, r *http.Request) {
	// 健康检查探测 GET /models
	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": [{"id": "deepseek-chat"}]}`)
		return
	}

	var req providers.OpenAICompatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.headers = append(b.headers, r.Header.Clone())
	script := b.script
	b.mu.Unlock()

	if script.failStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(script.failStatus)
		fmt.Fprint(w, script.failBody)
		return
	}

	content := script.contentFor(req)
	if req.Stream {
		script.writeSSE(w, req, content)
		return
	}
	writeCompletion(w, req, content)
}

// setScript 在持锁状态下改写脚本，供属性测试逐轮换脚本
func (b *llmBackend) setScript(mutate func(*backendScript)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mutate(&b.script)
}

// contentFor 按 system 提示词中的角色标记选择脚本响应
func (s backendScript) contentFor(req providers.OpenAICompatRequest) string {
	system := ""
	if len(req.Messages) > 0 {
		system = req.Messages[0].Content
	}
	switch {
	case strings.Contains(system, "监督器"):
		return s.decision
	case strings.Contains(system, "文档结构专家"):
		return s.outline
	case strings.Contains(system, "专业写作者"):
		return s.draft
	case strings.Contains(system, "数据可视化专家"):
		return s.chart
	default:
		return s.final
	}
}

func (s backendScript) writeSSE(w http.ResponseWriter, req providers.OpenAICompatRequest, content string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	chunks := s.finalChunks
	if len(chunks) == 0 {
		chunks = []string{content}
	}
	for i, chunk := range chunks {
		if s.sseInvalidAfter > 0 && i >= s.sseInvalidAfter {
			fmt.Fprint(w, "data: {broken\n\n")
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
		finish := ""
		if i == len(chunks)-1 {
			finish = "stop"
		}
		payload, _ := json.Marshal(providers.OpenAICompatResponse{
			ID:    fmt.Sprintf("chatcmpl-%d", i),
			Model: req.Model,
			Choices: []providers.OpenAICompatChoice{{
				Index:        0,
				FinishReason: finish,
				Delta:        &providers.OpenAICompatMessage{Role: "assistant", Content: chunk},
			}},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func writeCompletion(w http.ResponseWriter, req providers.OpenAICompatRequest, content string) {
	w.Header().Set("Content-Type", "application/json")
	resp := providers.OpenAICompatResponse{
		ID:    "chatcmpl-test",
		Model: req.Model,
		Choices: []providers.OpenAICompatChoice{{
			Index:        0,
			FinishReason: "stop",
			Message:      providers.OpenAICompatMessage{Role: "assistant", Content: content},
		}},
		Usage:   &providers.OpenAICompatUsage{PromptTokens: 20, CompletionTokens: 40, TotalTokens: 60},
		Created: time.Now().Unix(),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// requestCount 返回后端收到的请求总数
func (b *llmBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// systemPrompts 按顺序返回每个请求的 system 消息内容
func (b *llmBackend) systemPrompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.requests))
	for _, req := range b.requests {
		if len(req.Messages) > 0 {
			out = append(out, req.Messages[0].Content)
		} else {
			out = append(out, "")
		}
	}
	return out
}

// newHTTPProvider 构造指向脚本后端的 DeepSeek Provider
func newHTTPProvider(baseURL string) llm.Provider {
	return deepseek.NewDeepSeekProvider(providers.DeepSeekConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  "integration-key",
			BaseURL: baseURL,
			Model:   "deepseek-chat",
			Timeout: 5 * time.Second,
		},
	}, zap.NewNop())
}

// newToolRegistry 注册生产工具实现：搜索走脚本后端，图表纯本地计算
func newToolRegistry(t testing.TB) tools.ToolRegistry {
	t.Helper()
	registry := tools.NewDefaultRegistry(zap.NewNop())

	searchCfg := tools.DefaultSearchToolConfig()
	searchCfg.Provider = mocks.NewMockSearchProvider(
		tools.SearchResult{Title: "Go 并发模式", URL: "https://example.com/go", Snippet: "goroutine 与 channel 的组合用法", Score: 0.9},
		tools.SearchResult{Title: "图执行器设计", URL: "https://example.com/graph", Snippet: "条件边驱动的状态机", Score: 0.8},
	)
	require.NoError(t, tools.RegisterSearchTool(registry, searchCfg, zap.NewNop()))
	require.NoError(t, tools.RegisterChartGeneratorTool(registry, zap.NewNop()))
	return registry
}

// newPipeline 组装一条指向脚本后端的完整监督器管线
func newPipeline(t testing.TB, backend *llmBackend, cacheMgr *cache.Manager, cfg agent.Config) *agent.Supervisor {
	t.Helper()
	srv := backend.start(t)
	sup, err := agent.NewSupervisor(newHTTPProvider(srv.URL), newToolRegistry(t), cacheMgr, cfg, zap.NewNop())
	require.NoError(t, err)
	return sup
}
