// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

// Package e2e 通过真实 HTTP 服务器端到端驱动 TeamFlow：
// 路由表与 cmd/teamflow 保持一致，handlers、监督器、团队子图、
// 工具注册表、两级缓存与 SQLite 会话存储全部使用生产实现，
// 只有 LLM Provider 换成脚本化测试替身。
package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/agent"
	"github.com/BaSui01/teamflow/api"
	"github.com/BaSui01/teamflow/api/handlers"
	"github.com/BaSui01/teamflow/cache"
	"github.com/BaSui01/teamflow/internal/database"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/testutil/mocks"
	"github.com/BaSui01/teamflow/tools"
)

// =============================================================================
// 🧪 测试环境
// =============================================================================

// testEnv 承载一套组装完毕的服务栈
type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

// newTestEnv 按 cmd/teamflow 的组装方式搭建完整服务并启动测试服务器。
// cfg.Model 为空时使用 deepseek-chat，指标收集器留空。
func newTestEnv(t *testing.T, provider llm.Provider, cfg agent.Config) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	// SQLite 内存库承担会话持久化
	db, err := database.Open("sqlite", ":memory:", logger)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, logger))

	pool, err := database.NewPoolManager(db, database.PoolConfig{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	// 内存缓存层，不接 Redis
	cacheMgr := cache.NewManager(cache.Config{
		DefaultTTL:     time.Minute,
		MemoryCapacity: 128,
	}, nil, logger)
	t.Cleanup(func() { _ = cacheMgr.Close() })

	registry := newStaticRegistry(t)

	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	supervisor, err := agent.NewSupervisor(provider, registry, cacheMgr, cfg, logger)
	require.NoError(t, err)

	healthHandler := handlers.NewHealthHandler(logger)
	healthHandler.RegisterCheck(handlers.NewPingHealthCheck("database", pool.Ping))
	healthHandler.RegisterCheck(handlers.NewPingHealthCheck("cache", cacheMgr.Ping))
	healthHandler.RegisterCheck(handlers.NewProviderHealthCheck(provider))

	chatHandler := handlers.NewChatHandler(supervisor, pool, nil, logger)
	agentsHandler := handlers.NewAgentsHandler(supervisor, registry, logger)
	convHandler := handlers.NewConversationsHandler(pool, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", healthHandler.HandleReady)
	mux.HandleFunc("/readyz", healthHandler.HandleReady)
	mux.HandleFunc("/version", healthHandler.HandleVersion("e2e", "2026-01-01T00:00:00Z", "deadbeef"))
	mux.HandleFunc("POST /v1/chat", chatHandler.HandleTask)
	mux.HandleFunc("POST /v1/chat/stream", chatHandler.HandleTaskStream)
	mux.HandleFunc("GET /v1/agents/status", agentsHandler.HandleStatus)
	mux.HandleFunc("GET /v1/tools", agentsHandler.HandleListTools)
	mux.HandleFunc("POST /v1/conversations", convHandler.HandleCreate)
	mux.HandleFunc("GET /v1/conversations", convHandler.HandleList)
	mux.HandleFunc("GET /v1/conversations/{id}", convHandler.HandleGet)
	mux.HandleFunc("DELETE /v1/conversations/{id}", convHandler.HandleDelete)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{t: t, srv: srv, client: srv.Client()}
}

// newStaticRegistry 注册返回固定数据的研究工具
func newStaticRegistry(t *testing.T) tools.ToolRegistry {
	t.Helper()
	registry := tools.NewDefaultRegistry(zap.NewNop())

	searchFn, searchMeta := mocks.StaticTool(`{
		"query": "q",
		"results": [
			{"title": "向量检索优化", "url": "https://example.com/vector", "snippet": "召回率提升明显", "score": 0.92}
		],
		"total_count": 1
	}`)
	require.NoError(t, registry.Register("web_search", searchFn, searchMeta))

	scrapeFn, scrapeMeta := mocks.StaticTool(`{
		"url": "https://example.com/post",
		"title": "架构笔记",
		"content": "缓存层显著降低了上游压力。",
		"length": 13,
		"truncated": false
	}`)
	require.NoError(t, registry.Register("web_scraper", scrapeFn, scrapeMeta))

	return registry
}

// =============================================================================
// 🔧 HTTP 辅助
// =============================================================================

// postJSON 向测试服务器发送 JSON POST 请求
func (e *testEnv) postJSON(path string, body any) *http.Response {
	e.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(e.t, err)
	resp, err := e.client.Post(e.srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(e.t, err)
	return resp
}

// get 发送 GET 请求
func (e *testEnv) get(path string) *http.Response {
	e.t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(e.t, err)
	return resp
}

// doDelete 发送 DELETE 请求
func (e *testEnv) doDelete(path string) *http.Response {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodDelete, e.srv.URL+path, nil)
	require.NoError(e.t, err)
	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	return resp
}

// decodeEnvelope 解码统一响应结构并关闭 body
func decodeEnvelope(t *testing.T, resp *http.Response) handlers.Response {
	t.Helper()
	defer resp.Body.Close()
	var envelope handlers.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

// decodeData 解码成功响应并把 data 字段反序列化到 dest
func decodeData(t *testing.T, resp *http.Response, dest any) handlers.Response {
	t.Helper()
	envelope := decodeEnvelope(t, resp)
	require.True(t, envelope.Success, "expected success envelope, got %+v", envelope.Error)
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dest))
	return envelope
}

// =============================================================================
// 🔧 SSE 辅助
// =============================================================================

// sseEvent 是解析出的单个 SSE 事件，name 为空表示纯 data 行
type sseEvent struct {
	name string
	data string
}

// readSSE 把 SSE 响应体解析成事件列表，done 表示收到 [DONE] 结束标记
func readSSE(t *testing.T, body io.Reader) (events []sseEvent, done bool) {
	t.Helper()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	current := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			current = ""
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				done = true
				continue
			}
			events = append(events, sseEvent{name: current, data: payload})
		}
	}
	require.NoError(t, scanner.Err())
	return events, done
}

// decodeStreamPayload 解析单个事件的 JSON 载荷
func decodeStreamPayload(t *testing.T, ev sseEvent) api.StreamEventPayload {
	t.Helper()
	var payload api.StreamEventPayload
	require.NoError(t, json.Unmarshal([]byte(ev.data), &payload))
	return payload
}
