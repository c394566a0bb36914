// =============================================================================
// 🚀 TeamFlow 性能基准测试
// =============================================================================
// 覆盖关键路径的性能测试，包括：
// - 图执行器（顺序边/条件边/流式事件/状态操作）
// - 监督器决策解析
// - 两级缓存（内存 LRU / Manager）
// - 工具注册表与执行器
// - 流式中继吞吐
// - 完整编排流程（direct/research/缓存命中）
//
// 运行方式:
//   go test -bench=. -benchmem ./tests/benchmark/...
//   go test -bench=BenchmarkGraph -benchmem ./tests/benchmark/...
// =============================================================================

package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/agent"
	"github.com/BaSui01/teamflow/cache"
	"github.com/BaSui01/teamflow/graph"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/llm/streaming"
	"github.com/BaSui01/teamflow/testutil/fixtures"
	"github.com/BaSui01/teamflow/testutil/mocks"
	"github.com/BaSui01/teamflow/tools"
	"github.com/BaSui01/teamflow/types"
)

// =============================================================================
// 🕸️ Graph Executor Benchmarks
// =============================================================================

// passNode 返回原样透传状态的节点
func passNode(ctx context.Context, s graph.AgentState) (graph.AgentState, error) {
	return s, nil
}

// BenchmarkGraphExecutor_Run 测试线性图的执行性能
func BenchmarkGraphExecutor_Run(b *testing.B) {
	cg := graph.NewGraph("bench-linear").
		AddNode("prepare", passNode).
		AddNode("work", passNode).
		AddNode("finish", passNode).
		AddEdge("prepare", "work").
		AddEdge("work", "finish").
		AddEdge("finish", graph.End).
		SetEntry("prepare").
		MustCompile()

	executor := graph.NewExecutor(graph.WithMaxSteps(8))
	initial := graph.NewAgentState("基准任务")
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := executor.Run(ctx, cg, initial); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkGraphExecutor_ConditionalRoute 测试条件边调度循环的执行性能，
// 形态与团队子图一致：router 在 worker 与终止之间往返
func BenchmarkGraphExecutor_ConditionalRoute(b *testing.B) {
	workNode := func(ctx context.Context, s graph.AgentState) (graph.AgentState, error) {
		n := 0
		if v, ok := s.Result("count"); ok {
			if c, ok := v.(int); ok {
				n = c
			}
		}
		return s.SetResult("count", n+1), nil
	}

	cg := graph.NewGraph("bench-team").
		AddNode("router", passNode).
		AddNode("work", workNode).
		AddConditionalEdges("router", func(s graph.AgentState) string {
			if v, ok := s.Result("count"); ok {
				if c, ok := v.(int); ok && c >= 4 {
					return "done"
				}
			}
			return "work"
		}, map[string]string{
			"work": "work",
			"done": graph.End,
		}).
		AddEdge("work", "router").
		SetEntry("router").
		MustCompile()

	executor := graph.NewExecutor(graph.WithMaxSteps(16))
	initial := graph.NewAgentState("调度基准")
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := executor.Run(ctx, cg, initial); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkGraphExecutor_Stream 测试流式事件通道的执行性能
func BenchmarkGraphExecutor_Stream(b *testing.B) {
	cg := graph.NewGraph("bench-stream").
		AddNode("first", passNode).
		AddNode("second", passNode).
		AddEdge("first", "second").
		AddEdge("second", graph.End).
		SetEntry("first").
		MustCompile()

	executor := graph.NewExecutor(graph.WithMaxSteps(8))
	initial := graph.NewAgentState("流式基准")
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		for range executor.Stream(ctx, cg, initial) {
		}
	}
}

// BenchmarkGraphExecutor_Scalability 测试不同链长下的执行性能
func BenchmarkGraphExecutor_Scalability(b *testing.B) {
	lengths := []int{4, 16, 64}

	for _, n := range lengths {
		b.Run(fmt.Sprintf("Nodes_%d", n), func(b *testing.B) {
			g := graph.NewGraph(fmt.Sprintf("chain-%d", n))
			for i := 0; i < n; i++ {
				g.AddNode(fmt.Sprintf("n%d", i), passNode)
			}
			for i := 0; i < n-1; i++ {
				g.AddEdge(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i+1))
			}
			g.AddEdge(fmt.Sprintf("n%d", n-1), graph.End).SetEntry("n0")
			cg := g.MustCompile()

			executor := graph.NewExecutor(graph.WithMaxSteps(n + 2))
			initial := graph.NewAgentState("扩展基准")
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := executor.Run(ctx, cg, initial); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkAgentState_Operations 测试状态写时复制操作的性能
func BenchmarkAgentState_Operations(b *testing.B) {
	base := graph.NewAgentState("状态基准")
	for i := 0; i < 10; i++ {
		base = base.AddMessage(types.Message{
			Role:    types.RoleAssistant,
			Content: fmt.Sprintf("历史消息 %d", i),
		})
	}
	msg := types.Message{Role: types.RoleAssistant, Content: "新消息"}

	b.Run("AddMessage", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = base.AddMessage(msg)
		}
	})

	b.Run("SetResult", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = base.SetResult("key", i)
		}
	})

	b.Run("Clone", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = base.Clone()
		}
	})
}

// =============================================================================
// 🧭 Decision Parsing Benchmarks
// =============================================================================

// BenchmarkParseDecision 测试各种模型输出形态的决策解析性能
func BenchmarkParseDecision(b *testing.B) {
	payloads := []struct {
		name string
		raw  string
	}{
		{"PlainJSON", fixtures.DecisionJSON("research")},
		{"Fenced", fixtures.FencedDecisionJSON("writing")},
		{"ProseWrapped", fixtures.ProseWrappedDecisionJSON("both")},
		{"Invalid", "我认为应该交给研究团队处理。"},
	}

	for _, p := range payloads {
		b.Run(p.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = agent.ParseDecision(p.raw)
			}
		})
	}
}

// =============================================================================
// 💾 Cache Benchmarks
// =============================================================================

// BenchmarkMemoryCache_Operations 测试内存 LRU 缓存操作性能
func BenchmarkMemoryCache_Operations(b *testing.B) {
	c := cache.NewMemoryCache(1000)
	value := []byte("缓存的响应内容")

	b.Run("Set", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			c.Set(fmt.Sprintf("key_%d", i), value, time.Minute)
		}
	})

	// 预填充
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("key_%d", i), value, time.Minute)
	}

	b.Run("Get_Hit", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = c.Get(fmt.Sprintf("key_%d", i%1000))
		}
	})

	b.Run("Get_Miss", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = c.Get(fmt.Sprintf("nonexistent_%d", i))
		}
	})
}

// BenchmarkMemoryCache_Scalability 测试不同容量下的命中性能
func BenchmarkMemoryCache_Scalability(b *testing.B) {
	sizes := []int{100, 1000, 10000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Size_%d", size), func(b *testing.B) {
			c := cache.NewMemoryCache(size)
			for i := 0; i < size; i++ {
				c.Set(fmt.Sprintf("key_%d", i), []byte("值"), time.Minute)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				_, _ = c.Get(fmt.Sprintf("key_%d", i%size))
			}
		})
	}
}

// BenchmarkCacheManager_Hit 测试 Manager 内存层命中性能
func BenchmarkCacheManager_Hit(b *testing.B) {
	manager := cache.NewManager(cache.Config{
		DefaultTTL:     time.Minute,
		MemoryCapacity: 1024,
	}, nil, zap.NewNop())
	defer manager.Close()

	ctx := context.Background()
	if err := manager.Set(ctx, "hot_key", []byte("热点值"), time.Minute); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := manager.Get(ctx, "hot_key"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCacheManager_Miss 测试 Manager 未命中性能
func BenchmarkCacheManager_Miss(b *testing.B) {
	manager := cache.NewManager(cache.Config{
		DefaultTTL:     time.Minute,
		MemoryCapacity: 1024,
	}, nil, zap.NewNop())
	defer manager.Close()

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = manager.Get(ctx, fmt.Sprintf("nonexistent_%d", i))
	}
}

// BenchmarkCacheManager_GetOrCompute 测试单飞计算路径的命中性能
func BenchmarkCacheManager_GetOrCompute(b *testing.B) {
	manager := cache.NewManager(cache.Config{
		DefaultTTL:     time.Minute,
		MemoryCapacity: 1024,
	}, nil, zap.NewNop())
	defer manager.Close()

	ctx := context.Background()
	compute := func(ctx context.Context) ([]byte, error) {
		return []byte("计算结果"), nil
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, _, err := manager.GetOrCompute(ctx, "compute_key", time.Minute, compute); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCacheManager_Concurrent 测试并发读写性能
func BenchmarkCacheManager_Concurrent(b *testing.B) {
	manager := cache.NewManager(cache.Config{
		DefaultTTL:     time.Minute,
		MemoryCapacity: 1024,
	}, nil, zap.NewNop())
	defer manager.Close()

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_ = manager.Set(ctx, fmt.Sprintf("key_%d", i), []byte("预填充值"), time.Minute)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("key_%d", i%100)
			if i%3 == 0 {
				_ = manager.Set(ctx, key, []byte("新值"), time.Minute)
			} else {
				_, _ = manager.Get(ctx, key)
			}
			i++
		}
	})
}

// =============================================================================
// 🛠️ Tool Benchmarks
// =============================================================================

// BenchmarkToolRegistry_Lookup 测试注册表查找性能
func BenchmarkToolRegistry_Lookup(b *testing.B) {
	registry := tools.NewDefaultRegistry(zap.NewNop())
	for i := 0; i < 10; i++ {
		fn, meta := mocks.StaticTool(`{"ok": true}`)
		if err := registry.Register(fmt.Sprintf("tool_%d", i), fn, meta); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, _, err := registry.Get(fmt.Sprintf("tool_%d", i%10)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkToolRegistry_AsSchemas 测试工具 schema 导出性能
func BenchmarkToolRegistry_AsSchemas(b *testing.B) {
	registry := tools.NewDefaultRegistry(zap.NewNop())
	for i := 0; i < 10; i++ {
		fn, meta := mocks.StaticTool(`{"ok": true}`)
		if err := registry.Register(fmt.Sprintf("tool_%d", i), fn, meta); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = registry.AsSchemas()
	}
}

// BenchmarkToolExecutor_StaticCall 测试单次工具调用的端到端开销
func BenchmarkToolExecutor_StaticCall(b *testing.B) {
	registry := tools.NewDefaultRegistry(zap.NewNop())
	fn, meta := mocks.StaticTool(`{"ok": true}`)
	if err := registry.Register("bench_tool", fn, meta); err != nil {
		b.Fatal(err)
	}

	executor := tools.NewDefaultExecutor(registry, zap.NewNop())
	ctx := context.Background()
	call := types.ToolCall{
		ID:        "call-1",
		Name:      "bench_tool",
		Arguments: json.RawMessage(`{}`),
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		result := executor.ExecuteOne(ctx, call)
		if result.Failed() {
			b.Fatal("tool call failed")
		}
	}
}

// =============================================================================
// 📡 Streaming Relay Benchmarks
// =============================================================================

// BenchmarkRelay_PushNext 测试单 token 往返的开销
func BenchmarkRelay_PushNext(b *testing.B) {
	relay := streaming.NewRelay(streaming.WithBufferSize(1))
	ctx := context.Background()
	tok := streaming.Token{Content: "增量", Index: 0}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		relay.Push(tok)
		if _, err := relay.Next(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRelay_Throughput 测试生产者/消费者两端的整体吞吐
func BenchmarkRelay_Throughput(b *testing.B) {
	ctx := context.Background()
	relay := streaming.NewRelay(streaming.WithBufferSize(streaming.DefaultBufferSize))

	b.ResetTimer()
	b.ReportAllocs()

	go func() {
		for i := 0; i < b.N; i++ {
			relay.Push(streaming.Token{Content: "chunk", Index: i})
		}
		relay.Finish()
	}()

	consumed := 0
	for {
		if _, err := relay.Next(ctx); err != nil {
			break
		}
		consumed++
	}

	if consumed != b.N {
		b.Fatalf("consumed %d of %d tokens", consumed, b.N)
	}
}

// =============================================================================
// 📊 Composite Benchmarks (End-to-End)
// =============================================================================

// scriptedCompletion 按请求的 system 提示词分发：
// 决策请求返回指定团队的路由 JSON，其余请求返回 reply
func scriptedCompletion(team, reply string) func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "监督器") {
			return fixtures.SimpleResponse(fixtures.DecisionJSON(team)), nil
		}
		return fixtures.SimpleResponse(reply), nil
	}
}

// newBenchSupervisor 用固定工具数据组装监督器
func newBenchSupervisor(b *testing.B, provider llm.Provider, cacheMgr *cache.Manager, cfg agent.Config) *agent.Supervisor {
	b.Helper()

	registry := tools.NewDefaultRegistry(zap.NewNop())
	searchFn, searchMeta := mocks.StaticTool(`{
		"query": "q",
		"results": [
			{"title": "基准结果", "url": "https://example.com/bench", "snippet": "固定数据", "score": 0.9}
		],
		"total_count": 1
	}`)
	if err := registry.Register("web_search", searchFn, searchMeta); err != nil {
		b.Fatal(err)
	}

	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	s, err := agent.NewSupervisor(provider, registry, cacheMgr, cfg, zap.NewNop())
	if err != nil {
		b.Fatal(err)
	}
	return s
}

// BenchmarkSupervisor_Process 测试完整编排流程的端到端开销
func BenchmarkSupervisor_Process(b *testing.B) {
	b.Run("Direct", func(b *testing.B) {
		provider := mocks.NewMockProvider().
			WithCompletionFunc(scriptedCompletion("direct", "基准测试回复。"))
		s := newBenchSupervisor(b, provider, nil, agent.Config{})
		ctx := context.Background()

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			if _, err := s.Process(ctx, "基准任务"); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Research", func(b *testing.B) {
		provider := mocks.NewMockProvider().
			WithCompletionFunc(scriptedCompletion("research", "综合检索后的回复。"))
		s := newBenchSupervisor(b, provider, nil, agent.Config{})
		ctx := context.Background()

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			if _, err := s.Process(ctx, "搜索基准数据"); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkSupervisor_CachedProcess 测试响应缓存命中路径的端到端开销
func BenchmarkSupervisor_CachedProcess(b *testing.B) {
	cacheMgr := cache.NewManager(cache.Config{
		DefaultTTL:     time.Minute,
		MemoryCapacity: 1024,
	}, nil, zap.NewNop())
	defer cacheMgr.Close()

	provider := mocks.NewMockProvider().
		WithCompletionFunc(scriptedCompletion("direct", "值得缓存的回复。"))
	s := newBenchSupervisor(b, provider, cacheMgr, agent.Config{CacheEnabled: true})
	ctx := context.Background()

	// 预热缓存
	if _, err := s.Process(ctx, "缓存基准任务"); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		result, err := s.Process(ctx, "缓存基准任务")
		if err != nil {
			b.Fatal(err)
		}
		if !result.Cached {
			b.Fatal("expected cache hit")
		}
	}
}

// BenchmarkSupervisor_ProcessStream 测试流式编排（含事件转发）的开销
func BenchmarkSupervisor_ProcessStream(b *testing.B) {
	provider := mocks.NewMockProvider().
		WithCompletionFunc(scriptedCompletion("direct", "")).
		WithStreamChunks("流式", "基准", "回复。")
	s := newBenchSupervisor(b, provider, nil, agent.Config{})
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		events, err := s.ProcessStream(ctx, "流式基准任务")
		if err != nil {
			b.Fatal(err)
		}
		for range events {
		}
	}
}
