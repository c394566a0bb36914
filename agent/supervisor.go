// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/cache"
	"github.com/BaSui01/teamflow/graph"
	"github.com/BaSui01/teamflow/internal/ctxkeys"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/llm/streaming"
	"github.com/BaSui01/teamflow/llm/tokenizer"
	"github.com/BaSui01/teamflow/tools"
	"github.com/BaSui01/teamflow/types"
)

// 顶层图的状态结果键
const (
	resultDecision      = "decision"
	resultFinalResponse = "final_response"
)

const responseCachePrefix = "teamflow:resp:"

const finalSystemPrompt = `你是顶层协调者，负责把各团队的成果综合成面向用户的最终回复。
使用用户的语言作答，直接给出内容，不要复述过程。`

// Config 是监督器的运行配置
type Config struct {
	// Model 所有编排相关 LLM 调用使用的模型
	Model string
	// Temperature 最终综合调用的采样温度
	Temperature float32
	// MaxTokens 最终综合调用的输出上限
	MaxTokens int
	// MaxSteps 顶层图步数上限
	MaxSteps int
	// TeamMaxSteps 团队子图步数上限
	TeamMaxSteps int
	// CacheEnabled 响应缓存开关
	CacheEnabled bool
	// CacheTTL 响应缓存 TTL，0 用缓存层默认值
	CacheTTL time.Duration
	// StreamBufferSize token 中继缓冲
	StreamBufferSize int
	// StreamPollTimeout token 中继单次轮询超时
	StreamPollTimeout time.Duration
}

func (c *Config) withDefaults() {
	if c.Model == "" {
		c.Model = "deepseek-chat"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 20
	}
	if c.TeamMaxSteps <= 0 {
		c.TeamMaxSteps = 10
	}
	if c.StreamBufferSize <= 0 {
		c.StreamBufferSize = streaming.DefaultBufferSize
	}
	if c.StreamPollTimeout <= 0 {
		c.StreamPollTimeout = streaming.DefaultPollTimeout
	}
}

// Result 是一次编排运行的完整产出
type Result struct {
	Response        string          `json:"response"`
	Decision        Decision        `json:"decision"`
	ResearchSummary string          `json:"research_summary,omitempty"`
	FinalDocument   string          `json:"final_document,omitempty"`
	Messages        []types.Message `json:"messages"`
	Errors          []string        `json:"errors,omitempty"`
	Duration        time.Duration   `json:"duration"`
	Cached          bool            `json:"cached"`
	TokensSaved     int             `json:"tokens_saved,omitempty"`
}

// StreamEventType 是流式事件类型
type StreamEventType string

const (
	// EventNode 图节点完成
	EventNode StreamEventType = "node"
	// EventToken 最终综合的增量 token
	EventToken StreamEventType = "token"
	// EventDone 运行完成，携带完整结果
	EventDone StreamEventType = "done"
	// EventError 运行失败
	EventError StreamEventType = "error"
)

// StreamEvent 是 ProcessStream 下发的单个事件
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Node    string          `json:"node,omitempty"`
	Step    int             `json:"step,omitempty"`
	Content string          `json:"content,omitempty"`
	Result  *Result         `json:"result,omitempty"`
	Err     error           `json:"-"`
}

// Supervisor 是层级编排的入口：顶层图做团队分派，
// 研究与写作子图各自独立运行，最终节点综合成回复。
type Supervisor struct {
	provider llm.Provider
	decider  *DecisionEngine
	research *ResearchTeam
	writing  *WritingTeam
	cache    *cache.Manager
	counter  tokenizer.Tokenizer
	top      *graph.CompiledGraph
	executor *graph.Executor
	config   Config
	logger   *zap.Logger
}

// NewSupervisor 组装监督器及其团队子图。
// cacheMgr 传 nil 时禁用响应缓存。
func NewSupervisor(provider llm.Provider, registry tools.ToolRegistry, cacheMgr *cache.Manager, cfg Config, logger *zap.Logger) (*Supervisor, error) {
	if provider == nil {
		return nil, fmt.Errorf("supervisor requires a provider")
	}
	if registry == nil {
		return nil, fmt.Errorf("supervisor requires a tool registry")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.withDefaults()

	research, err := NewResearchTeam(registry, cfg.TeamMaxSteps, logger)
	if err != nil {
		return nil, err
	}
	writing, err := NewWritingTeam(provider, cfg.Model, registry, cfg.TeamMaxSteps, logger)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		provider: provider,
		decider:  NewDecisionEngine(provider, cfg.Model, logger),
		research: research,
		writing:  writing,
		cache:    cacheMgr,
		counter:  tokenizer.ForModel(cfg.Model),
		config:   cfg,
		logger:   logger.With(zap.String("component", "supervisor")),
	}

	g := graph.NewGraph("supervisor").
		AddNode("supervisor", s.superviseNode).
		AddNode("research_team", s.researchNode).
		AddNode("writing_team", s.writingNode).
		AddNode("final", s.finalNode).
		SetEntry("supervisor").
		AddConditionalEdges("supervisor", RouteTeam, map[string]string{
			TeamResearch: "research_team",
			TeamWriting:  "writing_team",
			TeamBoth:     "research_team",
			TeamDirect:   "final",
		}).
		AddConditionalEdges("research_team", routeAfterResearch, map[string]string{
			"writing_team": "writing_team",
			"final":        "final",
		}).
		AddEdge("writing_team", "final").
		AddEdge("final", graph.End)

	s.top, err = g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile supervisor graph: %w", err)
	}
	s.executor = graph.NewExecutor(
		graph.WithMaxSteps(cfg.MaxSteps),
		graph.WithLogger(s.logger),
	)
	return s, nil
}

// RouteTeam 按监督器决策分派团队，未知标签回退 direct
func RouteTeam(state graph.AgentState) string {
	if ValidTeam(state.Team) {
		return state.Team
	}
	return TeamDirect
}

// routeAfterResearch 在 both 模式下把研究成果交给写作团队
func routeAfterResearch(state graph.AgentState) string {
	if state.Team == TeamBoth {
		return "writing_team"
	}
	return "final"
}

// superviseNode 调用决策引擎并把判定写入状态。
// 解析失败回退 direct 且只记为非致命错误，Provider 失败终止运行。
func (s *Supervisor) superviseNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	decision, err := s.decider.Decide(ctx, state.Task)
	if err != nil {
		var parseErr *DecisionParseError
		if !errors.As(err, &parseErr) {
			return state, err
		}
		state = state.AddError(parseErr.Error())
	}

	state.Team = decision.Team
	state = state.SetResult(resultDecision, decision)
	note := fmt.Sprintf("监督器决策：路由到 %s。理由：%s", decision.Team, decision.Reasoning)
	return state.AddMessage(types.NewSystemMessage(note)), nil
}

// researchNode 在克隆状态上运行研究子图并把产出合并回来
func (s *Supervisor) researchNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	result, err := s.research.Run(ctx, state.Clone())
	if err != nil {
		return state, fmt.Errorf("research team: %w", err)
	}
	return state.MergeFrom(result), nil
}

// writingNode 在克隆状态上运行写作子图并把产出合并回来
func (s *Supervisor) writingNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	result, err := s.writing.Run(ctx, state.Clone())
	if err != nil {
		return state, fmt.Errorf("writing team: %w", err)
	}
	return state.MergeFrom(result), nil
}

// finalNode 综合团队成果生成最终回复。
// 上下文里挂了 token 中继时改用流式调用，逐 token 推送。
func (s *Supervisor) finalNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	req := &llm.ChatRequest{
		Model: s.config.Model,
		Messages: []types.Message{
			types.NewSystemMessage(finalSystemPrompt),
			types.NewUserMessage(buildFinalPrompt(state)),
		},
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}

	var content string
	if relay, ok := ctxkeys.TokenRelay(ctx); ok {
		streamed, err := s.streamFinal(ctx, req, relay)
		if err != nil {
			return state, fmt.Errorf("final node: %w", err)
		}
		content = streamed
	} else {
		resp, err := s.provider.Completion(ctx, req)
		if err != nil {
			return state, fmt.Errorf("final node: %w", err)
		}
		content = resp.FirstContent()
	}

	state = state.SetResult(resultFinalResponse, content)
	return state.AddMessage(types.NewAssistantMessage(content)), nil
}

// streamFinal 消费 Provider 流并把增量推给中继，返回完整文本
func (s *Supervisor) streamFinal(ctx context.Context, req *llm.ChatRequest, relay *streaming.Relay) (string, error) {
	chunks, err := s.provider.Stream(ctx, req)
	if err != nil {
		relay.Fail(err)
		return "", err
	}

	var b strings.Builder
	idx := 0
	for chunk := range chunks {
		if chunk.Err != nil {
			relay.Fail(chunk.Err)
			return "", chunk.Err
		}
		if chunk.Delta.Content == "" {
			continue
		}
		b.WriteString(chunk.Delta.Content)
		relay.Push(streaming.Token{
			Content:   chunk.Delta.Content,
			Index:     idx,
			Timestamp: time.Now(),
			Final:     chunk.FinishReason != "",
		})
		idx++
	}
	relay.Finish()
	return b.String(), nil
}

// buildFinalPrompt 把用户请求与团队产出拼成综合提示
func buildFinalPrompt(state graph.AgentState) string {
	var b strings.Builder
	b.WriteString("用户原始请求：\n")
	b.WriteString(state.Task)

	if summary := state.ResultString(resultResearchSummary); summary != "" {
		b.WriteString("\n\n研究团队发现：\n")
		b.WriteString(summary)
	}
	if doc := state.ResultString(resultFinalDocument); doc != "" {
		b.WriteString("\n\n写作团队成果：\n")
		b.WriteString(doc)
	}

	b.WriteString("\n\n请综合以上内容，生成对用户的最终回复。")
	return b.String()
}

// Process 执行一次完整编排。
// 缓存启用且命中时直接返回缓存结果并附带节省的 token 估算。
func (s *Supervisor) Process(ctx context.Context, task string) (*Result, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, fmt.Errorf("task must not be empty")
	}

	start := time.Now()
	key := s.cacheKey(task)

	if cached, ok := s.lookupCache(ctx, key); ok {
		cached.Duration = time.Since(start)
		return cached, nil
	}

	state, err := s.executor.Run(ctx, s.top, graph.NewAgentState(task))
	if err != nil {
		return nil, err
	}

	result := s.buildResult(state, start)
	s.storeCache(ctx, key, result)
	return result, nil
}

// ProcessStream 执行一次编排并流式下发进度：
// 每个节点完成发 node 事件，最终综合逐 token 发 token 事件，
// 结束时发 done（或 error）事件后关闭通道。
func (s *Supervisor) ProcessStream(ctx context.Context, task string) (<-chan StreamEvent, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, fmt.Errorf("task must not be empty")
	}

	start := time.Now()
	key := s.cacheKey(task)
	events := make(chan StreamEvent, 16)

	if cached, ok := s.lookupCache(ctx, key); ok {
		cached.Duration = time.Since(start)
		go func() {
			defer close(events)
			events <- StreamEvent{Type: EventToken, Content: cached.Response}
			events <- StreamEvent{Type: EventDone, Result: cached}
		}()
		return events, nil
	}

	relay := streaming.NewRelay(
		streaming.WithBufferSize(s.config.StreamBufferSize),
		streaming.WithPollTimeout(s.config.StreamPollTimeout),
	)
	runCtx := ctxkeys.WithTokenRelay(ctx, relay)

	go func() {
		defer close(events)

		emit := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		tokensDone := make(chan struct{})
		go func() {
			defer close(tokensDone)
			for {
				tok, err := relay.Next(runCtx)
				if err != nil {
					return
				}
				if !emit(StreamEvent{Type: EventToken, Content: tok.Content}) {
					return
				}
			}
		}()

		var finalState graph.AgentState
		var runErr error
		for ev := range s.executor.Stream(runCtx, s.top, graph.NewAgentState(task)) {
			if ev.Err != nil {
				runErr = ev.Err
				break
			}
			finalState = ev.State
			if !emit(StreamEvent{Type: EventNode, Node: ev.Node, Step: ev.Step}) {
				runErr = ctx.Err()
				break
			}
		}

		// 运行在最终节点之前失败时，中继还没人收尾
		if runErr != nil {
			relay.Fail(runErr)
		} else {
			relay.Finish()
		}
		<-tokensDone

		if runErr != nil {
			emit(StreamEvent{Type: EventError, Err: runErr})
			return
		}

		result := s.buildResult(finalState, start)
		s.storeCache(ctx, key, result)
		emit(StreamEvent{Type: EventDone, Result: result})
	}()

	return events, nil
}

// StatusReport 是编排层的运行状态快照
type StatusReport struct {
	Provider     string              `json:"provider"`
	Model        string              `json:"model"`
	Healthy      bool                `json:"healthy"`
	Latency      time.Duration       `json:"latency"`
	Teams        map[string][]string `json:"teams"`
	CacheEnabled bool                `json:"cache_enabled"`
}

// ProviderName 返回底层 Provider 名称
func (s *Supervisor) ProviderName() string {
	return s.provider.Name()
}

// Model 返回编排使用的模型名
func (s *Supervisor) Model() string {
	return s.config.Model
}

// Status 汇报 Provider 健康与团队编成
func (s *Supervisor) Status(ctx context.Context) StatusReport {
	report := StatusReport{
		Provider: s.provider.Name(),
		Model:    s.config.Model,
		Teams: map[string][]string{
			"research": s.research.Workers(),
			"writing":  s.writing.Workers(),
		},
		CacheEnabled: s.cacheEnabled(),
	}
	if hs, err := s.provider.HealthCheck(ctx); err == nil && hs != nil {
		report.Healthy = hs.Healthy
		report.Latency = hs.Latency
	}
	return report
}

func (s *Supervisor) buildResult(state graph.AgentState, start time.Time) *Result {
	var decision Decision
	if v, ok := state.Result(resultDecision); ok {
		if d, ok := v.(Decision); ok {
			decision = d
		}
	}
	return &Result{
		Response:        state.ResultString(resultFinalResponse),
		Decision:        decision,
		ResearchSummary: state.ResultString(resultResearchSummary),
		FinalDocument:   state.ResultString(resultFinalDocument),
		Messages:        state.Messages,
		Errors:          state.Errors,
		Duration:        time.Since(start),
	}
}

func (s *Supervisor) cacheEnabled() bool {
	return s.cache != nil && s.config.CacheEnabled
}

// cacheKey 由 Provider、模型与任务文本哈希而成，跨请求稳定
func (s *Supervisor) cacheKey(task string) string {
	sum := sha256.Sum256([]byte(s.provider.Name() + "\x00" + s.config.Model + "\x00" + task))
	return responseCachePrefix + hex.EncodeToString(sum[:])[:32]
}

func (s *Supervisor) lookupCache(ctx context.Context, key string) (*Result, bool) {
	if !s.cacheEnabled() {
		return nil, false
	}
	var cached Result
	err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			s.logger.Warn("响应缓存读取失败", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	cached.Cached = true
	if n, cerr := s.counter.CountTokens(cached.Response); cerr == nil {
		cached.TokensSaved = n
	}
	s.logger.Info("响应缓存命中", zap.String("key", key), zap.Int("tokens_saved", cached.TokensSaved))
	return &cached, true
}

func (s *Supervisor) storeCache(ctx context.Context, key string, result *Result) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.SetJSON(ctx, key, result, s.config.CacheTTL); err != nil {
		s.logger.Warn("响应缓存写入失败", zap.String("key", key), zap.Error(err))
	}
}
