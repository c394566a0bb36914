// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/graph"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/tools"
	"github.com/BaSui01/teamflow/types"
)

// 写作团队的状态结果键
const (
	resultOutline       = "outline"
	resultContent       = "content"
	resultCharts        = "charts"
	resultFinalDocument = "final_document"
)

// docOutline 是大纲节点产出的文档结构
type docOutline struct {
	Title    string   `json:"title"`
	Sections []string `json:"sections"`
}

// chartArtifact 是图表节点产出的单张图定义
type chartArtifact struct {
	Title     string `json:"title"`
	ChartType string `json:"chart_type"`
	Mermaid   string `json:"mermaid"`
}

const outlineSystemPrompt = `你是文档结构专家。根据任务与参考资料设计文档大纲。
只返回 JSON，格式：{"title": "文档标题", "sections": ["章节一", "章节二"]}`

const writeSystemPrompt = `你是专业写作者。根据大纲与参考资料撰写完整正文，
使用 Markdown 格式，直接返回正文，不要附加说明。`

const chartSystemPrompt = `你是数据可视化专家。从任务与资料中提取一组适合绘图的数据。
只返回 JSON，格式：{"chart_type": "pie|bar|line", "title": "图表标题", "labels": ["a", "b"], "values": [1, 2]}`

// WritingTeam 封装写作子图：路由节点在大纲、正文、图表、编辑四个
// 工作节点之间调度，编辑节点汇编最终文档后结束。
type WritingTeam struct {
	provider llm.Provider
	model    string
	registry tools.ToolRegistry
	executor *graph.Executor
	compiled *graph.CompiledGraph
	logger   *zap.Logger
}

// NewWritingTeam 组装并编译写作子图
func NewWritingTeam(provider llm.Provider, model string, registry tools.ToolRegistry, maxSteps int, logger *zap.Logger) (*WritingTeam, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &WritingTeam{
		provider: provider,
		model:    model,
		registry: registry,
		logger:   logger.With(zap.String("component", "writing_team")),
	}

	g := graph.NewGraph("writing_team").
		AddNode("router", routerPassthrough).
		AddNode("outline", t.outlineNode).
		AddNode("write", t.writeNode).
		AddNode("chart", t.chartNode).
		AddNode("edit", t.editNode).
		SetEntry("router").
		AddConditionalEdges("router", RouteWriting, map[string]string{
			"outline": "outline",
			"write":   "write",
			"chart":   "chart",
			"edit":    "edit",
		}).
		AddEdge("outline", "router").
		AddEdge("write", "router").
		AddEdge("chart", "router").
		AddEdge("edit", graph.End)

	compiled, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile writing graph: %w", err)
	}

	t.compiled = compiled
	t.executor = graph.NewExecutor(
		graph.WithMaxSteps(maxSteps),
		graph.WithLogger(t.logger),
	)
	return t, nil
}

// Run 在独立的状态副本上执行写作子图
func (t *WritingTeam) Run(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	return t.executor.Run(ctx, t.compiled, state)
}

// Graph 返回编译后的写作子图
func (t *WritingTeam) Graph() *graph.CompiledGraph { return t.compiled }

// Workers 返回写作团队的工作节点名
func (t *WritingTeam) Workers() []string { return []string{"outline", "write", "chart", "edit"} }

// RouteWriting 根据最新消息内容决定下一个写作节点。
// 大纲与正文齐备且要求定稿时进编辑，其余按大纲、正文、图表、
// 编辑的关键词优先级匹配，兜底大纲。
func RouteWriting(state graph.AgentState) string {
	content := lastMessageContent(state)

	hasOutline := state.HasResult(resultOutline)
	hasContent := state.HasResult(resultContent)
	editAsked := content == "" || containsAny(content, "edit", "final", "编辑", "定稿")

	if hasOutline && hasContent && editAsked {
		return "edit"
	}
	if containsAny(content, "outline", "structure", "大纲", "提纲", "结构") {
		return "outline"
	}
	if containsAny(content, "write", "draft", "compose", "撰写", "写作", "写一", "内容") {
		return "write"
	}
	if containsAny(content, "chart", "graph", "visualiz", "图表", "可视化") {
		return "chart"
	}
	if containsAny(content, "edit", "final", "编辑", "定稿") {
		return "edit"
	}
	return "outline"
}

// outlineNode 让模型产出 JSON 大纲，解析失败时回退到固定结构
func (t *WritingTeam) outlineNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	prompt := state.Task
	if summary := state.ResultString(resultResearchSummary); summary != "" {
		prompt += "\n\n参考资料：\n" + summary
	}

	resp, err := t.provider.Completion(ctx, &llm.ChatRequest{
		Model: t.model,
		Messages: []types.Message{
			types.NewSystemMessage(outlineSystemPrompt),
			types.NewUserMessage(prompt),
		},
		MaxTokens:   512,
		Temperature: 0.3,
	})
	if err != nil {
		return state, fmt.Errorf("outline node: %w", err)
	}

	var outline docOutline
	if perr := unmarshalLenient(resp.FirstContent(), &outline); perr != nil {
		t.logger.Warn("大纲解析失败，使用回退结构", zap.Error(perr))
		state = state.AddError(fmt.Sprintf("outline parse failed: %v", perr))
		outline = docOutline{}
	}
	if outline.Title == "" {
		outline.Title = truncateRunes(strings.TrimSpace(state.Task), 30)
	}
	if len(outline.Sections) == 0 {
		outline.Sections = []string{"引言", "主体", "结论"}
	}

	state = state.SetResult(resultOutline, outline)
	t.logger.Info("大纲生成", zap.String("title", outline.Title), zap.Int("sections", len(outline.Sections)))
	return state.AddMessage(assistantNote("outline", "章节规划完成，开始撰写正文。")), nil
}

// writeNode 让模型按大纲撰写正文
func (t *WritingTeam) writeNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	var b strings.Builder
	b.WriteString(state.Task)
	if outline, ok := outlineFrom(state); ok {
		b.WriteString("\n\n文档大纲：\n")
		b.WriteString(outline.Title)
		for _, s := range outline.Sections {
			b.WriteString("\n- " + s)
		}
	}
	if summary := state.ResultString(resultResearchSummary); summary != "" {
		b.WriteString("\n\n参考资料：\n" + summary)
	}

	resp, err := t.provider.Completion(ctx, &llm.ChatRequest{
		Model: t.model,
		Messages: []types.Message{
			types.NewSystemMessage(writeSystemPrompt),
			types.NewUserMessage(b.String()),
		},
		MaxTokens:   2048,
		Temperature: 0.7,
	})
	if err != nil {
		return state, fmt.Errorf("write node: %w", err)
	}

	content := strings.TrimSpace(resp.FirstContent())
	if content == "" {
		state = state.AddError("write node returned empty draft")
	}
	state = state.SetResult(resultContent, content)
	t.logger.Info("正文完成", zap.Int("length", len(content)))
	return state.AddMessage(assistantNote("write", "正文部分完成，请进行编辑定稿。")), nil
}

// chartNode 让模型提取可绘图数据并调用 chart_generator 渲染。
// 数据提取或工具失败只记录错误，不影响后续成文。
func (t *WritingTeam) chartNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	prompt := state.Task
	if summary := state.ResultString(resultResearchSummary); summary != "" {
		prompt += "\n\n参考资料：\n" + summary
	}

	resp, err := t.provider.Completion(ctx, &llm.ChatRequest{
		Model: t.model,
		Messages: []types.Message{
			types.NewSystemMessage(chartSystemPrompt),
			types.NewUserMessage(prompt),
		},
		MaxTokens:   512,
		Temperature: 0.2,
	})
	if err != nil {
		return state, fmt.Errorf("chart node: %w", err)
	}

	next := assistantNote("chart", "数据图已就绪，接下来规划文档章节。")

	var spec struct {
		ChartType string    `json:"chart_type"`
		Title     string    `json:"title"`
		Labels    []string  `json:"labels"`
		Values    []float64 `json:"values"`
	}
	if perr := unmarshalLenient(resp.FirstContent(), &spec); perr != nil {
		state = state.AddError(fmt.Sprintf("chart data parse failed: %v", perr))
		return state.AddMessage(next), nil
	}
	if len(spec.Labels) == 0 || len(spec.Labels) != len(spec.Values) {
		state = state.AddError("chart data invalid: labels/values mismatch")
		return state.AddMessage(next), nil
	}

	out, terr := t.invokeChartTool(ctx, spec.ChartType, spec.Title, spec.Labels, spec.Values)
	if terr != nil {
		t.logger.Warn("图表工具调用失败", zap.Error(terr))
		state = state.AddError(fmt.Sprintf("chart_generator failed: %v", terr))
		return state.AddMessage(next), nil
	}

	var env struct {
		ChartType string `json:"chart_type"`
		Mermaid   string `json:"mermaid"`
	}
	if perr := json.Unmarshal(out, &env); perr != nil {
		state = state.AddError(fmt.Sprintf("chart_generator result decode failed: %v", perr))
		return state.AddMessage(next), nil
	}

	charts := chartsFrom(state)
	charts = append(charts, chartArtifact{
		Title:     spec.Title,
		ChartType: env.ChartType,
		Mermaid:   env.Mermaid,
	})
	state = state.SetResult(resultCharts, charts)
	t.logger.Info("图表生成", zap.String("type", env.ChartType), zap.Int("charts", len(charts)))
	return state.AddMessage(next), nil
}

// editNode 把大纲、正文和图表汇编成最终文档
func (t *WritingTeam) editNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	doc := buildFinalDocument(state)
	state = state.SetResult(resultFinalDocument, doc)
	t.logger.Info("文档定稿", zap.Int("length", len(doc)))
	return state.AddMessage(assistantNote("edit", "写作工作已完成。")), nil
}

func (t *WritingTeam) invokeChartTool(ctx context.Context, chartType, title string, labels []string, values []float64) (json.RawMessage, error) {
	fn, meta, err := t.registry.Get("chart_generator")
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]any{
		"chart_type": chartType,
		"title":      title,
		"labels":     labels,
		"values":     values,
	})
	if err != nil {
		return nil, err
	}
	if meta.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, meta.Timeout)
		defer cancel()
	}
	return fn(ctx, payload)
}

// buildFinalDocument 按固定版式汇编文档：
// 标题、文档结构、文档内容，以及可选的数据图表附录。
func buildFinalDocument(state graph.AgentState) string {
	outline, _ := outlineFrom(state)
	title := outline.Title
	if title == "" {
		title = "文档标题"
	}

	parts := []string{"# " + title}

	if len(outline.Sections) > 0 {
		var b strings.Builder
		b.WriteString("## 文档结构\n")
		for _, s := range outline.Sections {
			b.WriteString("\n- " + s)
		}
		parts = append(parts, b.String())
	}

	content := state.ResultString(resultContent)
	if content == "" {
		content = "（暂无正文）"
	}
	parts = append(parts, "## 文档内容", content)

	if charts := chartsFrom(state); len(charts) > 0 {
		parts = append(parts, "## 数据图表")
		for _, c := range charts {
			chartTitle := c.Title
			if chartTitle == "" {
				chartTitle = "数据图"
			}
			section := fmt.Sprintf("### %s\n\n图表类型: %s", chartTitle, c.ChartType)
			if c.Mermaid != "" {
				section += "\n\n```mermaid\n" + c.Mermaid + "\n```"
			}
			parts = append(parts, section)
		}
	}

	return strings.Join(parts, "\n\n")
}

func outlineFrom(state graph.AgentState) (docOutline, bool) {
	v, ok := state.Result(resultOutline)
	if !ok {
		return docOutline{}, false
	}
	outline, ok := v.(docOutline)
	return outline, ok
}

func chartsFrom(state graph.AgentState) []chartArtifact {
	v, ok := state.Result(resultCharts)
	if !ok {
		return nil
	}
	charts, _ := v.([]chartArtifact)
	return charts
}
