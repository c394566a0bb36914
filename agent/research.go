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
	"github.com/BaSui01/teamflow/tools"
	"github.com/BaSui01/teamflow/types"
)

// 研究团队的状态结果键
const (
	resultSearchResults   = "search_results"
	resultScrapedContent  = "scraped_content"
	resultResearchSummary = "research_summary"
)

// scrapedPage 是抓取节点存入状态的单页摘录
type scrapedPage struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ResearchTeam 封装研究子图：路由节点在搜索、抓取、分析三个
// 工作节点之间调度，分析节点产出研究总结后结束。
type ResearchTeam struct {
	registry   tools.ToolRegistry
	executor   *graph.Executor
	compiled   *graph.CompiledGraph
	maxResults int
	logger     *zap.Logger
}

// NewResearchTeam 组装并编译研究子图。
// maxSteps 限制子图单次运行的节点执行数，防止路由循环失控。
func NewResearchTeam(registry tools.ToolRegistry, maxSteps int, logger *zap.Logger) (*ResearchTeam, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &ResearchTeam{
		registry:   registry,
		maxResults: 5,
		logger:     logger.With(zap.String("component", "research_team")),
	}

	g := graph.NewGraph("research_team").
		AddNode("router", routerPassthrough).
		AddNode("search", t.searchNode).
		AddNode("scrape", t.scrapeNode).
		AddNode("analyze", t.analyzeNode).
		SetEntry("router").
		AddConditionalEdges("router", RouteResearch, map[string]string{
			"search":  "search",
			"scrape":  "scrape",
			"analyze": "analyze",
		}).
		AddEdge("search", "router").
		AddEdge("scrape", "router").
		AddEdge("analyze", graph.End)

	compiled, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile research graph: %w", err)
	}

	t.compiled = compiled
	t.executor = graph.NewExecutor(
		graph.WithMaxSteps(maxSteps),
		graph.WithLogger(t.logger),
	)
	return t, nil
}

// Run 在独立的状态副本上执行研究子图
func (t *ResearchTeam) Run(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	return t.executor.Run(ctx, t.compiled, state)
}

// Graph 返回编译后的研究子图
func (t *ResearchTeam) Graph() *graph.CompiledGraph { return t.compiled }

// Workers 返回研究团队的工作节点名
func (t *ResearchTeam) Workers() []string { return []string{"search", "scrape", "analyze"} }

// routerPassthrough 路由节点本身不改状态，调度逻辑在条件边上
func routerPassthrough(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	return state, nil
}

// RouteResearch 根据最新消息内容决定下一个研究节点。
// 优先级：已有数据且要求分析、搜索关键词、抓取关键词、
// 纯分析关键词，兜底搜索。
func RouteResearch(state graph.AgentState) string {
	content := lastMessageContent(state)

	hasData := state.HasResult(resultSearchResults) || state.HasResult(resultScrapedContent)
	analyzeAsked := content == "" || containsAny(content,
		"analyze", "summary", "conclude", "分析", "总结")

	if hasData && analyzeAsked {
		return "analyze"
	}
	if containsAny(content, "search", "find", "lookup", "搜索", "查找") {
		return "search"
	}
	if containsAny(content, "scrape", "extract", "fetch", "http", "网页", "抓取") {
		return "scrape"
	}
	if containsAny(content, "analyze", "summary", "conclude", "分析", "总结") {
		return "analyze"
	}
	return "search"
}

// searchNode 调用 web_search 工具检索任务相关资料。
// 工具失败降级为记录错误并继续流转，不中断子图。
func (t *ResearchTeam) searchNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	out, err := t.invokeTool(ctx, "web_search", map[string]any{
		"query":       strings.TrimSpace(state.Task),
		"max_results": t.maxResults,
	})
	if err != nil {
		t.logger.Warn("搜索工具调用失败", zap.Error(err))
		state = state.AddError(fmt.Sprintf("web_search failed: %v", err))
		// 过程消息里避开路由关键词，否则失败会被反复派回本节点
		return state.AddMessage(assistantNote("search", "检索未能完成，请基于已有信息分析总结。")), nil
	}

	var env struct {
		Results    []tools.SearchResult `json:"results"`
		TotalCount int                  `json:"total_count"`
	}
	if err := json.Unmarshal(out, &env); err != nil {
		state = state.AddError(fmt.Sprintf("web_search result decode failed: %v", err))
		return state.AddMessage(assistantNote("search", "检索结果无法解析，请基于已有信息分析总结。")), nil
	}

	if len(env.Results) > 0 {
		state = state.SetResult(resultSearchResults, env.Results)
	}
	t.logger.Info("搜索完成",
		zap.String("query", state.Task),
		zap.Int("results", len(env.Results)),
	)
	note := fmt.Sprintf("检索完成，共 %d 条结果，请分析总结。", len(env.Results))
	return state.AddMessage(assistantNote("search", note)), nil
}

// scrapeNode 调用 web_scraper 抓取任务中出现的首个链接
func (t *ResearchTeam) scrapeNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	url := firstURL(state.Task)
	if url == "" {
		url = firstURL(lastMessageContent(state))
	}
	if url == "" {
		state = state.AddError("scrape requested but no url found in task")
		return state.AddMessage(assistantNote("scrape", "任务中没有可用链接，请基于已有信息分析总结。")), nil
	}

	out, err := t.invokeTool(ctx, "web_scraper", map[string]any{"url": url})
	if err != nil {
		t.logger.Warn("抓取工具调用失败", zap.String("url", url), zap.Error(err))
		state = state.AddError(fmt.Sprintf("web_scraper failed for %s: %v", url, err))
		return state.AddMessage(assistantNote("scrape", "页面获取失败，请基于已有信息分析总结。")), nil
	}

	var env struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(out, &env); err != nil {
		state = state.AddError(fmt.Sprintf("web_scraper result decode failed: %v", err))
		return state.AddMessage(assistantNote("scrape", "页面内容无法解析，请基于已有信息分析总结。")), nil
	}

	pages := existingPages(state)
	pages = append(pages, scrapedPage{URL: env.URL, Title: env.Title, Content: env.Content})
	state = state.SetResult(resultScrapedContent, pages)

	t.logger.Info("抓取完成", zap.String("url", env.URL), zap.Int("pages", len(pages)))
	note := fmt.Sprintf("网页抓取完成（%s），请分析总结抓取内容。", env.URL)
	return state.AddMessage(assistantNote("scrape", note)), nil
}

// analyzeNode 把搜索与抓取产出汇编成研究总结
func (t *ResearchTeam) analyzeNode(ctx context.Context, state graph.AgentState) (graph.AgentState, error) {
	summary := buildResearchSummary(state)
	state = state.SetResult(resultResearchSummary, summary)
	t.logger.Info("研究总结生成", zap.Int("length", len(summary)))
	return state.AddMessage(assistantNote("analyze", "研究工作已完成。")), nil
}

// invokeTool 从注册表取出工具并在其元数据超时内执行
func (t *ResearchTeam) invokeTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	fn, meta, err := t.registry.Get(name)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", name, err)
	}
	if meta.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, meta.Timeout)
		defer cancel()
	}
	return fn(ctx, payload)
}

// buildResearchSummary 按固定版式汇编研究数据：
// 搜索取前 3 条（摘要截 200 字），抓取取前 2 页（正文截 300 字）。
// 没有任何数据时返回占位文案。
func buildResearchSummary(state graph.AgentState) string {
	var parts []string

	if v, ok := state.Result(resultSearchResults); ok {
		if results, ok := v.([]tools.SearchResult); ok && len(results) > 0 {
			parts = append(parts, "## 搜索发现")
			for i, r := range results {
				if i >= 3 {
					break
				}
				parts = append(parts, fmt.Sprintf("%d. %s: %s...", i+1, r.Title, truncateRunes(r.Snippet, 200)))
			}
		}
	}

	if pages := existingPages(state); len(pages) > 0 {
		parts = append(parts, "## 网页内容摘要")
		for i, p := range pages {
			if i >= 2 {
				break
			}
			parts = append(parts, fmt.Sprintf("%d. %s: %s...", i+1, p.URL, truncateRunes(p.Content, 300)))
		}
	}

	if len(parts) == 0 {
		return "暂无研究数据"
	}
	return strings.Join(parts, "\n\n")
}

func existingPages(state graph.AgentState) []scrapedPage {
	v, ok := state.Result(resultScrapedContent)
	if !ok {
		return nil
	}
	pages, _ := v.([]scrapedPage)
	return pages
}

// firstURL 返回文本中首个 http(s) 链接，去掉结尾标点
func firstURL(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return strings.TrimRight(field, "，。,.;；)")
		}
	}
	return ""
}

func lastMessageContent(state graph.AgentState) string {
	if len(state.Messages) == 0 {
		return ""
	}
	return strings.ToLower(state.Messages[len(state.Messages)-1].Content)
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// assistantNote 构造带节点署名的过程消息，路由器靠它的内容决定下一步
func assistantNote(node, content string) types.Message {
	return types.NewAssistantMessage(content).WithName(node)
}
