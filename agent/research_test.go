package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/graph"
	"github.com/BaSui01/teamflow/testutil/fixtures"
	"github.com/BaSui01/teamflow/testutil/mocks"
	"github.com/BaSui01/teamflow/tools"
)

// newResearchRegistry 注册返回固定数据的研究工具
func newResearchRegistry(t *testing.T) tools.ToolRegistry {
	t.Helper()
	registry := tools.NewDefaultRegistry(zap.NewNop())

	searchFn, searchMeta := mocks.StaticTool(`{
		"query": "q",
		"results": [
			{"title": "量子纠错突破", "url": "https://example.com/a", "snippet": "逻辑量子比特错误率首次低于物理比特", "score": 0.9},
			{"title": "新一代量子处理器", "url": "https://example.com/b", "snippet": "1121 个量子比特", "score": 0.8},
			{"title": "量子机器学习", "url": "https://example.com/c", "snippet": "变分量子线路", "score": 0.7},
			{"title": "第四条结果", "url": "https://example.com/d", "snippet": "不应进入总结", "score": 0.6}
		],
		"total_count": 4
	}`)
	require.NoError(t, registry.Register("web_search", searchFn, searchMeta))

	scrapeFn, scrapeMeta := mocks.StaticTool(`{
		"url": "https://example.com/report",
		"title": "年度报告",
		"content": "量子计算进入纠错时代，行业投入持续增长。",
		"length": 20,
		"truncated": false
	}`)
	require.NoError(t, registry.Register("web_scraper", scrapeFn, scrapeMeta))

	return registry
}

func TestRouteResearch_关键词路由(t *testing.T) {
	for _, tc := range fixtures.ResearchRoutingCases() {
		t.Run(tc.Name, func(t *testing.T) {
			state := graph.NewAgentState(tc.Task)
			assert.Equal(t, tc.Want, RouteResearch(state))
		})
	}
}

func TestRouteResearch_已有数据优先分析(t *testing.T) {
	state := graph.NewAgentState("analyze these results")
	state = state.SetResult(resultSearchResults, []tools.SearchResult{{Title: "t"}})
	assert.Equal(t, "analyze", RouteResearch(state))

	// 已有数据但消息仍在要求搜索时继续搜索
	state2 := graph.NewAgentState("继续搜索更多资料")
	state2 = state2.SetResult(resultSearchResults, []tools.SearchResult{{Title: "t"}})
	assert.Equal(t, "search", RouteResearch(state2))

	// 空消息内容且有数据时直接分析
	state3 := graph.AgentState{Results: map[string]any{
		resultScrapedContent: []scrapedPage{{URL: "u"}},
	}}
	assert.Equal(t, "analyze", RouteResearch(state3))
}

func TestResearchTeam_检索到分析全流程(t *testing.T) {
	team, err := NewResearchTeam(newResearchRegistry(t), 10, zap.NewNop())
	require.NoError(t, err)

	final, err := team.Run(context.Background(), graph.NewAgentState("搜索量子计算最新进展"))
	require.NoError(t, err)

	summary := final.ResultString(resultResearchSummary)
	require.NotEmpty(t, summary)
	assert.Contains(t, summary, "## 搜索发现")
	assert.Contains(t, summary, "1. 量子纠错突破")
	assert.Contains(t, summary, "3. 量子机器学习")
	assert.NotContains(t, summary, "第四条结果", "总结只收录前三条")

	assert.Equal(t, "analyze", final.CurrentStep)
	assert.Empty(t, final.Errors)
}

func TestResearchTeam_抓取流程(t *testing.T) {
	team, err := NewResearchTeam(newResearchRegistry(t), 10, zap.NewNop())
	require.NoError(t, err)

	final, err := team.Run(context.Background(), graph.NewAgentState("抓取 https://example.com/report 的网页内容"))
	require.NoError(t, err)

	summary := final.ResultString(resultResearchSummary)
	assert.Contains(t, summary, "## 网页内容摘要")
	assert.Contains(t, summary, "https://example.com/report")
	assert.Contains(t, summary, "纠错时代")
}

func TestResearchTeam_工具失败降级(t *testing.T) {
	registry := tools.NewDefaultRegistry(zap.NewNop())
	failFn, failMeta := mocks.FailingTool(errors.New("search backend down"))
	require.NoError(t, registry.Register("web_search", failFn, failMeta))

	team, err := NewResearchTeam(registry, 10, zap.NewNop())
	require.NoError(t, err)

	final, err := team.Run(context.Background(), graph.NewAgentState("搜索量子计算"))
	require.NoError(t, err, "工具失败不应中断子图")

	assert.Equal(t, "暂无研究数据", final.ResultString(resultResearchSummary))
	require.NotEmpty(t, final.Errors)
	assert.Contains(t, final.Errors[0], "web_search failed")
}

func TestResearchTeam_无链接抓取降级(t *testing.T) {
	team, err := NewResearchTeam(newResearchRegistry(t), 10, zap.NewNop())
	require.NoError(t, err)

	final, err := team.Run(context.Background(), graph.NewAgentState("抓取相关网页"))
	require.NoError(t, err)

	assert.Equal(t, "暂无研究数据", final.ResultString(resultResearchSummary))
	require.NotEmpty(t, final.Errors)
	assert.Contains(t, final.Errors[0], "no url")
}

func TestResearchTeam_步数上限防护(t *testing.T) {
	// 路由器从不终止的极端预算下返回 RoutingLoopError
	team, err := NewResearchTeam(newResearchRegistry(t), 1, zap.NewNop())
	require.NoError(t, err)

	_, err = team.Run(context.Background(), graph.NewAgentState("搜索量子计算"))
	require.Error(t, err)

	var loopErr *graph.RoutingLoopError
	assert.ErrorAs(t, err, &loopErr)
}

func TestBuildResearchSummary_截断规则(t *testing.T) {
	longSnippet := strings.Repeat("雪", 250)
	state := graph.NewAgentState("任务")
	state = state.SetResult(resultSearchResults, []tools.SearchResult{
		{Title: "标题", Snippet: longSnippet},
	})

	summary := buildResearchSummary(state)
	assert.Contains(t, summary, strings.Repeat("雪", 200)+"...")
	assert.NotContains(t, summary, strings.Repeat("雪", 201))
}

func TestBuildResearchSummary_无数据占位(t *testing.T) {
	assert.Equal(t, "暂无研究数据", buildResearchSummary(graph.NewAgentState("任务")))
}

func TestFirstURL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "https链接", text: "抓取 https://example.com/a 的内容", want: "https://example.com/a"},
		{name: "http链接", text: "see http://example.com", want: "http://example.com"},
		{name: "句尾标点剥离", text: "请读 https://example.com/b。", want: "https://example.com/b"},
		{name: "无链接", text: "没有任何链接", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstURL(tt.text))
		})
	}
}
