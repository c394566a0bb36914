package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/graph"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/testutil/fixtures"
	"github.com/BaSui01/teamflow/testutil/mocks"
	"github.com/BaSui01/teamflow/tools"
)

const testOutlineJSON = `{"title": "量子计算研究报告", "sections": ["引言", "技术进展", "展望"]}`
const testDraft = "量子纠错在过去一年取得实质性突破，逻辑量子比特成为新的衡量标尺。"

func newWritingRegistry(t *testing.T) tools.ToolRegistry {
	t.Helper()
	registry := tools.NewDefaultRegistry(zap.NewNop())
	chartFn, chartMeta := tools.NewChartGeneratorTool(zap.NewNop())
	require.NoError(t, registry.Register("chart_generator", chartFn, chartMeta))
	return registry
}

func newWritingTeam(t *testing.T, provider llm.Provider) *WritingTeam {
	t.Helper()
	team, err := NewWritingTeam(provider, "deepseek-chat", newWritingRegistry(t), 10, zap.NewNop())
	require.NoError(t, err)
	return team
}

func TestRouteWriting_关键词路由(t *testing.T) {
	for _, tc := range fixtures.WritingRoutingCases() {
		t.Run(tc.Name, func(t *testing.T) {
			state := graph.NewAgentState(tc.Task)
			assert.Equal(t, tc.Want, RouteWriting(state))
		})
	}
}

func TestRouteWriting_齐备后定稿(t *testing.T) {
	state := graph.NewAgentState("请编辑定稿")
	state = state.SetResult(resultOutline, docOutline{Title: "t", Sections: []string{"a"}})
	state = state.SetResult(resultContent, "正文")
	assert.Equal(t, "edit", RouteWriting(state))

	// 空消息内容且产物齐备时直接定稿
	empty := graph.AgentState{Results: map[string]any{
		resultOutline: docOutline{Title: "t"},
		resultContent: "正文",
	}}
	assert.Equal(t, "edit", RouteWriting(empty))

	// 缺正文时不进编辑
	partial := graph.NewAgentState("请编辑定稿")
	partial = partial.SetResult(resultOutline, docOutline{Title: "t"})
	assert.Equal(t, "edit", RouteWriting(partial), "裸编辑关键词仍可进编辑节点")
}

func TestWritingTeam_大纲到定稿全流程(t *testing.T) {
	provider := mocks.NewScriptedProvider(testOutlineJSON, testDraft)
	team := newWritingTeam(t, provider)

	final, err := team.Run(context.Background(), graph.NewAgentState("先列一个文档大纲，然后成文"))
	require.NoError(t, err)

	doc := final.ResultString(resultFinalDocument)
	require.NotEmpty(t, doc)
	assert.Contains(t, doc, "# 量子计算研究报告")
	assert.Contains(t, doc, "## 文档结构")
	assert.Contains(t, doc, "- 引言")
	assert.Contains(t, doc, "- 展望")
	assert.Contains(t, doc, "## 文档内容")
	assert.Contains(t, doc, testDraft)

	assert.Equal(t, "edit", final.CurrentStep)
	assert.Equal(t, 2, provider.CallCount(), "大纲与正文各一次模型调用")
}

func TestWritingTeam_直接撰写缺大纲也能定稿(t *testing.T) {
	provider := mocks.NewScriptedProvider(testDraft)
	team := newWritingTeam(t, provider)

	final, err := team.Run(context.Background(), graph.NewAgentState("撰写一篇量子计算短文"))
	require.NoError(t, err)

	doc := final.ResultString(resultFinalDocument)
	assert.Contains(t, doc, "# 文档标题")
	assert.Contains(t, doc, testDraft)
	assert.NotContains(t, doc, "## 文档结构")
}

func TestWritingTeam_图表流程(t *testing.T) {
	chartSpec := `{"chart_type": "pie", "title": "季度营收", "labels": ["Q1", "Q2"], "values": [40, 60]}`
	provider := mocks.NewScriptedProvider(chartSpec, testOutlineJSON, testDraft)
	team := newWritingTeam(t, provider)

	final, err := team.Run(context.Background(), graph.NewAgentState("为季度数据生成图表"))
	require.NoError(t, err)

	doc := final.ResultString(resultFinalDocument)
	assert.Contains(t, doc, "## 数据图表")
	assert.Contains(t, doc, "### 季度营收")
	assert.Contains(t, doc, "图表类型: pie")
	assert.Contains(t, doc, "```mermaid")
	assert.Contains(t, doc, "## 文档内容")
	assert.Equal(t, 3, provider.CallCount())
}

func TestWritingTeam_大纲解析失败回退(t *testing.T) {
	provider := mocks.NewScriptedProvider("这不是 JSON 格式的大纲", testDraft)
	team := newWritingTeam(t, provider)

	final, err := team.Run(context.Background(), graph.NewAgentState("先列大纲再写"))
	require.NoError(t, err)

	doc := final.ResultString(resultFinalDocument)
	assert.Contains(t, doc, "- 引言")
	assert.Contains(t, doc, "- 主体")
	assert.Contains(t, doc, "- 结论")

	require.NotEmpty(t, final.Errors)
	assert.Contains(t, final.Errors[0], "outline parse failed")
}

func TestWritingTeam_图表数据非法跳过(t *testing.T) {
	badSpec := `{"chart_type": "pie", "title": "坏图", "labels": ["a"], "values": [1, 2, 3]}`
	provider := mocks.NewScriptedProvider(badSpec, testOutlineJSON, testDraft)
	team := newWritingTeam(t, provider)

	final, err := team.Run(context.Background(), graph.NewAgentState("生成图表并成文"))
	require.NoError(t, err)

	doc := final.ResultString(resultFinalDocument)
	assert.NotContains(t, doc, "## 数据图表")
	require.NotEmpty(t, final.Errors)
	assert.Contains(t, final.Errors[0], "chart data invalid")
}

func TestWritingTeam_Provider错误终止(t *testing.T) {
	upstream := &llm.Error{Code: llm.ErrUpstreamTimeout, Message: "timeout"}
	team := newWritingTeam(t, mocks.NewErrorProvider(upstream))

	_, err := team.Run(context.Background(), graph.NewAgentState("撰写文档"))
	require.Error(t, err)

	var llmErr *llm.Error
	assert.ErrorAs(t, err, &llmErr)
}

func TestBuildFinalDocument_无产物占位(t *testing.T) {
	doc := buildFinalDocument(graph.NewAgentState("任务"))
	assert.Contains(t, doc, "# 文档标题")
	assert.Contains(t, doc, "（暂无正文）")
}
