// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package fixtures

import (
	"fmt"
	"time"

	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/types"
)

// SimpleResponse 构造单 choice 的文本响应
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-fixture",
		Provider: "mock",
		Model:    "mock-model",
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: types.Message{
					Role:      types.RoleAssistant,
					Content:   content,
					Timestamp: time.Now(),
				},
			},
		},
		Usage:     llm.ChatUsage{PromptTokens: 12, CompletionTokens: 34, TotalTokens: 46},
		CreatedAt: time.Now(),
	}
}

// ResponseWithToolCalls 构造携带工具调用的响应
func ResponseWithToolCalls(calls ...types.ToolCall) *llm.ChatResponse {
	resp := SimpleResponse("")
	resp.Choices[0].FinishReason = "tool_calls"
	resp.Choices[0].Message.ToolCalls = calls
	return resp
}

// StreamChunks 把完整文本切成 n 段增量内容
func StreamChunks(content string, n int) []string {
	if n <= 1 || len(content) <= n {
		return []string{content}
	}
	runes := []rune(content)
	size := (len(runes) + n - 1) / n
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// DecisionJSON 返回合法的监督器决策 JSON
func DecisionJSON(team string) string {
	return fmt.Sprintf(`{"team": %q, "reasoning": "测试固定决策"}`, team)
}

// FencedDecisionJSON 返回包在 ```json 代码块里的决策，
// 模拟模型无视"仅返回 JSON"指令的常见行为
func FencedDecisionJSON(team string) string {
	return "```json\n" + DecisionJSON(team) + "\n```"
}

// BareFencedDecisionJSON 返回包在无语言标记 ``` 代码块里的决策
func BareFencedDecisionJSON(team string) string {
	return "```\n" + DecisionJSON(team) + "\n```"
}

// ProseWrappedDecisionJSON 返回嵌在解释性文字中的决策 JSON
func ProseWrappedDecisionJSON(team string) string {
	return "根据任务内容分析，我的路由决策如下：\n\n" + DecisionJSON(team) + "\n\n以上就是我的判断。"
}

// InvalidDecisionPayloads 返回一组解析必然失败的监督器输出
func InvalidDecisionPayloads() []string {
	return []string{
		"",
		"我认为应该交给研究团队处理。",
		`{"team": }`,
		`{"group": "research", "reasoning": "字段名错误"}`,
		`{"team": "marketing", "reasoning": "未知团队标签"}`,
		"```json\n{broken\n```",
	}
}

// ResearchSummaryReply 返回研究团队分析节点产出样例
func ResearchSummaryReply() string {
	return "## 搜索发现\n\n1. 量子计算 2025 年度综述: 过去一年量子纠错取得突破...\n\n## 网页内容摘要\n\n1. https://example.com/quantum-review: 逻辑量子比特错误率首次低于物理比特..."
}

// FinalDocumentReply 返回写作团队编辑节点产出样例
func FinalDocumentReply() string {
	return "# 量子计算研究报告\n\n## 文档结构\n\n- 引言\n- 技术进展\n- 展望\n\n## 文档内容\n\n量子纠错在过去一年取得实质性突破。"
}

// SynthesisReply 返回最终综合节点的回复样例
func SynthesisReply() string {
	return "综合研究发现与写作成果，量子计算在 2025 年进入纠错时代，逻辑量子比特成为衡量进展的新标尺。"
}
