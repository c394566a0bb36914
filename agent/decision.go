// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/types"
)

// 团队标签，监督器决策只能取这四个值
const (
	TeamResearch = "research"
	TeamWriting  = "writing"
	TeamBoth     = "both"
	TeamDirect   = "direct"
)

// Decision 是监督器对一条用户任务的路由判定
type Decision struct {
	Team      string `json:"team"`
	Reasoning string `json:"reasoning"`
}

// DecisionParseError 表示监督器输出无法解析成合法决策。
// 该错误不终止运行，调用方应回退到 direct 路由并记录原始输出。
type DecisionParseError struct {
	Raw string
}

func (e *DecisionParseError) Error() string {
	raw := e.Raw
	if r := []rune(raw); len(r) > 120 {
		raw = string(r[:120]) + "…"
	}
	return fmt.Sprintf("unparseable supervisor decision: %q", raw)
}

const supervisorSystemPrompt = `你是多智能体系统的顶层监督器，负责把用户请求路由到合适的团队。

可选团队：
- research: 研究团队（网页搜索、内容抓取、数据分析），适合需要收集外部信息的任务
- writing: 写作团队（大纲、正文、图表、编辑定稿），适合写作与文档整理任务
- both: 先研究后写作，适合"调研并成文"的复合任务
- direct: 简单请求，无需团队协作，由你直接回答

只返回 JSON，不要附加任何解释：
{"team": "research|writing|both|direct", "reasoning": "选择理由"}`

// DecisionEngine 调用
// LLM 对任务分类并解析返回的决策 JSON。
type DecisionEngine struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewDecisionEngine 创建决策引擎
func NewDecisionEngine(provider llm.Provider, model string, logger *zap.Logger) *DecisionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionEngine{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "decision_engine")),
	}
}

// Decide 对任务做一次路由分类。
//
// Provider 调用失败时返回错误且无可用决策；模型输出解析失败时返回
// 回退决策（direct）和 *DecisionParseError，调用方可把它记为非致命错误。
func (d *DecisionEngine) Decide(ctx context.Context, task string) (Decision, error) {
	req := &llm.ChatRequest{
		Model: d.model,
		Messages: []types.Message{
			types.NewSystemMessage(supervisorSystemPrompt),
			types.NewUserMessage(task),
		},
		MaxTokens:   256,
		Temperature: 0,
	}

	resp, err := d.provider.Completion(ctx, req)
	if err != nil {
		return Decision{}, fmt.Errorf("supervisor decision: %w", err)
	}

	raw := resp.FirstContent()
	decision, err := ParseDecision(raw)
	if err != nil {
		d.logger.Warn("决策解析失败，回退到 direct",
			zap.String("raw", raw),
			zap.Error(err),
		)
		return fallbackDecision(), err
	}

	d.logger.Debug("路由决策完成",
		zap.String("team", decision.Team),
		zap.String("reasoning", decision.Reasoning),
	)
	return decision, nil
}

func fallbackDecision() Decision {
	return Decision{Team: TeamDirect, Reasoning: "fallback: parse failure"}
}

// ParseDecision 从模型输出中解析决策 JSON。
// 依次尝试直接解析、```json 代码块、无语言标记代码块和首个花括号区段，
// 容忍模型在 JSON 外附加解释文字。
func ParseDecision(raw string) (Decision, error) {
	for _, candidate := range jsonCandidates(raw) {
		var d Decision
		if err := json.Unmarshal([]byte(candidate), &d); err != nil {
			continue
		}
		d.Team = strings.ToLower(strings.TrimSpace(d.Team))
		if ValidTeam(d.Team) {
			return d, nil
		}
	}
	return Decision{}, &DecisionParseError{Raw: raw}
}

// ValidTeam 判断 team 是否为合法标签
func ValidTeam(team string) bool {
	switch team {
	case TeamResearch, TeamWriting, TeamBoth, TeamDirect:
		return true
	}
	return false
}

// jsonCandidates 返回可能包含 JSON 的文本片段，按可信度排序
func jsonCandidates(raw string) []string {
	var candidates []string
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		candidates = append(candidates, trimmed)
	}
	if c := extractFencedBlock(raw, "```json"); c != "" {
		candidates = append(candidates, c)
	}
	if c := extractFencedBlock(raw, "```"); c != "" {
		candidates = append(candidates, c)
	}
	if c := extractBraced(raw); c != "" {
		candidates = append(candidates, c)
	}
	return candidates
}

// extractFencedBlock 提取 marker 与下一个 ``` 之间的内容。
// marker 为 "```" 时跳过紧随其后的语言标记行。
func extractFencedBlock(raw, marker string) string {
	start := strings.Index(raw, marker)
	if start < 0 {
		return ""
	}
	rest := raw[start+len(marker):]
	if marker == "```" {
		if nl := strings.Index(rest, "\n"); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(rest), "{") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// extractBraced 提取首个 { 到最后一个 } 的区段
func extractBraced(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(raw[start : end+1])
}

// unmarshalLenient 用与 ParseDecision 相同的候选策略解析任意 JSON 结构，
// 供大纲、图表等需要模型返回 JSON 的节点复用。
func unmarshalLenient(raw string, dest any) error {
	var lastErr error
	for _, candidate := range jsonCandidates(raw) {
		if err := json.Unmarshal([]byte(candidate), dest); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no JSON content found")
	}
	return lastErr
}
