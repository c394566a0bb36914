package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/types"
)

// =============================================================================
// ⚠️ 上游错误翻译
// =============================================================================

// 部分网关用 529 表示模型过载
const statusModelOverloaded = 529

// 错误体读取上限，防止把整页 HTML 塞进错误消息
const maxErrorBodyBytes = 4 << 10

// MapHTTPError 把上游 HTTP 状态码翻译成 llm.Error 并标注是否可重试。
// 全部 Provider 共用这一份语义：限流、网关故障和过载可重试，
// 鉴权与参数错误不可重试。
func MapHTTPError(status int, msg string, provider string) *llm.Error {
	e := &llm.Error{
		Message:    msg,
		HTTPStatus: status,
		Provider:   provider,
	}

	switch status {
	case http.StatusUnauthorized:
		e.Code = llm.ErrUnauthorized
	case http.StatusForbidden:
		e.Code = llm.ErrForbidden
	case http.StatusTooManyRequests:
		e.Code = llm.ErrRateLimited
		e.Retryable = true
	case http.StatusBadRequest:
		// 一些上游把配额耗尽也报成 400
		if isQuotaMessage(msg) {
			e.Code = llm.ErrQuotaExceeded
		} else {
			e.Code = llm.ErrInvalidRequest
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		e.Code = llm.ErrUpstreamTimeout
		e.Retryable = true
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		e.Code = llm.ErrUpstreamError
		e.Retryable = true
	case statusModelOverloaded:
		e.Code = llm.ErrModelOverloaded
		e.Retryable = true
	default:
		e.Code = llm.ErrUpstreamError
		e.Retryable = status >= 500
	}

	return e
}

// isQuotaMessage 判断 400 响应文本是否实际是配额问题
func isQuotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "quota") ||
		strings.Contains(m, "credit") ||
		strings.Contains(m, "limit")
}

// ReadErrorMessage 从错误响应体里提取人类可读的消息。
// 依次尝试 OpenAI 风格的 {"error":{...}}、Cohere 风格的顶层
// {"message":...}，都不匹配时回退到原始文本。
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil {
		return "failed to read error response"
	}

	var openaiStyle struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &openaiStyle); err == nil && openaiStyle.Error.Message != "" {
		if openaiStyle.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", openaiStyle.Error.Message, openaiStyle.Error.Type)
		}
		return openaiStyle.Error.Message
	}

	var flatStyle struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &flatStyle); err == nil && flatStyle.Message != "" {
		return flatStyle.Message
	}

	return string(data)
}

// =============================================================================
// 📡 OpenAI 兼容线格式
// =============================================================================
// DeepSeek 等走 OpenAI 兼容 API 的 Provider 共用这组线格式类型，
// json 标签与上游协议一一对应，不能改。

// OpenAICompatMessage 线格式消息
type OpenAICompatMessage struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content,omitempty"`
	Name       string                 `json:"name,omitempty"`
	ToolCalls  []OpenAICompatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
}

// OpenAICompatToolCall 线格式工具调用
type OpenAICompatToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function OpenAICompatFunction `json:"function"`
}

// OpenAICompatFunction 线格式函数描述。
// 调用时携带 Arguments，声明时携带 Parameters。
type OpenAICompatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// OpenAICompatTool 线格式工具声明
type OpenAICompatTool struct {
	Type     string               `json:"type"`
	Function OpenAICompatFunction `json:"function"`
}

// OpenAICompatRequest 线格式补全请求
type OpenAICompatRequest struct {
	Model       string                `json:"model"`
	Messages    []OpenAICompatMessage `json:"messages"`
	Tools       []OpenAICompatTool    `json:"tools,omitempty"`
	ToolChoice  interface{}           `json:"tool_choice,omitempty"`
	MaxTokens   int                   `json:"max_tokens,omitempty"`
	Temperature float32               `json:"temperature,omitempty"`
	TopP        float32               `json:"top_p,omitempty"`
	Stop        []string              `json:"stop,omitempty"`
	Stream      bool                  `json:"stream,omitempty"`
}

// OpenAICompatChoice 线格式候选，流式响应填 Delta，非流式填 Message
type OpenAICompatChoice struct {
	Index        int                  `json:"index"`
	FinishReason string               `json:"finish_reason"`
	Message      OpenAICompatMessage  `json:"message"`
	Delta        *OpenAICompatMessage `json:"delta,omitempty"`
}

// OpenAICompatUsage 线格式 token 用量
type OpenAICompatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAICompatResponse 线格式补全响应
type OpenAICompatResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []OpenAICompatChoice `json:"choices"`
	Usage   *OpenAICompatUsage   `json:"usage,omitempty"`
	Created int64                `json:"created,omitempty"`
}

// =============================================================================
// 🔄 内部类型 ↔ 线格式
// =============================================================================

// toWireToolCalls 内部工具调用 → 线格式
func toWireToolCalls(calls []types.ToolCall) []OpenAICompatToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]OpenAICompatToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, OpenAICompatToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: OpenAICompatFunction{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

// fromWireToolCalls 线格式 → 内部工具调用
func fromWireToolCalls(calls []OpenAICompatToolCall) []types.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]types.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// ConvertMessagesToOpenAI 把内部消息历史转成线格式
func ConvertMessagesToOpenAI(msgs []types.Message) []OpenAICompatMessage {
	out := make([]OpenAICompatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, OpenAICompatMessage{
			Role:       string(m.Role),
			Name:       m.Name,
			Content:    m.Content,
			ToolCalls:  toWireToolCalls(m.ToolCalls),
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

// ConvertToolsToOpenAI 把工具 schema 转成线格式声明
func ConvertToolsToOpenAI(tools []llm.ToolSchema) []OpenAICompatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]OpenAICompatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, OpenAICompatTool{
			Type: "function",
			Function: OpenAICompatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// ToLLMChatResponse 把线格式响应转成内部 llm.ChatResponse
func ToLLMChatResponse(oa OpenAICompatResponse, provider string) *llm.ChatResponse {
	choices := make([]llm.ChatChoice, 0, len(oa.Choices))
	for _, c := range oa.Choices {
		choices = append(choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message: types.Message{
				Role:      types.RoleAssistant,
				Content:   c.Message.Content,
				Name:      c.Message.Name,
				ToolCalls: fromWireToolCalls(c.Message.ToolCalls),
			},
		})
	}

	resp := &llm.ChatResponse{
		ID:       oa.ID,
		Provider: provider,
		Model:    oa.Model,
		Choices:  choices,
	}
	if oa.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     oa.Usage.PromptTokens,
			CompletionTokens: oa.Usage.CompletionTokens,
			TotalTokens:      oa.Usage.TotalTokens,
		}
	}
	return resp
}

// ChooseModel 依次取请求模型、Provider 默认模型、内置兜底模型
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}
