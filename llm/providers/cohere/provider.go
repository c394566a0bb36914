// Package cohere 提供 Cohere v2 Chat API 的原生 Provider 适配。
// Cohere 不走 OpenAI 兼容协议：响应内容是分块数组，流式事件带 type
// 字段，因此本包自行实现请求构建与 SSE 解析。
package cohere

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/internal/tlsutil"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/llm/providers"
	"github.com/BaSui01/teamflow/types"
)

// CohereProvider 实现 Cohere v2 Chat API。
type CohereProvider struct {
	cfg    providers.CohereConfig
	client *http.Client
	logger *zap.Logger
}

// NewCohereProvider 创建新的 Cohere 提供者实例.
func NewCohereProvider(cfg providers.CohereConfig, logger *zap.Logger) *CohereProvider {
	cfg.BaseProviderConfig = cfg.WithDefaults(providers.CohereDefaultBaseURL, providers.CohereDefaultModel)
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CohereProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", "cohere")),
	}
}

func (p *CohereProvider) Name() string { return "cohere" }

func (p *CohereProvider) SupportsNativeFunctionCalling() bool { return true }

// ===== v2 wire types =====

type cohereMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []cohereToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type cohereToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function cohereFunction `json:"function"`
}

type cohereFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type cohereTool struct {
	Type     string         `json:"type"`
	Function cohereFunction `json:"function"`
}

type cohereRequest struct {
	Model       string          `json:"model"`
	Messages    []cohereMessage `json:"messages"`
	Tools       []cohereTool    `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	P           float32         `json:"p,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type cohereContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cohereUsage struct {
	BilledUnits struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"billed_units"`
	Tokens struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"tokens"`
}

type cohereResponse struct {
	ID           string `json:"id"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role      string               `json:"role"`
		Content   []cohereContentBlock `json:"content"`
		ToolCalls []cohereToolCall     `json:"tool_calls,omitempty"`
	} `json:"message"`
	Usage *cohereUsage `json:"usage,omitempty"`
}

// cohereStreamEvent 是 v2 流式事件的统一外壳，按 type 区分。
type cohereStreamEvent struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`
	Delta struct {
		Message struct {
			Content struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
		FinishReason string       `json:"finish_reason,omitempty"`
		Usage        *cohereUsage `json:"usage,omitempty"`
	} `json:"delta"`
}

func mapFinishReason(reason string) string {
	switch reason {
	case "COMPLETE":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "TOOL_CALL":
		return "tool_calls"
	case "":
		return ""
	default:
		return strings.ToLower(reason)
	}
}

func (p *CohereProvider) buildBody(req *llm.ChatRequest, stream bool) cohereRequest {
	body := cohereRequest{
		Model:         providers.ChooseModel(req, p.cfg.Model, providers.CohereDefaultModel),
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		P:             req.TopP,
		StopSequences: req.Stop,
		Stream:        stream,
	}

	body.Messages = make([]cohereMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		cm := cohereMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, cohereToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: cohereFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		body.Messages = append(body.Messages, cm)
	}

	for _, t := range req.Tools {
		body.Tools = append(body.Tools, cohereTool{
			Type: "function",
			Function: cohereFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return body
}

func (p *CohereProvider) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	return resp, nil
}

// Completion performs a non-streaming chat completion.
func (p *CohereProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := p.post(ctx, "/v2/chat", p.buildBody(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var cr cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	var text strings.Builder
	for _, block := range cr.Message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	msg := types.Message{Role: types.RoleAssistant, Content: text.String()}
	for _, tc := range cr.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	out := &llm.ChatResponse{
		ID:       cr.ID,
		Provider: p.Name(),
		Model:    providers.ChooseModel(req, p.cfg.Model, providers.CohereDefaultModel),
		Choices: []llm.ChatChoice{
			{Index: 0, FinishReason: mapFinishReason(cr.FinishReason), Message: msg},
		},
	}
	if cr.Usage != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     cr.Usage.Tokens.InputTokens,
			CompletionTokens: cr.Usage.Tokens.OutputTokens,
			TotalTokens:      cr.Usage.Tokens.InputTokens + cr.Usage.Tokens.OutputTokens,
		}
	}
	return out, nil
}

// Stream performs a streaming chat completion via SSE events.
func (p *CohereProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.post(ctx, "/v2/chat", p.buildBody(req, true))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	model := providers.ChooseModel(req, p.cfg.Model, providers.CohereDefaultModel)
	ch := make(chan llm.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					select {
					case <-ctx.Done():
					case ch <- llm.StreamChunk{Err: &llm.Error{
						Code: llm.ErrUpstreamError, Message: err.Error(),
						HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
					}}:
					}
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var ev cohereStreamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				select {
				case <-ctx.Done():
				case ch <- llm.StreamChunk{Err: &llm.Error{
					Code: llm.ErrUpstreamError, Message: err.Error(),
					HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
				}}:
				}
				return
			}

			switch ev.Type {
			case "content-delta":
				chunk := llm.StreamChunk{
					ID:       ev.ID,
					Provider: p.Name(),
					Model:    model,
					Index:    ev.Index,
					Delta: types.Message{
						Role:    types.RoleAssistant,
						Content: ev.Delta.Message.Content.Text,
					},
				}
				select {
				case <-ctx.Done():
					return
				case ch <- chunk:
				}
			case "message-end":
				chunk := llm.StreamChunk{
					ID:           ev.ID,
					Provider:     p.Name(),
					Model:        model,
					FinishReason: mapFinishReason(ev.Delta.FinishReason),
					Delta:        types.Message{Role: types.RoleAssistant},
				}
				if ev.Delta.Usage != nil {
					chunk.Usage = &llm.ChatUsage{
						PromptTokens:     ev.Delta.Usage.Tokens.InputTokens,
						CompletionTokens: ev.Delta.Usage.Tokens.OutputTokens,
						TotalTokens:      ev.Delta.Usage.Tokens.InputTokens + ev.Delta.Usage.Tokens.OutputTokens,
					}
				}
				select {
				case <-ctx.Done():
				case ch <- chunk:
				}
				return
			default:
				// message-start / content-start / content-end 等事件无增量内容
			}
		}
	}()
	return ch, nil
}

// HealthCheck verifies the provider is reachable.
func (p *CohereProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("cohere health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}

	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}
