package ctxkeys

import (
	"context"

	"github.com/BaSui01/teamflow/llm/streaming"
)

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey    contextKey = "trace_id"
	runIDKey      contextKey = "run_id"
	llmModelKey   contextKey = "llm_model"
	tokenRelayKey contextKey = "token_relay"
)

// WithTraceID 设置 TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRunID 设置运行 ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取运行 ID
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithLLMModel 设置模型覆盖（单次请求内生效）
func WithLLMModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, llmModelKey, model)
}

// LLMModel 获取模型覆盖
func LLMModel(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(llmModelKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithTokenRelay 把流式 token 中继挂到 context 上。
// 最终综合节点检测到中继存在时改用流式调用并逐 token 推送。
func WithTokenRelay(ctx context.Context, relay *streaming.Relay) context.Context {
	return context.WithValue(ctx, tokenRelayKey, relay)
}

// TokenRelay 获取流式 token 中继
func TokenRelay(ctx context.Context) (*streaming.Relay, bool) {
	v, ok := ctx.Value(tokenRelayKey).(*streaming.Relay)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
