// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BaSui01/teamflow/graph"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/llm/streaming"
	"github.com/BaSui01/teamflow/types"
)

// TestContext 返回带 5 秒超时的测试上下文，超时自动清理
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带指定超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文，用于取消路径测试
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// WaitFor 轮询 condition 直到为真或超时，超时让测试失败
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for: %s", timeout, msg)
}

// WaitForChannel 等待通道送达一个值或超时
func WaitForChannel[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		var zero T
		t.Fatalf("timed out after %v waiting for channel value", timeout)
		return zero
	}
}

// MustJSON 序列化对象，失败时让测试失败
func MustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %T: %v", v, err)
	}
	return data
}

// MustParseJSON 反序列化 JSON，失败时让测试失败
func MustParseJSON[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal into %T: %v", v, err)
	}
	return v
}

// CopyMessages 深拷贝消息切片，隔离测试间的共享状态
func CopyMessages(msgs []types.Message) []types.Message {
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if len(msgs[i].ToolCalls) > 0 {
			out[i].ToolCalls = make([]types.ToolCall, len(msgs[i].ToolCalls))
			copy(out[i].ToolCalls, msgs[i].ToolCalls)
		}
	}
	return out
}

// CollectStreamChunks 排空 StreamChunk 通道并返回全部分块
func CollectStreamChunks(ch <-chan llm.StreamChunk) []llm.StreamChunk {
	var chunks []llm.StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	return chunks
}

// CollectStreamContent 排空 StreamChunk 通道并拼接全部增量文本
func CollectStreamContent(ch <-chan llm.StreamChunk) string {
	var sb []byte
	for c := range ch {
		sb = append(sb, c.Delta.Content...)
	}
	return string(sb)
}

// CollectTokens 排空 Token 通道，返回全部 token 与拼接后的文本
func CollectTokens(ch <-chan streaming.Token) ([]streaming.Token, string) {
	var toks []streaming.Token
	var sb []byte
	for tok := range ch {
		toks = append(toks, tok)
		sb = append(sb, tok.Content...)
	}
	return toks, string(sb)
}

// CollectStepEvents 排空图执行事件通道
func CollectStepEvents(ch <-chan graph.StepEvent) []graph.StepEvent {
	var events []graph.StepEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

// SendChunks 把文本分块送入新通道并关闭，模拟 Provider 流式输出
func SendChunks(contents ...string) <-chan llm.StreamChunk {
	out := make(chan llm.StreamChunk, len(contents))
	for i, c := range contents {
		chunk := llm.StreamChunk{
			Index: i,
			Delta: types.Message{Role: types.RoleAssistant, Content: c},
		}
		if i == len(contents)-1 {
			chunk.FinishReason = "stop"
		}
		out <- chunk
	}
	close(out)
	return out
}
