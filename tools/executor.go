package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/teamflow/types"
)

// ToolExecutionError 工具执行失败
//
// 包装底层原因，errors.As 可取出工具名，errors.Is 穿透到根因。
type ToolExecutionError struct {
	Tool string
	Err  error
}

// Error 实现 error 接口
func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

// Unwrap 返回底层错误
func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// ToolResult 工具执行结果信封
//
// Error 字段承载错误文本供模型与前端消费，Err 承载结构化错误
// 供调用方用 errors.Is/As 判定，两者同生同灭。
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Err        error           `json:"-"`
	Duration   time.Duration   `json:"duration"`
}

// Failed 判断该次执行是否失败
func (r *ToolResult) Failed() bool {
	return r.Err != nil
}

// ToolExecutor 工具执行器接口
type ToolExecutor interface {
	Execute(ctx context.Context, calls []types.ToolCall) []ToolResult
	ExecuteOne(ctx context.Context, call types.ToolCall) ToolResult
}

// =============================================================================
// ⚙️ DefaultExecutor
// =============================================================================

// DefaultExecutor 默认工具执行器
//
// 每次调用带独立超时（取元数据配置，默认 30s），多个调用并发执行，
// 结果顺序与输入一致。
type DefaultExecutor struct {
	registry ToolRegistry
	logger   *zap.Logger
}

// NewDefaultExecutor 创建默认的工具执行器
func NewDefaultExecutor(registry ToolRegistry, logger *zap.Logger) *DefaultExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultExecutor{
		registry: registry,
		logger:   logger.With(zap.String("component", "tool_executor")),
	}
}

// maxConcurrentToolCalls 单批调用的并发上限。模型一次决策可能给出
// 很多工具调用，不设限会瞬间打满下游限速。
const maxConcurrentToolCalls = 4

// Execute 并发执行一批工具调用，结果按输入顺序返回
func (e *DefaultExecutor) Execute(ctx context.Context, calls []types.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	var g errgroup.Group
	g.SetLimit(maxConcurrentToolCalls)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(ctx, call)
			return nil
		})
	}
	// 失败封装在各自的 ToolResult 里，这里恒为 nil
	_ = g.Wait()

	return results
}

// ExecuteOne 执行单个工具调用
func (e *DefaultExecutor) ExecuteOne(ctx context.Context, call types.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		e.fail(&result, start, err)
		e.logger.Error("tool not found", zap.String("name", call.Name), zap.Error(err))
		return result
	}

	if reg, ok := e.registry.(*DefaultRegistry); ok {
		if err := reg.checkRateLimit(call.Name); err != nil {
			e.fail(&result, start, err)
			e.logger.Warn("tool rate limit exceeded", zap.String("name", call.Name))
			return result
		}
	}

	// 参数必须是合法 JSON
	if len(call.Arguments) > 0 {
		var tmp any
		if err := json.Unmarshal(call.Arguments, &tmp); err != nil {
			e.fail(&result, start, fmt.Errorf("invalid arguments: %w", err))
			e.logger.Error("invalid tool arguments", zap.String("name", call.Name), zap.Error(err))
			return result
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	// 带缓冲的 channel 防止超时后工具协程泄漏
	doneChan := make(chan struct {
		res json.RawMessage
		err error
	}, 1)

	go func() {
		res, err := fn(execCtx, call.Arguments)
		select {
		case doneChan <- struct {
			res json.RawMessage
			err error
		}{res, err}:
		case <-execCtx.Done():
		}
	}()

	select {
	case done := <-doneChan:
		if done.err != nil {
			e.fail(&result, start, done.err)
			e.logger.Error("tool execution failed",
				zap.String("name", call.Name),
				zap.Error(done.err),
				zap.Duration("duration", result.Duration),
			)
		} else {
			result.Result = done.res
			result.Duration = time.Since(start)
			e.logger.Info("tool executed",
				zap.String("name", call.Name),
				zap.Duration("duration", result.Duration),
			)
		}

	case <-execCtx.Done():
		e.fail(&result, start, fmt.Errorf("execution timeout after %s: %w", meta.Timeout, execCtx.Err()))
		e.logger.Error("tool execution timeout",
			zap.String("name", call.Name),
			zap.Duration("timeout", meta.Timeout),
		)
	}

	return result
}

func (e *DefaultExecutor) fail(result *ToolResult, start time.Time, cause error) {
	execErr := &ToolExecutionError{Tool: result.Name, Err: cause}
	result.Err = execErr
	result.Error = execErr.Error()
	result.Duration = time.Since(start)
}
