package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultMaxSteps 是单次运行的默认节点步数预算。
const DefaultMaxSteps = 20

// StepEvent 是 Stream 逐步产出的事件：某节点执行完成后的快照。
type StepEvent struct {
	// RunID 本次运行的标识
	RunID string `json:"run_id"`
	// Node 刚完成的节点
	Node string `json:"node"`
	// Step 已执行的步数（从 1 开始）
	Step int `json:"step"`
	// State 节点执行后的状态快照
	State AgentState `json:"state"`
	// Err 非 nil 表示运行到此失败，这是流上最后一个事件
	Err error `json:"-"`
}

// Executor 驱动 CompiledGraph 的执行。
// Executor 自身不持有运行期状态，单个实例可服务任意并发运行。
type Executor struct {
	maxSteps int
	logger   *zap.Logger
	tracer   trace.Tracer
}

// ExecutorOption 配置 Executor。
type ExecutorOption func(*Executor)

// WithMaxSteps 设置步数预算。
func WithMaxSteps(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLogger 注入日志器。
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor 创建图执行器。
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		maxSteps: DefaultMaxSteps,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("teamflow/graph"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "graph_executor"))
	return e
}

// MaxSteps 返回步数预算。
func (e *Executor) MaxSteps() int { return e.maxSteps }

// Run 从入口节点执行到 End 哨兵，返回最终状态。
// 步数预算按节点执行次数计数，超限返回 *RoutingLoopError。
func (e *Executor) Run(ctx context.Context, cg *CompiledGraph, initial AgentState) (AgentState, error) {
	runID := uuid.NewString()
	state := initial.Clone()

	e.logger.Info("graph run started",
		zap.String("graph", cg.name),
		zap.String("run_id", runID),
		zap.String("entry", cg.entry),
	)
	start := time.Now()

	final, steps, err := e.loop(ctx, cg, runID, state, nil)
	if err != nil {
		e.logger.Error("graph run failed",
			zap.String("graph", cg.name),
			zap.String("run_id", runID),
			zap.Int("steps", steps),
			zap.Error(err),
		)
		return final, err
	}

	e.logger.Info("graph run completed",
		zap.String("graph", cg.name),
		zap.String("run_id", runID),
		zap.Int("steps", steps),
		zap.Duration("duration", time.Since(start)),
	)
	return final, nil
}

// Stream 逐节点执行并把每步的快照发到返回的通道上。
// 通道在终止（End、错误或取消）后关闭；错误作为最后一个事件的 Err 字段送出。
func (e *Executor) Stream(ctx context.Context, cg *CompiledGraph, initial AgentState) <-chan StepEvent {
	runID := uuid.NewString()
	events := make(chan StepEvent)

	go func() {
		defer close(events)
		state := initial.Clone()

		emit := func(ev StepEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		_, steps, err := e.loop(ctx, cg, runID, state, func(node string, step int, snapshot AgentState) bool {
			return emit(StepEvent{RunID: runID, Node: node, Step: step, State: snapshot})
		})
		if err != nil {
			emit(StepEvent{RunID: runID, Node: "", Step: steps, Err: err})
		}
	}()

	return events
}

// loop 是 Run 与 Stream 共享的执行内核。
// onStep 非 nil 时在每个节点完成后调用，返回 false 表示消费方已放弃。
func (e *Executor) loop(
	ctx context.Context,
	cg *CompiledGraph,
	runID string,
	state AgentState,
	onStep func(node string, step int, snapshot AgentState) bool,
) (AgentState, int, error) {
	current := cg.entry
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			return state, steps, err
		}
		if steps >= e.maxSteps {
			return state, steps, &RoutingLoopError{Steps: steps, LastNode: current}
		}

		fn, ok := cg.nodes[current]
		if !ok {
			return state, steps, &RoutingError{Node: current, Reason: "node not declared"}
		}

		nodeCtx, span := e.tracer.Start(ctx, "graph.node",
			trace.WithAttributes(
				attribute.String("graph.name", cg.name),
				attribute.String("graph.node", current),
				attribute.String("graph.run_id", runID),
			),
		)
		nodeStart := time.Now()
		next, err := fn(nodeCtx, state)
		span.End()

		if err != nil {
			return state, steps, fmt.Errorf("node %q: %w", current, err)
		}
		next.CurrentStep = current
		state = next
		steps++

		e.logger.Debug("node executed",
			zap.String("graph", cg.name),
			zap.String("run_id", runID),
			zap.String("node", current),
			zap.Int("step", steps),
			zap.Duration("duration", time.Since(nodeStart)),
		)

		if onStep != nil {
			if !onStep(current, steps, state) {
				return state, steps, ctx.Err()
			}
		}

		target, err := cg.next(current, state)
		if err != nil {
			return state, steps, err
		}
		if target == End {
			return state, steps, nil
		}
		current = target
	}
}
