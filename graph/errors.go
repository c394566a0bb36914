package graph

import (
	"errors"
	"fmt"
)

// 路由错误哨兵，配合 errors.Is 使用。
var (
	// ErrRouting 标识一切路由失败（含步数超限）。
	ErrRouting = errors.New("graph: routing failure")
	// ErrRoutingLoop 标识步数预算耗尽。
	ErrRoutingLoop = errors.New("graph: routing loop")
)

// RoutingError 表示拓扑校验或运行时路由失败。
type RoutingError struct {
	// Node 出错的节点名
	Node string
	// Label 条件边选择器返回的标签（仅运行时路由错误时非空）
	Label string
	// Reason 失败原因
	Reason string
}

func (e *RoutingError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("graph: routing failed at node %q: label %q: %s", e.Node, e.Label, e.Reason)
	}
	return fmt.Sprintf("graph: routing failed at node %q: %s", e.Node, e.Reason)
}

// Is 使 RoutingError 匹配 ErrRouting 哨兵。
func (e *RoutingError) Is(target error) bool {
	return target == ErrRouting
}

// RoutingLoopError 表示一次运行耗尽了步数预算。
type RoutingLoopError struct {
	// Steps 已执行的节点步数
	Steps int
	// LastNode 预算耗尽时正要执行的节点
	LastNode string
}

func (e *RoutingLoopError) Error() string {
	return fmt.Sprintf("graph: step budget exhausted after %d steps (at node %q)", e.Steps, e.LastNode)
}

// Is 使 RoutingLoopError 同时匹配 ErrRoutingLoop 和 ErrRouting。
func (e *RoutingLoopError) Is(target error) bool {
	return target == ErrRoutingLoop || target == ErrRouting
}
