// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
Package graph 提供带条件路由的状态图执行引擎。

# 概述

graph 包是 TeamFlow 编排的内核：把一组节点函数组织成有向图，节点之间
通过无条件边或条件边（选择器 + 标签路由表）连接，状态沿图流转直到
End 哨兵。拓扑在 Compile 时一次性校验，编译后的图不可变，可被任意
并发运行安全复用。

# 核心接口与类型

  - AgentState      — 运行状态（转写、任务、团队、产出、错误记录）
  - NodeFunc        — 节点函数 func(ctx, AgentState) (AgentState, error)
  - Selector        — 条件路由选择器 func(AgentState) string
  - Graph           — 可变构建器（AddNode / AddEdge / AddConditionalEdges / SetEntry）
  - CompiledGraph   — Compile 产出的不可变可执行图
  - Executor        — 执行器（Run / Stream，步数预算，OTel span，zap 日志）
  - StepEvent       — Stream 逐步产出的节点完成事件

# 错误语义

  - RoutingError     — 拓扑非法或运行时路由失败（匹配 ErrRouting）
  - RoutingLoopError — 步数预算耗尽（匹配 ErrRoutingLoop 与 ErrRouting）

节点函数返回的错误会带节点名包装后终止本次运行；状态演化采用
值语义（Clone / 返回新状态），两次运行之间不共享任何可变数据。
*/
package graph
