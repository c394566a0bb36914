package graph

import (
	"context"
	"fmt"
)

// End 是终止哨兵。任何边或条件路由指向 End 即结束本次运行。
const End = "__end__"

// NodeFunc 是节点的执行函数：接收当前状态，返回演化后的状态。
type NodeFunc func(ctx context.Context, state AgentState) (AgentState, error)

// Selector 在节点完成后根据状态选出一个路由标签。
type Selector func(state AgentState) string

// conditionalEdge 条件边：选择器 + 标签到目标节点的映射
type conditionalEdge struct {
	selector Selector
	routes   map[string]string
}

// Graph 是可变的图构建器。构建完成后调用 Compile 获得可执行图。
// 构建阶段宽松记录，所有结构性错误在 Compile 时统一报告。
type Graph struct {
	name        string
	nodes       map[string]NodeFunc
	order       []string
	edges       map[string]string
	conditional map[string]conditionalEdge
	entry       string
	buildErrs   []error
}

// NewGraph 创建一个命名的图构建器。
func NewGraph(name string) *Graph {
	return &Graph{
		name:        name,
		nodes:       make(map[string]NodeFunc),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge),
	}
}

// AddNode 注册一个节点。
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	if name == End {
		g.buildErrs = append(g.buildErrs, &RoutingError{Node: name, Reason: "node name is reserved"})
		return g
	}
	if fn == nil {
		g.buildErrs = append(g.buildErrs, &RoutingError{Node: name, Reason: "node function is nil"})
		return g
	}
	if _, dup := g.nodes[name]; dup {
		g.buildErrs = append(g.buildErrs, &RoutingError{Node: name, Reason: "duplicate node"})
		return g
	}
	g.nodes[name] = fn
	g.order = append(g.order, name)
	return g
}

// AddEdge 注册一条无条件边 from → to。to 可以是 End。
func (g *Graph) AddEdge(from, to string) *Graph {
	if _, dup := g.edges[from]; dup {
		g.buildErrs = append(g.buildErrs, &RoutingError{Node: from, Reason: "duplicate plain edge"})
		return g
	}
	g.edges[from] = to
	return g
}

// AddConditionalEdges 注册条件边：节点完成后由 selector 选择标签，
// routes 把标签映射到下一个节点（或 End）。
func (g *Graph) AddConditionalEdges(from string, selector Selector, routes map[string]string) *Graph {
	if _, dup := g.conditional[from]; dup {
		g.buildErrs = append(g.buildErrs, &RoutingError{Node: from, Reason: "duplicate conditional edge"})
		return g
	}
	copied := make(map[string]string, len(routes))
	for label, target := range routes {
		copied[label] = target
	}
	g.conditional[from] = conditionalEdge{selector: selector, routes: copied}
	return g
}

// SetEntry 设置入口节点。
func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// Compile 校验拓扑并返回不可变的可执行图。
// 校验项：入口存在；每个节点都有出路；所有边的端点已声明（或为 End）；
// 条件边的选择器非空且路由表非空。
func (g *Graph) Compile() (*CompiledGraph, error) {
	if len(g.buildErrs) > 0 {
		return nil, fmt.Errorf("graph %q: %w", g.name, g.buildErrs[0])
	}
	if len(g.nodes) == 0 {
		return nil, fmt.Errorf("graph %q: %w", g.name, &RoutingError{Reason: "graph has no nodes"})
	}
	if g.entry == "" {
		return nil, fmt.Errorf("graph %q: %w", g.name, &RoutingError{Reason: "entry node not set"})
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("graph %q: %w", g.name,
			&RoutingError{Node: g.entry, Reason: "entry node not declared"})
	}

	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph %q: %w", g.name,
				&RoutingError{Node: from, Reason: "edge source not declared"})
		}
		if to != End {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("graph %q: %w", g.name,
					&RoutingError{Node: from, Reason: fmt.Sprintf("edge target %q not declared", to)})
			}
		}
		if _, both := g.conditional[from]; both {
			return nil, fmt.Errorf("graph %q: %w", g.name,
				&RoutingError{Node: from, Reason: "node has both plain and conditional edges"})
		}
	}

	for from, ce := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph %q: %w", g.name,
				&RoutingError{Node: from, Reason: "conditional edge source not declared"})
		}
		if ce.selector == nil {
			return nil, fmt.Errorf("graph %q: %w", g.name,
				&RoutingError{Node: from, Reason: "conditional edge selector is nil"})
		}
		if len(ce.routes) == 0 {
			return nil, fmt.Errorf("graph %q: %w", g.name,
				&RoutingError{Node: from, Reason: "conditional edge has empty route map"})
		}
		for label, target := range ce.routes {
			if target != End {
				if _, ok := g.nodes[target]; !ok {
					return nil, fmt.Errorf("graph %q: %w", g.name,
						&RoutingError{Node: from, Label: label,
							Reason: fmt.Sprintf("route target %q not declared", target)})
				}
			}
		}
	}

	// 每个节点必须有出路，否则运行时必然卡死
	for name := range g.nodes {
		_, hasPlain := g.edges[name]
		_, hasCond := g.conditional[name]
		if !hasPlain && !hasCond {
			return nil, fmt.Errorf("graph %q: %w", g.name,
				&RoutingError{Node: name, Reason: "node has no outgoing route"})
		}
	}

	cg := &CompiledGraph{
		name:        g.name,
		nodes:       make(map[string]NodeFunc, len(g.nodes)),
		order:       append([]string(nil), g.order...),
		edges:       make(map[string]string, len(g.edges)),
		conditional: make(map[string]conditionalEdge, len(g.conditional)),
		entry:       g.entry,
	}
	for k, v := range g.nodes {
		cg.nodes[k] = v
	}
	for k, v := range g.edges {
		cg.edges[k] = v
	}
	for k, v := range g.conditional {
		routes := make(map[string]string, len(v.routes))
		for label, target := range v.routes {
			routes[label] = target
		}
		cg.conditional[k] = conditionalEdge{selector: v.selector, routes: routes}
	}
	return cg, nil
}

// MustCompile 编译图，失败时 panic。用于初始化阶段的固定拓扑。
func (g *Graph) MustCompile() *CompiledGraph {
	cg, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return cg
}

// CompiledGraph 是编译后的不可变图，可被任意多次并发执行。
type CompiledGraph struct {
	name        string
	nodes       map[string]NodeFunc
	order       []string
	edges       map[string]string
	conditional map[string]conditionalEdge
	entry       string
}

// Name 返回图名。
func (cg *CompiledGraph) Name() string { return cg.name }

// Entry 返回入口节点名。
func (cg *CompiledGraph) Entry() string { return cg.entry }

// NodeNames 按注册顺序返回全部节点名。
func (cg *CompiledGraph) NodeNames() []string {
	return append([]string(nil), cg.order...)
}

// next 根据当前状态解析 node 的后继。返回 End 表示终止。
func (cg *CompiledGraph) next(node string, state AgentState) (string, error) {
	if ce, ok := cg.conditional[node]; ok {
		label := ce.selector(state)
		target, ok := ce.routes[label]
		if !ok {
			return "", &RoutingError{Node: node, Label: label, Reason: "selector returned unmapped label"}
		}
		return target, nil
	}
	if to, ok := cg.edges[node]; ok {
		return to, nil
	}
	return "", &RoutingError{Node: node, Reason: "no outgoing route"}
}
