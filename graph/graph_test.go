package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// passthrough 返回原状态的节点函数
func passthrough(ctx context.Context, s AgentState) (AgentState, error) {
	return s, nil
}

// mark 返回把自己名字写进 Results 的节点函数
func mark(name string) NodeFunc {
	return func(ctx context.Context, s AgentState) (AgentState, error) {
		return s.SetResult(name, "done"), nil
	}
}

func TestGraph_CompileLinear(t *testing.T) {
	cg, err := NewGraph("linear").
		AddNode("a", mark("a")).
		AddNode("b", mark("b")).
		AddEdge("a", "b").
		AddEdge("b", End).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.Equal(t, "linear", cg.Name())
	assert.Equal(t, "a", cg.Entry())
	assert.Equal(t, []string{"a", "b"}, cg.NodeNames())
}

func TestGraph_CompileConditional(t *testing.T) {
	cg, err := NewGraph("cond").
		AddNode("router", passthrough).
		AddNode("left", passthrough).
		AddNode("right", passthrough).
		AddConditionalEdges("router", func(s AgentState) string { return s.Team }, map[string]string{
			"left":  "left",
			"right": "right",
		}).
		AddEdge("left", End).
		AddEdge("right", End).
		SetEntry("router").
		Compile()

	require.NoError(t, err)
	require.NotNil(t, cg)
}

func TestGraph_CompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Graph
	}{
		{"空图", func() *Graph {
			return NewGraph("g")
		}},
		{"未设置入口", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).AddEdge("a", End)
		}},
		{"入口未声明", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).AddEdge("a", End).SetEntry("missing")
		}},
		{"边目标未声明", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).AddEdge("a", "ghost").SetEntry("a")
		}},
		{"边源未声明", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).
				AddEdge("a", End).AddEdge("ghost", End).SetEntry("a")
		}},
		{"节点无出路", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).AddNode("b", passthrough).
				AddEdge("a", "b").SetEntry("a")
		}},
		{"条件边路由表为空", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).
				AddConditionalEdges("a", func(AgentState) string { return "x" }, nil).
				SetEntry("a")
		}},
		{"条件边选择器为空", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).
				AddConditionalEdges("a", nil, map[string]string{"x": End}).
				SetEntry("a")
		}},
		{"条件边目标未声明", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).
				AddConditionalEdges("a", func(AgentState) string { return "x" },
					map[string]string{"x": "ghost"}).
				SetEntry("a")
		}},
		{"重复节点", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).AddNode("a", passthrough).
				AddEdge("a", End).SetEntry("a")
		}},
		{"保留名节点", func() *Graph {
			return NewGraph("g").AddNode(End, passthrough).SetEntry(End)
		}},
		{"空节点函数", func() *Graph {
			return NewGraph("g").AddNode("a", nil).AddEdge("a", End).SetEntry("a")
		}},
		{"普通边与条件边并存", func() *Graph {
			return NewGraph("g").AddNode("a", passthrough).AddNode("b", passthrough).
				AddEdge("a", "b").
				AddConditionalEdges("a", func(AgentState) string { return "x" },
					map[string]string{"x": End}).
				AddEdge("b", End).
				SetEntry("a")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Compile()
			require.Error(t, err)
			// 所有拓扑错误都属于路由失败类
			assert.ErrorIs(t, err, ErrRouting)

			var re *RoutingError
			assert.True(t, errors.As(err, &re))
		})
	}
}

func TestGraph_MustCompilePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewGraph("bad").MustCompile()
	})
}

func TestCompiledGraph_NextUnmappedLabel(t *testing.T) {
	cg, err := NewGraph("g").
		AddNode("a", passthrough).
		AddConditionalEdges("a", func(AgentState) string { return "nowhere" },
			map[string]string{"known": End}).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	_, err = cg.next("a", AgentState{})
	require.Error(t, err)

	var re *RoutingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "a", re.Node)
	assert.Equal(t, "nowhere", re.Label)
}

func TestRoutingErrors_Taxonomy(t *testing.T) {
	loop := &RoutingLoopError{Steps: 20, LastNode: "b"}
	assert.ErrorIs(t, loop, ErrRoutingLoop)
	assert.ErrorIs(t, loop, ErrRouting)
	assert.Contains(t, loop.Error(), "20")

	route := &RoutingError{Node: "n", Label: "l", Reason: "r"}
	assert.ErrorIs(t, route, ErrRouting)
	assert.NotErrorIs(t, route, ErrRoutingLoop)
}
