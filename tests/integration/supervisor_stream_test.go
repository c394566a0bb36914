// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/teamflow/agent"
)

// collectEvents 读空事件通道并返回全部事件
func collectEvents(ch <-chan agent.StreamEvent) []agent.StreamEvent {
	var events []agent.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

// TestPipelineStreamEventSequence streams a run over real SSE: node progress,
// token increments in order, and a terminal done event with the full result.
func TestPipelineStreamEventSequence(t *testing.T) {
	backend := newBackend()
	backend.setScript(func(s *backendScript) {
		s.finalChunks = []string{"这是", "流式", "回复"}
	})
	sup := newPipeline(t, backend, nil, agent.Config{})

	ch, err := sup.ProcessStream(context.Background(), "介绍一下这个项目")
	require.NoError(t, err)
	events := collectEvents(ch)
	require.NotEmpty(t, events)

	var nodes []string
	var tokens []string
	var done *agent.Result
	for _, ev := range events {
		switch ev.Type {
		case agent.EventNode:
			nodes = append(nodes, ev.Node)
		case agent.EventToken:
			tokens = append(tokens, ev.Content)
		case agent.EventDone:
			done = ev.Result
		case agent.EventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}

	assert.Contains(t, nodes, "supervisor")
	assert.Contains(t, nodes, "final")
	assert.Equal(t, []string{"这是", "流式", "回复"}, tokens)

	require.NotNil(t, done)
	assert.Equal(t, "这是流式回复", done.Response)
	assert.Equal(t, "direct", done.Decision.Team)
	assert.Equal(t, agent.EventDone, events[len(events)-1].Type)

	// 综合调用带着 stream 标志走的是 SSE 分支
	backend.mu.Lock()
	finalReq := backend.requests[len(backend.requests)-1]
	backend.mu.Unlock()
	assert.True(t, finalReq.Stream)
}

// TestPipelineStreamResearchProgress checks team subgraph nodes surface as
// progress events before synthesis tokens.
func TestPipelineStreamResearchProgress(t *testing.T) {
	backend := newBackend()
	backend.setScript(func(s *backendScript) {
		s.decision = `{"team": "research", "reasoning": "需要检索资料"}`
	})
	sup := newPipeline(t, backend, nil, agent.Config{})

	ch, err := sup.ProcessStream(context.Background(), "搜索图执行器的设计资料")
	require.NoError(t, err)
	events := collectEvents(ch)

	var nodes []string
	var done *agent.Result
	for _, ev := range events {
		switch ev.Type {
		case agent.EventNode:
			nodes = append(nodes, ev.Node)
		case agent.EventDone:
			done = ev.Result
		}
	}

	assert.Contains(t, nodes, "research_team")
	require.NotNil(t, done)
	assert.Contains(t, done.ResearchSummary, "## 搜索发现")
}

// TestPipelineStreamUpstreamBreak corrupts the SSE stream mid-flight and
// expects the run to finish with an error event instead of done.
func TestPipelineStreamUpstreamBreak(t *testing.T) {
	backend := newBackend()
	backend.setScript(func(s *backendScript) {
		s.finalChunks = []string{"这是", "流式", "回复"}
		s.sseInvalidAfter = 1
	})
	sup := newPipeline(t, backend, nil, agent.Config{})

	ch, err := sup.ProcessStream(context.Background(), "介绍一下这个项目")
	require.NoError(t, err)
	events := collectEvents(ch)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, agent.EventError, last.Type)
	require.Error(t, last.Err)
	assert.Contains(t, last.Err.Error(), "final node")

	var sawDone bool
	var streamed strings.Builder
	for _, ev := range events {
		if ev.Type == agent.EventDone {
			sawDone = true
		}
		if ev.Type == agent.EventToken {
			streamed.WriteString(ev.Content)
		}
	}
	assert.False(t, sawDone)
	// 损坏点之前的增量仍可能已下发，但绝不会超过它
	assert.True(t, strings.HasPrefix("这是", streamed.String()))
}
