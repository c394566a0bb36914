// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/teamflow/agent"
	"github.com/BaSui01/teamflow/api"
	"github.com/BaSui01/teamflow/testutil/fixtures"
	"github.com/BaSui01/teamflow/testutil/mocks"
)

// =============================================================================
// 🧪 会话生命周期端到端
// =============================================================================

func TestConversationLifecycle(t *testing.T) {
	provider := mocks.NewScriptedProvider(
		fixtures.DecisionJSON("direct"),
		"第一轮回复。",
		fixtures.DecisionJSON("direct"),
		"第二轮回复。",
	)
	env := newTestEnv(t, provider, agent.Config{})

	// 创建会话
	resp := env.postJSON("/v1/conversations", api.ConversationRequest{Title: "部署调研", UserID: "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conv api.ConversationResponse
	decodeData(t, resp, &conv)
	require.NotEmpty(t, conv.ID)
	assert.Equal(t, "部署调研", conv.Title)
	assert.Equal(t, "user-1", conv.UserID)

	// 第一轮对话，携带会话 ID
	resp = env.postJSON("/v1/chat", api.TaskRequest{Task: "如何部署这套服务", ConversationID: conv.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var task api.TaskResponse
	decodeData(t, resp, &task)
	assert.Equal(t, conv.ID, task.ConversationID)
	assert.Equal(t, "第一轮回复。", task.Response)

	// 会话详情应包含 user 与 assistant 两条消息
	resp = env.get("/v1/conversations/" + conv.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail api.ConversationResponse
	decodeData(t, resp, &detail)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "user", detail.Messages[0].Role)
	assert.Equal(t, "如何部署这套服务", detail.Messages[0].Content)
	assert.Equal(t, "assistant", detail.Messages[1].Role)
	assert.Equal(t, "第一轮回复。", detail.Messages[1].Content)
	assert.Equal(t, "direct", detail.Messages[1].Team)

	// 第二轮对话后消息累积
	resp = env.postJSON("/v1/chat", api.TaskRequest{Task: "需要哪些配置项", ConversationID: conv.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &task)

	resp = env.get("/v1/conversations/" + conv.ID)
	decodeData(t, resp, &detail)
	assert.Len(t, detail.Messages, 4)

	// 列表能按用户检索到该会话
	resp = env.get("/v1/conversations?user_id=user-1")
	var list api.ConversationListResponse
	decodeData(t, resp, &list)
	assert.EqualValues(t, 1, list.Total)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, conv.ID, list.Conversations[0].ID)

	// 删除后详情返回 404
	resp = env.doDelete("/v1/conversations/" + conv.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deleted map[string]string
	decodeData(t, resp, &deleted)
	assert.Equal(t, "deleted", deleted["status"])

	resp = env.get("/v1/conversations/" + conv.ID)
	envelope := decodeEnvelope(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestConversationListFilter(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockProvider(), agent.Config{})

	for _, spec := range []api.ConversationRequest{
		{Title: "调研 A", UserID: "user-1"},
		{Title: "调研 B", UserID: "user-1"},
		{Title: "写作 C", UserID: "user-2"},
	} {
		resp := env.postJSON("/v1/conversations", spec)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	// 按用户过滤
	resp := env.get("/v1/conversations?user_id=user-1")
	var list api.ConversationListResponse
	decodeData(t, resp, &list)
	assert.EqualValues(t, 2, list.Total)
	assert.Len(t, list.Conversations, 2)

	// 分页大小生效，total 仍为全量
	resp = env.get("/v1/conversations?limit=2")
	decodeData(t, resp, &list)
	assert.EqualValues(t, 3, list.Total)
	assert.Len(t, list.Conversations, 2)
}

func TestConversationDefaultTitle(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockProvider(), agent.Config{})

	resp := env.postJSON("/v1/conversations", api.ConversationRequest{Title: "   "})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var conv api.ConversationResponse
	decodeData(t, resp, &conv)
	assert.Equal(t, "新会话", conv.Title)
}

func TestConversationNotFound(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockProvider(), agent.Config{})

	resp := env.get("/v1/conversations/missing")
	envelope := decodeEnvelope(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)

	resp = env.doDelete("/v1/conversations/missing")
	envelope = decodeEnvelope(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestConversationUnknownSkipsPersistence(t *testing.T) {
	// 会话不存在时编排照常返回，只是消息不落库
	provider := mocks.NewScriptedProvider(
		fixtures.DecisionJSON("direct"),
		"不落库的回复。",
	)
	env := newTestEnv(t, provider, agent.Config{})

	resp := env.postJSON("/v1/chat", api.TaskRequest{Task: "会话不存在", ConversationID: "missing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var task api.TaskResponse
	decodeData(t, resp, &task)
	assert.Equal(t, "不落库的回复。", task.Response)

	// 列表仍为空
	resp = env.get("/v1/conversations")
	var list api.ConversationListResponse
	decodeData(t, resp, &list)
	assert.Zero(t, list.Total)
}
