package api

import (
	"time"
)

// =============================================================================
// 任务编排类型
// =============================================================================

// TaskRequest 表示一次编排任务请求。
// @Description 任务请求结构
type TaskRequest struct {
	// 用户任务描述
	Task string `json:"task" example:"搜索量子计算的最新进展并写一篇综述" binding:"required"`
	// 关联会话 ID（可选，提供后消息会落库）
	ConversationID string `json:"conversation_id,omitempty" example:"c3a1f8e2"`
	// 用户身份
	UserID string `json:"user_id,omitempty" example:"user-1"`
}

// TaskResponse 表示编排任务的最终结果。
// @Description 任务响应结构
type TaskResponse struct {
	// 最终回复内容
	Response string `json:"response"`
	// 监督器选择的团队（research/writing/both/direct）
	Team string `json:"team" example:"research"`
	// 决策理由
	Reasoning string `json:"reasoning,omitempty"`
	// 研究团队的汇总（如有）
	ResearchSummary string `json:"research_summary,omitempty"`
	// 写作团队的成品文档（如有）
	FinalDocument string `json:"final_document,omitempty"`
	// 运行过程中记录的非致命错误
	Errors []string `json:"errors,omitempty"`
	// 运行耗时
	Duration string `json:"duration" example:"1.2s"`
	// 是否命中响应缓存
	Cached bool `json:"cached"`
	// 缓存命中节省的 token 数
	TokensSaved int `json:"tokens_saved,omitempty"`
	// 关联会话 ID（请求携带时回显）
	ConversationID string `json:"conversation_id,omitempty"`
}

// StreamEventPayload 表示 SSE 流中的单个事件。
// @Description 流式事件结构
type StreamEventPayload struct {
	// 事件类型（node/token/done/error）
	Type string `json:"type" example:"token"`
	// 当前执行的图节点（node 事件）
	Node string `json:"node,omitempty" example:"supervisor"`
	// 图执行步数（node 事件）
	Step int `json:"step,omitempty" example:"1"`
	// 增量内容（token 事件）
	Content string `json:"content,omitempty"`
	// 最终结果（done 事件）
	Result *TaskResponse `json:"result,omitempty"`
	// 错误消息（error 事件）
	Error string `json:"error,omitempty"`
}

// =============================================================================
// 编排器状态类型
// =============================================================================

// StatusResponse 表示编排器的运行状态。
// @Description 编排器状态结构
type StatusResponse struct {
	// Provider 名称
	Provider string `json:"provider" example:"deepseek"`
	// 使用的模型
	Model string `json:"model" example:"deepseek-chat"`
	// Provider 是否健康
	Healthy bool `json:"healthy" example:"true"`
	// 健康检查延迟
	Latency string `json:"latency" example:"100ms"`
	// 团队编成（团队名 -> 节点列表）
	Teams map[string][]string `json:"teams"`
	// 是否启用响应缓存
	CacheEnabled bool `json:"cache_enabled"`
}

// =============================================================================
// 会话类型
// =============================================================================

// ConversationRequest 表示创建会话的请求。
// @Description 会话创建请求
type ConversationRequest struct {
	// 会话标题
	Title string `json:"title" example:"量子计算调研"`
	// 用户身份
	UserID string `json:"user_id,omitempty" example:"user-1"`
}

// ConversationResponse 表示单个会话。
// @Description 会话结构
type ConversationResponse struct {
	// 会话 ID
	ID string `json:"id" example:"c3a1f8e2"`
	// 会话标题
	Title string `json:"title"`
	// 用户身份
	UserID string `json:"user_id,omitempty"`
	// 会话消息（详情接口返回）
	Messages []ConversationMessage `json:"messages,omitempty"`
	// 创建时间
	CreatedAt time.Time `json:"created_at"`
	// 最后更新时间
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationMessage 表示会话中的一条消息。
// @Description 会话消息结构
type ConversationMessage struct {
	// 消息角色（user/assistant）
	Role string `json:"role" example:"user"`
	// 消息内容
	Content string `json:"content"`
	// 处理该消息的团队
	Team string `json:"team,omitempty"`
	// 是否命中响应缓存
	Cached bool `json:"cached,omitempty"`
	// 创建时间
	CreatedAt time.Time `json:"created_at"`
}

// ConversationListResponse 表示会话列表。
// @Description 会话列表响应
type ConversationListResponse struct {
	// 会话列表
	Conversations []ConversationResponse `json:"conversations"`
	// 总数
	Total int64 `json:"total"`
}

// =============================================================================
// 工具类型
// =============================================================================

// ToolInfo 表示注册表中的一个工具。
// @Description 工具信息结构
type ToolInfo struct {
	// 工具名称
	Name string `json:"name" example:"web_search"`
	// 工具说明
	Description string `json:"description,omitempty"`
}

// ToolListResponse 表示工具列表。
// @Description 工具列表响应
type ToolListResponse struct {
	// 工具清单
	Tools []ToolInfo `json:"tools"`
}

// =============================================================================
// 错误类型
// =============================================================================

// ErrorDetail 表示错误详细信息。
// @Description 错误详细结构
type ErrorDetail struct {
	// 错误代码
	Code string `json:"code" example:"INVALID_REQUEST"`
	// 人类可读的错误消息
	Message string `json:"message" example:"Invalid request parameters"`
	// HTTP 状态码
	HTTPStatus int `json:"http_status,omitempty" example:"400"`
	// 请求是否可以重试
	Retryable bool `json:"retryable,omitempty" example:"false"`
	// 返回错误的提供者
	Provider string `json:"provider,omitempty" example:"deepseek"`
}
