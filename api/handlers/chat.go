package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/teamflow/agent"
	"github.com/BaSui01/teamflow/api"
	"github.com/BaSui01/teamflow/graph"
	"github.com/BaSui01/teamflow/internal/database"
	"github.com/BaSui01/teamflow/internal/metrics"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 💬 任务编排 Handler
// =============================================================================

// maxTaskRunes 单次任务描述的长度上限
const maxTaskRunes = 8192

// ChatHandler 任务编排处理器。pool 与 collector 允许为 nil：
// 没有数据库时跳过会话落库，没有指标收集器时跳过打点。
type ChatHandler struct {
	supervisor *agent.Supervisor
	pool       *database.PoolManager
	collector  *metrics.Collector
	logger     *zap.Logger
}

// NewChatHandler 创建任务编排处理器
func NewChatHandler(supervisor *agent.Supervisor, pool *database.PoolManager, collector *metrics.Collector, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		supervisor: supervisor,
		pool:       pool,
		collector:  collector,
		logger:     logger,
	}
}

// HandleTask 处理编排任务请求
// @Summary 执行编排任务
// @Description 把任务交给顶层监督器编排并返回最终结果
// @Tags 任务
// @Accept json
// @Produce json
// @Param request body api.TaskRequest true "任务请求"
// @Success 200 {object} Response{data=api.TaskResponse} "任务结果"
// @Failure 400 {object} Response "无效请求"
// @Failure 500 {object} Response "内部错误"
// @Router /v1/chat [post]
func (h *ChatHandler) HandleTask(w http.ResponseWriter, r *http.Request) {
	// 验证 Content-Type
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	// 解码请求
	var req api.TaskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// 验证请求
	if err := validateTaskRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	// 交给监督器编排
	start := time.Now()
	result, err := h.supervisor.Process(r.Context(), req.Task)
	if err != nil {
		h.recordRunFailure(time.Since(start))
		h.handleRunError(w, err)
		return
	}

	h.recordResult(result)
	resp := toTaskResponse(result, req.ConversationID)

	// 会话落库失败不影响响应
	if req.ConversationID != "" {
		if err := h.appendToConversation(r.Context(), &req, result); err != nil {
			h.logger.Warn("failed to persist conversation messages",
				zap.String("conversation_id", req.ConversationID),
				zap.Error(err),
			)
		}
	}

	h.logger.Info("task completed",
		zap.String("team", result.Decision.Team),
		zap.Duration("duration", result.Duration),
		zap.Bool("cached", result.Cached),
	)

	WriteSuccess(w, resp)
}

// HandleTaskStream 处理流式编排任务请求
// @Summary 流式执行编排任务
// @Description 以 SSE 流返回图节点进度、增量 token 与最终结果
// @Tags 任务
// @Accept json
// @Produce text/event-stream
// @Param request body api.TaskRequest true "任务请求"
// @Success 200 {string} string "SSE 流"
// @Failure 400 {object} Response "无效请求"
// @Failure 500 {object} Response "内部错误"
// @Router /v1/chat/stream [post]
func (h *ChatHandler) HandleTaskStream(w http.ResponseWriter, r *http.Request) {
	// 验证 Content-Type
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	// 解码请求
	var req api.TaskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// 验证请求
	if err := validateTaskRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		err := types.NewError(types.ErrInternalError, "streaming not supported")
		WriteError(w, err, h.logger)
		return
	}

	start := time.Now()
	events, err := h.supervisor.ProcessStream(r.Context(), req.Task)
	if err != nil {
		h.handleRunError(w, err)
		return
	}

	// 流已建立，切换到 SSE 响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲

	for ev := range events {
		switch ev.Type {
		case agent.EventNode:
			if h.collector != nil {
				h.collector.RecordNodeVisit("top_supervisor", ev.Node)
			}
			h.writeSSE(w, flusher, "node", api.StreamEventPayload{
				Type: string(agent.EventNode),
				Node: ev.Node,
				Step: ev.Step,
			})

		case agent.EventToken:
			h.writeSSE(w, flusher, "", api.StreamEventPayload{
				Type:    string(agent.EventToken),
				Content: ev.Content,
			})

		case agent.EventError:
			msg := "stream failed"
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			h.logger.Error("stream error", zap.Error(ev.Err))
			h.recordRunFailure(time.Since(start))
			h.writeSSE(w, flusher, "error", api.StreamEventPayload{
				Type:  string(agent.EventError),
				Error: msg,
			})
			return

		case agent.EventDone:
			if ev.Result == nil {
				continue
			}
			h.recordResult(ev.Result)
			resp := toTaskResponse(ev.Result, req.ConversationID)
			h.writeSSE(w, flusher, "done", api.StreamEventPayload{
				Type:   string(agent.EventDone),
				Result: &resp,
			})
			if req.ConversationID != "" {
				if err := h.appendToConversation(r.Context(), &req, ev.Result); err != nil {
					h.logger.Warn("failed to persist conversation messages",
						zap.String("conversation_id", req.ConversationID),
						zap.Error(err),
					)
				}
			}
		}
	}

	// 发送结束标记
	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// validateTaskRequest 验证任务请求
func validateTaskRequest(req *api.TaskRequest) *types.Error {
	req.Task = strings.TrimSpace(req.Task)
	if req.Task == "" {
		return types.NewError(types.ErrInvalidRequest, "task is required")
	}
	if len([]rune(req.Task)) > maxTaskRunes {
		return types.NewError(types.ErrContextTooLong, "task is too long")
	}
	return nil
}

// toTaskResponse 把编排结果转换为 API 响应
func toTaskResponse(result *agent.Result, conversationID string) api.TaskResponse {
	return api.TaskResponse{
		Response:        result.Response,
		Team:            result.Decision.Team,
		Reasoning:       result.Decision.Reasoning,
		ResearchSummary: result.ResearchSummary,
		FinalDocument:   result.FinalDocument,
		Errors:          result.Errors,
		Duration:        result.Duration.String(),
		Cached:          result.Cached,
		TokensSaved:     result.TokensSaved,
		ConversationID:  conversationID,
	}
}

// writeSSE 写出单个 SSE 事件，event 为空时只写 data 行
func (h *ChatHandler) writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload api.StreamEventPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal sse payload", zap.Error(err))
		return
	}
	if event != "" {
		w.Write([]byte("event: " + event + "\n"))
	}
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
	flusher.Flush()
}

// recordResult 打点一次成功运行
func (h *ChatHandler) recordResult(result *agent.Result) {
	if h.collector == nil {
		return
	}
	h.collector.RecordSupervisorRun(result.Decision.Team, "success", result.Duration)
	if result.Cached {
		h.collector.RecordCacheHit("response")
		h.collector.RecordTokensSaved(h.supervisor.ProviderName(), h.supervisor.Model(), result.TokensSaved)
	} else {
		h.collector.RecordCacheMiss("response")
	}
}

// recordRunFailure 打点一次失败运行
func (h *ChatHandler) recordRunFailure(duration time.Duration) {
	if h.collector == nil {
		return
	}
	h.collector.RecordSupervisorRun("unknown", "error", duration)
}

// appendToConversation 在一个事务内校验会话并追加本轮消息
func (h *ChatHandler) appendToConversation(ctx context.Context, req *api.TaskRequest, result *agent.Result) error {
	if h.pool == nil {
		return nil
	}
	return h.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var conv database.Conversation
		if err := tx.First(&conv, "id = ?", req.ConversationID).Error; err != nil {
			return err
		}
		msgs := []database.Message{
			{ConversationID: conv.ID, Role: "user", Content: req.Task},
			{
				ConversationID: conv.ID,
				Role:           "assistant",
				Content:        result.Response,
				Team:           result.Decision.Team,
				Cached:         result.Cached,
			},
		}
		if err := tx.Create(&msgs).Error; err != nil {
			return err
		}
		return tx.Model(&conv).Update("updated_at", time.Now()).Error
	})
}

// handleRunError 把编排错误映射为 API 错误响应
func (h *ChatHandler) handleRunError(w http.ResponseWriter, err error) {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		WriteError(w, convertLLMError(llmErr), h.logger)
		return
	}

	var loopErr *graph.RoutingLoopError
	if errors.As(err, &loopErr) {
		WriteError(w, types.NewError(types.ErrRoutingLoop, err.Error()), h.logger)
		return
	}

	if typed := types.AsError(err); typed != nil {
		WriteError(w, typed, h.logger)
		return
	}

	internalErr := types.NewError(types.ErrInternalError, "task execution failed").
		WithCause(err).
		WithRetryable(false)
	WriteError(w, internalErr, h.logger)
}

// convertLLMError 把 Provider 层错误转换为 API 层错误
func convertLLMError(llmErr *llm.Error) *types.Error {
	code := types.ErrUpstreamError
	switch llmErr.Code {
	case llm.ErrInvalidRequest:
		code = types.ErrInvalidRequest
	case llm.ErrUnauthorized:
		code = types.ErrAuthentication
	case llm.ErrRateLimited:
		code = types.ErrRateLimit
	case llm.ErrUpstreamTimeout:
		code = types.ErrTimeout
	case llm.ErrProviderUnavailable:
		code = types.ErrProviderUnavailable
	}
	return types.NewError(code, llmErr.Message).
		WithHTTPStatus(llmErr.HTTPStatus).
		WithRetryable(llmErr.Retryable).
		WithProvider(llmErr.Provider)
}
