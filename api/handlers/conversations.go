package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/BaSui01/teamflow/api"
	"github.com/BaSui01/teamflow/internal/database"
	"github.com/BaSui01/teamflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🗂️ 会话管理 Handler
// =============================================================================

// defaultConversationLimit 列表接口默认分页大小
const defaultConversationLimit = 20

// ConversationsHandler 会话管理处理器
type ConversationsHandler struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewConversationsHandler 创建会话管理处理器
func NewConversationsHandler(pool *database.PoolManager, logger *zap.Logger) *ConversationsHandler {
	return &ConversationsHandler{pool: pool, logger: logger}
}

// extractConversationID 从请求中提取会话 ID（Go 1.22+ PathValue 优先，回退到路径解析）
func extractConversationID(r *http.Request) string {
	if id := r.PathValue("id"); id != "" {
		return id
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	if path != "" && path != r.URL.Path && !strings.Contains(path, "/") {
		return path
	}
	return ""
}

// HandleCreate 创建会话
// @Summary 创建会话
// @Description 创建一个新会话并返回其 ID
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body api.ConversationRequest true "会话创建请求"
// @Success 200 {object} Response{data=api.ConversationResponse} "创建的会话"
// @Failure 400 {object} Response "无效请求"
// @Router /v1/conversations [post]
func (h *ConversationsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ConversationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	conv := database.Conversation{
		ID:     uuid.NewString(),
		Title:  strings.TrimSpace(req.Title),
		UserID: req.UserID,
	}
	if conv.Title == "" {
		conv.Title = "新会话"
	}

	err := h.pool.WithTransaction(r.Context(), func(tx *gorm.DB) error {
		return tx.Create(&conv).Error
	})
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to create conversation", h.logger)
		return
	}

	WriteSuccess(w, toConversationResponse(&conv, nil))
}

// HandleList 列出会话
// @Summary 会话列表
// @Description 按最后更新时间倒序分页返回会话
// @Tags 会话
// @Produce json
// @Param user_id query string false "按用户过滤"
// @Param limit query int false "分页大小"
// @Param offset query int false "分页偏移"
// @Success 200 {object} Response{data=api.ConversationListResponse} "会话列表"
// @Router /v1/conversations [get]
func (h *ConversationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", defaultConversationLimit)
	offset := parseQueryInt(r, "offset", 0)
	if limit <= 0 || limit > 100 {
		limit = defaultConversationLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := h.pool.DB().WithContext(r.Context()).Model(&database.Conversation{})
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.logger.Error("failed to count conversations", zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to list conversations", h.logger)
		return
	}

	var convs []database.Conversation
	if err := query.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&convs).Error; err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to list conversations", h.logger)
		return
	}

	resp := api.ConversationListResponse{
		Conversations: make([]api.ConversationResponse, 0, len(convs)),
		Total:         total,
	}
	for i := range convs {
		resp.Conversations = append(resp.Conversations, toConversationResponse(&convs[i], nil))
	}

	WriteSuccess(w, resp)
}

// HandleGet 返回单个会话及其消息
// @Summary 会话详情
// @Description 返回会话及按时间排序的全部消息
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} Response{data=api.ConversationResponse} "会话详情"
// @Failure 404 {object} Response "会话不存在"
// @Router /v1/conversations/{id} [get]
func (h *ConversationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := extractConversationID(r)
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "conversation ID is required", h.logger)
		return
	}

	db := h.pool.DB().WithContext(r.Context())

	var conv database.Conversation
	if err := db.First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "conversation not found", h.logger)
			return
		}
		h.logger.Error("failed to load conversation", zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to load conversation", h.logger)
		return
	}

	var msgs []database.Message
	if err := db.Where("conversation_id = ?", id).Order("created_at ASC, id ASC").Find(&msgs).Error; err != nil {
		h.logger.Error("failed to load conversation messages", zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to load conversation", h.logger)
		return
	}

	WriteSuccess(w, toConversationResponse(&conv, msgs))
}

// HandleDelete 删除会话及其全部消息
// @Summary 删除会话
// @Description 在一个事务内删除会话与其消息
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} Response "删除成功"
// @Failure 404 {object} Response "会话不存在"
// @Router /v1/conversations/{id} [delete]
func (h *ConversationsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := extractConversationID(r)
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "conversation ID is required", h.logger)
		return
	}

	err := h.pool.WithTransaction(r.Context(), func(tx *gorm.DB) error {
		var conv database.Conversation
		if err := tx.First(&conv, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&database.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&conv).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "conversation not found", h.logger)
			return
		}
		h.logger.Error("failed to delete conversation", zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to delete conversation", h.logger)
		return
	}

	WriteSuccess(w, map[string]string{"id": id, "status": "deleted"})
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func toConversationResponse(conv *database.Conversation, msgs []database.Message) api.ConversationResponse {
	resp := api.ConversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		UserID:    conv.UserID,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, api.ConversationMessage{
			Role:      m.Role,
			Content:   m.Content,
			Team:      m.Team,
			Cached:    m.Cached,
			CreatedAt: m.CreatedAt,
		})
	}
	return resp
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
